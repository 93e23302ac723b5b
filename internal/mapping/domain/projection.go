package mapping

import (
	schema "datamap-cloud/internal/schema/domain"
)

// Project collapses the set into a target field -> source column function.
// Rows are read in order and the first row for a target field wins.
func Project(set Set) (map[string]string, error) {
	fields := make(map[string]string)
	for _, row := range set.rows {
		if !row.Complete() {
			continue
		}
		if _, ok := fields[row.TargetField]; ok {
			continue
		}
		fields[row.TargetField] = row.SourceColumn
	}
	if len(fields) == 0 {
		return nil, NoMappingsError()
	}
	return fields, nil
}

// InferCategory picks the category holding the most mapped target fields.
// Ties go to the higher-priority category (Order > Customer > Product);
// fields outside the catalog do not count.
func InferCategory(set Set, catalog schema.Catalog) schema.Category {
	counts := make(map[schema.Category]int)
	for _, row := range set.rows {
		if !row.Complete() {
			continue
		}
		if category, ok := catalog.CategoryOf(row.TargetField); ok {
			counts[category]++
		}
	}
	winner := schema.CategoryOrder
	for _, category := range schema.Categories {
		n, best := counts[category], counts[winner]
		if n > best || (n == best && category.Priority() > winner.Priority()) {
			winner = category
		}
	}
	return winner
}

// BuildPersisted projects the set and resolves its category. An empty
// category is inferred from the catalog.
func BuildPersisted(set Set, datasetID *int64, category schema.Category, catalog schema.Catalog) (*PersistedMapping, error) {
	fields, err := Project(set)
	if err != nil {
		return nil, err
	}
	if category == "" {
		category = InferCategory(set, catalog)
	}
	if !category.Valid() {
		return nil, schema.ErrUnknownCategory
	}
	return &PersistedMapping{
		DatasetID: cloneID(datasetID),
		Category:  category,
		Fields:    fields,
	}, nil
}
