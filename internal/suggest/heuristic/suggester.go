package heuristic

import (
	"context"
	"errors"
	"math"
	"sort"

	mapping "datamap-cloud/internal/mapping/domain"
	schema "datamap-cloud/internal/schema/domain"
)

// DefaultFloor is the lowest score reported as a suggestion.
const DefaultFloor = 0.3

// Suggester proposes mappings by comparing column names with canonical
// field keys and labels. It needs no external service.
type Suggester struct {
	catalog schema.FieldCatalog
	columns schema.ColumnSource
	floor   float64
}

// Option customizes the suggester.
type Option func(*Suggester)

// WithFloor overrides the minimum reported score.
func WithFloor(floor float64) Option {
	return func(s *Suggester) {
		if floor >= 0 && floor <= 1 {
			s.floor = floor
		}
	}
}

// New constructs a suggester.
func New(catalog schema.FieldCatalog, columns schema.ColumnSource, opts ...Option) (*Suggester, error) {
	if catalog == nil {
		return nil, errors.New("heuristic suggester: nil catalog")
	}
	if columns == nil {
		return nil, errors.New("heuristic suggester: nil column source")
	}
	s := &Suggester{catalog: catalog, columns: columns, floor: DefaultFloor}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RequestSuggestions scores the dataset columns against the catalog.
func (s *Suggester) RequestSuggestions(ctx context.Context, datasetID int64) (mapping.SuggestionBatch, error) {
	if err := mapping.ValidateDatasetID("suggest", datasetID); err != nil {
		return mapping.SuggestionBatch{}, err
	}
	fields, err := s.catalog.CanonicalFields(ctx)
	if err != nil {
		return mapping.SuggestionBatch{}, err
	}
	columns, err := s.columns.DatasetColumns(ctx, datasetID)
	if err != nil {
		return mapping.SuggestionBatch{}, err
	}
	if len(columns) == 0 {
		return mapping.SuggestionBatch{}, mapping.NewFailure(mapping.ErrBadRequest, "suggest", "dataset has no columns to match", nil)
	}
	return Suggest(columns, fields, s.floor), nil
}

// Suggest keeps, per column and category, the best scoring field at or
// above floor. Within a category suggestions are ordered by confidence and
// then by column position.
func Suggest(columns schema.Columns, fields []schema.CanonicalField, floor float64) mapping.SuggestionBatch {
	type scored struct {
		suggestion mapping.Suggestion
		position   int
	}
	byCategory := make(map[schema.Category][]scored)
	for _, column := range columns {
		best := make(map[schema.Category]mapping.Suggestion)
		for _, field := range fields {
			score := Score(column.Name, field.Key)
			if field.Label != "" {
				score = math.Max(score, Score(column.Name, field.Label))
			}
			score = math.Round(score*100) / 100
			if score < floor {
				continue
			}
			current, ok := best[field.Category]
			if ok && current.Confidence >= score {
				continue
			}
			best[field.Category] = mapping.Suggestion{
				SourceColumn: column.Name,
				TargetField:  field.Key,
				Confidence:   score,
			}
		}
		for category, suggestion := range best {
			byCategory[category] = append(byCategory[category], scored{suggestion: suggestion, position: column.Position})
		}
	}

	var batch mapping.SuggestionBatch
	for _, category := range schema.Categories {
		list := byCategory[category]
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].suggestion.Confidence != list[j].suggestion.Confidence {
				return list[i].suggestion.Confidence > list[j].suggestion.Confidence
			}
			return list[i].position < list[j].position
		})
		for _, item := range list {
			_ = batch.Add(category, item.suggestion)
		}
	}
	return batch
}
