package schema

import (
	"context"
	"errors"
)

// CanonicalField is one named slot of the target data model.
type CanonicalField struct {
	Key      string   `json:"key" yaml:"key"`
	Label    string   `json:"label" yaml:"label"`
	Category Category `json:"category" yaml:"category"`
	Required bool     `json:"required" yaml:"required"`
	Type     string   `json:"type" yaml:"type"`
}

// Validate checks field invariants.
func (f CanonicalField) Validate() error {
	if f.Key == "" {
		return errors.New("canonical field: empty key")
	}
	if !f.Category.Valid() {
		return errors.New("canonical field: invalid category for " + f.Key)
	}
	return nil
}

// Catalog is an ordered list of canonical fields with unique keys.
type Catalog []CanonicalField

// NewCatalog validates fields and rejects duplicate keys.
func NewCatalog(fields []CanonicalField) (Catalog, error) {
	seen := make(map[string]struct{}, len(fields))
	catalog := make(Catalog, 0, len(fields))
	for _, field := range fields {
		if field.Label == "" {
			field.Label = field.Key
		}
		if field.Type == "" {
			field.Type = "string"
		}
		if err := field.Validate(); err != nil {
			return nil, err
		}
		if _, ok := seen[field.Key]; ok {
			return nil, errors.New("canonical field: duplicate key " + field.Key)
		}
		seen[field.Key] = struct{}{}
		catalog = append(catalog, field)
	}
	return catalog, nil
}

// Lookup finds a field by key.
func (c Catalog) Lookup(key string) (CanonicalField, bool) {
	for _, field := range c {
		if field.Key == key {
			return field, true
		}
	}
	return CanonicalField{}, false
}

// CategoryOf returns the category of the field with the given key.
func (c Catalog) CategoryOf(key string) (Category, bool) {
	field, ok := c.Lookup(key)
	if !ok {
		return "", false
	}
	return field.Category, true
}

// ByCategory returns the fields of one category in catalog order.
func (c Catalog) ByCategory(category Category) []CanonicalField {
	var result []CanonicalField
	for _, field := range c {
		if field.Category == category {
			result = append(result, field)
		}
	}
	return result
}

// FieldCatalog exposes the canonical field catalog.
type FieldCatalog interface {
	CanonicalFields(ctx context.Context) ([]CanonicalField, error)
}
