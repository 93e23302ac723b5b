package memory

import (
	"context"
	"sync"

	schema "datamap-cloud/internal/schema/domain"
)

// FieldCatalog serves a fixed list of canonical fields.
type FieldCatalog struct {
	mu     sync.RWMutex
	fields []schema.CanonicalField
}

// NewFieldCatalog constructs a catalog.
func NewFieldCatalog(fields ...schema.CanonicalField) *FieldCatalog {
	return &FieldCatalog{fields: append([]schema.CanonicalField(nil), fields...)}
}

// CanonicalFields returns a copy of the fields.
func (c *FieldCatalog) CanonicalFields(ctx context.Context) ([]schema.CanonicalField, error) {
	_ = ctx
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]schema.CanonicalField(nil), c.fields...), nil
}

// Replace swaps the field list.
func (c *FieldCatalog) Replace(fields []schema.CanonicalField) {
	c.mu.Lock()
	c.fields = append([]schema.CanonicalField(nil), fields...)
	c.mu.Unlock()
}
