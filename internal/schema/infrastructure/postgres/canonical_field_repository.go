package postgres

import (
	"context"
	"errors"
	"fmt"

	schema "datamap-cloud/internal/schema/domain"
)

const defaultCanonicalFieldsTable = "canonical_fields"

// CanonicalFieldRepository reads the field catalog from Postgres.
type CanonicalFieldRepository struct {
	db    DBTX
	table string
}

// CanonicalFieldOption configures the repository.
type CanonicalFieldOption func(*CanonicalFieldRepository)

// WithCanonicalFieldTable overrides the default table name.
func WithCanonicalFieldTable(table string) CanonicalFieldOption {
	return func(repo *CanonicalFieldRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewCanonicalFieldRepository constructs a repository.
func NewCanonicalFieldRepository(db DBTX, opts ...CanonicalFieldOption) *CanonicalFieldRepository {
	repo := &CanonicalFieldRepository{db: db, table: defaultCanonicalFieldsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// CanonicalFields loads every field in display order.
func (r *CanonicalFieldRepository) CanonicalFields(ctx context.Context) ([]schema.CanonicalField, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("canonical field repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT field_key, label, category, required, field_type
FROM %s
ORDER BY position ASC, field_key ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []schema.CanonicalField
	for rows.Next() {
		var (
			field    schema.CanonicalField
			category string
		)
		if err := rows.Scan(&field.Key, &field.Label, &category, &field.Required, &field.Type); err != nil {
			return nil, err
		}
		parsed, err := schema.ParseCategory(category)
		if err != nil {
			return nil, fmt.Errorf("canonical field repo: field %q: %w", field.Key, err)
		}
		field.Category = parsed
		result = append(result, field)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Save upserts a field at the given display position.
func (r *CanonicalFieldRepository) Save(ctx context.Context, field schema.CanonicalField, position int) error {
	if r == nil || r.db == nil {
		return errors.New("canonical field repo: nil db")
	}
	if err := field.Validate(); err != nil {
		return err
	}
	if field.Label == "" {
		field.Label = field.Key
	}
	if field.Type == "" {
		field.Type = "string"
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	field_key,
	label,
	category,
	required,
	field_type,
	position
) VALUES (
	$1, $2, $3, $4, $5, $6
)
ON CONFLICT (field_key)
DO UPDATE SET
	label = EXCLUDED.label,
	category = EXCLUDED.category,
	required = EXCLUDED.required,
	field_type = EXCLUDED.field_type,
	position = EXCLUDED.position,
	updated_at = NOW()`, r.table)

	_, err := r.db.ExecContext(ctx, query, field.Key, field.Label, string(field.Category), field.Required, field.Type, position)
	return err
}
