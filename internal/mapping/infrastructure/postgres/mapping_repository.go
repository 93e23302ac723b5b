package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	mapping "datamap-cloud/internal/mapping/domain"
	schema "datamap-cloud/internal/schema/domain"
)

const defaultFieldMappingsTable = "field_mappings"

// MappingRepository stores finalized mappings in Postgres. The template is
// stored under dataset_key 0.
type MappingRepository struct {
	db    DBTX
	table string
}

// MappingOption configures the repository.
type MappingOption func(*MappingRepository)

// WithMappingTable overrides the default table name.
func WithMappingTable(table string) MappingOption {
	return func(repo *MappingRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewMappingRepository constructs a repository.
func NewMappingRepository(db DBTX, opts ...MappingOption) *MappingRepository {
	repo := &MappingRepository{db: db, table: defaultFieldMappingsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Get loads the mapping of a dataset, nil for the template.
func (r *MappingRepository) Get(ctx context.Context, datasetID *int64) (*mapping.PersistedMapping, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("mapping repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT dataset_key, category, fields, updated_at
FROM %s
WHERE dataset_key = $1
LIMIT 1`, r.table)

	pm, err := scanMapping(r.db.QueryRowContext(ctx, query, mapping.DatasetKey(datasetID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return pm, nil
}

// Save upserts the mapping of its dataset.
func (r *MappingRepository) Save(ctx context.Context, pm *mapping.PersistedMapping) error {
	if r == nil || r.db == nil {
		return errors.New("mapping repo: nil db")
	}
	if pm == nil {
		return errors.New("mapping repo: nil mapping")
	}
	if err := pm.Validate(); err != nil {
		return err
	}
	fields, err := json.Marshal(pm.Fields)
	if err != nil {
		return err
	}
	fingerprint, err := pm.Fingerprint()
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	dataset_key,
	category,
	fields,
	fingerprint,
	updated_at
) VALUES (
	$1, $2, $3, $4, $5
)
ON CONFLICT (dataset_key)
DO UPDATE SET
	category = EXCLUDED.category,
	fields = EXCLUDED.fields,
	fingerprint = EXCLUDED.fingerprint,
	updated_at = EXCLUDED.updated_at`, r.table)

	_, err = r.db.ExecContext(ctx, query,
		mapping.DatasetKey(pm.DatasetID),
		string(pm.Category),
		string(fields),
		fingerprint,
		pm.UpdatedAt.UTC(),
	)
	return err
}

// List loads every mapping, template first.
func (r *MappingRepository) List(ctx context.Context) ([]*mapping.PersistedMapping, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("mapping repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT dataset_key, category, fields, updated_at
FROM %s
ORDER BY dataset_key ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*mapping.PersistedMapping
	for rows.Next() {
		pm, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, pm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMapping(row scanner) (*mapping.PersistedMapping, error) {
	var (
		pm       mapping.PersistedMapping
		key      int64
		category string
		fields   []byte
	)
	if err := row.Scan(&key, &category, &fields, &pm.UpdatedAt); err != nil {
		return nil, err
	}
	parsed, err := schema.ParseCategory(category)
	if err != nil {
		return nil, fmt.Errorf("mapping repo: dataset %d: %w", key, err)
	}
	if err := json.Unmarshal(fields, &pm.Fields); err != nil {
		return nil, fmt.Errorf("mapping repo: dataset %d fields: %w", key, err)
	}
	pm.DatasetID = mapping.DatasetIDFromKey(key)
	pm.Category = parsed
	pm.UpdatedAt = pm.UpdatedAt.UTC()
	return &pm, nil
}
