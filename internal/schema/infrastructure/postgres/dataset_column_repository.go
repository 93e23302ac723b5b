package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	schema "datamap-cloud/internal/schema/domain"
)

const (
	defaultDatasetsTable       = "datasets"
	defaultDatasetColumnsTable = "dataset_columns"
)

// DatasetColumnRepository reads uploaded dataset headers from Postgres.
type DatasetColumnRepository struct {
	db           *sql.DB
	datasets     string
	columnsTable string
}

// NewDatasetColumnRepository constructs a repository.
func NewDatasetColumnRepository(db *sql.DB) *DatasetColumnRepository {
	return &DatasetColumnRepository{db: db, datasets: defaultDatasetsTable, columnsTable: defaultDatasetColumnsTable}
}

// DatasetColumns returns the columns of a dataset in header order.
func (r *DatasetColumnRepository) DatasetColumns(ctx context.Context, datasetID int64) (schema.Columns, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("dataset column repo: nil db")
	}

	var exists bool
	existsQuery := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, r.datasets)
	if err := r.db.QueryRowContext(ctx, existsQuery, datasetID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, schema.ErrDatasetNotFound
	}

	query := fmt.Sprintf(`
SELECT name, position
FROM %s
WHERE dataset_id = $1
ORDER BY position ASC`, r.columnsTable)

	rows, err := r.db.QueryContext(ctx, query, datasetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result schema.Columns
	for rows.Next() {
		var column schema.Column
		if err := rows.Scan(&column.Name, &column.Position); err != nil {
			return nil, err
		}
		result = append(result, column)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// SaveDataset registers a dataset and replaces its header in one transaction.
func (r *DatasetColumnRepository) SaveDataset(ctx context.Context, datasetID int64, name string, header []string) error {
	if r == nil || r.db == nil {
		return errors.New("dataset column repo: nil db")
	}
	if datasetID <= 0 {
		return errors.New("dataset column repo: invalid dataset id")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	upsert := fmt.Sprintf(`
INSERT INTO %s (id, name)
VALUES ($1, $2)
ON CONFLICT (id)
DO UPDATE SET name = EXCLUDED.name, updated_at = NOW()`, r.datasets)
	if _, err := tx.ExecContext(ctx, upsert, datasetID, name); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE dataset_id = $1`, r.columnsTable), datasetID); err != nil {
		return err
	}
	insert := fmt.Sprintf(`INSERT INTO %s (dataset_id, position, name) VALUES ($1, $2, $3)`, r.columnsTable)
	for _, column := range schema.ColumnsFromHeader(header) {
		if _, err := tx.ExecContext(ctx, insert, datasetID, column.Position, column.Name); err != nil {
			return err
		}
	}
	return tx.Commit()
}
