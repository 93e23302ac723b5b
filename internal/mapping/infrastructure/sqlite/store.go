package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	mapping "datamap-cloud/internal/mapping/domain"
	schema "datamap-cloud/internal/schema/domain"

	_ "modernc.org/sqlite"
)

// Store is a single-file mapping store for local and CLI use.
type Store struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite file at path and applies migrations.
// The special path ":memory:" keeps everything in memory.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer at a time
	conn.SetMaxOpenConns(1)

	store := &Store{conn: conn}
	if err := store.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS field_mappings (
			dataset_key INTEGER PRIMARY KEY CHECK (dataset_key >= 0),
			category TEXT NOT NULL,
			fields TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
	}
	for _, m := range migrations {
		if _, err := s.conn.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// Get loads the mapping of a dataset, nil for the template.
func (s *Store) Get(ctx context.Context, datasetID *int64) (*mapping.PersistedMapping, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT dataset_key, category, fields, updated_at FROM field_mappings WHERE dataset_key = ?`,
		mapping.DatasetKey(datasetID))
	pm, err := scanMapping(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return pm, err
}

// Save upserts the mapping of its dataset.
func (s *Store) Save(ctx context.Context, pm *mapping.PersistedMapping) error {
	if pm == nil {
		return errors.New("sqlite mapping store: nil mapping")
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
	updatedAt := pm.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO field_mappings (dataset_key, category, fields, fingerprint, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (dataset_key) DO UPDATE SET
			category = excluded.category,
			fields = excluded.fields,
			fingerprint = excluded.fingerprint,
			updated_at = excluded.updated_at`,
		mapping.DatasetKey(pm.DatasetID), string(pm.Category), string(fields), fingerprint,
		updatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

// List returns every mapping, template first.
func (s *Store) List(ctx context.Context) ([]*mapping.PersistedMapping, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT dataset_key, category, fields, updated_at FROM field_mappings ORDER BY dataset_key`)
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
	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMapping(row scanner) (*mapping.PersistedMapping, error) {
	var (
		key       int64
		category  string
		fields    string
		updatedAt string
	)
	if err := row.Scan(&key, &category, &fields, &updatedAt); err != nil {
		return nil, err
	}
	parsed, err := schema.ParseCategory(category)
	if err != nil {
		return nil, fmt.Errorf("sqlite mapping store: dataset %d: %w", key, err)
	}
	pm := &mapping.PersistedMapping{
		DatasetID: mapping.DatasetIDFromKey(key),
		Category:  parsed,
	}
	if err := json.Unmarshal([]byte(fields), &pm.Fields); err != nil {
		return nil, fmt.Errorf("sqlite mapping store: dataset %d fields: %w", key, err)
	}
	if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		pm.UpdatedAt = ts.UTC()
	}
	return pm, nil
}
