package memory

import (
	"context"
	"errors"
	"sync"

	schema "datamap-cloud/internal/schema/domain"
)

// ColumnStore keeps dataset headers in memory.
type ColumnStore struct {
	mu      sync.RWMutex
	headers map[int64][]string
}

// NewColumnStore constructs an empty store.
func NewColumnStore() *ColumnStore {
	return &ColumnStore{headers: make(map[int64][]string)}
}

// Put registers the header row of a dataset.
func (s *ColumnStore) Put(datasetID int64, header []string) error {
	if datasetID <= 0 {
		return errors.New("column store: invalid dataset id")
	}
	s.mu.Lock()
	s.headers[datasetID] = append([]string(nil), header...)
	s.mu.Unlock()
	return nil
}

// DatasetColumns returns the columns of a dataset.
func (s *ColumnStore) DatasetColumns(ctx context.Context, datasetID int64) (schema.Columns, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	header, ok := s.headers[datasetID]
	if !ok {
		return nil, schema.ErrDatasetNotFound
	}
	return schema.ColumnsFromHeader(header), nil
}
