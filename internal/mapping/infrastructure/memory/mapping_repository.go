package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	mapping "datamap-cloud/internal/mapping/domain"
)

// MappingRepository is an in-memory mapping store for demo/testing.
type MappingRepository struct {
	mu   sync.RWMutex
	data map[int64]*mapping.PersistedMapping
}

// NewMappingRepository constructs a repository.
func NewMappingRepository() *MappingRepository {
	return &MappingRepository{data: make(map[int64]*mapping.PersistedMapping)}
}

// Get loads the mapping of a dataset, nil for the template.
func (r *MappingRepository) Get(ctx context.Context, datasetID *int64) (*mapping.PersistedMapping, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	pm := r.data[mapping.DatasetKey(datasetID)]
	if pm == nil {
		return nil, nil
	}
	return pm.Clone(), nil
}

// Save replaces the mapping of its dataset.
func (r *MappingRepository) Save(ctx context.Context, pm *mapping.PersistedMapping) error {
	_ = ctx
	if pm == nil {
		return errors.New("mapping repo: nil mapping")
	}
	if err := pm.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.data[mapping.DatasetKey(pm.DatasetID)] = pm.Clone()
	r.mu.Unlock()
	return nil
}

// List returns every mapping, template first.
func (r *MappingRepository) List(ctx context.Context) ([]*mapping.PersistedMapping, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]int64, 0, len(r.data))
	for key := range r.data {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	result := make([]*mapping.PersistedMapping, 0, len(keys))
	for _, key := range keys {
		result = append(result, r.data[key].Clone())
	}
	return result, nil
}
