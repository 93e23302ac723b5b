package mapping

import (
	"context"
)

// MappingRepository persists finalized mappings. Get returns nil when no
// mapping exists; a nil dataset id addresses the template.
type MappingRepository interface {
	Get(ctx context.Context, datasetID *int64) (*PersistedMapping, error)
	Save(ctx context.Context, mapping *PersistedMapping) error
}

// SuggestionSource produces confidence-scored candidates for a dataset.
type SuggestionSource interface {
	RequestSuggestions(ctx context.Context, datasetID int64) (SuggestionBatch, error)
}

// MappingLister enumerates stored mappings ordered by dataset, template first.
type MappingLister interface {
	List(ctx context.Context) ([]*PersistedMapping, error)
}
