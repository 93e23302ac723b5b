package application

import (
	"time"

	schema "datamap-cloud/internal/schema/domain"
)

// SuggestionsMerged is published after suggestions were merged into a session.
type SuggestionsMerged struct {
	SessionID  string    `json:"session_id"`
	DatasetID  int64     `json:"dataset_id"`
	Mode       string    `json:"mode"`
	Received   int       `json:"received"`
	Added      int       `json:"added"`
	OccurredAt time.Time `json:"occurred_at"`
}

// StaleSuggestionsDiscarded is published when a response arrives after the
// active dataset changed.
type StaleSuggestionsDiscarded struct {
	SessionID       string    `json:"session_id"`
	DatasetID       int64     `json:"dataset_id"`
	ActiveDatasetID *int64    `json:"active_dataset_id"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// MappingSubmitted is published after a mapping was persisted.
type MappingSubmitted struct {
	SessionID   string          `json:"session_id"`
	DatasetID   *int64          `json:"dataset_id"`
	Category    schema.Category `json:"category"`
	Fields      int             `json:"fields"`
	Fingerprint string          `json:"fingerprint"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// Merge modes reported on SuggestionsMerged.
const (
	MergeModeAuto      = "auto"
	MergeModeRequested = "requested"
	MergeModeAccept    = "accept"
	MergeModeAcceptAll = "accept_all"
)
