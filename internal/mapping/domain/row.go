package mapping

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Provenance records where a row came from.
type Provenance string

const (
	ProvenanceManual    Provenance = "manual"
	ProvenanceSuggested Provenance = "suggested"
)

// Confidence is an optional score in [0,1].
type Confidence struct {
	Value float64
	Valid bool
}

// Scored returns a present confidence.
func Scored(value float64) Confidence {
	return Confidence{Value: value, Valid: true}
}

// Above reports whether c is present and strictly higher than other.
// An absent confidence ranks below every present one.
func (c Confidence) Above(other Confidence) bool {
	if !c.Valid {
		return false
	}
	if !other.Valid {
		return true
	}
	return c.Value > other.Value
}

func (c Confidence) MarshalJSON() ([]byte, error) {
	if !c.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(c.Value)
}

func (c *Confidence) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = Confidence{}
		return nil
	}
	var value float64
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	*c = Scored(value)
	return nil
}

// IdentityPair identifies a complete row.
type IdentityPair struct {
	SourceColumn string
	TargetField  string
}

// Row is the working unit of a mapping set.
type Row struct {
	ID           string     `json:"id"`
	SourceColumn string     `json:"source_column"`
	TargetField  string     `json:"target_field"`
	Provenance   Provenance `json:"provenance"`
	Confidence   Confidence `json:"confidence"`
}

// NewRowID returns an opaque row identifier.
func NewRowID() string {
	return uuid.NewString()
}

// NewManualRow builds a manual row; either side may be empty.
func NewManualRow(sourceColumn, targetField string) Row {
	return Row{
		ID:           NewRowID(),
		SourceColumn: sourceColumn,
		TargetField:  targetField,
		Provenance:   ProvenanceManual,
	}
}

// NewSuggestedRow materializes a suggestion.
func NewSuggestedRow(s Suggestion) Row {
	return Row{
		ID:           NewRowID(),
		SourceColumn: s.SourceColumn,
		TargetField:  s.TargetField,
		Provenance:   ProvenanceSuggested,
		Confidence:   Scored(s.Confidence),
	}
}

// Complete reports whether both sides are mapped.
func (r Row) Complete() bool {
	return r.SourceColumn != "" && r.TargetField != ""
}

// Key returns the identity pair of the row.
func (r Row) Key() IdentityPair {
	return IdentityPair{SourceColumn: r.SourceColumn, TargetField: r.TargetField}
}
