package mapping

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/minio/highwayhash"

	schema "datamap-cloud/internal/schema/domain"
)

var fingerprintKey = []byte("datamap-field-mapping-fp-key-v01")

// PersistedMapping is the finalized mapping of one dataset, or the template
// when DatasetID is nil.
type PersistedMapping struct {
	DatasetID *int64            `json:"dataset_id"`
	Category  schema.Category   `json:"category"`
	Fields    map[string]string `json:"fields"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// IsTemplate reports whether the mapping is dataset-agnostic.
func (m PersistedMapping) IsTemplate() bool {
	return m.DatasetID == nil
}

// Validate checks mapping invariants.
func (m PersistedMapping) Validate() error {
	if m.DatasetID != nil && *m.DatasetID <= 0 {
		return errors.New("persisted mapping: non-positive dataset id")
	}
	if !m.Category.Valid() {
		return errors.New("persisted mapping: invalid category")
	}
	if len(m.Fields) == 0 {
		return errors.New("persisted mapping: empty fields")
	}
	for target, source := range m.Fields {
		if target == "" || source == "" {
			return errors.New("persisted mapping: empty field name")
		}
	}
	return nil
}

// Clone returns a deep copy.
func (m PersistedMapping) Clone() *PersistedMapping {
	fields := make(map[string]string, len(m.Fields))
	for k, v := range m.Fields {
		fields[k] = v
	}
	return &PersistedMapping{
		DatasetID: cloneID(m.DatasetID),
		Category:  m.Category,
		Fields:    fields,
		UpdatedAt: m.UpdatedAt,
	}
}

// TargetFields returns the mapped target fields sorted by name.
func (m PersistedMapping) TargetFields() []string {
	keys := make([]string, 0, len(m.Fields))
	for key := range m.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Fingerprint hashes the dataset, category and fields; it ignores UpdatedAt.
func (m PersistedMapping) Fingerprint() (string, error) {
	hash, err := highwayhash.New64(fingerprintKey)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(strconv.FormatInt(DatasetKey(m.DatasetID), 10))
	b.WriteByte('\n')
	b.WriteString(string(m.Category))
	for _, target := range m.TargetFields() {
		b.WriteByte('\n')
		b.WriteString(target)
		b.WriteByte('=')
		b.WriteString(m.Fields[target])
	}
	if _, err := hash.Write([]byte(b.String())); err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", hash.Sum64()), nil
}

// ToSet hydrates a canonical set of manual rows from the mapping.
func (m PersistedMapping) ToSet(columns schema.Columns) Set {
	rows := make([]Row, 0, len(m.Fields))
	for _, target := range m.TargetFields() {
		rows = append(rows, NewManualRow(m.Fields[target], target))
	}
	return Canonicalize(NewSet(rows...), columns)
}

// DatasetKey maps a dataset id to a storage key; the template is 0.
func DatasetKey(datasetID *int64) int64 {
	if datasetID == nil {
		return 0
	}
	return *datasetID
}

// DatasetIDFromKey is the inverse of DatasetKey.
func DatasetIDFromKey(key int64) *int64 {
	if key == 0 {
		return nil
	}
	return &key
}

// ValidateDatasetID rejects non-positive dataset ids.
func ValidateDatasetID(op string, datasetID int64) error {
	if datasetID <= 0 {
		return InvalidIdentifierError(op)
	}
	return nil
}

// DatasetLabel renders a dataset id for logs and reports.
func DatasetLabel(datasetID *int64) string {
	if datasetID == nil {
		return "template"
	}
	return strconv.FormatInt(*datasetID, 10)
}

func cloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	value := *id
	return &value
}
