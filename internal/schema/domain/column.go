package schema

import (
	"context"
	"errors"
)

// ErrDatasetNotFound indicates an unknown dataset id.
var ErrDatasetNotFound = errors.New("schema: dataset not found")

// Column is one column of the source dataset in its original order.
type Column struct {
	Name     string `json:"name"`
	Position int    `json:"position"`
}

// Columns is the ordered column list of a dataset.
type Columns []Column

// ColumnsFromHeader builds a column list from a header row, skipping blank names.
func ColumnsFromHeader(header []string) Columns {
	columns := make(Columns, 0, len(header))
	for i, name := range header {
		if name == "" {
			continue
		}
		columns = append(columns, Column{Name: name, Position: i})
	}
	return columns
}

// PositionOf returns the position of the named column.
// The first occurrence wins when a header repeats a name.
func (c Columns) PositionOf(name string) (int, bool) {
	if name == "" {
		return 0, false
	}
	for _, column := range c {
		if column.Name == name {
			return column.Position, true
		}
	}
	return 0, false
}

// Names returns the column names in order.
func (c Columns) Names() []string {
	names := make([]string, 0, len(c))
	for _, column := range c {
		names = append(names, column.Name)
	}
	return names
}

// ColumnSource exposes the columns of uploaded datasets.
type ColumnSource interface {
	DatasetColumns(ctx context.Context, datasetID int64) (Columns, error)
}
