package main

import (
	"context"
	"fmt"
	"path/filepath"

	mapping "datamap-cloud/internal/mapping/domain"
	"datamap-cloud/internal/schema/infrastructure/catalogfile"
	"datamap-cloud/internal/schema/infrastructure/datasetfile"
	"datamap-cloud/internal/suggest/heuristic"

	schema "datamap-cloud/internal/schema/domain"
)

// fileDatasetID is the dataset id a single input file is registered under.
const fileDatasetID int64 = 1

type engine struct {
	catalog *catalogfile.Source
	columns *datasetfile.Source
	source  *heuristic.Suggester
}

func newEngine(file, sheet, catalogPath string, floor float64) (*engine, error) {
	if file == "" {
		return nil, fmt.Errorf("--file is required")
	}
	catalog, err := catalogfile.NewSource(catalogPath, nil)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	columns, err := datasetfile.NewSource([]datasetfile.Entry{{
		ID:    fileDatasetID,
		Name:  filepath.Base(file),
		URL:   file,
		Sheet: sheet,
	}})
	if err != nil {
		return nil, err
	}
	source, err := heuristic.New(catalog, columns, heuristic.WithFloor(floor))
	if err != nil {
		return nil, err
	}
	return &engine{catalog: catalog, columns: columns, source: source}, nil
}

func (e *engine) datasetColumns(ctx context.Context) (schema.Columns, error) {
	return e.columns.DatasetColumns(ctx, fileDatasetID)
}

func (e *engine) suggestions(ctx context.Context) (mapping.SuggestionBatch, error) {
	return e.source.RequestSuggestions(ctx, fileDatasetID)
}
