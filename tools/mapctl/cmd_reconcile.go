package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	mappingapp "datamap-cloud/internal/mapping/application"
	mapping "datamap-cloud/internal/mapping/domain"
	mappingmemory "datamap-cloud/internal/mapping/infrastructure/memory"
	mappingsqlite "datamap-cloud/internal/mapping/infrastructure/sqlite"
	"datamap-cloud/internal/mapping/interfaces/export"
	schema "datamap-cloud/internal/schema/domain"
	"datamap-cloud/internal/suggest/heuristic"
)

var reconcileFlags struct {
	file      string
	sheet     string
	catalog   string
	floor     float64
	threshold float64
	category  string
	acceptAll bool
	store     string
	out       string
	verbose   bool
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Build and submit a mapping for a dataset file",
	Long: "reconcile hydrates a mapping for the file, merges suggestions at or above\n" +
		"the threshold, submits it and writes the persisted mapping.",
	RunE: runReconcile,
}

func init() {
	f := reconcileCmd.Flags()
	f.StringVar(&reconcileFlags.file, "file", "", "Dataset file or URL (required)")
	f.StringVar(&reconcileFlags.sheet, "sheet", "", "Worksheet name for XLSX files")
	f.StringVar(&reconcileFlags.catalog, "catalog", "", "Canonical field catalog YAML (default: embedded)")
	f.Float64Var(&reconcileFlags.floor, "floor", heuristic.DefaultFloor, "Lowest confidence offered as a suggestion")
	f.Float64Var(&reconcileFlags.threshold, "threshold", mapping.DefaultThreshold, "Lowest confidence merged automatically")
	f.StringVar(&reconcileFlags.category, "category", "", "Mapping category (default: inferred)")
	f.BoolVar(&reconcileFlags.acceptAll, "accept-all", false, "Merge every suggestion regardless of threshold")
	f.StringVar(&reconcileFlags.store, "store", "", "SQLite file keeping mappings between runs")
	f.StringVar(&reconcileFlags.out, "out", "", "Output file (.json, .xlsx or .pdf); JSON to stdout when empty")
	f.BoolVar(&reconcileFlags.verbose, "verbose", false, "Log session activity to stderr")
	_ = reconcileCmd.MarkFlagRequired("file")
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	format, err := outputFormat(reconcileFlags.out)
	if err != nil {
		return err
	}
	var category schema.Category
	if reconcileFlags.category != "" {
		if category, err = schema.ParseCategory(reconcileFlags.category); err != nil {
			return fmt.Errorf("category %q: %w", reconcileFlags.category, err)
		}
	}

	e, err := newEngine(reconcileFlags.file, reconcileFlags.sheet, reconcileFlags.catalog, reconcileFlags.floor)
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(reconcileFlags.store)
	if err != nil {
		return err
	}
	defer closeStore()

	logger := log.New(io.Discard, "", 0)
	if reconcileFlags.verbose {
		logger = log.New(cmd.ErrOrStderr(), "mapctl ", log.LstdFlags)
	}
	session, err := mappingapp.NewSession(e.catalog, e.columns, store, e.source,
		mappingapp.WithThreshold(reconcileFlags.threshold),
		mappingapp.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	datasetID := fileDatasetID
	view, err := session.Open(ctx, &datasetID)
	if err != nil {
		return fmt.Errorf("open dataset: %w", err)
	}
	if reconcileFlags.acceptAll {
		if _, err := session.AcceptAll(ctx); err != nil {
			return fmt.Errorf("accept suggestions: %w", err)
		}
		view = session.View()
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%d columns, %d suggestions, %d rows\n", len(view.Columns), view.Suggestions.Len(), len(view.Rows))

	pm, err := session.Submit(ctx, category)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	data, err := render(cmd, e, pm, format)
	if err != nil {
		return err
	}
	if reconcileFlags.out == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(reconcileFlags.out, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%s, %d fields)\n", reconcileFlags.out, pm.Category, len(pm.Fields))
	return nil
}

type reconcileStore interface {
	mapping.MappingRepository
	mapping.MappingLister
}

func openStore(path string) (reconcileStore, func(), error) {
	if path == "" {
		return mappingmemory.NewMappingRepository(), func() {}, nil
	}
	store, err := mappingsqlite.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return store, func() { _ = store.Close() }, nil
}

func outputFormat(path string) (string, error) {
	if path == "" {
		return "json", nil
	}
	switch ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")); ext {
	case "json":
		return "json", nil
	case export.FormatXLSX, export.FormatPDF:
		return ext, nil
	default:
		return "", fmt.Errorf("unsupported output %q: use .json, .xlsx or .pdf", path)
	}
}

func render(cmd *cobra.Command, e *engine, pm *mapping.PersistedMapping, format string) ([]byte, error) {
	if format == "json" {
		fingerprint, err := pm.Fingerprint()
		if err != nil {
			return nil, err
		}
		data, err := json.MarshalIndent(struct {
			*mapping.PersistedMapping
			Fingerprint string `json:"fingerprint"`
		}{pm, fingerprint}, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	}
	fields, err := e.catalog.CanonicalFields(cmd.Context())
	if err != nil {
		return nil, err
	}
	report, err := export.NewReport(pm, schema.Catalog(fields))
	if err != nil {
		return nil, err
	}
	return export.Build(format, report)
}
