package main

import (
	"fmt"

	"github.com/spf13/cobra"

	schema "datamap-cloud/internal/schema/domain"
	"datamap-cloud/internal/suggest/heuristic"
)

var suggestFlags struct {
	file    string
	sheet   string
	catalog string
	floor   float64
}

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Score dataset columns against the canonical fields",
	RunE:  runSuggest,
}

func init() {
	f := suggestCmd.Flags()
	f.StringVar(&suggestFlags.file, "file", "", "Dataset file or URL (required)")
	f.StringVar(&suggestFlags.sheet, "sheet", "", "Worksheet name for XLSX files")
	f.StringVar(&suggestFlags.catalog, "catalog", "", "Canonical field catalog YAML (default: embedded)")
	f.Float64Var(&suggestFlags.floor, "floor", heuristic.DefaultFloor, "Lowest confidence reported")
	_ = suggestCmd.MarkFlagRequired("file")
}

func runSuggest(cmd *cobra.Command, _ []string) error {
	e, err := newEngine(suggestFlags.file, suggestFlags.sheet, suggestFlags.catalog, suggestFlags.floor)
	if err != nil {
		return err
	}
	batch, err := e.suggestions(cmd.Context())
	if err != nil {
		return fmt.Errorf("suggest: %w", err)
	}
	out := cmd.OutOrStdout()
	for _, category := range schema.Categories {
		list := batch.For(category)
		if len(list) == 0 {
			continue
		}
		fmt.Fprintf(out, "%s:\n", category)
		for _, s := range list {
			fmt.Fprintf(out, "  %-24s -> %-24s %.2f\n", s.SourceColumn, s.TargetField, s.Confidence)
		}
	}
	return nil
}
