package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var columnsFlags struct {
	file  string
	sheet string
}

var columnsCmd = &cobra.Command{
	Use:   "columns",
	Short: "Print the header columns of a dataset file",
	RunE:  runColumns,
}

func init() {
	f := columnsCmd.Flags()
	f.StringVar(&columnsFlags.file, "file", "", "Dataset file or URL (required)")
	f.StringVar(&columnsFlags.sheet, "sheet", "", "Worksheet name for XLSX files")
	_ = columnsCmd.MarkFlagRequired("file")
}

func runColumns(cmd *cobra.Command, _ []string) error {
	e, err := newEngine(columnsFlags.file, columnsFlags.sheet, "", 0)
	if err != nil {
		return err
	}
	columns, err := e.datasetColumns(cmd.Context())
	if err != nil {
		return fmt.Errorf("read columns: %w", err)
	}
	out := cmd.OutOrStdout()
	for _, column := range columns {
		fmt.Fprintf(out, "%3d  %s\n", column.Position, column.Name)
	}
	return nil
}
