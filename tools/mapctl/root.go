package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mapctl",
	Short: "Reconcile dataset columns against the canonical field catalog",
	Long:  "mapctl runs the field-mapping engine offline against a CSV, TSV or XLSX file\nand writes the resulting mapping as JSON, XLSX or PDF.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(columnsCmd)
	rootCmd.AddCommand(suggestCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
