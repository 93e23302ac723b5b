package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"datamap-cloud/internal/schema/infrastructure/catalogfile"
	"datamap-cloud/internal/schema/infrastructure/datasetfile"
	schemapostgres "datamap-cloud/internal/schema/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var seedFlags struct {
	dsn      string
	catalog  string
	manifest string
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the field catalog and dataset headers into Postgres",
	Long: "seed writes the canonical field catalog into canonical_fields and, when a\n" +
		"manifest is given, reads every dataset header into datasets/dataset_columns.",
	RunE: runSeed,
}

func init() {
	f := seedCmd.Flags()
	f.StringVar(&seedFlags.dsn, "dsn", os.Getenv("PG_DSN"), "Postgres DSN (default: $PG_DSN)")
	f.StringVar(&seedFlags.catalog, "catalog", "", "Canonical field catalog YAML (default: embedded)")
	f.StringVar(&seedFlags.manifest, "manifest", "", "Dataset manifest YAML")
}

func runSeed(cmd *cobra.Command, _ []string) error {
	if seedFlags.dsn == "" {
		return fmt.Errorf("--dsn or PG_DSN is required")
	}
	ctx := cmd.Context()
	out := cmd.ErrOrStderr()

	db, err := sql.Open("pgx", seedFlags.dsn)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping db: %w", err)
	}

	catalog, err := catalogfile.NewSource(seedFlags.catalog, nil)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	fields, err := catalog.CanonicalFields(ctx)
	if err != nil {
		return err
	}
	fieldRepo := schemapostgres.NewCanonicalFieldRepository(db)
	for i, field := range fields {
		if err := fieldRepo.Save(ctx, field, i); err != nil {
			return fmt.Errorf("save field %s: %w", field.Key, err)
		}
	}
	fmt.Fprintf(out, "seeded %d canonical fields\n", len(fields))

	if seedFlags.manifest == "" {
		return nil
	}
	entries, err := datasetfile.LoadManifest(seedFlags.manifest)
	if err != nil {
		return err
	}
	files, err := datasetfile.NewSource(entries)
	if err != nil {
		return err
	}
	datasetRepo := schemapostgres.NewDatasetColumnRepository(db)
	for _, entry := range entries {
		columns, err := files.DatasetColumns(ctx, entry.ID)
		if err != nil {
			return fmt.Errorf("read dataset %d: %w", entry.ID, err)
		}
		header := make([]string, 0, len(columns))
		for _, column := range columns {
			for len(header) < column.Position {
				header = append(header, "")
			}
			header = append(header, column.Name)
		}
		if err := datasetRepo.SaveDataset(ctx, entry.ID, entry.Name, header); err != nil {
			return fmt.Errorf("save dataset %d: %w", entry.ID, err)
		}
		fmt.Fprintf(out, "seeded dataset %d (%s): %d columns\n", entry.ID, entry.Name, len(columns))
	}
	return nil
}
