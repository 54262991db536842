package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/clover/pkg/dedupe"
	"github.com/Ramsey-B/clover/pkg/importer"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/report"
)

func newReconcileCmd(a *app) *cobra.Command {
	var (
		configPath     string
		populationPath string
		candidatesPath string
		outPath        string
		workers        int
		sheet          string
		idColumn       string
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Check every row of an import file against a population file",
		Example: `  # Write an Excel report of likely duplicates
  clover reconcile --config member.yaml --population members.csv --candidates import.xlsx --out report.xlsx

  # Print JSON to stdout
  clover reconcile --config member.yaml --population members.parquet --candidates import.jsonl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := a.logger.WithContext(ctx)

			cfg, err := matching.LoadConfigurationFile(configPath)
			if err != nil {
				return err
			}
			opts := importer.Options{Sheet: sheet, IDColumn: idColumn}

			population, err := importer.LoadRecords(populationPath, cfg.Fields, opts)
			if err != nil {
				return fmt.Errorf("population: %w", err)
			}
			candidates, err := importer.LoadRecords(candidatesPath, cfg.Fields, opts)
			if err != nil {
				return fmt.Errorf("candidates: %w", err)
			}
			log.WithFields(map[string]any{
				"population": len(population),
				"candidates": len(candidates),
			}).Info("Loaded records")

			r, err := matching.NewReconciler(cfg, matching.WithLogger(a.logger), matching.WithWorkers(workers))
			if err != nil {
				return err
			}
			rows, reconcileErr := r.ReconcileBatch(ctx, candidates, population)
			if reconcileErr != nil && !dedupe.IsCancelled(reconcileErr) {
				return reconcileErr
			}

			rep := report.New(cfg, dedupe.OrderedRows(rows))
			if outPath == "" {
				err = report.Write(cmd.OutOrStdout(), report.FormatJSON, rep)
			} else {
				err = report.WriteFile(outPath, rep)
			}
			if err != nil {
				return err
			}

			log.WithFields(map[string]any{
				"rows":                 rep.Summary.Rows,
				"rows_with_duplicates": rep.Summary.RowsWithDuplicates,
				"unassessable":         rep.Summary.Unassessable,
				"workers":              r.Workers(),
			}).Info("Reconciliation finished")

			if reconcileErr != nil {
				return fmt.Errorf("interrupted after %d of %d rows: %w", len(rows), len(candidates), reconcileErr)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Match configuration (YAML or JSON)")
	cmd.Flags().StringVar(&populationPath, "population", "", "Existing records (.csv, .json, .jsonl, .parquet, .xlsx)")
	cmd.Flags().StringVar(&candidatesPath, "candidates", "", "Import rows to check")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Report file (.json, .yaml, .xlsx); stdout JSON when empty")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Parallel rows (default: GOMAXPROCS)")
	cmd.Flags().StringVar(&sheet, "sheet", "", "XLSX sheet name (default: first sheet)")
	cmd.Flags().StringVar(&idColumn, "id-column", importer.DefaultIDColumn, "Column holding record ids")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("population")
	_ = cmd.MarkFlagRequired("candidates")

	return cmd
}
