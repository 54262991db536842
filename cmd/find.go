package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Ramsey-B/clover/pkg/importer"
	"github.com/Ramsey-B/clover/pkg/matching"
)

func newFindCmd(a *app) *cobra.Command {
	var (
		configPath     string
		populationPath string
		recordJSON     string
		format         string
		idColumn       string
	)

	cmd := &cobra.Command{
		Use:   "find",
		Short: "Find the records one candidate may duplicate",
		Example: `  clover find --config member.yaml --population members.csv \
    --record '{"first_name":"Jon","last_name":"Smith","email":"jon.smith@gmail.com"}'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := matching.LoadConfigurationFile(configPath)
			if err != nil {
				return err
			}

			dec := json.NewDecoder(bytes.NewBufferString(recordJSON))
			dec.UseNumber()
			var row importer.Row
			if err := dec.Decode(&row); err != nil {
				return fmt.Errorf("--record must be a JSON object: %w", err)
			}
			candidate := importer.Records([]importer.Row{row}, cfg.Fields, idColumn)

			population, err := importer.LoadRecords(populationPath, cfg.Fields, importer.Options{IDColumn: idColumn})
			if err != nil {
				return fmt.Errorf("population: %w", err)
			}

			detector, err := matching.NewDetector(cfg, matching.WithLogger(a.logger))
			if err != nil {
				return err
			}
			result := detector.Detect(candidate[0], detector.BuildIndex(population))

			switch format {
			case "yaml":
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(result); err != nil {
					return err
				}
				return enc.Close()
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			return fmt.Errorf("unsupported format %q (json, yaml)", format)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Match configuration (YAML or JSON)")
	cmd.Flags().StringVar(&populationPath, "population", "", "Existing records (.csv, .json, .jsonl, .parquet, .xlsx)")
	cmd.Flags().StringVar(&recordJSON, "record", "", "Candidate record as a JSON object")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json or yaml")
	cmd.Flags().StringVar(&idColumn, "id-column", importer.DefaultIDColumn, "Column holding record ids")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("population")
	_ = cmd.MarkFlagRequired("record")

	return cmd
}
