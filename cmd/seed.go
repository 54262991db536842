package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/clover/pkg/dedupe"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/seed"
)

func newSeedCmd(a *app) *cobra.Command {
	var (
		opts          seed.Options
		outPath       string
		candidatesOut string
		evaluate      bool
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Generate synthetic members with injected near-duplicates",
		Example: `  # 5000 members, 10% of them duplicated into a separate import file
  clover seed --count 5000 --duplicates 0.1 --out members.csv --candidates-out import.csv

  # Measure recall of the built-in member configuration
  clover seed --count 2000 --duplicates 0.05 --out members.csv --evaluate`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := a.logger.WithContext(ctx)

			d := seed.Generate(opts)

			if candidatesOut == "" {
				if err := writeMembers(outPath, append(append([]seed.Member{}, d.Members...), d.Duplicates...)); err != nil {
					return err
				}
			} else {
				if err := writeMembers(outPath, d.Members); err != nil {
					return err
				}
				if err := writeMembers(candidatesOut, d.Duplicates); err != nil {
					return err
				}
			}
			log.WithFields(map[string]any{
				"members":    len(d.Members),
				"duplicates": len(d.Duplicates),
				"seed":       opts.Seed,
			}).Info("Generated seed data")

			if !evaluate {
				return nil
			}

			r, err := matching.NewReconciler(seed.MemberConfiguration(), matching.WithLogger(a.logger))
			if err != nil {
				return err
			}
			rows, err := r.ReconcileBatch(ctx, seed.Records(d.Duplicates), seed.Records(d.Members))
			if err != nil {
				return err
			}
			recall := seed.Recall(d, dedupe.OrderedRows(rows))
			log.WithField("recall", recall).Info("Evaluated injected duplicates")
			fmt.Fprintf(cmd.OutOrStdout(), "recall: %.4f (%d injected duplicates)\n", recall, len(d.Duplicates))
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.Count, "count", "n", 1000, "Members to generate")
	cmd.Flags().Float64Var(&opts.DuplicateRate, "duplicates", 0.1, "Near-duplicates to inject, as a share of count")
	cmd.Flags().IntVar(&opts.Chapters, "chapters", 20, "Number of chapters")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 42, "Random seed")
	cmd.Flags().StringVarP(&outPath, "out", "o", "members.csv", "Members CSV")
	cmd.Flags().StringVar(&candidatesOut, "candidates-out", "", "Write duplicates to a separate CSV instead of appending them")
	cmd.Flags().BoolVar(&evaluate, "evaluate", false, "Reconcile the duplicates and report recall")

	return cmd
}

func writeMembers(path string, members []seed.Member) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return seed.WriteCSV(f, members)
}
