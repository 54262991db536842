// Package cmd holds the clover command line.
package cmd

import (
	"github.com/Gobusters/ectologger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/pkg/logger"
)

// app is the state shared by every subcommand once the root has loaded
// configuration.
type app struct {
	envFile  string
	logLevel string
	cfg      *config.Config
	logger   ectologger.Logger
	zap      *zap.Logger
}

func (a *app) init() error {
	cfg, err := config.Load(a.envFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}

	log, z, err := logger.New(cfg.Logger())
	if err != nil {
		return err
	}
	a.cfg, a.logger, a.zap = cfg, log, z
	return nil
}

func NewRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "clover",
		Short: "Fuzzy duplicate detection for member records",
		Long: `Clover flags likely duplicate records before they are imported.

It scores candidate rows against an existing population with weighted,
normalized field comparisons. It runs as an HTTP and Kafka service, or
locally against CSV, JSON, Parquet and XLSX files.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.zap != nil {
				_ = a.zap.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Optional dotenv file loaded before the environment")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override LOG_LEVEL")

	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newMigrateCmd(a))
	cmd.AddCommand(newReconcileCmd(a))
	cmd.AddCommand(newFindCmd(a))
	cmd.AddCommand(newSeedCmd(a))

	return cmd
}
