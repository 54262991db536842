// Package logger builds the zap-backed ectologger used by the service and CLI.
package logger

import (
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects level and encoding
type Config struct {
	Level  string
	Pretty bool
}

// New returns the ectologger and the zap logger behind it. Callers Sync the
// zap logger on exit.
func New(cfg Config) (ectologger.Logger, *zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zc := zap.NewProductionConfig()
	if cfg.Pretty {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	z, err := zc.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return zapadapter.NewZapEctoLogger(z, nil), z, nil
}

// Nop discards every entry
func Nop() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}
