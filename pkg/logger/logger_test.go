package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	for _, cfg := range []Config{{Level: "info"}, {Level: "debug", Pretty: true}} {
		log, z, err := New(cfg)
		require.NoError(t, err)
		require.NotNil(t, z)
		log.WithField("level", cfg.Level).Info("logger ready")
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	_, _, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() { Nop().WithError(assert.AnError).Error("dropped") })
}
