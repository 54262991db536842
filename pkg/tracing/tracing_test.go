package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartSpan(t *testing.T) {
	t.Run("without a tracer spans are no-ops", func(t *testing.T) {
		SetTracer(nil)
		ctx, span := StartSpan(context.Background(), "test")
		defer span.End()
		assert.Empty(t, GetTraceID(ctx))
		assert.Empty(t, GetTraceParent(ctx))
	})

	t.Run("with the console exporter spans carry ids", func(t *testing.T) {
		shutdown, err := Setup(context.Background(), Config{ServiceName: "clover-test", Exporter: "console", SampleRatio: 1})
		require.NoError(t, err)
		defer func() {
			SetTracer(nil)
			_ = shutdown(context.Background())
		}()

		ctx, span := StartSpan(context.Background(), "test")
		defer span.End()
		assert.Len(t, GetTraceID(ctx), 32)
		assert.Len(t, GetSpanID(ctx), 16)
		assert.Contains(t, GetTraceParent(ctx), GetTraceID(ctx))
	})

	t.Run("unknown exporter is an error", func(t *testing.T) {
		_, err := Setup(context.Background(), Config{Exporter: "zipkin"})
		assert.Error(t, err)
	})
}
