package matching

import (
	"context"
	"fmt"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
)

func phonePopulation() []models.Record {
	return []models.Record{
		member("m-1", "John", "Smith", "phone", "(555) 123-4567"),
		member("m-2", "Mary", "Jones", "phone", "555.987.6543"),
		member("m-3", "Alan", "Turing", "phone", "5550001111"),
	}
}

func TestReconciler_ReconcileBatch(t *testing.T) {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	r, err := NewReconciler(phoneConfig(), WithLogger(logger), WithWorkers(2))
	require.NoError(t, err)
	assert.Equal(t, 2, r.Workers())

	candidates := []models.Record{
		member("", "John", "Smith", "phone", "555-123-4567"),
		member("", "Mary", "Jones", "phone", "abc"),
		member("", "Alan", "Turing", "phone", "555 000 1111"),
	}

	results, err := r.ReconcileBatch(context.Background(), candidates, phonePopulation())
	require.NoError(t, err)
	require.Len(t, results, 3)

	t.Run("rows are scored normally", func(t *testing.T) {
		assert.Equal(t, []string{"m-1"}, duplicateIDs(results[0].Duplicates))
		assert.Equal(t, 1.0, results[0].Duplicates[0].Score)
		assert.Equal(t, []string{"m-3"}, duplicateIDs(results[2].Duplicates))
		assert.Empty(t, results[0].Warnings)
		assert.True(t, results[0].Assessable)
	})

	t.Run("malformed phone row still produces a result", func(t *testing.T) {
		row := results[1]
		assert.Equal(t, 1, row.Row)
		assert.Equal(t, []string{"m-2"}, duplicateIDs(row.Duplicates))
		assert.Equal(t, 1.0, row.Duplicates[0].Score)
		assert.NotContains(t, row.Duplicates[0].FieldScores, "phone")
		assert.Equal(t, []string{`field "phone": phone has fewer than 10 digits`}, row.Warnings)
		assert.True(t, row.Assessable)
	})
}

func TestReconciler_BatchIsolation(t *testing.T) {
	r, err := NewReconciler(phoneConfig(), WithWorkers(4))
	require.NoError(t, err)

	clean := []models.Record{
		member("", "John", "Smith", "phone", "555-123-4567"),
		member("", "Mary", "Jones", "phone", "555-987-6543"),
		member("", "Alan", "Turing", "phone", "555 000 1111"),
	}
	corrupted := append([]models.Record(nil), clean...)
	corrupted[1] = member("", "Mary", "Jones", "phone", "not a phone")

	cleanResults, err := r.ReconcileBatch(context.Background(), clean, phonePopulation())
	require.NoError(t, err)
	corruptedResults, err := r.ReconcileBatch(context.Background(), corrupted, phonePopulation())
	require.NoError(t, err)

	for _, row := range []int{0, 2} {
		if diff := cmp.Diff(cleanResults[row], corruptedResults[row]); diff != "" {
			t.Errorf("row %d changed (-clean +corrupted):\n%s", row, diff)
		}
	}
}

func TestReconciler_InsufficientData(t *testing.T) {
	r, err := NewReconciler(phoneConfig())
	require.NoError(t, err)

	results, err := r.ReconcileBatch(context.Background(), []models.Record{
		models.NewRecord("", map[string]any{"email": "x@y.com"}),
	}, phonePopulation())
	require.NoError(t, err)

	row := results[0]
	assert.False(t, row.Assessable)
	assert.Equal(t, models.AssessmentInsufficientData, row.Assessment)
	assert.Empty(t, row.Duplicates)
	assert.Contains(t, row.Warnings, InsufficientDataWarning)
}

func TestReconciler_LargeBatchMatchesSequential(t *testing.T) {
	population := make([]models.Record, 0, 200)
	for i := 0; i < 200; i++ {
		population = append(population, member(fmt.Sprintf("m-%d", i), fmt.Sprintf("first%d", i%37), fmt.Sprintf("last%d", i%11), "phone", fmt.Sprintf("555%07d", i%50)))
	}
	candidates := population[:60]

	r, err := NewReconciler(phoneConfig(), WithWorkers(8))
	require.NoError(t, err)
	results, err := r.ReconcileBatch(context.Background(), candidates, population)
	require.NoError(t, err)
	require.Len(t, results, len(candidates))

	d, err := NewDetector(phoneConfig())
	require.NoError(t, err)
	for i, c := range candidates {
		want := d.FindDuplicates(c, population)
		if diff := cmp.Diff(want, results[i].Duplicates); diff != "" {
			t.Fatalf("row %d differs (-sequential +parallel):\n%s", i, diff)
		}
	}
}

func TestReconciler_Cancelled(t *testing.T) {
	r, err := NewReconciler(phoneConfig(), WithWorkers(1))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := r.ReconcileBatch(ctx, []models.Record{
		member("", "John", "Smith", "phone", "555-123-4567"),
		member("", "Mary", "Jones", "phone", "555-987-6543"),
	}, phonePopulation())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func TestReconciler_EmptyBatch(t *testing.T) {
	r, err := NewReconciler(phoneConfig())
	require.NoError(t, err)

	results, err := r.ReconcileBatch(context.Background(), nil, phonePopulation())
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestNewReconciler_ConfigurationError(t *testing.T) {
	cfg := phoneConfig()
	for i := range cfg.Fields {
		cfg.Fields[i].Weight = 0
	}
	r, err := NewReconciler(cfg)
	assert.Nil(t, r)
	assert.True(t, models.IsConfigurationError(err))
}
