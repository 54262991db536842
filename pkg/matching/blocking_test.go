package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
)

func blockedConfig() models.MatchConfiguration {
	cfg := memberConfig()
	cfg.Fields = append(cfg.Fields, models.FieldSpec{Field: "zip", Type: models.FieldTypeExact, Weight: 0.1})
	cfg.BlockingField = "zip"
	return cfg
}

func TestBlockingIndex(t *testing.T) {
	population := []models.Record{
		member("a", "John", "Smith", "zip", "46220"),
		member("b", "Jane", "Doe", "zip", "46220"),
		member("c", "John", "Smith", "zip", "10001"),
		member("d", "Ann", "Lee"),
	}

	idx, err := BuildIndex(population, blockedConfig())
	require.NoError(t, err)
	assert.Equal(t, 4, idx.Len())
	assert.Equal(t, 2, idx.Buckets())

	t.Run("returns only the matching bucket", func(t *testing.T) {
		got := idx.CandidatesFor(member("", "John", "Smith", "zip", " 46220 "))
		assert.Equal(t, []string{"a", "b"}, ids(got))
	})

	t.Run("unknown key returns an empty bucket", func(t *testing.T) {
		assert.Empty(t, idx.CandidatesFor(member("", "John", "Smith", "zip", "99999")))
	})

	t.Run("null key fails open to the full population", func(t *testing.T) {
		got := idx.CandidatesFor(member("", "John", "Smith"))
		assert.Equal(t, []string{"a", "b", "c", "d"}, ids(got))
	})

	t.Run("no blocking field returns the full population", func(t *testing.T) {
		unblocked, err := BuildIndex(population, memberConfig())
		require.NoError(t, err)
		assert.Equal(t, 4, len(unblocked.CandidatesFor(member("", "John", "Smith", "zip", "46220"))))
		assert.Equal(t, 0, unblocked.Buckets())
	})

	t.Run("invalid configuration is rejected", func(t *testing.T) {
		cfg := memberConfig()
		cfg.BlockingField = "zip"
		_, err := BuildIndex(population, cfg)
		assert.True(t, models.IsConfigurationError(err))
	})
}

func TestBlockingIndex_KeyTransforms(t *testing.T) {
	cfg := blockedConfig()
	cfg.BlockingNormalizers = []string{"zip5", "prefix3"}

	population := []models.Record{
		member("a", "John", "Smith", "zip", "46220-1234"),
		member("b", "Jane", "Doe", "zip", "46250"),
		member("c", "Ann", "Lee", "zip", "47401"),
		member("d", "Bo", "Ray", "zip", "462"),
	}
	idx, err := BuildIndex(population, cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, ids(idx.CandidatesFor(member("", "J", "S", "zip", "46299"))))

	// a key that transforms to empty fails open
	assert.Len(t, idx.CandidatesFor(member("", "J", "S", "zip", "46")), 4)
}

func TestBlockingIndex_Soundex(t *testing.T) {
	cfg := memberConfig()
	cfg.BlockingField = "lastName"
	cfg.BlockingNormalizers = []string{"soundex"}

	population := []models.Record{
		member("a", "John", "Smith"),
		member("b", "John", "Smyth"),
		member("c", "John", "Jones"),
	}
	idx, err := BuildIndex(population, cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, ids(idx.CandidatesFor(member("", "Jon", "Smithe"))))
}

func ids(records []models.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}
