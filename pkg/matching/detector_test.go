package matching

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
)

func samplePopulation() []models.Record {
	return []models.Record{
		member("m-1", "Jon", "Smith", "email", "john@x.com", "zip", "46220"),
		member("m-2", "Jane", "Doe", "email", "jane@x.com", "zip", "46220"),
		member("m-3", "John", "Smith", "email", "john@x.com", "zip", "10001"),
		member("m-4", "Johnny", "Smith", "email", "john@x.com", "zip", "46220"),
		member("m-5", "John", "Smith", "email", "john@x.com", "zip", "46220"),
	}
}

func TestDetector_FindDuplicates(t *testing.T) {
	d, err := NewDetector(memberConfig())
	require.NoError(t, err)

	candidate := member("", "John", "Smith", "email", "john@x.com")
	got := d.FindDuplicates(candidate, samplePopulation())

	require.Len(t, got, 4)
	assert.Equal(t, []string{"m-3", "m-5", "m-1", "m-4"}, duplicateIDs(got))
	assert.Equal(t, 1.0, got[0].Score)
	assert.Equal(t, 2, got[0].ExistingIndex)
	assert.Equal(t, 4, got[1].ExistingIndex)
	assert.InDelta(t, 0.925, got[2].Score, 1e-9)

	t.Run("no match is empty, not an error", func(t *testing.T) {
		got := d.FindDuplicates(member("", "Zed", "Zulu", "email", "z@z.com"), samplePopulation())
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

func TestDetector_Determinism(t *testing.T) {
	d, err := NewDetector(memberConfig())
	require.NoError(t, err)

	candidate := member("", "John", "Smith", "email", "john@x.com")
	first := d.FindDuplicates(candidate, samplePopulation())
	for i := 0; i < 20; i++ {
		again := d.FindDuplicates(candidate, samplePopulation())
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("run %d differs (-first +again):\n%s", i, diff)
		}
	}
}

func TestDetector_DoesNotMutatePopulation(t *testing.T) {
	d, err := NewDetector(memberConfig())
	require.NoError(t, err)

	population := samplePopulation()
	before := samplePopulation()
	d.FindDuplicates(member("", "John", "Smith", "email", "john@x.com"), population)
	assert.Empty(t, cmp.Diff(before, population))
}

func TestDetector_ThresholdMonotonicity(t *testing.T) {
	candidate := member("", "John", "Smith", "email", "john@x.com")
	population := samplePopulation()

	prev := -1
	for _, threshold := range []float64{0, 0.5, 0.85, 0.9, 0.95, 1} {
		cfg := memberConfig()
		cfg.Threshold = threshold
		got, err := FindDuplicates(candidate, population, cfg)
		require.NoError(t, err)
		if prev >= 0 {
			assert.LessOrEqual(t, len(got), prev, "threshold %v grew the result set", threshold)
		}
		prev = len(got)
	}
}

func TestDetector_HardBlocking(t *testing.T) {
	d, err := NewDetector(blockedConfig())
	require.NoError(t, err)
	idx := d.BuildIndex(samplePopulation())

	t.Run("identical record in another bucket is never reported", func(t *testing.T) {
		candidate := member("", "John", "Smith", "email", "john@x.com", "zip", "46220")
		got := d.FindDuplicatesIndexed(candidate, idx)
		assert.NotContains(t, duplicateIDs(got), "m-3")
		assert.Contains(t, duplicateIDs(got), "m-5")
	})

	t.Run("null blocking key compares the full population", func(t *testing.T) {
		candidate := member("", "John", "Smith", "email", "john@x.com")
		got := d.FindDuplicatesIndexed(candidate, idx)
		assert.Contains(t, duplicateIDs(got), "m-3")
	})
}

func TestDetector_Detect(t *testing.T) {
	d, err := NewDetector(memberConfig())
	require.NoError(t, err)
	idx := d.BuildIndex(samplePopulation())

	t.Run("assessed with duplicates", func(t *testing.T) {
		result := d.Detect(member("", "John", "Smith", "email", "john@x.com"), idx)
		assert.Equal(t, models.AssessmentAssessed, result.Assessment)
		assert.Equal(t, 5, result.Shortlisted)
		assert.Equal(t, 5, result.Comparable)
	})

	t.Run("no comparable fields is insufficient data", func(t *testing.T) {
		result := d.Detect(models.NewRecord("", map[string]any{"phone": "5551234567"}), idx)
		assert.Equal(t, models.AssessmentInsufficientData, result.Assessment)
		assert.Empty(t, result.Duplicates)
		assert.Equal(t, 0, result.Comparable)
	})

	t.Run("empty population is assessed", func(t *testing.T) {
		result := d.Detect(member("", "John", "Smith"), d.BuildIndex(nil))
		assert.Equal(t, models.AssessmentAssessed, result.Assessment)
		assert.Empty(t, result.Duplicates)
	})
}

func TestDetector_DetectWithIndexFromAnotherDetector(t *testing.T) {
	looseCfg := memberConfig()
	looseCfg.Threshold = 0.5
	loose, err := NewDetector(looseCfg)
	require.NoError(t, err)

	strictCfg := memberConfig()
	strictCfg.Threshold = 1
	strict, err := NewDetector(strictCfg)
	require.NoError(t, err)

	candidate := member("", "John", "Smith", "email", "john@x.com")
	idx := loose.BuildIndex(samplePopulation())

	assert.Equal(t, []string{"m-3", "m-5", "m-1", "m-4"}, duplicateIDs(loose.Detect(candidate, idx).Duplicates))
	// the strict detector's threshold applies, not the one the index was built with
	assert.Equal(t, []string{"m-3", "m-5"}, duplicateIDs(strict.Detect(candidate, idx).Duplicates))
	assert.Equal(t, samplePopulation(), idx.Population())
}

func TestFindDuplicates_ConfigurationError(t *testing.T) {
	cfg := memberConfig()
	cfg.Threshold = 2
	got, err := FindDuplicates(member("", "John", "Smith"), samplePopulation(), cfg)
	assert.Nil(t, got)
	assert.True(t, models.IsConfigurationError(err))
}

func TestSortCandidates(t *testing.T) {
	candidates := []models.DuplicateCandidate{
		{SimilarityResult: models.SimilarityResult{ExistingID: "b", Score: 0.9}, ExistingIndex: 3},
		{SimilarityResult: models.SimilarityResult{ExistingID: "a", Score: 0.9}, ExistingIndex: 1},
		{SimilarityResult: models.SimilarityResult{ExistingID: "c", Score: 0.95}, ExistingIndex: 7},
		{SimilarityResult: models.SimilarityResult{ExistingID: "a", Score: 0.9}, ExistingIndex: 3},
	}
	SortCandidates(candidates)
	assert.Equal(t, []string{"c", "a", "a", "b"}, duplicateIDs(candidates))
	assert.Equal(t, []int{7, 1, 3, 3}, []int{candidates[0].ExistingIndex, candidates[1].ExistingIndex, candidates[2].ExistingIndex, candidates[3].ExistingIndex})
}

func duplicateIDs(candidates []models.DuplicateCandidate) []string {
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.ExistingID
	}
	return out
}
