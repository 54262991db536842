package matching

import (
	"unicode/utf8"

	"github.com/Ramsey-B/clover/pkg/models"
)

// Scorer computes bounded [0,1] similarities between normalized field values
type Scorer struct{}

// NewScorer creates a new Scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score compares two normalized values of the same field type. aOK and bOK
// are false for values that normalized to null, which always score 0.
func (s *Scorer) Score(fieldType models.FieldType, a, b string, aOK, bOK bool) float64 {
	if !aOK || !bOK {
		return 0.0
	}

	switch fieldType {
	case models.FieldTypeText:
		return s.Levenshtein(a, b)
	case models.FieldTypeExact, models.FieldTypeEmail, models.FieldTypePhone:
		return s.ExactMatch(a, b)
	default:
		return 0.0
	}
}

// ExactMatch returns 1.0 for identical values, 0.0 otherwise
func (s *Scorer) ExactMatch(a, b string) float64 {
	if a == b {
		return 1.0
	}
	return 0.0
}

// Levenshtein returns 1 - distance/max(len) with lengths counted in runes.
// Two empty strings score 1.0.
func (s *Scorer) Levenshtein(a, b string) float64 {
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 1.0
	}
	distance := s.LevenshteinDistance(a, b)
	return 1.0 - float64(distance)/float64(maxLen)
}

// LevenshteinDistance calculates the rune edit distance between two strings.
// Memory is bounded by the shorter string.
func (s *Scorer) LevenshteinDistance(a, b string) int {
	if a == b {
		return 0
	}

	ra, rb := []rune(a), []rune(b)
	// columns follow the shorter string
	if len(rb) > len(ra) {
		ra, rb = rb, ra
	}
	if len(rb) == 0 {
		return len(ra)
	}

	// Create two rows for dynamic programming
	row := make([]int, len(rb)+1)
	prevRow := make([]int, len(rb)+1)

	for j := 0; j <= len(rb); j++ {
		prevRow[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		row[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 0
			if ra[i-1] != rb[j-1] {
				cost = 1
			}
			row[j] = min(row[j-1]+1, prevRow[j]+1, prevRow[j-1]+cost)
		}
		row, prevRow = prevRow, row
	}

	return prevRow[len(rb)]
}
