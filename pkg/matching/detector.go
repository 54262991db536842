package matching

import (
	"sort"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/models"
)

// Detector shortlists existing records for a candidate and ranks those at or
// above the configured threshold.
type Detector struct {
	matcher *Matcher
	log     ectologger.Logger
}

// NewDetector validates cfg and returns a detector for it
func NewDetector(cfg models.MatchConfiguration, opts ...Option) (*Detector, error) {
	m, err := NewMatcher(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Detector{matcher: m, log: m.log}, nil
}

// Matcher returns the matcher the detector scores with
func (d *Detector) Matcher() *Matcher {
	return d.matcher
}

// BuildIndex indexes a population for repeated detection
func (d *Detector) BuildIndex(population []models.Record) *BlockingIndex {
	return d.matcher.BuildIndex(population)
}

// FindDuplicates returns ranked duplicates of candidate within population.
// An empty result is not an error.
func (d *Detector) FindDuplicates(candidate models.Record, population []models.Record) []models.DuplicateCandidate {
	return d.Detect(candidate, d.BuildIndex(population)).Duplicates
}

// FindDuplicatesIndexed is FindDuplicates against a prebuilt index
func (d *Detector) FindDuplicatesIndexed(candidate models.Record, idx *BlockingIndex) []models.DuplicateCandidate {
	return d.Detect(candidate, idx).Duplicates
}

// Detect runs detection and reports whether the outcome could be assessed.
// A candidate whose every comparison had no comparable field is
// "insufficient data", which is distinct from "no duplicates".
// An index built by another detector or matcher is re-indexed first, so the
// detector's own configuration and threshold always apply.
func (d *Detector) Detect(candidate models.Record, idx *BlockingIndex) models.DetectionResult {
	matcher := d.matcher
	if idx.matcher != matcher {
		idx = matcher.BuildIndex(idx.Population())
	}
	nc := matcher.prepare(candidate, -1, models.SideCandidate)
	shortlist := idx.shortlist(candidate)

	result := models.DetectionResult{
		Duplicates:  []models.DuplicateCandidate{},
		Shortlisted: len(shortlist),
		Warnings:    nc.warnings,
	}

	threshold := matcher.cfg.Threshold
	for _, existing := range shortlist {
		sim := matcher.compare(&nc, existing)
		if !sim.Comparable {
			continue
		}
		result.Comparable++
		if sim.Score < threshold {
			continue
		}
		result.Duplicates = append(result.Duplicates, models.DuplicateCandidate{
			SimilarityResult: sim,
			ExistingIndex:    existing.position,
		})
	}

	SortCandidates(result.Duplicates)

	result.Assessment = models.AssessmentAssessed
	if result.Shortlisted > 0 && result.Comparable == 0 {
		result.Assessment = models.AssessmentInsufficientData
	}
	return result
}

// SortCandidates orders duplicates by score descending, then population
// position, then existing id.
func SortCandidates(candidates []models.DuplicateCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.ExistingIndex != b.ExistingIndex {
			return a.ExistingIndex < b.ExistingIndex
		}
		return a.ExistingID < b.ExistingID
	})
}

// FindDuplicates validates cfg and returns ranked duplicates of candidate
func FindDuplicates(candidate models.Record, population []models.Record, cfg models.MatchConfiguration, opts ...Option) ([]models.DuplicateCandidate, error) {
	d, err := NewDetector(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return d.FindDuplicates(candidate, population), nil
}
