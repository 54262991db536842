package matching

import (
	"math"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

// Matcher combines per-field similarities into one weighted record score
type Matcher struct {
	cfg    models.MatchConfiguration
	scorer *Scorer
	log    ectologger.Logger
}

// NewMatcher validates cfg and returns a matcher for it
func NewMatcher(cfg models.MatchConfiguration, opts ...Option) (*Matcher, error) {
	if err := ValidateConfiguration(cfg); err != nil {
		return nil, err
	}
	o := newOptions(opts)

	// keep our own copy so callers cannot change the configuration mid-run
	cfg.Fields = append([]models.FieldSpec(nil), cfg.Fields...)
	cfg.BlockingNormalizers = append([]string(nil), cfg.BlockingNormalizers...)

	return &Matcher{cfg: cfg, scorer: NewScorer(), log: o.log}, nil
}

// Config returns the configuration this matcher scores with
func (m *Matcher) Config() models.MatchConfiguration {
	return m.cfg
}

// Compare scores record a against record b
func (m *Matcher) Compare(a, b models.Record) models.SimilarityResult {
	na := m.prepare(a, -1, models.SideCandidate)
	nb := m.prepare(b, -1, models.SideExisting)
	return m.compare(&na, &nb)
}

type fieldValue struct {
	value string
	ok    bool
}

// normalizedRecord caches the normalized values of one record, indexed like cfg.Fields
type normalizedRecord struct {
	record   models.Record
	position int
	values   []fieldValue
	warnings []models.FieldWarning
}

func (m *Matcher) prepare(r models.Record, position int, side string) normalizedRecord {
	n := normalizedRecord{
		record:   r,
		position: position,
		values:   make([]fieldValue, len(m.cfg.Fields)),
	}
	for _, w := range r.Warnings {
		w.Side = side
		if w.RecordID == "" {
			w.RecordID = r.ID
		}
		n.warnings = append(n.warnings, w)
	}
	for i, spec := range m.cfg.Fields {
		raw := r.Value(spec.Field)
		value, ok := normalizers.Normalize(spec.Type, raw)
		n.values[i] = fieldValue{value: value, ok: ok}
		if ok {
			continue
		}
		if reason := warningReason(spec.Type, raw); reason != "" {
			n.warnings = append(n.warnings, models.FieldWarning{
				Field:    spec.Field,
				Side:     side,
				RecordID: r.ID,
				Reason:   reason,
			})
		}
	}
	return n
}

// warningReason explains why a present value failed to normalize. Absent and
// blank values are not warnings.
func warningReason(fieldType models.FieldType, raw any) string {
	if !normalizers.Supported(raw) {
		return models.WarningUnsupportedValue
	}
	s, ok := normalizers.Stringify(raw)
	if !ok {
		return ""
	}
	if fieldType == models.FieldTypePhone && strings.TrimSpace(s) != "" {
		return models.WarningPhoneTooShort
	}
	return ""
}

func (m *Matcher) compare(a, b *normalizedRecord) models.SimilarityResult {
	result := models.SimilarityResult{
		CandidateID:  a.record.ID,
		ExistingID:   b.record.ID,
		StrongFields: []string{},
		FieldScores:  make(map[string]float64, len(m.cfg.Fields)),
	}

	var numerator, denominator float64
	for i, spec := range m.cfg.Fields {
		va, vb := a.values[i], b.values[i]

		var score float64
		switch {
		case va.ok && vb.ok:
			score = m.scorer.Score(spec.Type, va.value, vb.value, true, true)
		case va.ok != vb.ok && spec.Required:
			score = 0
		default:
			// absent on either side and not required; both absent is never a mismatch
			continue
		}

		numerator += spec.Weight * score
		denominator += spec.Weight
		result.FieldScores[spec.Field] = score
		if score >= spec.StrongCutover() {
			result.StrongFields = append(result.StrongFields, spec.Field)
		}
	}

	if len(a.warnings) > 0 || len(b.warnings) > 0 {
		result.Warnings = make([]models.FieldWarning, 0, len(a.warnings)+len(b.warnings))
		result.Warnings = append(result.Warnings, a.warnings...)
		result.Warnings = append(result.Warnings, b.warnings...)
	}

	if denominator == 0 {
		return result
	}
	result.Comparable = true
	result.Score = math.Max(0, math.Min(1, numerator/denominator))
	return result
}
