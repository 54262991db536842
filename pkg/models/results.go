package models

// Warning reasons recorded for fields that could not be normalized
const (
	WarningPhoneTooShort    = "phone has fewer than 10 digits"
	WarningUnsupportedValue = "unsupported value type"
	WarningSourceFailed     = "source expression could not be evaluated"
)

// Record sides used in field warnings
const (
	SideCandidate = "candidate"
	SideExisting  = "existing"
)

// FieldWarning is a non-fatal normalization failure. The field is excluded
// from the comparison it occurred in.
type FieldWarning struct {
	Field    string `json:"field" yaml:"field"`
	Side     string `json:"side" yaml:"side"`
	RecordID string `json:"record_id,omitempty" yaml:"record_id,omitempty"`
	Reason   string `json:"reason" yaml:"reason"`
}

// SimilarityResult is the outcome of comparing two records
type SimilarityResult struct {
	CandidateID  string             `json:"candidate_id,omitempty" yaml:"candidate_id,omitempty"`
	ExistingID   string             `json:"existing_id" yaml:"existing_id"`
	Score        float64            `json:"score" yaml:"score"`
	Comparable   bool               `json:"comparable" yaml:"comparable"` // false when no field was comparable (denominator 0)
	StrongFields []string           `json:"strong_fields" yaml:"strong_fields"`
	FieldScores  map[string]float64 `json:"field_scores" yaml:"field_scores"`
	Warnings     []FieldWarning     `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// DuplicateCandidate is a SimilarityResult at or above the configured threshold
type DuplicateCandidate struct {
	SimilarityResult `yaml:",inline"`
	ExistingIndex    int `json:"existing_index" yaml:"existing_index"` // position in the population, used for tie-breaks
}

// Assessment tells a review screen whether "no duplicates" can be trusted
type Assessment string

const (
	AssessmentAssessed         Assessment = "assessed"
	AssessmentInsufficientData Assessment = "insufficient_data"
	AssessmentFailed           Assessment = "failed"
)

// DetectionResult is the full outcome of duplicate detection for one candidate
type DetectionResult struct {
	Duplicates  []DuplicateCandidate `json:"duplicates" yaml:"duplicates"`
	Shortlisted int                  `json:"shortlisted" yaml:"shortlisted"`
	Comparable  int                  `json:"comparable" yaml:"comparable"`
	Assessment  Assessment           `json:"assessment" yaml:"assessment"`
	Warnings    []FieldWarning       `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// RowResult is the batch reconciliation outcome of one import row
type RowResult struct {
	Row        int                  `json:"row" yaml:"row"`
	Duplicates []DuplicateCandidate `json:"duplicates" yaml:"duplicates"`
	Assessment Assessment           `json:"assessment" yaml:"assessment"`
	Assessable bool                 `json:"assessable" yaml:"assessable"` // false means "insufficient data", not "no duplicates"
	Warnings   []string             `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}
