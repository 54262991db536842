package models

// FieldType defines how a field is normalized and compared
type FieldType string

const (
	FieldTypeExact FieldType = "exact" // Trimmed, compared for equality
	FieldTypeText  FieldType = "text"  // Canonicalized, compared with Levenshtein similarity
	FieldTypePhone FieldType = "phone" // Digits only (min 10), compared for equality
	FieldTypeEmail FieldType = "email" // Lowercased and trimmed, compared for equality
)

// FieldTypes lists every supported field type
var FieldTypes = []FieldType{FieldTypeExact, FieldTypeText, FieldTypePhone, FieldTypeEmail}

// Valid reports whether t is one of the supported field types
func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeExact, FieldTypeText, FieldTypePhone, FieldTypeEmail:
		return true
	}
	return false
}

// StrongMatchCutover is the field score at or above which a field is reported
// as a strong match. It only feeds explainability output.
const StrongMatchCutover = 0.9

// DefaultThreshold is used when a stored configuration omits a threshold
const DefaultThreshold = 0.85

// FieldSpec describes one field relevant to matching
type FieldSpec struct {
	Field     string    `json:"field" yaml:"field" validate:"required"`
	Type      FieldType `json:"type" yaml:"type" validate:"required"`
	Weight    float64   `json:"weight" yaml:"weight"`
	Required  bool      `json:"required,omitempty" yaml:"required,omitempty"`
	Threshold *float64  `json:"threshold,omitempty" yaml:"threshold,omitempty" validate:"omitempty,gte=0,lte=1"` // Strong-match cutover override
	Source    string    `json:"source,omitempty" yaml:"source,omitempty"`                                     // JMESPath into an import row
}

// StrongCutover returns the score at or above which this field counts as a strong match
func (f FieldSpec) StrongCutover() float64 {
	if f.Threshold != nil {
		return *f.Threshold
	}
	return StrongMatchCutover
}

// MatchConfiguration is the immutable configuration of one deduplication run
type MatchConfiguration struct {
	Fields              []FieldSpec `json:"fields" yaml:"fields" validate:"required,min=1,dive"`
	Threshold           float64     `json:"threshold" yaml:"threshold"`
	BlockingField       string      `json:"blocking_field,omitempty" yaml:"blocking_field,omitempty"`
	BlockingNormalizers []string    `json:"blocking_normalizers,omitempty" yaml:"blocking_normalizers,omitempty"`
}

// FieldSpec returns the spec for a field name
func (c MatchConfiguration) FieldSpec(name string) (FieldSpec, bool) {
	for _, f := range c.Fields {
		if f.Field == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// TotalWeight returns the sum of all field weights
func (c MatchConfiguration) TotalWeight() float64 {
	var total float64
	for _, f := range c.Fields {
		total += f.Weight
	}
	return total
}
