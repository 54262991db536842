package models

// Record is one entity instance evaluated for duplication. Field values are
// strings, numbers or nil. Import candidates carry no ID until persisted.
type Record struct {
	ID     string         `json:"id,omitempty" yaml:"id,omitempty"`
	Fields map[string]any `json:"fields" yaml:"fields"`
	// Warnings are raised while the record was built from an import row
	Warnings []FieldWarning `json:"-" yaml:"-"`
}

// NewRecord creates a record from an id and its field values
func NewRecord(id string, fields map[string]any) Record {
	if fields == nil {
		fields = map[string]any{}
	}
	return Record{ID: id, Fields: fields}
}

// Value returns the raw value of a field, or nil if the field is absent
func (r Record) Value(field string) any {
	if r.Fields == nil {
		return nil
	}
	return r.Fields[field]
}

// Identity returns the record ID, or a placeholder for records that have none
func (r Record) Identity() string {
	if r.ID == "" {
		return "<new>"
	}
	return r.ID
}
