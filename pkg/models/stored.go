package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// StoredRecord is a population record as persisted per tenant and entity type
type StoredRecord struct {
	ID          string          `json:"id" db:"id"`
	TenantID    string          `json:"tenant_id" db:"tenant_id"`
	EntityType  string          `json:"entity_type" db:"entity_type"`
	Data        json.RawMessage `json:"data" db:"data"`
	Fingerprint string          `json:"fingerprint" db:"fingerprint"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// Record decodes the stored data into a matchable record. Numbers stay
// json.Number so integer ids and zips render without an exponent.
func (s StoredRecord) Record() (Record, error) {
	fields := map[string]any{}
	if len(s.Data) > 0 {
		dec := json.NewDecoder(bytes.NewReader(s.Data))
		dec.UseNumber()
		if err := dec.Decode(&fields); err != nil {
			return Record{}, err
		}
	}
	return NewRecord(s.ID, fields), nil
}

// StoredMatchConfiguration is a tenant's match configuration for one entity type
type StoredMatchConfiguration struct {
	TenantID           string    `json:"tenant_id" db:"tenant_id"`
	EntityType         string    `json:"entity_type" db:"entity_type"`
	Version            int       `json:"version" db:"version"`
	MatchConfiguration `db:"-"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// PutMatchConfigurationRequest is the body of a match configuration upsert
type PutMatchConfigurationRequest struct {
	Fields              []FieldSpec `json:"fields" yaml:"fields" validate:"required,min=1,dive"`
	Threshold           *float64    `json:"threshold,omitempty" yaml:"threshold,omitempty" validate:"omitempty,gte=0,lte=1"`
	BlockingField       string      `json:"blocking_field,omitempty" yaml:"blocking_field,omitempty"`
	BlockingNormalizers []string    `json:"blocking_normalizers,omitempty" yaml:"blocking_normalizers,omitempty"`
}

// Configuration applies defaults and returns the configuration to store
func (r PutMatchConfigurationRequest) Configuration() MatchConfiguration {
	threshold := DefaultThreshold
	if r.Threshold != nil {
		threshold = *r.Threshold
	}
	return MatchConfiguration{
		Fields:              r.Fields,
		Threshold:           threshold,
		BlockingField:       r.BlockingField,
		BlockingNormalizers: r.BlockingNormalizers,
	}
}
