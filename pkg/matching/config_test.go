package matching

import (
	"math"
	"net/http"
	"strings"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
)

func TestValidateConfiguration(t *testing.T) {
	valid := memberConfig()
	require.NoError(t, ValidateConfiguration(valid))

	tests := []struct {
		name      string
		mutate    func(c *models.MatchConfiguration)
		wantField string
	}{
		{"no fields", func(c *models.MatchConfiguration) { c.Fields = nil }, ""},
		{"all weights zero", func(c *models.MatchConfiguration) {
			c.Fields = []models.FieldSpec{
				{Field: "firstName", Type: models.FieldTypeText, Weight: 0},
				{Field: "lastName", Type: models.FieldTypeText, Weight: 0},
			}
		}, ""},
		{"negative weight", func(c *models.MatchConfiguration) { c.Fields[0].Weight = -0.1 }, "firstName"},
		{"threshold above one", func(c *models.MatchConfiguration) { c.Threshold = 1.5 }, "threshold"},
		{"threshold below zero", func(c *models.MatchConfiguration) { c.Threshold = -0.01 }, "threshold"},
		{"unknown field type", func(c *models.MatchConfiguration) { c.Fields[1].Type = "fuzzy" }, "lastName"},
		{"duplicate field", func(c *models.MatchConfiguration) { c.Fields[1].Field = "firstName" }, "firstName"},
		{"missing field name", func(c *models.MatchConfiguration) { c.Fields[0].Field = "" }, "Field"},
		{"blocking field not configured", func(c *models.MatchConfiguration) { c.BlockingField = "zip" }, "zip"},
		{"unknown blocking normalizer", func(c *models.MatchConfiguration) {
			c.BlockingField = "lastName"
			c.BlockingNormalizers = []string{"metaphone"}
		}, "blocking_normalizers"},
		{"field threshold override out of range", func(c *models.MatchConfiguration) {
			v := 2.0
			c.Fields[0].Threshold = &v
		}, "firstName"},
		{"source is not a jmespath expression", func(c *models.MatchConfiguration) { c.Fields[0].Source = "first[[" }, "firstName"},
		{"weight sum overflows", func(c *models.MatchConfiguration) {
			c.Fields[0].Weight = math.MaxFloat64
			c.Fields[1].Weight = math.MaxFloat64
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := memberConfig()
			tt.mutate(&cfg)

			err := ValidateConfiguration(cfg)
			require.Error(t, err)

			cfgErr, ok := models.AsConfigurationError(err)
			require.True(t, ok, "expected a configuration error, got %T", err)
			assert.Equal(t, tt.wantField, cfgErr.Field)
			assert.NotEmpty(t, cfgErr.Reason)
		})
	}
}

func TestValidateConfiguration_Sources(t *testing.T) {
	cfg := memberConfig()
	cfg.Fields[0].Source = "name.first"
	cfg.Fields[1].Source = "join(' ', [last, suffix])"
	assert.NoError(t, ValidateConfiguration(cfg))
}

func TestValidateConfiguration_LargeFiniteWeights(t *testing.T) {
	cfg := memberConfig()
	for i := range cfg.Fields {
		cfg.Fields[i].Weight = 0
	}
	cfg.Fields[0].Weight = math.MaxFloat64
	require.NoError(t, ValidateConfiguration(cfg))

	m, err := NewMatcher(cfg)
	require.NoError(t, err)
	a := models.NewRecord("a", map[string]any{"firstName": "Ada", "lastName": "Lovelace"})
	result := m.Compare(a, a)
	assert.True(t, result.Comparable)
	assert.Equal(t, 1.0, result.Score)
}

func TestConfigurationError_ToHTTPError(t *testing.T) {
	err := models.NewConfigurationError("zip", "blocking field is not a configured field")
	httpErr := err.ToHTTPError()
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(httpErr))
	assert.Equal(t, "zip", httpErr.Meta["field"])
	assert.Equal(t, "blocking field is not a configured field", httpErr.Meta["reason"])
}

func TestLoadConfiguration(t *testing.T) {
	t.Run("yaml with default threshold", func(t *testing.T) {
		cfg, err := LoadConfiguration(strings.NewReader(`
fields:
  - field: email
    type: email
    weight: 2
  - field: last_name
    type: text
    weight: 1
    required: true
blocking_field: last_name
blocking_normalizers: [soundex]
`))
		require.NoError(t, err)
		assert.Equal(t, models.DefaultThreshold, cfg.Threshold)
		assert.Len(t, cfg.Fields, 2)
		assert.True(t, cfg.Fields[1].Required)
		assert.Equal(t, []string{"soundex"}, cfg.BlockingNormalizers)
	})

	t.Run("json", func(t *testing.T) {
		cfg, err := LoadConfiguration(strings.NewReader(`{"fields":[{"field":"phone","type":"phone","weight":1}],"threshold":0.7}`))
		require.NoError(t, err)
		assert.Equal(t, 0.7, cfg.Threshold)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := LoadConfiguration(strings.NewReader("fields: []\nthreshhold: 0.9\n"))
		assert.Error(t, err)
	})

	t.Run("invalid configuration", func(t *testing.T) {
		_, err := LoadConfiguration(strings.NewReader("fields:\n  - field: a\n    type: fuzzy\n    weight: 1\n"))
		var cfgErr *models.ConfigurationError
		assert.ErrorAs(t, err, &cfgErr)
	})
}
