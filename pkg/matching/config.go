package matching

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmespath/go-jmespath"
	"gopkg.in/yaml.v3"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateConfiguration checks a configuration before any comparison runs.
// Every failure is a *models.ConfigurationError.
func ValidateConfiguration(cfg models.MatchConfiguration) error {
	if len(cfg.Fields) == 0 {
		return models.NewConfigurationError("", "at least one field is required")
	}

	if err := validate.Struct(cfg); err != nil {
		return fromValidationError(cfg, err)
	}

	if math.IsNaN(cfg.Threshold) || cfg.Threshold < 0 || cfg.Threshold > 1 {
		return models.NewConfigurationError("threshold", fmt.Sprintf("threshold %v is outside [0,1]", cfg.Threshold))
	}

	seen := make(map[string]struct{}, len(cfg.Fields))
	positive := false
	for _, f := range cfg.Fields {
		if _, ok := seen[f.Field]; ok {
			return models.NewConfigurationError(f.Field, "field is configured more than once")
		}
		seen[f.Field] = struct{}{}

		if !f.Type.Valid() {
			return models.NewConfigurationError(f.Field, fmt.Sprintf("unknown field type %q", f.Type))
		}
		if math.IsNaN(f.Weight) || math.IsInf(f.Weight, 0) || f.Weight < 0 {
			return models.NewConfigurationError(f.Field, fmt.Sprintf("weight %v must be a non-negative number", f.Weight))
		}
		if f.Weight > 0 {
			positive = true
		}
		if f.Source != "" {
			if _, err := jmespath.Compile(f.Source); err != nil {
				return models.NewConfigurationError(f.Field, fmt.Sprintf("invalid source expression %q: %v", f.Source, err))
			}
		}
	}

	if !positive {
		return models.NewConfigurationError("", "at least one field weight must be greater than zero")
	}
	// a finite sum keeps every score in [0,1]
	if math.IsInf(cfg.TotalWeight(), 0) {
		return models.NewConfigurationError("", "sum of field weights overflows")
	}

	if cfg.BlockingField != "" {
		if _, ok := seen[cfg.BlockingField]; !ok {
			return models.NewConfigurationError(cfg.BlockingField, "blocking field is not a configured field")
		}
	}
	for _, name := range cfg.BlockingNormalizers {
		if _, ok := normalizers.Get(name); !ok {
			return models.NewConfigurationError("blocking_normalizers", fmt.Sprintf("unknown normalizer %q", name))
		}
	}

	return nil
}

func fromValidationError(cfg models.MatchConfiguration, err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return models.NewConfigurationError("", err.Error())
	}

	fe := errs[0]
	field := fe.Field()
	// Fields[2].Type -> name the offending field spec when it has one
	if fe.StructNamespace() != "" {
		var idx int
		var attr string
		if _, scanErr := fmt.Sscanf(fe.StructNamespace(), "MatchConfiguration.Fields[%d].%s", &idx, &attr); scanErr == nil && idx < len(cfg.Fields) {
			if cfg.Fields[idx].Field != "" {
				field = cfg.Fields[idx].Field
			}
			return models.NewConfigurationError(field, fmt.Sprintf("%s failed %q validation", attr, fe.Tag()))
		}
	}
	return models.NewConfigurationError(field, fmt.Sprintf("failed %q validation", fe.Tag()))
}

// LoadConfiguration decodes a YAML or JSON configuration document, applies
// the default threshold when it is omitted and validates the result.
func LoadConfiguration(r io.Reader) (models.MatchConfiguration, error) {
	var doc models.PutMatchConfigurationRequest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return models.MatchConfiguration{}, fmt.Errorf("failed to decode match configuration: %w", err)
	}
	cfg := doc.Configuration()
	if err := ValidateConfiguration(cfg); err != nil {
		return models.MatchConfiguration{}, err
	}
	return cfg, nil
}

// LoadConfigurationFile reads a configuration document from disk
func LoadConfigurationFile(path string) (models.MatchConfiguration, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.MatchConfiguration{}, err
	}
	defer f.Close()
	return LoadConfiguration(f)
}
