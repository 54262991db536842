// Package extractor turns raw import rows into records using each field's
// JMESPath source expression.
package extractor

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/jmespath/go-jmespath"

	"github.com/Ramsey-B/clover/pkg/models"
)

// Extractor evaluates JMESPath expressions with a compiled-expression cache.
// It is safe for concurrent use.
type Extractor struct {
	cache map[string]*jmespath.JMESPath
	mu    sync.RWMutex
}

// New creates a new Extractor
func New() *Extractor {
	return &Extractor{
		cache: make(map[string]*jmespath.JMESPath),
	}
}

// Compile validates an expression and caches it
func (e *Extractor) Compile(expression string) error {
	_, err := e.getOrCompile(expression)
	return err
}

// Extract evaluates a JMESPath expression against data
func (e *Extractor) Extract(data any, expression string) (any, error) {
	if expression == "" {
		return data, nil
	}

	compiled, err := e.getOrCompile(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid expression %q: %w", expression, err)
	}

	result, err := compiled.Search(data)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate expression %q: %w", expression, err)
	}
	return result, nil
}

func (e *Extractor) getOrCompile(expression string) (*jmespath.JMESPath, error) {
	e.mu.RLock()
	compiled, ok := e.cache[expression]
	e.mu.RUnlock()
	if ok {
		return compiled, nil
	}

	compiled, err := jmespath.Compile(expression)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[expression] = compiled
	e.mu.Unlock()
	return compiled, nil
}

// Record builds a record with one value per configured field. A field with a
// Source is read with that expression; otherwise the field name is the row key.
// A source that fails on this row leaves the field nil and is reported in the
// record's warnings.
func (e *Extractor) Record(id string, row map[string]any, fields []models.FieldSpec) models.Record {
	values := make(map[string]any, len(fields))
	var warnings []models.FieldWarning
	for _, spec := range fields {
		var raw any
		if spec.Source == "" {
			raw = row[spec.Field]
		} else {
			v, err := e.Extract(row, spec.Source)
			if err != nil {
				warnings = append(warnings, models.FieldWarning{
					Field:    spec.Field,
					RecordID: id,
					Reason:   fmt.Sprintf("%s: %v", models.WarningSourceFailed, err),
				})
				values[spec.Field] = nil
				continue
			}
			raw = v
		}
		values[spec.Field] = Scalar(raw)
	}
	rec := models.NewRecord(id, values)
	rec.Warnings = warnings
	return rec
}

// Scalar coerces an extracted value into a record value. Booleans become
// strings, single-element lists unwrap, and other composites are kept so the
// matcher can report them as unsupported.
func Scalar(v any) any {
	switch val := v.(type) {
	case bool:
		return strconv.FormatBool(val)
	case []any:
		if len(val) == 1 {
			return Scalar(val[0])
		}
		if len(val) == 0 {
			return nil
		}
		return val
	default:
		return val
	}
}
