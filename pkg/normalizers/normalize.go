package normalizers

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/Ramsey-B/clover/pkg/models"
)

// MinPhoneDigits is the fewest digits a phone number may keep after normalization
const MinPhoneDigits = 10

// Normalize canonicalizes a raw value for a field type. The boolean is false
// when the value normalizes to null and must be excluded from scoring.
func Normalize(fieldType models.FieldType, raw any) (string, bool) {
	value, ok := Stringify(raw)
	if !ok {
		return "", false
	}

	var out string
	switch fieldType {
	case models.FieldTypeText:
		out = NormalizeText(value)
	case models.FieldTypeEmail:
		out = NormalizeEmail(value)
	case models.FieldTypePhone:
		out = NormalizePhone(value)
		if len(out) < MinPhoneDigits {
			return "", false
		}
	case models.FieldTypeExact:
		out = strings.TrimSpace(value)
	default:
		return "", false
	}

	if out == "" {
		return "", false
	}
	return out, true
}

// Stringify renders a raw record value as a string. Nil, blank strings and
// unsupported types return false.
func Stringify(raw any) (string, bool) {
	var s string
	switch v := raw.(type) {
	case nil:
		return "", false
	case string:
		s = v
	case json.Number:
		s = v.String()
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		s = strconv.Itoa(v)
	case int32:
		s = strconv.FormatInt(int64(v), 10)
	case int64:
		s = strconv.FormatInt(v, 10)
	case uint:
		s = strconv.FormatUint(uint64(v), 10)
	case uint32:
		s = strconv.FormatUint(uint64(v), 10)
	case uint64:
		s = strconv.FormatUint(v, 10)
	default:
		return "", false
	}
	if strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

// Supported reports whether raw is a value type records may carry
func Supported(raw any) bool {
	switch raw.(type) {
	case nil, string, json.Number, float64, float32, int, int32, int64, uint, uint32, uint64:
		return true
	}
	return false
}

// BlockingKey normalizes a value by field type, then applies the named key
// transforms. It returns false when the key is null at either stage.
func BlockingKey(fieldType models.FieldType, raw any, transforms []string) (string, bool) {
	key, ok := Normalize(fieldType, raw)
	if !ok {
		return "", false
	}
	key = ApplyChain(key, transforms...)
	if key == "" {
		return "", false
	}
	return key, true
}
