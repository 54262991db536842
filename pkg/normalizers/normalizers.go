// Package normalizers canonicalizes raw field values for matching and blocking
package normalizers

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

// registry holds all registered normalizers
var registry = make(map[string]Normalizer)

func init() {
	Register("lowercase", Lowercase)
	Register("trim", Trim)
	Register("nphone", NormalizePhone)
	Register("nemail", NormalizeEmail)
	Register("nname", NormalizeName)
	Register("ntext", NormalizeText)
	Register("digits_only", DigitsOnly)
	Register("alphanumeric", Alphanumeric)
	Register("fold_accents", FoldAccents)
	Register("zip5", Zip5)
	Register("prefix3", Prefix3)
	Register("soundex", Soundex)
}

// Register adds a normalizer to the registry. It is not safe to call
// concurrently with lookups and is meant for init-time use.
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Get retrieves a normalizer by name
func Get(name string) (Normalizer, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Names returns the registered normalizer names
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// Apply applies a named normalizer to a value. Unknown names leave the value unchanged.
func Apply(value, normalizer string) string {
	fn, ok := registry[normalizer]
	if !ok {
		return value
	}
	return fn(value)
}

// ApplyChain applies multiple normalizers in sequence
func ApplyChain(value string, normalizers ...string) string {
	result := value
	for _, name := range normalizers {
		result = Apply(result, name)
	}
	return result
}

// Built-in normalizers

// Lowercase converts string to lowercase
func Lowercase(s string) string {
	return strings.ToLower(s)
}

// Trim removes leading and trailing whitespace
func Trim(s string) string {
	return strings.TrimSpace(s)
}

// NormalizePhone removes all non-digit characters from a phone number
func NormalizePhone(s string) string {
	return DigitsOnly(s)
}

// NormalizeEmail lowercases and trims an email address. Sub-addressing is kept.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeText composes the input to NFC, lowercases, drops anything that
// is not a letter, digit or whitespace, and collapses whitespace runs to a
// single space. Composing first keeps decomposed accents on their letter.
func NormalizeText(s string) string {
	var result strings.Builder
	pendingSpace := false
	for _, r := range strings.ToLower(norm.NFC.String(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSpace && result.Len() > 0 {
				result.WriteByte(' ')
			}
			pendingSpace = false
			result.WriteRune(r)
		case unicode.IsSpace(r):
			pendingSpace = true
		}
	}
	return result.String()
}

// NormalizeName normalizes a person's name: text rules plus removal of
// common generational and professional suffixes.
func NormalizeName(s string) string {
	s = NormalizeText(s)
	suffixes := []string{" jr", " sr", " iii", " ii", " iv", " phd", " md", " dds"}
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			s = s[:len(s)-len(suffix)]
		}
	}
	return s
}

// DigitsOnly keeps only digit characters
func DigitsOnly(s string) string {
	var result strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// Alphanumeric keeps only alphanumeric characters
func Alphanumeric(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// FoldAccents strips combining marks, so "José" becomes "Jose"
func FoldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Zip5 returns the first five digits of a US zip code, or "" when there are fewer
func Zip5(s string) string {
	digits := DigitsOnly(s)
	if len(digits) < 5 {
		return ""
	}
	return digits[:5]
}

// Prefix3 keeps the first three runes
func Prefix3(s string) string {
	r := []rune(s)
	if len(r) <= 3 {
		return s
	}
	return string(r[:3])
}

// Soundex calculates the American Soundex encoding of a string.
// Non-letters are ignored; the result is "" when s has no letters.
func Soundex(s string) string {
	letters := make([]rune, 0, len(s))
	for _, r := range strings.ToUpper(FoldAccents(s)) {
		if r >= 'A' && r <= 'Z' {
			letters = append(letters, r)
		}
	}
	if len(letters) == 0 {
		return ""
	}

	result := []byte{byte(letters[0])}
	prevCode := soundexCode(letters[0])
	for _, r := range letters[1:] {
		if len(result) == 4 {
			break
		}
		code := soundexCode(r)
		if code != '0' && code != prevCode {
			result = append(result, code)
		}
		// H and W do not separate letters with the same code
		if r != 'H' && r != 'W' {
			prevCode = code
		}
	}
	for len(result) < 4 {
		result = append(result, '0')
	}
	return string(result)
}

func soundexCode(r rune) byte {
	switch r {
	case 'B', 'F', 'P', 'V':
		return '1'
	case 'C', 'G', 'J', 'K', 'Q', 'S', 'X', 'Z':
		return '2'
	case 'D', 'T':
		return '3'
	case 'L':
		return '4'
	case 'M', 'N':
		return '5'
	case 'R':
		return '6'
	default:
		return '0'
	}
}
