// Package fingerprint produces deterministic content hashes for records,
// populations and match configurations. Cache keys and run metadata use them.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"github.com/Ramsey-B/clover/pkg/models"
)

// Generate creates a deterministic fingerprint for a field map.
// It is a SHA256 hash of the canonicalized JSON.
func Generate(data map[string]any) string {
	return hash(canonicalize(data))
}

// Record fingerprints a record's id and fields
func Record(r models.Record) string {
	return hash(recordCanonical(r))
}

// Records fingerprints a population. Order matters because population
// position breaks ranking ties.
func Records(records []models.Record) string {
	h := sha256.New()
	for _, r := range records {
		h.Write([]byte(recordCanonical(r)))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Config fingerprints a match configuration
func Config(cfg models.MatchConfiguration) string {
	b, _ := json.Marshal(cfg)
	return hash(string(b))
}

// Key joins fingerprints into one short cache key
func Key(parts ...string) string {
	return hash(strings.Join(parts, ":"))
}

func recordCanonical(r models.Record) string {
	id, _ := json.Marshal(r.ID)
	s := string(id) + "=" + canonicalize(r.Fields)
	// extraction warnings are part of a detection result
	for _, w := range r.Warnings {
		s += "!" + w.Field + ":" + w.Reason
	}
	return s
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// canonicalize renders data with sorted map keys
func canonicalize(data any) string {
	var sb strings.Builder
	writeCanonical(&sb, data)
	return sb.String()
}

func writeCanonical(sb *strings.Builder, data any) {
	switch v := data.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			keyJSON, _ := json.Marshal(k)
			sb.Write(keyJSON)
			sb.WriteByte(':')
			writeCanonical(sb, v[k])
		}
		sb.WriteByte('}')
	case []any:
		sb.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeCanonical(sb, item)
		}
		sb.WriteByte(']')
	default:
		b, _ := json.Marshal(v)
		sb.Write(b)
	}
}
