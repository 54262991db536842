package matching

import (
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

// BlockingIndex partitions a population by normalized blocking key. It is
// built once per run and only read afterwards, so workers share it freely.
type BlockingIndex struct {
	matcher    *Matcher
	field      string
	fieldType  models.FieldType
	transforms []string
	records    []normalizedRecord
	buckets    map[string][]int
}

// BuildIndex validates cfg and indexes population with it
func BuildIndex(population []models.Record, cfg models.MatchConfiguration, opts ...Option) (*BlockingIndex, error) {
	m, err := NewMatcher(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return m.BuildIndex(population), nil
}

// BuildIndex normalizes the population once and groups it by blocking key.
// Existing records whose key is null belong to no bucket and are only
// reached when a candidate fails open to the full population.
func (m *Matcher) BuildIndex(population []models.Record) *BlockingIndex {
	idx := &BlockingIndex{
		matcher:    m,
		field:      m.cfg.BlockingField,
		transforms: m.cfg.BlockingNormalizers,
		records:    make([]normalizedRecord, len(population)),
	}
	for i, r := range population {
		idx.records[i] = m.prepare(r, i, models.SideExisting)
	}

	if idx.field == "" {
		return idx
	}
	spec, _ := m.cfg.FieldSpec(idx.field)
	idx.fieldType = spec.Type
	idx.buckets = make(map[string][]int)
	for i, r := range population {
		key, ok := idx.Key(r)
		if !ok {
			continue
		}
		idx.buckets[key] = append(idx.buckets[key], i)
	}
	return idx
}

// Key returns the normalized blocking key of a record
func (idx *BlockingIndex) Key(r models.Record) (string, bool) {
	if idx.field == "" {
		return "", false
	}
	return normalizers.BlockingKey(idx.fieldType, r.Value(idx.field), idx.transforms)
}

// Len returns the size of the indexed population
func (idx *BlockingIndex) Len() int {
	return len(idx.records)
}

// Population returns the indexed records in population order
func (idx *BlockingIndex) Population() []models.Record {
	out := make([]models.Record, len(idx.records))
	for i, n := range idx.records {
		out[i] = n.record
	}
	return out
}

// Buckets returns the number of distinct blocking keys
func (idx *BlockingIndex) Buckets() int {
	return len(idx.buckets)
}

// CandidatesFor returns the shortlist for a candidate in population order:
// its bucket, or the whole population when the candidate key is null or no
// blocking field is configured.
func (idx *BlockingIndex) CandidatesFor(candidate models.Record) []models.Record {
	shortlist := idx.shortlist(candidate)
	out := make([]models.Record, len(shortlist))
	for i, n := range shortlist {
		out[i] = n.record
	}
	return out
}

func (idx *BlockingIndex) shortlist(candidate models.Record) []*normalizedRecord {
	key, ok := idx.Key(candidate)
	if !ok {
		all := make([]*normalizedRecord, len(idx.records))
		for i := range idx.records {
			all[i] = &idx.records[i]
		}
		return all
	}

	positions := idx.buckets[key]
	out := make([]*normalizedRecord, len(positions))
	for i, p := range positions {
		out[i] = &idx.records[p]
	}
	return out
}
