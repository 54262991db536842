package graph

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/clover/pkg/models"
)

func TestConfig_URI(t *testing.T) {
	assert.Equal(t, "bolt://memgraph:7687", Config{Host: "memgraph", Port: 7687}.URI())
}

func TestLinksFromRows(t *testing.T) {
	rows := map[int]models.RowResult{
		0: {Duplicates: []models.DuplicateCandidate{
			{SimilarityResult: models.SimilarityResult{ExistingID: "m-1", Score: 0.95, StrongFields: []string{"email"}}},
			{SimilarityResult: models.SimilarityResult{ExistingID: "m-2", Score: 0.88}},
		}},
		1: {Duplicates: []models.DuplicateCandidate{}},
		2: {Duplicates: []models.DuplicateCandidate{{SimilarityResult: models.SimilarityResult{ExistingID: "m-9", Score: 1}}}},
	}

	links := LinksFromRows("run-1", rows)
	sort.Slice(links, func(i, j int) bool { return links[i].From+links[i].To < links[j].From+links[j].To })

	assert.Equal(t, []Link{
		{From: "run-1:0", To: "m-1", Score: 0.95, StrongFields: []string{"email"}},
		{From: "run-1:0", To: "m-2", Score: 0.88},
		{From: "run-1:2", To: "m-9", Score: 1},
	}, links)
}

func TestLinkParams(t *testing.T) {
	params := linkParams([]Link{{From: "a", To: "b", Score: 0.9}})
	assert.Equal(t, []map[string]any{{
		"from":          "a",
		"to":            "b",
		"score":         0.9,
		"strong_fields": []string{},
	}}, params)
}
