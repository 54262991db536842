package graph

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const linkCypher = `
UNWIND $links AS link
MERGE (a:Record {tenant_id: $tenant_id, entity_type: $entity_type, id: link.from})
MERGE (b:Record {tenant_id: $tenant_id, entity_type: $entity_type, id: link.to})
MERGE (a)-[r:POSSIBLE_DUPLICATE {run_id: $run_id}]->(b)
SET r.score = link.score, r.strong_fields = link.strong_fields
`

const neighborsCypher = `
MATCH (a:Record {tenant_id: $tenant_id, entity_type: $entity_type, id: $id})-[r:POSSIBLE_DUPLICATE]-(b:Record)
RETURN b.id AS id, r.score AS score, r.run_id AS run_id
ORDER BY score DESC, id
`

// Link is one possible-duplicate edge from a candidate to an existing record
type Link struct {
	From         string
	To           string
	Score        float64
	StrongFields []string
}

// Neighbor is a record linked to another as a possible duplicate
type Neighbor struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
	RunID string  `json:"run_id"`
}

// RowNodeID names an import row that has no persisted id
func RowNodeID(runID string, row int) string {
	return fmt.Sprintf("%s:%d", runID, row)
}

// LinksFromRows converts reconciliation rows into edges. Candidates are
// identified by their row within the run.
func LinksFromRows(runID string, rows map[int]models.RowResult) []Link {
	var links []Link
	for row, result := range rows {
		for _, dup := range result.Duplicates {
			links = append(links, Link{
				From:         RowNodeID(runID, row),
				To:           dup.ExistingID,
				Score:        dup.Score,
				StrongFields: dup.StrongFields,
			})
		}
	}
	return links
}

// DuplicateService reads and writes POSSIBLE_DUPLICATE edges
type DuplicateService struct {
	client *Client
	logger ectologger.Logger
}

// NewDuplicateService creates a new duplicate graph service
func NewDuplicateService(client *Client, logger ectologger.Logger) *DuplicateService {
	return &DuplicateService{
		client: client,
		logger: logger,
	}
}

// LinkDuplicates merges one edge per link, tagged with the run that found it
func (s *DuplicateService) LinkDuplicates(ctx context.Context, tenantID, entityType, runID string, links []Link) error {
	ctx, span := tracing.StartSpan(ctx, "graph.DuplicateService.LinkDuplicates")
	defer span.End()

	if len(links) == 0 {
		return nil
	}

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":   tenantID,
		"entity_type": entityType,
		"run_id":      runID,
		"links":       len(links),
	})

	params := map[string]any{
		"tenant_id":   tenantID,
		"entity_type": entityType,
		"run_id":      runID,
		"links":       linkParams(links),
	}
	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, linkCypher, params)
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		log.WithError(err).Error("Failed to link duplicates")
		return tracing.RecordError(span, fmt.Errorf("failed to link duplicates: %w", err))
	}

	log.Debug("Linked duplicates")
	return nil
}

// DuplicatesOf lists records linked to id in either direction, best score first
func (s *DuplicateService) DuplicatesOf(ctx context.Context, tenantID, entityType, id string) ([]Neighbor, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.DuplicateService.DuplicatesOf")
	defer span.End()

	res, err := s.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, neighborsCypher, map[string]any{
			"tenant_id":   tenantID,
			"entity_type": entityType,
			"id":          id,
		})
		if err != nil {
			return nil, err
		}

		neighbors := []Neighbor{}
		for result.Next(ctx) {
			record := result.Record()
			nid, _, _ := neo4j.GetRecordValue[string](record, "id")
			score, _, _ := neo4j.GetRecordValue[float64](record, "score")
			runID, _, _ := neo4j.GetRecordValue[string](record, "run_id")
			neighbors = append(neighbors, Neighbor{ID: nid, Score: score, RunID: runID})
		}
		return neighbors, result.Err()
	})
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to read duplicates")
		return nil, tracing.RecordError(span, fmt.Errorf("failed to read duplicates: %w", err))
	}
	return res.([]Neighbor), nil
}

func linkParams(links []Link) []map[string]any {
	out := make([]map[string]any, len(links))
	for i, l := range links {
		strong := l.StrongFields
		if strong == nil {
			strong = []string{}
		}
		out[i] = map[string]any{
			"from":          l.From,
			"to":            l.To,
			"score":         l.Score,
			"strong_fields": strong,
		}
	}
	return out
}
