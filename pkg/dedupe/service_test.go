package dedupe

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/graph"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/resultcache"
)

type fakeRecords struct {
	population []models.Record
	upserted   []models.Record
	err        error
	lists      int
}

func (f *fakeRecords) ListByEntityType(context.Context, string, string) ([]models.Record, error) {
	f.lists++
	return f.population, f.err
}

func (f *fakeRecords) UpsertBatch(_ context.Context, _, _ string, records []models.Record) ([]string, error) {
	f.upserted = append(f.upserted, records...)
	return make([]string, len(records)), nil
}

type fakeConfigs struct {
	cfg *models.StoredMatchConfiguration
}

func (f *fakeConfigs) Get(_ context.Context, _, entityType string) (*models.StoredMatchConfiguration, error) {
	if f.cfg == nil {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "no match configuration for entity type %s", entityType)
	}
	return f.cfg, nil
}

type fakeRuns struct {
	created  models.ReconciliationRun
	finished models.ReconciliationRun
	rows     map[int]models.RowResult
	err      error
}

func (f *fakeRuns) CreateRun(_ context.Context, run models.ReconciliationRun) (*models.ReconciliationRun, error) {
	run.ID = "run-1"
	f.created = run
	return &run, nil
}

func (f *fakeRuns) Finish(_ context.Context, run models.ReconciliationRun, rows map[int]models.RowResult) error {
	f.finished = run
	f.rows = rows
	return f.err
}

type fakeGraph struct {
	links []graph.Link
	err   error
}

func (f *fakeGraph) LinkDuplicates(_ context.Context, _, _, _ string, links []graph.Link) error {
	f.links = links
	return f.err
}

type fakePublisher struct {
	events []*kafka.DuplicateReportEvent
}

func (f *fakePublisher) PublishDuplicateReport(_ context.Context, event *kafka.DuplicateReportEvent) error {
	f.events = append(f.events, event)
	return nil
}

type memoryStore struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.entries[key]
	if !ok {
		return nil, redis.ErrNotFound
	}
	return b, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func phoneConfig() models.MatchConfiguration {
	return models.MatchConfiguration{
		Fields: []models.FieldSpec{
			{Field: "phone", Type: models.FieldTypePhone, Weight: 1, Source: "contact.phone"},
		},
		Threshold: 0.85,
	}
}

func population() []models.Record {
	return []models.Record{
		models.NewRecord("m-1", map[string]any{"phone": "5551234567"}),
		models.NewRecord("m-2", map[string]any{"phone": "5559999999"}),
	}
}

type harness struct {
	svc       *Service
	records   *fakeRecords
	runs      *fakeRuns
	graph     *fakeGraph
	publisher *fakePublisher
}

func newHarness(cfg *models.MatchConfiguration) *harness {
	h := &harness{
		records:   &fakeRecords{population: population()},
		runs:      &fakeRuns{},
		graph:     &fakeGraph{},
		publisher: &fakePublisher{},
	}
	configs := &fakeConfigs{}
	if cfg != nil {
		configs.cfg = &models.StoredMatchConfiguration{TenantID: "t1", EntityType: "member", MatchConfiguration: *cfg}
	}
	h.svc = NewService(Config{Workers: 2}, Dependencies{
		Records:   h.records,
		Configs:   configs,
		Runs:      h.runs,
		Graph:     h.graph,
		Publisher: h.publisher,
		Cache:     resultcache.New(&memoryStore{entries: map[string][]byte{}}, time.Minute, testLogger()),
	}, testLogger())
	return h
}

func TestService_FindDuplicates(t *testing.T) {
	cfg := phoneConfig()
	h := newHarness(&cfg)
	ctx := context.Background()
	candidate := models.NewRecord("", map[string]any{"phone": "(555) 123-4567"})

	result, err := h.svc.FindDuplicates(ctx, "t1", "member", candidate, nil)
	require.NoError(t, err)
	require.Len(t, result.Duplicates, 1)
	assert.Equal(t, "m-1", result.Duplicates[0].ExistingID)
	assert.Equal(t, models.AssessmentAssessed, result.Assessment)

	t.Run("second call is served from cache", func(t *testing.T) {
		again, err := h.svc.FindDuplicates(ctx, "t1", "member", candidate, nil)
		require.NoError(t, err)
		assert.Equal(t, "m-1", again.Duplicates[0].ExistingID)
		assert.Equal(t, 2, h.records.lists)
	})
}

func TestService_FindDuplicates_Errors(t *testing.T) {
	ctx := context.Background()
	candidate := models.NewRecord("", map[string]any{"phone": "5551234567"})

	t.Run("missing stored configuration", func(t *testing.T) {
		h := newHarness(nil)
		_, err := h.svc.FindDuplicates(ctx, "t1", "member", candidate, nil)
		require.Error(t, err)
		assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
	})

	t.Run("invalid override", func(t *testing.T) {
		h := newHarness(nil)
		bad := models.MatchConfiguration{Fields: []models.FieldSpec{{Field: "phone", Type: "fuzzy", Weight: 1}}, Threshold: 0.5}
		_, err := h.svc.FindDuplicates(ctx, "t1", "member", candidate, &bad)
		assert.True(t, models.IsConfigurationError(err))
	})

	t.Run("store failure", func(t *testing.T) {
		cfg := phoneConfig()
		h := newHarness(&cfg)
		h.records.err = errors.New("connection reset")
		_, err := h.svc.FindDuplicates(ctx, "t1", "member", candidate, nil)
		assert.Error(t, err)
	})
}

func TestService_Reconcile(t *testing.T) {
	cfg := phoneConfig()
	h := newHarness(&cfg)

	batch := []models.Record{
		models.NewRecord("", map[string]any{"phone": "555-123-4567"}),
		models.NewRecord("", map[string]any{"phone": "555-000-0000"}),
		models.NewRecord("", map[string]any{"phone": nil}),
	}
	result, err := h.svc.Reconcile(context.Background(), ReconcileRequest{
		TenantID: "t1", EntityType: "member", ImportID: "imp-1", Records: batch, Persist: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "run-1", result.Run.ID)
	assert.Equal(t, models.RunStatusCompleted, result.Run.Status)
	assert.Equal(t, 3, result.Run.RowCount)
	assert.Equal(t, 2, result.Run.PopulationSize)
	assert.Equal(t, 1, result.Run.DuplicateRowCount)
	assert.Equal(t, 1, result.Run.UnassessableRowCount)
	assert.NotEmpty(t, result.Run.ConfigFingerprint)
	require.NotNil(t, result.Run.ImportID)
	assert.Equal(t, "imp-1", *result.Run.ImportID)

	require.Len(t, result.Rows, 3)
	assert.Equal(t, "m-1", result.Rows[0].Duplicates[0].ExistingID)
	assert.Empty(t, result.Rows[1].Duplicates)
	assert.True(t, result.Rows[1].Assessable)
	assert.False(t, result.Rows[2].Assessable)

	assert.Equal(t, models.RunStatusRunning, h.runs.created.Status)
	assert.Equal(t, models.RunStatusCompleted, h.runs.finished.Status)
	assert.Len(t, h.runs.rows, 3)

	assert.Equal(t, []graph.Link{{From: "run-1:0", To: "m-1", Score: 1, StrongFields: []string{"phone"}}}, h.graph.links)
	require.Len(t, h.publisher.events, 1)
	assert.Equal(t, "imp-1", h.publisher.events[0].ImportID)
	assert.Len(t, h.records.upserted, 3)
}

func TestService_Reconcile_GraphFailureIsNotFatal(t *testing.T) {
	cfg := phoneConfig()
	h := newHarness(&cfg)
	h.graph.err = errors.New("memgraph unavailable")

	_, err := h.svc.Reconcile(context.Background(), ReconcileRequest{
		TenantID: "t1", EntityType: "member", Records: []models.Record{models.NewRecord("", map[string]any{"phone": "5551234567"})},
	})
	require.NoError(t, err)
	assert.Len(t, h.publisher.events, 1)
}

func TestService_Reconcile_Cancelled(t *testing.T) {
	cfg := phoneConfig()
	h := newHarness(&cfg)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := h.svc.Reconcile(ctx, ReconcileRequest{
		TenantID: "t1", EntityType: "member", Records: []models.Record{models.NewRecord("", map[string]any{"phone": "5551234567"})}, Persist: true,
	})
	require.Error(t, err)
	assert.True(t, IsCancelled(err))
	require.NotNil(t, result)
	assert.Equal(t, models.RunStatusPartial, h.runs.finished.Status)
	assert.Empty(t, h.records.upserted)
	assert.Empty(t, h.publisher.events)
}

func TestService_Reconcile_StoreFailure(t *testing.T) {
	cfg := phoneConfig()
	h := newHarness(&cfg)
	h.runs.err = httperror.NewHTTPError(http.StatusInternalServerError, "failed to save reconciliation rows")

	_, err := h.svc.Reconcile(context.Background(), ReconcileRequest{TenantID: "t1", EntityType: "member"})
	require.Error(t, err)
	assert.Empty(t, h.publisher.events)
}

func TestService_RecordsFromRows(t *testing.T) {
	h := newHarness(nil)
	records := h.svc.RecordsFromRows(phoneConfig(), []map[string]any{
		{"id": "src-1", "contact": map[string]any{"phone": "555-123-4567"}},
		{"contact": map[string]any{}},
	})
	assert.Equal(t, "src-1", records[0].ID)
	assert.Equal(t, "555-123-4567", records[0].Fields["phone"])
	assert.Nil(t, records[1].Fields["phone"])
}

func TestService_ReconcileRowsWithFailingSource(t *testing.T) {
	cfg := phoneConfig()
	cfg.Fields = append(cfg.Fields, models.FieldSpec{
		Field: "name", Type: models.FieldTypeText, Weight: 1, Source: "join(' ', [first, last])",
	})
	h := newHarness(&cfg)

	records := h.svc.RecordsFromRows(cfg, []map[string]any{
		{"first": "Ann", "last": "Smith", "contact": map[string]any{"phone": "555-123-4567"}},
		{"first": "Bob", "last": 42.0, "contact": map[string]any{"phone": "555-999-9999"}},
		{"first": "Alan", "last": "Turing", "contact": map[string]any{"phone": "555-000-0000"}},
	})
	require.Len(t, records, 3)
	assert.Equal(t, "Ann Smith", records[0].Fields["name"])
	assert.Nil(t, records[1].Fields["name"])
	assert.Equal(t, "Alan Turing", records[2].Fields["name"])

	result, err := h.svc.Reconcile(context.Background(), ReconcileRequest{
		TenantID: "t1", EntityType: "member", Records: records,
	})
	require.NoError(t, err)
	require.Len(t, result.Rows, 3)
	assert.Equal(t, models.RunStatusCompleted, result.Run.Status)

	assert.Equal(t, "m-1", result.Rows[0].Duplicates[0].ExistingID)
	assert.Empty(t, result.Rows[0].Warnings)

	require.NotEmpty(t, result.Rows[1].Duplicates)
	assert.Equal(t, "m-2", result.Rows[1].Duplicates[0].ExistingID)
	assert.True(t, result.Rows[1].Assessable)
	require.Len(t, result.Rows[1].Warnings, 1)
	assert.Contains(t, result.Rows[1].Warnings[0], `field "name"`)
	assert.Contains(t, result.Rows[1].Warnings[0], models.WarningSourceFailed)

	assert.Empty(t, result.Rows[2].Duplicates)
	assert.True(t, result.Rows[2].Assessable)
}

func TestService_Compare(t *testing.T) {
	h := newHarness(nil)
	sim, err := h.svc.Compare(phoneConfig(),
		models.NewRecord("a", map[string]any{"phone": "5551234567"}),
		models.NewRecord("b", map[string]any{"phone": "555.123.4567"}),
	)
	require.NoError(t, err)
	assert.Equal(t, 1.0, sim.Score)
}

func TestOrderedRows(t *testing.T) {
	rows := OrderedRows(map[int]models.RowResult{2: {Row: 2}, 0: {Row: 0}})
	require.Len(t, rows, 2)
	assert.Equal(t, 0, rows[0].Row)
	assert.Equal(t, 2, rows[1].Row)
}
