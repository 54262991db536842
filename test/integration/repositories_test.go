package integration

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/internal/repositories/matchconfig"
	"github.com/Ramsey-B/clover/internal/repositories/reconciliation"
	"github.com/Ramsey-B/clover/internal/repositories/record"
	"github.com/Ramsey-B/clover/pkg/dedupe"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/resultcache"
	"github.com/Ramsey-B/clover/pkg/seed"
)

func TestRecordRepository_UpsertInChunks(t *testing.T) {
	requireContainers(t)
	ctx := context.Background()
	tenant := uuid.NewString()
	repo := record.NewRepository(env.db, env.logger, 7)

	d := seed.Generate(seed.Options{Count: 30, Seed: 5})
	records := seed.Records(d.Members)
	records = append(records, models.NewRecord("", map[string]any{"first_name": "No", "last_name": "Id"}))

	ids, err := repo.UpsertBatch(ctx, tenant, "member", records)
	require.NoError(t, err)
	require.Len(t, ids, 31)
	assert.Equal(t, d.Members[0].ID, ids[0])
	assert.NotEmpty(t, ids[30])

	count, err := repo.Count(ctx, tenant, "member")
	require.NoError(t, err)
	assert.Equal(t, 31, count)

	// upsert again with a changed value: same count, new data
	records[0].Fields["first_name"] = "Changed"
	_, err = repo.UpsertBatch(ctx, tenant, "member", records[:1])
	require.NoError(t, err)

	got, err := repo.Get(ctx, tenant, "member", d.Members[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Changed", got.Value("first_name"))

	count, err = repo.Count(ctx, tenant, "member")
	require.NoError(t, err)
	assert.Equal(t, 31, count)

	_, err = repo.Get(ctx, tenant, "member", "missing")
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}

func TestRecordRepository_RepeatedIDInOneChunk(t *testing.T) {
	requireContainers(t)
	ctx := context.Background()
	tenant := uuid.NewString()
	repo := record.NewRepository(env.db, env.logger, 10)

	ids, err := repo.UpsertBatch(ctx, tenant, "member", []models.Record{
		models.NewRecord("m-1", map[string]any{"first_name": "First"}),
		models.NewRecord("m-2", map[string]any{"first_name": "Other"}),
		models.NewRecord("m-1", map[string]any{"first_name": "Second"}),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"m-1", "m-2", "m-1"}, ids)

	count, err := repo.Count(ctx, tenant, "member")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	got, err := repo.Get(ctx, tenant, "member", "m-1")
	require.NoError(t, err)
	assert.Equal(t, "Second", got.Value("first_name"))
}

func TestMatchConfigRepository(t *testing.T) {
	requireContainers(t)
	ctx := context.Background()
	tenant := uuid.NewString()
	repo := matchconfig.NewRepository(env.db, env.logger)

	_, err := repo.Get(ctx, tenant, "member")
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))

	stored, err := repo.Upsert(ctx, tenant, "member", seed.MemberConfiguration())
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Version)

	cfg := seed.MemberConfiguration()
	cfg.Threshold = 0.9
	stored, err = repo.Upsert(ctx, tenant, "member", cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Version)

	got, err := repo.Get(ctx, tenant, "member")
	require.NoError(t, err)
	assert.Equal(t, 0.9, got.Threshold)
	assert.Equal(t, cfg.Fields, got.Fields)
	assert.Equal(t, []string{"soundex"}, got.BlockingNormalizers)

	bad := cfg
	bad.Fields = nil
	_, err = repo.Upsert(ctx, tenant, "member", bad)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))

	list, err := repo.List(ctx, tenant)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, repo.Delete(ctx, tenant, "member"))
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(repo.Delete(ctx, tenant, "member")))
}

func TestDedupeService_ReconcileAgainstPostgres(t *testing.T) {
	requireContainers(t)
	ctx := context.Background()
	tenant := uuid.NewString()

	records := record.NewRepository(env.db, env.logger, record.DefaultBatchSize)
	configs := matchconfig.NewRepository(env.db, env.logger)
	runs := reconciliation.NewRepository(env.db, env.logger)

	d := seed.Generate(seed.Options{Count: 150, DuplicateRate: 0.1, Seed: 9})
	_, err := records.UpsertBatch(ctx, tenant, "member", seed.Records(d.Members))
	require.NoError(t, err)
	_, err = configs.Upsert(ctx, tenant, "member", seed.MemberConfiguration())
	require.NoError(t, err)

	svc := dedupe.NewService(dedupe.Config{Workers: 4}, dedupe.Dependencies{
		Records: records,
		Configs: configs,
		Runs:    runs,
	}, env.logger)

	result, err := svc.Reconcile(ctx, dedupe.ReconcileRequest{
		TenantID:   tenant,
		EntityType: "member",
		ImportID:   "import-1",
		Records:    seed.Records(d.Duplicates),
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, seed.Recall(d, result.Rows), 0.9)

	run, err := runs.GetRun(ctx, tenant, result.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, len(d.Duplicates), run.RowCount)
	assert.Equal(t, 150, run.PopulationSize)
	require.NotNil(t, run.ImportID)
	assert.Equal(t, "import-1", *run.ImportID)

	rows, err := runs.ListRows(ctx, tenant, run.ID)
	require.NoError(t, err)
	require.Len(t, rows, len(result.Rows))
	for i, row := range rows {
		want := result.Rows[i]
		assert.Equal(t, want.Row, row.Row)
		assert.Equal(t, want.Assessment, row.Assessment)
		assert.Equal(t, duplicateIDs(want), duplicateIDs(row))
	}

	entityType := "member"
	listed, total, err := runs.ListRuns(ctx, tenant, &entityType, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, run.ID, listed[0].ID)
}

func TestResultCache_Redis(t *testing.T) {
	requireContainers(t)
	ctx := context.Background()
	cache := resultcache.New(env.redis, time.Minute, env.logger)

	cfg := seed.MemberConfiguration()
	candidate := models.NewRecord("c1", map[string]any{"email": "a@b.com"})
	key := resultcache.Key(uuid.NewString(), "member", cfg, nil, candidate)

	_, ok := cache.Get(ctx, key)
	assert.False(t, ok)

	want := models.DetectionResult{
		Duplicates:  []models.DuplicateCandidate{{SimilarityResult: models.SimilarityResult{ExistingID: "m1", Score: 1, Comparable: true, StrongFields: []string{"email"}, FieldScores: map[string]float64{"email": 1}}}},
		Shortlisted: 1,
		Comparable:  1,
		Assessment:  models.AssessmentAssessed,
	}
	cache.Set(ctx, key, want)

	got, ok := cache.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestLocker_Redis(t *testing.T) {
	requireContainers(t)
	ctx := context.Background()
	locker := redis.NewLocker(env.redis, "test:lock:")
	key := uuid.NewString()

	err := locker.WithLock(ctx, key, time.Minute, func(ctx context.Context) error {
		_, err := locker.Acquire(ctx, key, time.Minute)
		assert.ErrorIs(t, err, redis.ErrLockNotAcquired)
		return nil
	})
	require.NoError(t, err)

	lock, err := locker.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	require.NoError(t, lock.Release(ctx))
}

func duplicateIDs(r models.RowResult) []string {
	ids := make([]string, 0, len(r.Duplicates))
	for _, d := range r.Duplicates {
		ids = append(ids, d.ExistingID)
	}
	return ids
}
