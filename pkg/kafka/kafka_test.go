package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type fakeReader struct {
	mu        sync.Mutex
	committed []kafka.Message
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, msgs...)
	return nil
}

func (f *fakeReader) Close() error { return nil }

type fakeWriter struct {
	messages []kafka.Message
	err      error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func batchMessage(t *testing.T, batch ImportBatchMessage) kafka.Message {
	t.Helper()
	b, err := json.Marshal(batch)
	require.NoError(t, err)
	return kafka.Message{Topic: "imports", Value: b}
}

func TestParseImportBatch(t *testing.T) {
	t.Run("body fields", func(t *testing.T) {
		m := &IncomingMessage{Value: []byte(`{"tenant_id":"t1","entity_type":"member","import_id":"imp-1","rows":[{"email":"a@x.com"}]}`)}
		require.NoError(t, m.ParseImportBatch())
		assert.Equal(t, "t1", m.ImportBatch.TenantID)
		assert.Len(t, m.ImportBatch.Rows, 1)
	})

	t.Run("header fallback", func(t *testing.T) {
		m := &IncomingMessage{
			Value:   []byte(`{"rows":[]}`),
			Headers: map[string]string{HeaderTenantID: "t1", HeaderEntityType: "member", HeaderImportID: "imp-2"},
		}
		require.NoError(t, m.ParseImportBatch())
		assert.Equal(t, "imp-2", m.ImportBatch.ImportID)
	})

	t.Run("missing routing", func(t *testing.T) {
		m := &IncomingMessage{Value: []byte(`{"rows":[]}`)}
		assert.ErrorIs(t, m.ParseImportBatch(), ErrInvalidImportBatch)
	})

	t.Run("malformed", func(t *testing.T) {
		m := &IncomingMessage{Value: []byte(`{`)}
		assert.Error(t, m.ParseImportBatch())
	})
}

func TestConsumer_ProcessMessage(t *testing.T) {
	valid := ImportBatchMessage{TenantID: "t1", EntityType: "member", ImportID: "imp-1"}

	t.Run("commits after successful handling", func(t *testing.T) {
		reader := &fakeReader{}
		var got *ImportBatchMessage
		c := NewConsumerWithReader(reader, "imports", testLogger(), func(_ context.Context, msg *IncomingMessage) error {
			got = msg.ImportBatch
			return nil
		})

		c.processMessage(context.Background(), batchMessage(t, valid))
		require.NotNil(t, got)
		assert.Equal(t, "imp-1", got.ImportID)
		assert.Len(t, reader.committed, 1)
	})

	t.Run("does not commit when handling fails", func(t *testing.T) {
		reader := &fakeReader{}
		c := NewConsumerWithReader(reader, "imports", testLogger(), func(context.Context, *IncomingMessage) error {
			return errors.New("database unavailable")
		})

		c.processMessage(context.Background(), batchMessage(t, valid))
		assert.Empty(t, reader.committed)
	})

	t.Run("commits malformed messages without handling", func(t *testing.T) {
		reader := &fakeReader{}
		called := false
		c := NewConsumerWithReader(reader, "imports", testLogger(), func(context.Context, *IncomingMessage) error {
			called = true
			return nil
		})

		c.processMessage(context.Background(), kafka.Message{Value: []byte("not json")})
		assert.False(t, called)
		assert.Len(t, reader.committed, 1)
	})
}

func TestConsumer_StartStop(t *testing.T) {
	c := NewConsumerWithReader(&fakeReader{}, "imports", testLogger(), func(context.Context, *IncomingMessage) error { return nil })
	require.NoError(t, c.Start(context.Background()))
	assert.NoError(t, c.Stop())
}

func TestNewDuplicateReportEvent(t *testing.T) {
	importID := "imp-1"
	run := models.ReconciliationRun{
		ID: "run-1", TenantID: "t1", EntityType: "member", ImportID: &importID,
		Status: models.RunStatusCompleted, RowCount: 3, DuplicateRowCount: 1, UnassessableRowCount: 1,
	}
	rows := []models.RowResult{
		{Row: 0, Assessment: models.AssessmentAssessed, Assessable: true, Duplicates: []models.DuplicateCandidate{
			{SimilarityResult: models.SimilarityResult{ExistingID: "m-1", Score: 0.93}},
		}},
		{Row: 1, Assessment: models.AssessmentAssessed, Assessable: true, Duplicates: []models.DuplicateCandidate{}},
		{Row: 2, Assessment: models.AssessmentInsufficientData, Duplicates: []models.DuplicateCandidate{}},
	}

	event := NewDuplicateReportEvent(run, rows)
	assert.Equal(t, EventDuplicatesReconciled, event.EventType)
	assert.Equal(t, "imp-1", event.ImportID)
	assert.Equal(t, []RowDuplicates{
		{Row: 0, Assessment: models.AssessmentAssessed, DuplicateIDs: []string{"m-1"}, Scores: map[string]float64{"m-1": 0.93}},
		{Row: 2, Assessment: models.AssessmentInsufficientData, DuplicateIDs: []string{}},
	}, event.Rows)
}

func TestProducer_PublishDuplicateReport(t *testing.T) {
	writer := &fakeWriter{}
	p := NewProducerWithWriter(writer, "duplicates", testLogger())

	event := &DuplicateReportEvent{EventType: EventDuplicatesReconciled, TenantID: "t1", EntityType: "member", ImportID: "imp-1", RunID: "run-1"}
	require.NoError(t, p.PublishDuplicateReport(context.Background(), event))

	require.Len(t, writer.messages, 1)
	msg := writer.messages[0]
	assert.Equal(t, "duplicates", msg.Topic)
	assert.Equal(t, "run-1", string(msg.Key))
	assert.False(t, event.Timestamp.IsZero())

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "t1", headers[HeaderTenantID])
	assert.Equal(t, "imp-1", headers[HeaderImportID])

	writer.err = errors.New("broker down")
	assert.Error(t, p.PublishDuplicateReport(context.Background(), event))
}

func TestCodec(t *testing.T) {
	assert.Equal(t, kafka.Gzip, Codec("gzip"))
	assert.Equal(t, kafka.Snappy, Codec(""))
	assert.Equal(t, kafka.Compression(0), Codec("none"))
}
