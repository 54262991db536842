package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/clover/pkg/tracing"
)

// MessageWriter is the subset of *kafka.Writer the producer uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer handles Kafka event emission
type Producer struct {
	writer MessageWriter
	logger ectologger.Logger
	topic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// Codec maps a compression name to the kafka-go codec. Unknown names use snappy.
func Codec(name string) kafka.Compression {
	switch name {
	case "gzip":
		return kafka.Gzip
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	case "none":
		return 0
	}
	return kafka.Snappy
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            Codec(cfg.Compression),
		AllowAutoTopicCreation: true,
	}
	return NewProducerWithWriter(writer, cfg.Topic, logger)
}

// NewProducerWithWriter creates a producer over an existing writer
func NewProducerWithWriter(writer MessageWriter, topic string, logger ectologger.Logger) *Producer {
	return &Producer{
		writer: writer,
		logger: logger,
		topic:  topic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// PublishDuplicateReport publishes a reconciliation outcome keyed by run id
func (p *Producer) PublishDuplicateReport(ctx context.Context, event *DuplicateReportEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishDuplicateReport")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	headers := []kafka.Header{
		{Key: HeaderEventType, Value: []byte(event.EventType)},
		{Key: HeaderTenantID, Value: []byte(event.TenantID)},
		{Key: HeaderEntityType, Value: []byte(event.EntityType)},
		{Key: HeaderSchemaVersion, Value: []byte("1.0")},
	}
	if event.ImportID != "" {
		headers = append(headers, kafka.Header{Key: HeaderImportID, Value: []byte(event.ImportID)})
	}
	if tp := tracing.GetTraceParent(ctx); tp != "" {
		headers = append(headers, kafka.Header{Key: HeaderTraceParent, Value: []byte(tp)})
	}

	msg := kafka.Message{
		Topic:   p.topic,
		Key:     []byte(event.RunID),
		Value:   data,
		Headers: headers,
	}

	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"run_id":      event.RunID,
		"entity_type": event.EntityType,
		"rows":        len(event.Rows),
	})
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.WithError(err).Error("Failed to publish duplicate report")
		return tracing.RecordError(span, err)
	}

	log.Debug("Published duplicate report")
	return nil
}
