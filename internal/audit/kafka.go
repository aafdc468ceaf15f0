package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/t77yq/coastal-alert/internal/model"
)

// KafkaConfig defines the Kafka publisher settings
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// KafkaPublisher produces audit records and assessments to a Kafka topic
type KafkaPublisher struct {
	logger *zap.Logger
	writer *kafkago.Writer
}

// NewKafkaPublisher creates a Kafka producer for the configured topic
func NewKafkaPublisher(cfg KafkaConfig, logger *zap.Logger) *KafkaPublisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafkago.LeastBytes{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{logger: logger.Named("kafka_audit"), writer: w}
}

// Record produces rec keyed by dispatch ID
func (p *KafkaPublisher) Record(ctx context.Context, rec *model.AuditRecord) error {
	msg, err := auditMessage(rec)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}
	return nil
}

// PublishAssessment produces a keyed by its timestamp
func (p *KafkaPublisher) PublishAssessment(ctx context.Context, a *model.ThreatAssessment) error {
	msg, err := assessmentMessage(a)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write assessment: %w", err)
	}
	return nil
}

// Close flushes pending messages and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func auditMessage(rec *model.AuditRecord) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize audit record: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(rec.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte("dispatch")},
			{Key: "threat_level", Value: []byte(rec.ThreatLevel)},
			{Key: "recorded_at", Value: []byte(rec.Timestamp.UTC().Format(time.RFC3339))},
		},
	}, nil
}

func assessmentMessage(a *model.ThreatAssessment) (kafkago.Message, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize assessment: %w", err)
	}
	ts := a.Timestamp.UTC().Format(time.RFC3339)
	return kafkago.Message{
		Key:   []byte(ts),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte("assessment")},
			{Key: "threat_level", Value: []byte(a.Overall)},
			{Key: "recorded_at", Value: []byte(ts)},
		},
	}, nil
}
