package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/t77yq/coastal-alert/internal/model"
)

const (
	// DefaultStream is the JetStream stream holding dispatch and assessment events
	DefaultStream = "DISPATCHES"

	dispatchSubjects   = "dispatch.*"
	threatSubjects     = "threat.*"
	assessmentSubject  = "threat.assessed"
	dispatchSubjectFmt = "dispatch.%s"
)

// NATSPublisher publishes audit records and assessments to JetStream
type NATSPublisher struct {
	logger *zap.Logger
	js     nats.JetStreamContext
	stream string
}

// NewNATSPublisher creates a new NATS publisher
func NewNATSPublisher(js nats.JetStreamContext, stream string, logger *zap.Logger) *NATSPublisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &NATSPublisher{
		logger: logger.Named("nats_audit"),
		js:     js,
		stream: stream,
	}
}

// Setup creates the stream if it does not exist
func (p *NATSPublisher) Setup() error {
	stream, err := p.js.StreamInfo(p.stream)
	if err != nil && err != nats.ErrStreamNotFound {
		return fmt.Errorf("failed to get stream info: %w", err)
	}

	if stream == nil {
		_, err = p.js.AddStream(&nats.StreamConfig{
			Name:       p.stream,
			Subjects:   []string{dispatchSubjects, threatSubjects},
			Retention:  nats.LimitsPolicy,
			MaxAge:     30 * 24 * time.Hour,
			Storage:    nats.FileStorage,
			Duplicates: time.Hour,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
		p.logger.Info("Created stream", zap.String("name", p.stream))
	}

	return nil
}

// Record publishes rec on dispatch.<level>, deduplicated by dispatch ID
func (p *NATSPublisher) Record(ctx context.Context, rec *model.AuditRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}

	_, err = p.js.Publish(DispatchSubject(rec.ThreatLevel), data, nats.Context(ctx), nats.MsgId(rec.ID))
	if err != nil {
		return fmt.Errorf("failed to publish audit record: %w", err)
	}

	p.logger.Debug("Audit record published",
		zap.String("dispatch_id", rec.ID),
		zap.String("level", string(rec.ThreatLevel)))
	return nil
}

// PublishAssessment publishes a on threat.assessed
func (p *NATSPublisher) PublishAssessment(ctx context.Context, a *model.ThreatAssessment) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal assessment: %w", err)
	}

	if _, err := p.js.Publish(assessmentSubject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish assessment: %w", err)
	}
	return nil
}

// DispatchSubject returns the subject audit records of level are published on
func DispatchSubject(level model.ThreatLevel) string {
	l := strings.ToLower(string(level))
	if l == "" {
		l = "unknown"
	}
	return fmt.Sprintf(dispatchSubjectFmt, l)
}
