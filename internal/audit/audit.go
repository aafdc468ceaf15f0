// Package audit fans dispatch audit records and threat assessments out to
// durable sinks.
package audit

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/t77yq/coastal-alert/internal/model"
	"github.com/t77yq/coastal-alert/internal/observability"
)

// Sink persists one audit record
type Sink interface {
	Record(ctx context.Context, rec *model.AuditRecord) error
}

// AssessmentPublisher publishes threat assessments for dashboards
type AssessmentPublisher interface {
	PublishAssessment(ctx context.Context, a *model.ThreatAssessment) error
}

type namedSink struct {
	name string
	sink Sink
}

// Multi writes every record to all registered sinks
type Multi struct {
	logger  *zap.Logger
	metrics *observability.Metrics
	sinks   []namedSink
}

// NewMulti creates a new multi-sink audit log
func NewMulti(metrics *observability.Metrics, logger *zap.Logger) *Multi {
	if metrics == nil {
		metrics = observability.NewMetricsForTesting()
	}
	return &Multi{
		logger:  logger.Named("audit"),
		metrics: metrics,
	}
}

// Add registers a sink under name. Sinks that also implement
// AssessmentPublisher receive assessments.
func (m *Multi) Add(name string, sink Sink) {
	m.sinks = append(m.sinks, namedSink{name: name, sink: sink})
}

// Len returns the number of registered sinks
func (m *Multi) Len() int {
	return len(m.sinks)
}

// Record writes rec to every sink. A failing sink does not stop the others.
func (m *Multi) Record(ctx context.Context, rec *model.AuditRecord) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.sink.Record(ctx, rec); err != nil {
			m.metrics.AuditErrors.WithLabelValues(s.name).Inc()
			m.logger.Warn("Audit sink failed",
				zap.String("sink", s.name),
				zap.String("dispatch_id", rec.ID),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

// PublishAssessment sends a to every sink that publishes assessments
func (m *Multi) PublishAssessment(ctx context.Context, a *model.ThreatAssessment) error {
	var errs []error
	for _, s := range m.sinks {
		p, ok := s.sink.(AssessmentPublisher)
		if !ok {
			continue
		}
		if err := p.PublishAssessment(ctx, a); err != nil {
			m.logger.Warn("Assessment publish failed", zap.String("sink", s.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}
