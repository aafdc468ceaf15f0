// Package detection runs the periodic detection cycle: fetch an observation,
// assess the threat, and dispatch an evacuation alert when warranted.
package detection

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/t77yq/coastal-alert/internal/cyclone"
	"github.com/t77yq/coastal-alert/internal/model"
	"github.com/t77yq/coastal-alert/internal/notify"
	"github.com/t77yq/coastal-alert/internal/observability"
	"github.com/t77yq/coastal-alert/internal/threat"
)

// ObservationSource fetches the current observation for a coordinate
type ObservationSource interface {
	Fetch(ctx context.Context, lat, lon float64) (model.Observation, error)
}

// SurgePredictor estimates storm surge for an observation
type SurgePredictor interface {
	Predict(ctx context.Context, obs model.Observation, location string) model.SurgeEstimate
}

// Dispatcher sends an alert envelope to recipients
type Dispatcher interface {
	Dispatch(ctx context.Context, env *model.AlertEnvelope, recipients []model.Recipient) (*model.DispatchResult, error)
}

// AssessmentPublisher publishes every assessment for dashboards
type AssessmentPublisher interface {
	PublishAssessment(ctx context.Context, a *model.ThreatAssessment) error
}

// Config defines the monitored location and cycle schedule
type Config struct {
	Schedule     string        `mapstructure:"schedule"`
	Location     string        `mapstructure:"location"`
	Lat          float64       `mapstructure:"lat"`
	Lon          float64       `mapstructure:"lon"`
	Zone         string        `mapstructure:"zone"`
	RunOnStart   bool          `mapstructure:"run_on_start"`
	CycleTimeout time.Duration `mapstructure:"cycle_timeout"`
}

// DefaultConfig returns a one-minute schedule for Mumbai
func DefaultConfig() Config {
	return Config{
		Schedule:     "@every 1m",
		Location:     "mumbai",
		Lat:          19.0760,
		Lon:          72.8777,
		RunOnStart:   true,
		CycleTimeout: 50 * time.Second,
	}
}

// CycleResult is the outcome of one detection cycle
type CycleResult struct {
	Assessment model.ThreatAssessment `json:"assessment"`
	Dispatch   *model.DispatchResult  `json:"dispatch,omitempty"`
	Outcome    model.CycleOutcome     `json:"outcome"`
}

// Loop runs detection cycles. At most one cycle runs at a time.
type Loop struct {
	logger     *zap.Logger
	config     Config
	weather    ObservationSource
	cyclone    cyclone.Estimator
	surge      SurgePredictor
	dispatcher Dispatcher
	publisher  AssessmentPublisher
	metrics    *observability.Metrics
	clock      clockwork.Clock

	running atomic.Bool
	mu      sync.RWMutex
	status  model.CycleStatus
}

// NewLoop creates a new detection loop. publisher may be nil.
func NewLoop(config Config, weather ObservationSource, estimator cyclone.Estimator, surge SurgePredictor,
	dispatcher Dispatcher, publisher AssessmentPublisher, metrics *observability.Metrics, logger *zap.Logger) *Loop {
	if metrics == nil {
		metrics = observability.NewMetricsForTesting()
	}
	return &Loop{
		logger:     logger.Named("detection"),
		config:     config,
		weather:    weather,
		cyclone:    estimator,
		surge:      surge,
		dispatcher: dispatcher,
		publisher:  publisher,
		metrics:    metrics,
		clock:      clockwork.NewRealClock(),
		status: model.CycleStatus{
			State:    model.CycleStateIdle,
			Schedule: config.Schedule,
			Location: config.Location,
		},
	}
}

// Assess runs both estimators on obs and merges them. A cyclone estimator
// failure is logged and replaced by an unavailable estimate. The surge profile
// follows obs.Location, or the configured location when it is empty.
func (l *Loop) Assess(ctx context.Context, obs model.Observation) model.ThreatAssessment {
	if obs.Location == "" {
		obs.Location = l.config.Location
	}

	estimate, err := l.cyclone.Predict(ctx, cyclone.FeaturesFrom(obs))
	if err != nil {
		l.metrics.CycloneErrors.Inc()
		l.logger.Warn("Cyclone estimator failed, continuing without it", zap.Error(err))
		estimate = model.UnavailableCycloneEstimate(err)
	}

	surge := l.surge.Predict(ctx, obs, obs.Location)

	a := threat.Assess(l.clock.Now(), estimate, surge)
	a.Observation = &obs
	return a
}

// RunCycle runs one detection cycle now. It returns ErrCycleInProgress if
// another cycle is running. A panic inside the cycle fails the cycle only.
func (l *Loop) RunCycle(ctx context.Context) (result *CycleResult, err error) {
	if !l.running.CompareAndSwap(false, true) {
		return nil, ErrCycleInProgress
	}
	defer l.running.Store(false)

	start := l.clock.Now()
	result = &CycleResult{Outcome: model.CycleOutcomeFailed}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("detection cycle panicked: %v", r)
			result.Outcome = model.CycleOutcomeFailed
		}
		l.finish(start, result, err)
	}()

	l.setState(model.CycleStateFetching)
	obs, err := l.weather.Fetch(ctx, l.config.Lat, l.config.Lon)
	if err != nil {
		return result, fmt.Errorf("failed to fetch observation: %w", err)
	}
	if obs.Location == "" {
		obs.Location = l.config.Location
	}

	l.setState(model.CycleStateAssessing)
	result.Assessment = l.Assess(ctx, obs)
	l.publish(ctx, &result.Assessment)

	if !threat.ShouldDispatch(result.Assessment) {
		result.Outcome = model.CycleOutcomeAssessed
		return result, nil
	}

	l.setState(model.CycleStateDispatching)
	env, err := notify.NewEvacuationEnvelope(result.Assessment, l.config.Zone, l.clock.Now())
	if err != nil {
		return result, fmt.Errorf("failed to build alert: %w", err)
	}

	result.Dispatch, err = l.dispatcher.Dispatch(ctx, env, nil)
	if err != nil {
		return result, fmt.Errorf("failed to dispatch alert: %w", err)
	}
	result.Outcome = model.CycleOutcomeDispatched
	return result, nil
}

func (l *Loop) publish(ctx context.Context, a *model.ThreatAssessment) {
	if l.publisher == nil {
		return
	}
	if err := l.publisher.PublishAssessment(ctx, a); err != nil {
		l.logger.Warn("Failed to publish assessment", zap.Error(err))
	}
}

func (l *Loop) setState(state model.CycleState) {
	l.mu.Lock()
	l.status.State = state
	l.mu.Unlock()
}

// finish records the cycle outcome and returns the loop to IDLE
func (l *Loop) finish(start time.Time, result *CycleResult, err error) {
	now := l.clock.Now()
	duration := now.Sub(start)

	l.mu.Lock()
	l.status.State = model.CycleStateIdle
	l.status.CyclesRun++
	l.status.LastRunTime = &now
	l.status.LastOutcome = result.Outcome
	l.status.LastError = ""
	if err != nil {
		l.status.CyclesFailed++
		l.status.LastError = err.Error()
	}
	if result.Assessment.Overall != "" {
		l.status.LastLevel = result.Assessment.Overall
	}
	if result.Dispatch != nil {
		l.status.LastDispatchID = result.Dispatch.ID
	}
	l.mu.Unlock()

	l.metrics.CyclesTotal.WithLabelValues(string(result.Outcome)).Inc()
	l.metrics.CycleDuration.Observe(duration.Seconds())
	if result.Assessment.Overall != "" {
		l.metrics.ThreatLevel.Set(result.Assessment.Overall.Value())
	}

	if err != nil {
		l.logger.Error("Detection cycle failed", zap.Duration("duration", duration), zap.Error(err))
		return
	}
	l.logger.Info("Detection cycle completed",
		zap.String("outcome", string(result.Outcome)),
		zap.String("threat_level", string(result.Assessment.Overall)),
		zap.Bool("cyclone_triggered", result.Assessment.CycloneTriggered),
		zap.Bool("surge_triggered", result.Assessment.SurgeTriggered),
		zap.Duration("duration", duration))
}

// recordSkipped counts a scheduled tick that found a cycle still running
func (l *Loop) recordSkipped() {
	l.metrics.CyclesTotal.WithLabelValues(string(model.CycleOutcomeSkipped)).Inc()
	l.logger.Warn("Skipping detection cycle, previous cycle still running")
}

// Status returns a snapshot of the loop status
func (l *Loop) Status() model.CycleStatus {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.status
}

// Ready reports whether at least one cycle has finished
func (l *Loop) Ready() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.status.CyclesRun > 0
}
