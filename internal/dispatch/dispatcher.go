// Package dispatch fans one alert out to every (recipient, channel) pair with
// bounded concurrency and writes one audit record per dispatch.
package dispatch

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/t77yq/coastal-alert/internal/model"
	"github.com/t77yq/coastal-alert/internal/notify"
	"github.com/t77yq/coastal-alert/internal/observability"
)

// Directory supplies alert recipients
type Directory interface {
	ListAll(ctx context.Context) ([]model.Recipient, error)
	ListByZone(ctx context.Context, zone string) ([]model.Recipient, error)
}

// AuditLog persists dispatch summaries. Writes are best-effort.
type AuditLog interface {
	Record(ctx context.Context, rec *model.AuditRecord) error
}

// Config defines dispatcher limits
type Config struct {
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	SendTimeout    time.Duration `mapstructure:"send_timeout"`
	AuditTimeout   time.Duration `mapstructure:"audit_timeout"`
}

// DefaultConfig returns the default dispatcher limits
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 8,
		SendTimeout:    10 * time.Second,
		AuditTimeout:   5 * time.Second,
	}
}

// job is one (recipient, channel) send
type job struct {
	recipientID string
	channel     model.Channel
	destination string
}

// outcome is the result of one job, written only by the goroutine that ran it
type outcome struct {
	skipped bool
	err     error
}

// Dispatcher sends alert envelopes to recipients over every usable channel
type Dispatcher struct {
	logger    *zap.Logger
	config    Config
	senders   map[model.Channel]notify.Sender
	directory Directory
	audit     AuditLog
	metrics   *observability.Metrics
	clock     clockwork.Clock
}

// NewDispatcher creates a new dispatcher. Channels without a sender count as
// not-configured failures for every recipient that has them.
func NewDispatcher(config Config, senders []notify.Sender, directory Directory, audit AuditLog, metrics *observability.Metrics, logger *zap.Logger) *Dispatcher {
	defaults := DefaultConfig()
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaults.MaxConcurrency
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = defaults.SendTimeout
	}
	if config.AuditTimeout <= 0 {
		config.AuditTimeout = defaults.AuditTimeout
	}
	if metrics == nil {
		metrics = observability.NewMetricsForTesting()
	}

	bySender := make(map[model.Channel]notify.Sender, len(senders))
	for _, s := range senders {
		bySender[s.Channel()] = s
	}

	return &Dispatcher{
		logger:    logger.Named("dispatcher"),
		config:    config,
		senders:   bySender,
		directory: directory,
		audit:     audit,
		metrics:   metrics,
		clock:     clockwork.NewRealClock(),
	}
}

// Dispatch sends env to recipients, resolving them from the directory when none
// are given. A result is always returned. The error is non-nil only when the
// directory could not be read, in which case the result carries zero sends.
func (d *Dispatcher) Dispatch(ctx context.Context, env *model.AlertEnvelope, recipients []model.Recipient) (*model.DispatchResult, error) {
	result := &model.DispatchResult{
		ID:         uuid.New().String(),
		EnvelopeID: env.ID,
		Level:      env.Level,
		Zone:       env.Zone,
		StartedAt:  d.clock.Now(),
	}

	if len(recipients) == 0 {
		resolved, err := d.resolve(ctx, env.Zone)
		if err != nil {
			d.logger.Error("Failed to resolve recipients",
				zap.String("dispatch_id", result.ID),
				zap.String("zone", env.Zone),
				zap.Error(err))
			result.Reason = ReasonDirectoryUnavailable
			d.finish(ctx, env, result)
			return result, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
		}
		recipients = resolved
	}
	result.TotalRecipients = len(recipients)

	jobs := buildJobs(recipients)
	switch {
	case len(recipients) == 0:
		result.Reason = ReasonNoRecipients
	case len(jobs) == 0:
		result.Reason = ReasonNoUsableChannels
	default:
		d.merge(result, jobs, d.fanOut(ctx, env, jobs))
	}

	d.finish(ctx, env, result)
	return result, nil
}

func (d *Dispatcher) resolve(ctx context.Context, zone string) ([]model.Recipient, error) {
	if d.directory == nil {
		return nil, fmt.Errorf("no directory configured")
	}
	if zone != "" {
		return d.directory.ListByZone(ctx, zone)
	}
	return d.directory.ListAll(ctx)
}

// buildJobs expands recipients into jobs in recipient order, then email, SMS, push
func buildJobs(recipients []model.Recipient) []job {
	var jobs []job
	for _, r := range recipients {
		for _, ch := range r.Channels() {
			jobs = append(jobs, job{
				recipientID: r.ID,
				channel:     ch,
				destination: r.Destination(ch),
			})
		}
	}
	return jobs
}

// fanOut runs jobs with at most MaxConcurrency in flight. Once ctx is done no
// new job starts; running jobs finish on their own send timeout.
func (d *Dispatcher) fanOut(ctx context.Context, env *model.AlertEnvelope, jobs []job) []outcome {
	outcomes := make([]outcome, len(jobs))
	sem := semaphore.NewWeighted(int64(d.config.MaxConcurrency))
	var wg sync.WaitGroup

	for i := range jobs {
		if ctx.Err() != nil {
			outcomes[i].skipped = true
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			outcomes[i].skipped = true
			continue
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer sem.Release(1)
			outcomes[i] = outcome{err: d.send(ctx, env, jobs[i])}
		}(i)
	}

	wg.Wait()
	return outcomes
}

// send delivers one message. A panicking sender is reported as a transport
// failure for this pair only.
func (d *Dispatcher) send(ctx context.Context, env *model.AlertEnvelope, j job) (err error) {
	sender, ok := d.senders[j.channel]
	if !ok {
		return fmt.Errorf("%s: %w", j.channel, notify.ErrNotConfigured)
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.config.SendTimeout)
	defer cancel()

	d.metrics.DispatchInFlight.Inc()
	defer d.metrics.DispatchInFlight.Dec()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s sender panicked: %v", notify.ErrTransport, j.channel, r)
			d.logger.Error("Sender panicked",
				zap.String("recipient_id", j.recipientID),
				zap.String("channel", string(j.channel)),
				zap.Any("panic", r))
		}
	}()

	start := d.clock.Now()
	err = sender.Send(sendCtx, j.destination, env.Message(j.channel))
	d.metrics.SendDuration.WithLabelValues(string(j.channel)).Observe(d.clock.Since(start).Seconds())

	if err != nil {
		d.logger.Warn("Send failed",
			zap.String("recipient_id", j.recipientID),
			zap.String("channel", string(j.channel)),
			zap.String("destination", notify.Mask(j.destination)),
			zap.Error(err))
	}
	return err
}

// merge folds job outcomes into result after all sends have completed
func (d *Dispatcher) merge(result *model.DispatchResult, jobs []job, outcomes []outcome) {
	for i, o := range outcomes {
		j := jobs[i]
		switch {
		case o.skipped:
			result.Skipped++
			continue
		case o.err != nil:
			result.Failed++
			result.Errors = append(result.Errors, model.DeliveryFailure{
				RecipientID: j.recipientID,
				Channel:     j.channel,
				Error:       o.err.Error(),
				Reason:      notify.Reason(o.err),
			})
			d.metrics.SendsTotal.WithLabelValues(string(j.channel), notify.Reason(o.err)).Inc()
		default:
			result.Record(j.channel)
			d.metrics.SendsTotal.WithLabelValues(string(j.channel), "sent").Inc()
		}
	}

	result.Cancelled = result.Skipped > 0
	result.Success = result.Sent() > 0
	if !result.Success {
		if result.Attempted() == 0 {
			result.Reason = ReasonCancelled
		} else {
			result.Reason = ReasonAllFailed
		}
	}
}

// finish stamps the result and writes its audit record
func (d *Dispatcher) finish(ctx context.Context, env *model.AlertEnvelope, result *model.DispatchResult) {
	result.CompletedAt = d.clock.Now()
	d.metrics.DispatchesTotal.WithLabelValues(strconv.FormatBool(result.Success)).Inc()

	d.logger.Info("Dispatch completed",
		zap.String("dispatch_id", result.ID),
		zap.String("level", string(result.Level)),
		zap.String("zone", result.Zone),
		zap.Int("recipients", result.TotalRecipients),
		zap.Int("email_sent", result.EmailSent),
		zap.Int("sms_sent", result.SMSSent),
		zap.Int("push_sent", result.PushSent),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
		zap.Bool("success", result.Success),
		zap.String("reason", result.Reason),
		zap.Duration("duration", result.CompletedAt.Sub(result.StartedAt)))

	if d.audit == nil {
		return
	}

	rec, err := model.NewAuditRecord(result, env.TriggerData())
	if err != nil {
		d.logger.Error("Failed to build audit record", zap.String("dispatch_id", result.ID), zap.Error(err))
		return
	}

	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.config.AuditTimeout)
	defer cancel()
	if err := d.audit.Record(auditCtx, rec); err != nil {
		d.logger.Error("Failed to write audit record", zap.String("dispatch_id", result.ID), zap.Error(err))
	}
}
