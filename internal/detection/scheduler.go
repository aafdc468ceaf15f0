package detection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/t77yq/coastal-alert/internal/model"
)

// cronLogger adapts zap.Logger to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, fields(keysAndValues)...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(fields(keysAndValues), zap.Error(err))...)
}

func fields(keysAndValues []interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		out = append(out, zap.Any(key, keysAndValues[i+1]))
	}
	return out
}

// Scheduler triggers detection cycles on a cron schedule. Ticks that find a
// cycle still running are skipped.
type Scheduler struct {
	logger  *zap.Logger
	loop    *Loop
	cron    *cron.Cron
	spec    string
	timeout time.Duration

	mu      sync.Mutex
	entryID cron.EntryID
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// ParseSchedule validates a cron spec or descriptor such as "@every 1m"
func ParseSchedule(spec string) (cron.Schedule, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidSchedule, spec, err)
	}
	return schedule, nil
}

// NewScheduler creates a new scheduler for loop
func NewScheduler(loop *Loop, logger *zap.Logger) (*Scheduler, error) {
	spec := loop.config.Schedule
	if _, err := ParseSchedule(spec); err != nil {
		return nil, err
	}

	cl := &cronLogger{logger: logger.Named("cron")}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	timeout := loop.config.CycleTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().CycleTimeout
	}

	return &Scheduler{
		logger:  logger.Named("scheduler"),
		loop:    loop,
		cron:    c,
		spec:    spec,
		timeout: timeout,
	}, nil
}

// Start registers the detection job and starts the cron runner. Cycles are
// cancelled when ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return errors.New("scheduler already started")
	}
	runCtx, cancel := context.WithCancel(ctx)

	entryID, err := s.cron.AddFunc(s.spec, func() { s.tick(runCtx) })
	if err != nil {
		cancel()
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	s.entryID = entryID
	s.cancel = cancel

	s.cron.Start()

	if s.loop.config.RunOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.tick(runCtx)
		}()
	}

	s.logger.Info("Detection scheduler started",
		zap.String("schedule", s.spec),
		zap.Time("next_run", s.cron.Entry(entryID).Next))
	return nil
}

// Stop stops scheduling, cancels the running cycle and waits for it to end
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.wg.Wait()
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	cycleCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.loop.RunCycle(cycleCtx); errors.Is(err, ErrCycleInProgress) {
		s.loop.recordSkipped()
	}
}

// NextRun returns the next scheduled run, or the zero time if not started
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entryID == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// Status returns the loop status with the next scheduled run
func (s *Scheduler) Status() model.CycleStatus {
	status := s.loop.Status()
	status.Schedule = s.spec
	if next := s.NextRun(); !next.IsZero() {
		status.NextRunTime = &next
	}
	return status
}
