package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/t77yq/coastal-alert/internal/model"
	"github.com/t77yq/coastal-alert/internal/notify"
	"github.com/t77yq/coastal-alert/internal/observability"
)

type fakeSender struct {
	channel  model.Channel
	failures map[string]error
	hook     func(ctx context.Context)

	mu   sync.Mutex
	sent []string
}

func (s *fakeSender) Channel() model.Channel { return s.channel }

func (s *fakeSender) Send(ctx context.Context, dest string, _ model.RenderedMessage) error {
	if s.hook != nil {
		s.hook(ctx)
	}
	if err := s.failures[dest]; err != nil {
		return err
	}
	s.mu.Lock()
	s.sent = append(s.sent, dest)
	s.mu.Unlock()
	return nil
}

type fakeDirectory struct {
	all    []model.Recipient
	err    error
	zones  []string
	listed int
}

func (d *fakeDirectory) ListAll(context.Context) ([]model.Recipient, error) {
	d.listed++
	return d.all, d.err
}

func (d *fakeDirectory) ListByZone(_ context.Context, zone string) ([]model.Recipient, error) {
	d.zones = append(d.zones, zone)
	var out []model.Recipient
	for _, r := range d.all {
		if r.Zone == zone {
			out = append(out, r)
		}
	}
	return out, d.err
}

type fakeAudit struct {
	mu      sync.Mutex
	records []*model.AuditRecord
	err     error
}

func (a *fakeAudit) Record(ctx context.Context, rec *model.AuditRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	a.records = append(a.records, rec)
	return a.err
}

func newTestDispatcher(t *testing.T, cfg Config, dir Directory, audit AuditLog, senders ...notify.Sender) *Dispatcher {
	d := NewDispatcher(cfg, senders, dir, audit, observability.NewMetricsForTesting(), zaptest.NewLogger(t))
	d.clock = clockwork.NewFakeClockAt(time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC))
	return d
}

func testEnvelope() *model.AlertEnvelope {
	return &model.AlertEnvelope{
		ID:    "env-1",
		Level: model.ThreatLevelHigh,
		Email: model.EmailMessage{Subject: "s", HTML: "<p>h</p>"},
		SMS:   "sms",
		Push:  model.PushMessage{Title: "t", Body: "b"},
	}
}

func TestDispatch_MixedOutcomes(t *testing.T) {
	// Setup
	email := &fakeSender{channel: model.ChannelEmail, failures: map[string]error{
		"b@example.com": fmt.Errorf("auth failed: %w", notify.ErrRejected),
	}}
	sms := &fakeSender{channel: model.ChannelSMS}
	audit := &fakeAudit{}
	d := newTestDispatcher(t, Config{MaxConcurrency: 2}, nil, audit, email, sms)

	recipients := []model.Recipient{
		{ID: "A", Email: "a@example.com"},
		{ID: "B", Email: "b@example.com", Phone: "+919876543210"},
		{ID: "C"},
	}

	result, err := d.Dispatch(context.Background(), testEnvelope(), recipients)
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalRecipients)
	assert.Equal(t, 1, result.EmailSent)
	assert.Equal(t, 1, result.SMSSent)
	assert.Equal(t, 0, result.PushSent)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 0, result.Skipped)
	assert.True(t, result.Success)
	assert.Empty(t, result.Reason)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "B", result.Errors[0].RecipientID)
	assert.Equal(t, model.ChannelEmail, result.Errors[0].Channel)
	assert.Equal(t, "rejected", result.Errors[0].Reason)
	assert.Equal(t, "env-1", result.EnvelopeID)
	assert.NotEmpty(t, result.ID)

	require.Len(t, audit.records, 1)
	assert.Equal(t, result.ID, audit.records[0].ID)
	assert.Equal(t, 1, audit.records[0].Failed)
	assert.JSONEq(t, `{"level":"HIGH"}`, string(audit.records[0].ThreatData))
}

func TestDispatch_SenderPanicIsIsolated(t *testing.T) {
	email := &fakeSender{channel: model.ChannelEmail}
	push := &fakeSender{channel: model.ChannelPush, hook: func(context.Context) {
		panic("push provider blew up")
	}}
	audit := &fakeAudit{}
	d := newTestDispatcher(t, Config{MaxConcurrency: 2}, nil, audit, email, push)

	recipients := []model.Recipient{
		{ID: "A", Email: "a@example.com", DeviceToken: "fcm:token-abcdef"},
	}

	result, err := d.Dispatch(context.Background(), testEnvelope(), recipients)
	require.NoError(t, err)

	assert.Equal(t, 1, result.EmailSent)
	assert.Equal(t, 0, result.PushSent)
	assert.Equal(t, 1, result.Failed)
	assert.True(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, model.ChannelPush, result.Errors[0].Channel)
	assert.Equal(t, "transport", result.Errors[0].Reason)
	require.Len(t, audit.records, 1)
}

func TestDispatch_AttemptedMatchesUsableChannels(t *testing.T) {
	failing := map[string]error{}
	var recipients []model.Recipient
	usable := 0
	for i := 0; i < 30; i++ {
		r := model.Recipient{ID: fmt.Sprintf("r%d", i)}
		if i%2 == 0 {
			r.Email = fmt.Sprintf("r%d@example.com", i)
			usable++
		}
		if i%3 == 0 {
			r.Phone = fmt.Sprintf("98765%05d", i)
			failing[r.Phone] = notify.ErrTimeout
			usable++
		}
		if i%5 == 0 {
			r.DeviceToken = fmt.Sprintf("token-%d-abcdefgh", i)
			usable++
		}
		recipients = append(recipients, r)
	}

	d := newTestDispatcher(t, Config{MaxConcurrency: 4}, nil, nil,
		&fakeSender{channel: model.ChannelEmail},
		&fakeSender{channel: model.ChannelSMS, failures: failing},
		&fakeSender{channel: model.ChannelPush})

	result, err := d.Dispatch(context.Background(), testEnvelope(), recipients)
	require.NoError(t, err)
	assert.Equal(t, usable, result.Attempted())
	assert.Equal(t, result.EmailSent+result.SMSSent+result.PushSent+result.Failed, usable)
	assert.Equal(t, len(failing), result.Failed)

	// Failures are reported in recipient order
	for i := 1; i < len(result.Errors); i++ {
		assert.Less(t, indexOf(recipients, result.Errors[i-1].RecipientID), indexOf(recipients, result.Errors[i].RecipientID))
	}
}

func indexOf(rs []model.Recipient, id string) int {
	for i, r := range rs {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func TestDispatch_BoundedConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	hook := func(context.Context) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
	}

	var recipients []model.Recipient
	for i := 0; i < 20; i++ {
		recipients = append(recipients, model.Recipient{ID: fmt.Sprint(i), Email: fmt.Sprintf("u%d@example.com", i)})
	}

	d := newTestDispatcher(t, Config{MaxConcurrency: 3}, nil, nil, &fakeSender{channel: model.ChannelEmail, hook: hook})
	result, err := d.Dispatch(context.Background(), testEnvelope(), recipients)
	require.NoError(t, err)

	assert.Equal(t, 20, result.EmailSent)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.GreaterOrEqual(t, peak.Load(), int32(1))
}

func TestDispatch_CancelledMidway(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	sender := &fakeSender{channel: model.ChannelEmail, hook: func(sendCtx context.Context) {
		calls.Add(1)
		cancel()
		// The send itself keeps running after the dispatch is cancelled
		assert.NoError(t, sendCtx.Err())
	}}
	audit := &fakeAudit{}
	d := newTestDispatcher(t, Config{MaxConcurrency: 1}, nil, audit, sender)

	recipients := []model.Recipient{
		{ID: "1", Email: "1@example.com"},
		{ID: "2", Email: "2@example.com"},
		{ID: "3", Email: "3@example.com"},
	}
	result, err := d.Dispatch(ctx, testEnvelope(), recipients)
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, result.EmailSent)
	assert.Equal(t, 2, result.Skipped)
	assert.True(t, result.Cancelled)
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.Attempted()+result.Skipped)
	require.Len(t, audit.records, 1, "audit is written even when the caller cancelled")
}

func TestDispatch_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := newTestDispatcher(t, Config{}, nil, nil, &fakeSender{channel: model.ChannelEmail})
	result, err := d.Dispatch(ctx, testEnvelope(), []model.Recipient{{ID: "1", Email: "1@example.com"}})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Attempted())
	assert.Equal(t, 1, result.Skipped)
	assert.False(t, result.Success)
	assert.Equal(t, ReasonCancelled, result.Reason)
}

func TestDispatch_ResolvesFromDirectory(t *testing.T) {
	dir := &fakeDirectory{all: []model.Recipient{
		{ID: "1", Email: "1@example.com", Zone: "mumbai"},
		{ID: "2", Email: "2@example.com", Zone: "chennai"},
	}}
	email := &fakeSender{channel: model.ChannelEmail}
	d := newTestDispatcher(t, Config{}, dir, nil, email)

	env := testEnvelope()
	env.Zone = "mumbai"
	result, err := d.Dispatch(context.Background(), env, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"mumbai"}, dir.zones)
	assert.Equal(t, 1, result.TotalRecipients)
	assert.Equal(t, []string{"1@example.com"}, email.sent)

	result, err = d.Dispatch(context.Background(), testEnvelope(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, dir.listed)
	assert.Equal(t, 2, result.TotalRecipients)
}

func TestDispatch_DirectoryUnavailable(t *testing.T) {
	audit := &fakeAudit{}
	d := newTestDispatcher(t, Config{}, &fakeDirectory{err: errors.New("connection refused")}, audit,
		&fakeSender{channel: model.ChannelEmail})

	result, err := d.Dispatch(context.Background(), testEnvelope(), nil)
	require.ErrorIs(t, err, ErrDirectoryUnavailable)
	require.NotNil(t, result)
	assert.Equal(t, ReasonDirectoryUnavailable, result.Reason)
	assert.False(t, result.Success)
	assert.Equal(t, 0, result.Attempted())
	assert.Len(t, audit.records, 1)
}

func TestDispatch_NoRecipients(t *testing.T) {
	audit := &fakeAudit{}
	d := newTestDispatcher(t, Config{}, &fakeDirectory{}, audit, &fakeSender{channel: model.ChannelEmail})

	result, err := d.Dispatch(context.Background(), testEnvelope(), nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, ReasonNoRecipients, result.Reason)
	assert.Equal(t, 0, result.Sent())
	assert.Len(t, audit.records, 1)
}

func TestDispatch_NoUsableChannels(t *testing.T) {
	d := newTestDispatcher(t, Config{}, nil, nil, &fakeSender{channel: model.ChannelEmail})

	result, err := d.Dispatch(context.Background(), testEnvelope(), []model.Recipient{{ID: "1"}, {ID: "2", Email: "  "}})
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalRecipients)
	assert.False(t, result.Success)
	assert.Equal(t, ReasonNoUsableChannels, result.Reason)
	assert.Equal(t, 0, result.Attempted())
}

func TestDispatch_AllFailedAndMissingSender(t *testing.T) {
	d := newTestDispatcher(t, Config{}, nil, nil,
		&fakeSender{channel: model.ChannelEmail, failures: map[string]error{"1@example.com": notify.ErrInvalidDestination}})

	result, err := d.Dispatch(context.Background(), testEnvelope(), []model.Recipient{{ID: "1", Email: "1@example.com", Phone: "9876543210"}})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, ReasonAllFailed, result.Reason)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, "invalid_destination", result.Errors[0].Reason)
	assert.Equal(t, model.ChannelSMS, result.Errors[1].Channel)
	assert.Equal(t, "not_configured", result.Errors[1].Reason)
}

func TestDispatch_AuditFailureDoesNotChangeResult(t *testing.T) {
	audit := &fakeAudit{err: errors.New("disk full")}
	d := newTestDispatcher(t, Config{}, nil, audit, &fakeSender{channel: model.ChannelEmail})

	result, err := d.Dispatch(context.Background(), testEnvelope(), []model.Recipient{{ID: "1", Email: "1@example.com"}})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.EmailSent)
}

func TestDispatch_AssessmentTriggerData(t *testing.T) {
	audit := &fakeAudit{}
	d := newTestDispatcher(t, Config{}, nil, audit, &fakeSender{channel: model.ChannelEmail})

	env := testEnvelope()
	env.Assessment = &model.ThreatAssessment{Overall: model.ThreatLevelHigh, CycloneTriggered: true}
	_, err := d.Dispatch(context.Background(), env, []model.Recipient{{ID: "1", Email: "1@example.com"}})
	require.NoError(t, err)

	require.Len(t, audit.records, 1)
	assert.Contains(t, string(audit.records[0].ThreatData), `"overall_threat":"HIGH"`)
}
