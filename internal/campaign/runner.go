// Package campaign runs one bulk WhatsApp campaign: a sequential, throttled,
// cooperatively cancellable dispatch loop over a recipient list.
package campaign

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/unclebandit/wsp-bulk-sender/internal/errors"
	"github.com/unclebandit/wsp-bulk-sender/internal/model"
)

// MessageSender performs the network call for one recipient.
// Retries, auth and timeouts are the sender's business.
type MessageSender interface {
	Send(ctx context.Context, req model.SendRequest) (*model.SendResponse, error)
}

// SenderFunc adapts a function to MessageSender.
type SenderFunc func(ctx context.Context, req model.SendRequest) (*model.SendResponse, error)

func (f SenderFunc) Send(ctx context.Context, req model.SendRequest) (*model.SendResponse, error) {
	return f(ctx, req)
}

// Settings is the channel and template configuration applied to every request of a run.
type Settings struct {
	Credentials  model.Credentials
	TemplateName string
	Language     string
}

type Option func(*Runner)

func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock replaces time.Now for log timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

func WithID(id uuid.UUID) Option {
	return func(r *Runner) { r.id = id }
}

// Runner owns the recipients, stats and log of one campaign.
type Runner struct {
	id       uuid.UUID
	settings Settings
	logger   *zap.Logger
	now      func() time.Time

	mu         sync.Mutex
	state      State
	recipients []model.Recipient
	stats      model.CampaignStats
	entries    []model.LogEntry
	position   int
	cancelled  bool
	cancelCh   chan struct{}
	done       chan struct{}

	// Event delivery, guarded by mu.
	seq        uint64
	outbox     []Event
	delivering bool
	delivered  uint64
	flushed    *sync.Cond

	obsMu     sync.RWMutex
	observers []Observer
}

// Snapshot is a consistent copy of the runner's observable state.
type Snapshot struct {
	RunID     uuid.UUID           `json:"run_id"`
	State     State               `json:"state"`
	Stats     model.CampaignStats `json:"stats"`
	Position  int                 `json:"position"`
	Cancelled bool                `json:"cancelled"`
	Log       []model.LogEntry    `json:"log"`
}

func NewRunner(settings Settings, opts ...Option) *Runner {
	done := make(chan struct{})
	close(done)

	r := &Runner{
		id:       uuid.New(),
		settings: settings,
		logger:   zap.NewNop(),
		now:      time.Now,
		state:    StateIdle,
		position: -1,
		done:     done,
	}
	r.flushed = sync.NewCond(&r.mu)
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(zap.String("run_id", r.id.String()))
	return r
}

func (r *Runner) ID() uuid.UUID { return r.id }

func (r *Runner) Settings() Settings { return r.settings }

// Start validates the request, initializes stats and launches the dispatch loop.
// It returns as soon as the loop is running; use Done or Run to wait for it.
func (r *Runner) Start(ctx context.Context, recipients []model.Recipient, sender MessageSender, interDelay time.Duration) error {
	if sender == nil {
		return fmt.Errorf("campaign: nil sender")
	}

	r.mu.Lock()
	if r.state.Active() {
		r.mu.Unlock()
		return appErrors.ErrAlreadyRunning
	}
	if len(recipients) == 0 {
		r.mu.Unlock()
		return appErrors.ErrEmptyCampaign
	}
	if interDelay < 0 {
		interDelay = 0
	}

	queue := make([]model.Recipient, len(recipients))
	copy(queue, recipients)

	r.recipients = queue
	r.stats = model.CampaignStats{Total: len(queue), Pending: len(queue)}
	r.entries = nil
	r.position = -1
	r.cancelled = false
	r.cancelCh = make(chan struct{})
	r.done = make(chan struct{})
	r.state = StateRunning

	r.emitLocked(r.eventLocked(EventStarted))
	cancelCh, done := r.cancelCh, r.done
	r.mu.Unlock()

	r.logger.Info("campaign started",
		zap.Int("recipients", len(queue)),
		zap.String("template", r.settings.TemplateName),
		zap.Duration("inter_delay", interDelay),
	)
	r.flush()

	go r.loop(ctx, queue, sender, interDelay, cancelCh, done)
	return nil
}

// Run starts the campaign and blocks until the loop exits.
func (r *Runner) Run(ctx context.Context, recipients []model.Recipient, sender MessageSender, interDelay time.Duration) error {
	if err := r.Start(ctx, recipients, sender, interDelay); err != nil {
		return err
	}
	<-r.Done()
	return nil
}

// Done is closed when the current dispatch loop has exited.
// Before the first Start it is already closed.
func (r *Runner) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// Cancel asks the loop to stop before the next recipient.
// An in-flight send always completes and is recorded. No-op unless running.
func (r *Runner) Cancel() {
	r.mu.Lock()
	if !r.cancelLocked() {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	r.logger.Info("campaign cancellation requested")
	r.flush()
}

// cancelLocked moves Running to Cancelling and queues the state event.
// It reports whether the state changed.
func (r *Runner) cancelLocked() bool {
	if r.state != StateRunning {
		return false
	}
	r.cancelled = true
	r.state = StateCancelling
	close(r.cancelCh)
	r.emitLocked(r.eventLocked(EventState))
	return true
}

// Reset clears recipients, stats and log. It fails while a loop is active.
func (r *Runner) Reset() error {
	r.mu.Lock()
	if r.state.Active() {
		r.mu.Unlock()
		return appErrors.ErrCampaignInProgress
	}
	changed := r.state != StateIdle || len(r.entries) > 0
	r.recipients = nil
	r.stats = model.CampaignStats{}
	r.entries = nil
	r.position = -1
	r.cancelled = false
	r.state = StateIdle
	if changed {
		r.emitLocked(r.eventLocked(EventState))
	}
	r.mu.Unlock()

	r.flush()
	return nil
}

func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) Stats() model.CampaignStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Recipients returns a copy of the current campaign's recipient list.
func (r *Runner) Recipients() []model.Recipient {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Recipient, len(r.recipients))
	copy(out, r.recipients)
	return out
}

func (r *Runner) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]model.LogEntry, len(r.entries))
	copy(entries, r.entries)
	return Snapshot{
		RunID:     r.id,
		State:     r.state,
		Stats:     r.stats,
		Position:  r.position,
		Cancelled: r.cancelled && r.stats.Pending > 0,
		Log:       entries,
	}
}

func (r *Runner) loop(ctx context.Context, queue []model.Recipient, sender MessageSender, delay time.Duration, cancelCh <-chan struct{}, done chan struct{}) {
	defer close(done)

	// In-flight sends must finish even when ctx is cancelled mid-call.
	sendCtx := context.WithoutCancel(ctx)

	for i, rcpt := range queue {
		stop := r.shouldStop(ctx)
		r.flush()
		if stop {
			break
		}
		r.dispatchOne(sendCtx, i, rcpt, sender)

		if i < len(queue)-1 && !r.isCancelled() {
			r.sleep(ctx, delay, cancelCh)
		}
	}
	// Done must not close before the completed event reached every observer.
	r.waitDelivered(r.finish())
}

func (r *Runner) shouldStop(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelled {
		return true
	}
	if ctx.Err() != nil {
		r.cancelLocked()
		return true
	}
	return false
}

func (r *Runner) isCancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled
}

func (r *Runner) sleep(ctx context.Context, d time.Duration, cancelCh <-chan struct{}) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-cancelCh:
	case <-ctx.Done():
	}
}

// dispatchOne sends to one recipient and records the outcome before returning.
func (r *Runner) dispatchOne(ctx context.Context, position int, rcpt model.Recipient, sender MessageSender) model.Outcome {
	r.mu.Lock()
	r.position = position
	r.mu.Unlock()

	start := time.Now()
	var outcome model.Outcome
	if strings.TrimSpace(rcpt.Numero) == "" {
		outcome = model.Outcome{Detail: appErrors.ErrMissingPhoneNumber.Error()}
	} else {
		resp, err := r.send(ctx, rcpt, sender)
		outcome = classify(resp, err)
	}
	elapsed := time.Since(start)

	r.record(position, rcpt, outcome, elapsed)

	if outcome.Success {
		r.logger.Debug("message sent", zap.String("numero", rcpt.Numero), zap.String("message_id", outcome.MessageID))
	} else {
		r.logger.Warn("message failed", zap.Int("row", position+1), zap.String("numero", rcpt.Numero), zap.String("detail", outcome.Detail))
	}
	r.flush()
	return outcome
}

func (r *Runner) send(ctx context.Context, rcpt model.Recipient, sender MessageSender) (resp *model.SendResponse, err error) {
	defer func() {
		if p := recover(); p != nil {
			resp = nil
			err = fmt.Errorf("sender panic: %v", p)
		}
	}()

	req := model.SendRequest{
		Destination:  rcpt.Numero,
		Credentials:  r.settings.Credentials,
		TemplateName: r.settings.TemplateName,
		Language:     r.settings.Language,
		Variables:    append([]string(nil), rcpt.Variables...),
	}
	return sender.Send(ctx, req)
}

// classify: success needs a clean transport AND an application-level success status.
func classify(resp *model.SendResponse, err error) model.Outcome {
	if err == nil && resp != nil && resp.OK && resp.ApplicationStatus == model.ApplicationStatusSuccess {
		return model.Outcome{Success: true, MessageID: resp.ID}
	}

	detail := "unknown error"
	switch {
	case resp != nil && resp.ErrorMessage != "":
		detail = resp.ErrorMessage
	case err != nil:
		detail = err.Error()
	}
	return model.Outcome{Detail: detail}
}

func (r *Runner) record(position int, rcpt model.Recipient, outcome model.Outcome, elapsed time.Duration) {
	var entry model.LogEntry
	now := r.now()
	switch {
	case outcome.Success:
		id := outcome.MessageID
		if id == "" {
			id = "N/A"
		}
		entry = model.NewLogEntry(now, model.LevelSuccess, fmt.Sprintf("%s - sent (ID: %s)", rcpt.Numero, id))
	case strings.TrimSpace(rcpt.Numero) == "":
		entry = model.NewLogEntry(now, model.LevelError, fmt.Sprintf("Row %d: %s", position+1, outcome.Detail))
	default:
		entry = model.NewLogEntry(now, model.LevelError, fmt.Sprintf("%s - error: %s", rcpt.Numero, outcome.Detail))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if outcome.Success {
		r.stats.Success++
	} else {
		r.stats.Failed++
	}
	r.stats.Pending--
	r.entries = append(r.entries, entry)

	ev := r.eventLocked(EventRecipient)
	ev.Position = position
	ev.Recipient = &rcpt
	ev.Outcome = &outcome
	ev.Entry = &entry
	ev.Elapsed = elapsed
	r.emitLocked(ev)
}

// finish closes the run and returns the Seq of its completed event.
func (r *Runner) finish() uint64 {
	r.mu.Lock()
	cancelled := r.cancelled && r.stats.Pending > 0
	if cancelled {
		r.entries = append(r.entries, model.NewLogEntry(r.now(), model.LevelWarning, "Campaign cancelled by user"))
	} else {
		r.entries = append(r.entries, model.NewLogEntry(r.now(), model.LevelSuccess, "Campaign completed"))
	}
	r.state = StateCompleted
	r.emitLocked(r.eventLocked(EventCompleted))
	seq := r.seq
	stats := r.stats
	r.mu.Unlock()

	r.logger.Info("campaign finished",
		zap.Bool("cancelled", cancelled),
		zap.Int("success", stats.Success),
		zap.Int("failed", stats.Failed),
		zap.Int("pending", stats.Pending),
	)
	r.flush()
	return seq
}

func (r *Runner) eventLocked(t EventType) Event {
	return Event{
		Type:      t,
		RunID:     r.id,
		State:     r.state,
		Stats:     r.stats,
		Position:  r.position,
		Cancelled: r.cancelled && r.stats.Pending > 0,
		At:        r.now(),
	}
}
