// internal/service/campaign_service.go
package service

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/unclebandit/wsp-bulk-sender/internal/campaign"
	"github.com/unclebandit/wsp-bulk-sender/internal/config"
	appErrors "github.com/unclebandit/wsp-bulk-sender/internal/errors"
	"github.com/unclebandit/wsp-bulk-sender/internal/model"
	"github.com/unclebandit/wsp-bulk-sender/internal/queue"
	"github.com/unclebandit/wsp-bulk-sender/internal/recipients"
	"github.com/unclebandit/wsp-bulk-sender/internal/repository"
)

// TemplateLister lists the approved templates of a business account.
type TemplateLister interface {
	ListTemplates(ctx context.Context, wabaID, token string) ([]model.Template, error)
}

// CampaignService drives the single campaign of the dashboard and keeps its audit trail.
type CampaignService struct {
	ChannelRepo repository.ChannelRepositoryInterface
	RunRepo     repository.RunRepositoryInterface
	Templates   TemplateLister
	Sender      campaign.MessageSender
	Queue       queue.Queue
	Topic       string
	// Observers are attached to every runner the service creates.
	Observers []campaign.Observer
	Settings  config.CampaignConfig
	Logger    *zap.Logger

	mu     sync.Mutex
	runner *campaign.Runner
	staged *recipients.Batch
	last   *StartRequest

	subMu       sync.RWMutex
	subscribers map[chan campaign.Event]struct{}

	wg sync.WaitGroup
}

type StartRequest struct {
	ChannelID    string `json:"channel_id"`
	Title        string `json:"title"`
	TemplateName string `json:"template_name"`
	Language     string `json:"language"`
	// DelayMS overrides the configured pause between recipients when positive.
	DelayMS int `json:"delay_ms"`
}

type RunDetails struct {
	model.CampaignRun
	Stats    map[string]int        `json:"stats"`
	Outcomes []model.OutcomeRecord `json:"outcomes"`
}

func (s *CampaignService) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *CampaignService) topic() string {
	if s.Topic == "" {
		return queue.OutcomesTopic
	}
	return s.Topic
}

// ====================== Channels & templates ======================

func (s *CampaignService) ListChannels(ctx context.Context) ([]model.Channel, error) {
	return s.ChannelRepo.ListActive(ctx, s.Settings.ChannelKind, s.Settings.ChannelStatuses)
}

func (s *CampaignService) ListTemplates(ctx context.Context, channelID string) ([]model.Template, error) {
	ch, err := s.ChannelRepo.GetByNameID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	creds := ch.Credentials()
	if creds.WabaID == "" || creds.Token == "" {
		return nil, appErrors.NewValidation("channel_id", "channel has no business account id or token")
	}
	return s.Templates.ListTemplates(ctx, creds.WabaID, creds.Token)
}

// ====================== Recipients ======================

// StageRecipients parses an uploaded file and keeps it for the next StartCampaign.
func (s *CampaignService) StageRecipients(r io.Reader, previewRows int) (*recipients.Preview, error) {
	batch, err := recipients.Parse(r)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeLocked() {
		return nil, appErrors.ErrCampaignInProgress
	}
	s.staged = batch

	if previewRows <= 0 {
		previewRows = s.Settings.PreviewRows
	}
	p := batch.Preview(previewRows)
	s.logger().Info("recipients staged", zap.Int("recipients", p.Total), zap.Int("dropped", p.Dropped))
	return &p, nil
}

func (s *CampaignService) ClearRecipients() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeLocked() {
		return appErrors.ErrCampaignInProgress
	}
	s.staged = nil
	return nil
}

func (s *CampaignService) activeLocked() bool {
	return s.runner != nil && s.runner.State().Active()
}

// ====================== Campaign control ======================

// StartCampaign launches a new run over the staged recipients and returns immediately.
func (s *CampaignService) StartCampaign(ctx context.Context, req StartRequest) (*campaign.Snapshot, error) {
	req.ChannelID = strings.TrimSpace(req.ChannelID)
	req.Title = strings.TrimSpace(req.Title)
	req.TemplateName = strings.TrimSpace(req.TemplateName)
	if req.ChannelID == "" {
		return nil, appErrors.NewValidation("channel_id", "select a sending channel")
	}
	if req.Title == "" {
		return nil, appErrors.NewValidation("title", "campaign title is required")
	}
	if req.DelayMS < 0 {
		return nil, appErrors.NewValidation("delay_ms", "must not be negative")
	}
	if req.TemplateName == "" {
		req.TemplateName = s.Settings.DefaultTemplate
	}
	if req.Language == "" {
		req.Language = s.Settings.DefaultLanguage
	}
	delay := s.Settings.Delay()
	if req.DelayMS > 0 {
		delay = time.Duration(req.DelayMS) * time.Millisecond
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeLocked() {
		return nil, appErrors.ErrAlreadyRunning
	}
	if s.staged == nil || len(s.staged.Recipients) == 0 {
		return nil, appErrors.ErrEmptyCampaign
	}

	ch, err := s.ChannelRepo.GetByNameID(ctx, req.ChannelID)
	if err != nil {
		return nil, err
	}
	creds := ch.Credentials()
	if creds.Token == "" || creds.PhoneID == "" {
		return nil, appErrors.NewValidation("channel_id", "channel has no token or phone id")
	}

	runner := campaign.NewRunner(campaign.Settings{
		Credentials:  creds,
		TemplateName: req.TemplateName,
		Language:     req.Language,
	}, campaign.WithLogger(s.logger()))

	run := &model.CampaignRun{
		ID:           runner.ID(),
		ChannelID:    ch.NameID,
		Title:        req.Title,
		TemplateName: req.TemplateName,
		Language:     req.Language,
		Status:       model.RunStatusRunning,
		Total:        len(s.staged.Recipients),
		StartedAt:    time.Now(),
	}
	if err := s.RunRepo.CreateRun(ctx, run); err != nil {
		return nil, err
	}

	runner.Subscribe(s.publishOutcome)
	for _, obs := range s.Observers {
		runner.Subscribe(obs)
	}
	runner.Subscribe(s.broadcast)

	// The run outlives the request that started it.
	if err := runner.Start(context.WithoutCancel(ctx), s.staged.Recipients, s.Sender, delay); err != nil {
		_ = s.RunRepo.FinishRun(ctx, run.ID, model.RunStatusCancelled, model.CampaignStats{Total: run.Total, Pending: run.Total}, time.Now())
		return nil, err
	}
	s.runner = runner
	last := req
	s.last = &last

	s.wg.Add(1)
	go s.awaitRun(runner)

	s.logger().Info("campaign launched",
		zap.String("run_id", run.ID.String()),
		zap.String("channel", ch.NameID),
		zap.String("title", req.Title))
	snap := runner.Snapshot()
	return &snap, nil
}

// publishOutcome forwards every dispatch result to the outcome topic.
func (s *CampaignService) publishOutcome(ev campaign.Event) {
	if ev.Type != campaign.EventRecipient || s.Queue == nil {
		return
	}
	rec := model.NewOutcomeRecord(ev.RunID, ev.Position, *ev.Recipient, *ev.Outcome, ev.At)
	if err := s.Queue.Publish(s.topic(), rec); err != nil {
		s.logger().Warn("failed to enqueue outcome",
			zap.String("run_id", ev.RunID.String()),
			zap.Int("position", ev.Position),
			zap.Error(err))
	}
}

// awaitRun closes the audit row once the loop has exited.
func (s *CampaignService) awaitRun(runner *campaign.Runner) {
	defer s.wg.Done()
	<-runner.Done()

	snap := runner.Snapshot()
	status := model.RunStatusCompleted
	if snap.Cancelled {
		status = model.RunStatusCancelled
	}
	if err := s.RunRepo.FinishRun(context.Background(), runner.ID(), status, snap.Stats, time.Now()); err != nil {
		s.logger().Error("failed to close campaign run", zap.String("run_id", runner.ID().String()), zap.Error(err))
	}
}

// CancelCampaign asks the current run to stop after the in-flight recipient.
func (s *CampaignService) CancelCampaign() campaign.Snapshot {
	s.mu.Lock()
	runner := s.runner
	s.mu.Unlock()

	if runner == nil {
		return idleSnapshot()
	}
	runner.Cancel()
	return runner.Snapshot()
}

// ResetCampaign discards the finished run and the staged file.
func (s *CampaignService) ResetCampaign() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runner != nil {
		if err := s.runner.Reset(); err != nil {
			return err
		}
	} else {
		s.broadcast(campaign.Event{Type: campaign.EventState, State: campaign.StateIdle, Position: -1, At: time.Now()})
	}
	s.runner = nil
	s.staged = nil
	return nil
}

func (s *CampaignService) Snapshot() campaign.Snapshot {
	s.mu.Lock()
	runner := s.runner
	s.mu.Unlock()

	if runner == nil {
		return idleSnapshot()
	}
	return runner.Snapshot()
}

// Staged returns a preview of the file waiting for StartCampaign, or nil.
func (s *CampaignService) Staged(rows int) *recipients.Preview {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staged == nil {
		return nil
	}
	if rows <= 0 {
		rows = s.Settings.PreviewRows
	}
	p := s.staged.Preview(rows)
	return &p
}

func (s *CampaignService) ExportLog(w io.Writer) error {
	return campaign.WriteLog(w, s.Snapshot().Log)
}

func idleSnapshot() campaign.Snapshot {
	return campaign.Snapshot{State: campaign.StateIdle, Position: -1, Log: []model.LogEntry{}}
}

// Shutdown cancels a running campaign and waits for it to be recorded.
func (s *CampaignService) Shutdown(ctx context.Context) error {
	s.CancelCampaign()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ====================== Progress stream ======================

// Subscribe returns a channel receiving every runner event. Slow readers miss events.
func (s *CampaignService) Subscribe() chan campaign.Event {
	ch := make(chan campaign.Event, 32)

	s.subMu.Lock()
	if s.subscribers == nil {
		s.subscribers = make(map[chan campaign.Event]struct{})
	}
	s.subscribers[ch] = struct{}{}
	s.subMu.Unlock()

	return ch
}

func (s *CampaignService) Unsubscribe(ch chan campaign.Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if _, ok := s.subscribers[ch]; ok {
		delete(s.subscribers, ch)
		close(ch)
	}
}

func (s *CampaignService) broadcast(ev campaign.Event) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// ====================== Audit ======================

// ListRuns fetches audit runs with pagination
func (s *CampaignService) ListRuns(ctx context.Context, page, pageSize int, status string) ([]model.CampaignRun, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.RunRepo.ListRuns(ctx, offset, pageSize, status)
	if err != nil {
		return nil, nil, err
	}

	runs := make([]model.CampaignRun, len(ptrs))
	for i, r := range ptrs {
		runs[i] = *r
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return runs, pagination, nil
}

func (s *CampaignService) GetRunDetails(ctx context.Context, id uuid.UUID) (*RunDetails, error) {
	run, err := s.RunRepo.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}

	stats, err := s.RunRepo.GetRunStats(ctx, id)
	if err != nil {
		return nil, err
	}
	stats["total"] = run.Total
	stats["pending"] = max(run.Total-stats[model.OutcomeStatusSent]-stats[model.OutcomeStatusFailed], 0)

	outcomes, err := s.RunRepo.ListOutcomes(ctx, id)
	if err != nil {
		return nil, err
	}

	return &RunDetails{CampaignRun: *run, Stats: stats, Outcomes: outcomes}, nil
}
