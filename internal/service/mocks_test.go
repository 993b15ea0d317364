package service_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/wsp-bulk-sender/internal/errors"
	"github.com/unclebandit/wsp-bulk-sender/internal/model"
)

// Mock repositories
type MockChannelRepo struct {
	Channels map[string]model.Channel
}

func (m *MockChannelRepo) ListActive(ctx context.Context, canal string, statuses []string) ([]model.Channel, error) {
	allowed := map[string]bool{}
	for _, s := range statuses {
		allowed[s] = true
	}
	out := []model.Channel{}
	for _, c := range m.Channels {
		if c.Canal == canal && allowed[c.Status] {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CustomName < out[j].CustomName })
	return out, nil
}

func (m *MockChannelRepo) GetByNameID(ctx context.Context, nameID string) (*model.Channel, error) {
	c, ok := m.Channels[nameID]
	if !ok {
		return nil, appErrors.NewChannelNotFound(nameID)
	}
	return &c, nil
}

type MockRunRepo struct {
	mu       sync.Mutex
	runs     map[uuid.UUID]*model.CampaignRun
	outcomes map[uuid.UUID]map[int]model.OutcomeRecord
}

func NewMockRunRepo() *MockRunRepo {
	return &MockRunRepo{
		runs:     map[uuid.UUID]*model.CampaignRun{},
		outcomes: map[uuid.UUID]map[int]model.OutcomeRecord{},
	}
}

func (m *MockRunRepo) CreateRun(ctx context.Context, run *model.CampaignRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *run
	m.runs[run.ID] = &cp
	return nil
}

func (m *MockRunRepo) FinishRun(ctx context.Context, id uuid.UUID, status model.RunStatus, stats model.CampaignStats, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return appErrors.NewRunNotFound(id.String())
	}
	run.Status = status
	run.Success = stats.Success
	run.Failed = stats.Failed
	run.CompletedAt = &completedAt
	return nil
}

func (m *MockRunRepo) GetRun(ctx context.Context, id uuid.UUID) (*model.CampaignRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, appErrors.NewRunNotFound(id.String())
	}
	cp := *run
	return &cp, nil
}

func (m *MockRunRepo) ListRuns(ctx context.Context, offset, limit int, status string) ([]*model.CampaignRun, int, error) {
	return []*model.CampaignRun{}, 0, nil
}

func (m *MockRunRepo) RecordOutcome(ctx context.Context, rec model.OutcomeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes[rec.RunID] == nil {
		m.outcomes[rec.RunID] = map[int]model.OutcomeRecord{}
	}
	m.outcomes[rec.RunID][rec.Position] = rec
	return nil
}

func (m *MockRunRepo) ListOutcomes(ctx context.Context, runID uuid.UUID) ([]model.OutcomeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.OutcomeRecord{}
	for _, rec := range m.outcomes[runID] {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *MockRunRepo) GetRunStats(ctx context.Context, runID uuid.UUID) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := map[string]int{model.OutcomeStatusSent: 0, model.OutcomeStatusFailed: 0}
	for _, rec := range m.outcomes[runID] {
		stats[rec.Status]++
	}
	return stats, nil
}

type MockTemplates struct {
	GotWaba, GotToken string
}

func (m *MockTemplates) ListTemplates(ctx context.Context, wabaID, token string) ([]model.Template, error) {
	m.GotWaba, m.GotToken = wabaID, token
	return []model.Template{{Name: "servicio_suspendido", Status: "APPROVED", Language: "es"}}, nil
}
