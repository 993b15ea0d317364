package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/unclebandit/wsp-bulk-sender/internal/campaign"
	"github.com/unclebandit/wsp-bulk-sender/internal/model"
	"github.com/unclebandit/wsp-bulk-sender/internal/recipients"
)

// View is the campaign panel payload. The log is newest-first.
type View struct {
	RunID     uuid.UUID           `json:"run_id"`
	State     campaign.State      `json:"state"`
	Stats     model.CampaignStats `json:"stats"`
	Progress  float64             `json:"progress"`
	Position  int                 `json:"position"`
	Cancelled bool                `json:"cancelled"`
	Log       []model.LogEntry    `json:"log"`
	Staged    *recipients.Preview `json:"staged,omitempty"`
}

func NewView(snap campaign.Snapshot) View {
	return View{
		RunID:     snap.RunID,
		State:     snap.State,
		Stats:     snap.Stats,
		Progress:  snap.Stats.Progress(),
		Position:  snap.Position,
		Cancelled: snap.Cancelled,
		Log:       model.NewestFirst(snap.Log),
	}
}

// View returns the current campaign with a preview of the staged file.
// previewRows <= 0 uses the configured preview size.
func (s *CampaignService) View(previewRows int) View {
	v := NewView(s.Snapshot())
	v.Staged = s.Staged(previewRows)
	return v
}

// LastStart returns the settings of the most recent campaign so the panel can
// pre-fill its form. Before any run in this process it falls back to the latest
// audit row, then to the configured defaults.
func (s *CampaignService) LastStart(ctx context.Context) (StartRequest, error) {
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()
	if last != nil {
		return *last, nil
	}

	req := StartRequest{
		TemplateName: s.Settings.DefaultTemplate,
		Language:     s.Settings.DefaultLanguage,
	}
	if s.RunRepo == nil {
		return req, nil
	}
	runs, _, err := s.RunRepo.ListRuns(ctx, 0, 1, "")
	if err != nil {
		return req, err
	}
	if len(runs) > 0 {
		req.ChannelID = runs[0].ChannelID
		req.Title = runs[0].Title
		req.TemplateName = runs[0].TemplateName
		req.Language = runs[0].Language
	}
	return req, nil
}
