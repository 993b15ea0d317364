// internal/model/campaign.go
package model

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusCancelled RunStatus = "cancelled"
)

// CampaignStats counts recipient outcomes for one run.
// Success + Failed + Pending == Total once a run has been initialized.
type CampaignStats struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Pending int `json:"pending"`
}

// Progress returns the processed share of the run in percent.
func (s CampaignStats) Progress() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Success+s.Failed) / float64(s.Total) * 100
}

// CampaignRun is the audit row of one campaign execution.
type CampaignRun struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	ChannelID    string     `db:"channel_id" json:"channel_id"`
	Title        string     `db:"title" json:"title"`
	TemplateName string     `db:"template_name" json:"template_name"`
	Language     string     `db:"language" json:"language"`
	Status       RunStatus  `db:"status" json:"status"`
	Total        int        `db:"total" json:"total"`
	Success      int        `db:"success" json:"success"`
	Failed       int        `db:"failed" json:"failed"`
	StartedAt    time.Time  `db:"started_at" json:"started_at"`
	CompletedAt  *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}
