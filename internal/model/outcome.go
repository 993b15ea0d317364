// internal/model/outcome.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// ApplicationStatusSuccess is the status the messaging gateway reports for an accepted message.
const ApplicationStatusSuccess = "success"

type Credentials struct {
	Token   string `json:"-"`
	PhoneID string `json:"phone_id"`
	WabaID  string `json:"waba_id,omitempty"`
}

type SendRequest struct {
	Destination  string
	Credentials  Credentials
	TemplateName string
	Language     string
	Variables    []string
}

type SendResponse struct {
	OK                bool
	ApplicationStatus string
	ID                string
	ErrorMessage      string
}

// Outcome is the classified result of one dispatch.
type Outcome struct {
	Success   bool   `json:"success"`
	Detail    string `json:"detail,omitempty"`
	MessageID string `json:"message_id,omitempty"`
}

const (
	OutcomeStatusSent   = "sent"
	OutcomeStatusFailed = "failed"
)

// OutcomeRecord is what gets persisted for every dispatched recipient.
type OutcomeRecord struct {
	RunID     uuid.UUID `db:"run_id" json:"run_id"`
	Position  int       `db:"position" json:"position"`
	Numero    string    `db:"numero" json:"numero"`
	Status    string    `db:"status" json:"status"` // sent, failed
	MessageID string    `db:"message_id" json:"message_id,omitempty"`
	Detail    string    `db:"detail" json:"detail,omitempty"`
	At        time.Time `db:"at" json:"at"`
}

func NewOutcomeRecord(runID uuid.UUID, position int, r Recipient, o Outcome, at time.Time) OutcomeRecord {
	status := OutcomeStatusFailed
	if o.Success {
		status = OutcomeStatusSent
	}
	return OutcomeRecord{
		RunID:     runID,
		Position:  position,
		Numero:    r.Numero,
		Status:    status,
		MessageID: o.MessageID,
		Detail:    o.Detail,
		At:        at,
	}
}
