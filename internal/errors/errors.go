// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

// Usage errors: returned before any campaign state changes.
var (
	ErrEmptyCampaign      = errors.New("campaign has no recipients")
	ErrAlreadyRunning     = errors.New("a campaign is already running")
	ErrCampaignInProgress = errors.New("campaign in progress")
)

// ErrMissingPhoneNumber marks a recipient that reached dispatch without a number.
// It is recorded as a failed outcome, never returned to callers.
var ErrMissingPhoneNumber = errors.New("missing phone number")

// ValidationError reports a bad request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func NewValidation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

type ErrChannelNotFound struct {
	ChannelID string
}

func (e *ErrChannelNotFound) Error() string {
	return fmt.Sprintf("channel %q not found", e.ChannelID)
}

// Helper constructor
func NewChannelNotFound(id string) error {
	return &ErrChannelNotFound{ChannelID: id}
}

type ErrRunNotFound struct {
	RunID string
}

func (e *ErrRunNotFound) Error() string {
	return fmt.Sprintf("campaign run %s not found", e.RunID)
}

func NewRunNotFound(id string) error {
	return &ErrRunNotFound{RunID: id}
}

type ErrTemplateNotFound struct {
	Name string
}

func (e *ErrTemplateNotFound) Error() string {
	return fmt.Sprintf("template %q not found or not approved", e.Name)
}

func NewTemplateNotFound(name string) error {
	return &ErrTemplateNotFound{Name: name}
}

// IsNotFound reports whether err is one of the not-found errors.
func IsNotFound(err error) bool {
	var ch *ErrChannelNotFound
	var run *ErrRunNotFound
	var tpl *ErrTemplateNotFound
	return errors.As(err, &ch) || errors.As(err, &run) || errors.As(err, &tpl)
}
