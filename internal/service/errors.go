package service

import (
	"errors"
	"net/http"

	appErrors "github.com/unclebandit/wsp-bulk-sender/internal/errors"
	"github.com/unclebandit/wsp-bulk-sender/internal/recipients"
)

// IsUsageError reports whether err was caused by the caller rather than the system.
func IsUsageError(err error) bool {
	var v *appErrors.ValidationError
	return errors.As(err, &v) ||
		errors.Is(err, appErrors.ErrEmptyCampaign) ||
		errors.Is(err, recipients.ErrNoData) ||
		errors.Is(err, recipients.ErrMissingNumeroColumn) ||
		errors.Is(err, recipients.ErrNoValidRows)
}

// StatusCode maps service errors to HTTP status codes.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsUsageError(err):
		return http.StatusBadRequest
	case errors.Is(err, appErrors.ErrAlreadyRunning), errors.Is(err, appErrors.ErrCampaignInProgress):
		return http.StatusConflict
	case appErrors.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
