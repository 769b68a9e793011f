package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/edge-rewards/internal/domain"
)

const msgInternal = "Internal server error"

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Success bool   `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SessionEnvelope wraps a captcha session grant.
type SessionEnvelope struct {
	Success      bool   `json:"success"`
	SessionToken string `json:"sessionToken"`
}

// RegisterEnvelope wraps a successful registration.
type RegisterEnvelope struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	VerificationID string `json:"verificationId"`
}

// CampaignEnvelope is the public view of an active campaign.
type CampaignEnvelope struct {
	USDAmount           string `json:"usdAmount"`
	CurrencyDisplayName string `json:"currencyDisplayName"`
}

// ConfirmEnvelope wraps confirmation and payout re-drive results.
type ConfirmEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Delayed bool   `json:"delayed,omitempty"`
}

// ParkedClaimsEnvelope lists claims awaiting operator action.
type ParkedClaimsEnvelope struct {
	Count  int            `json:"count"`
	Claims []domain.Claim `json:"claims"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// writeServiceError maps a service error to its status and user-facing message.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeError(w, status, msg)
}

// statusFor maps domain error kinds to HTTP status codes. Messages of
// *domain.Error values are shown as-is; anything else is hidden behind a
// generic message.
func statusFor(err error) (int, string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConcurrentUpdate):
		return http.StatusConflict, "The record changed while processing your request. Please retry."
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrGone):
		status = http.StatusGone
	case errors.Is(err, domain.ErrInternal):
	default:
		return status, msgInternal
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return status, de.Message
	}
	return status, http.StatusText(status)
}
