package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-verify-api/internal/domain"
)

// MessageEnvelope is the generic response wrapper. Kind is the stable
// machine-readable failure kind; Error carries the human message.
type MessageEnvelope struct {
	Message           string `json:"message,omitempty"`
	Error             string `json:"error,omitempty"`
	Kind              string `json:"kind,omitempty"`
	ExpiresInSeconds  int    `json:"expires_in,omitempty"`
	RetryAfterSeconds int    `json:"retry_after,omitempty"`
	RemainingAttempts *int   `json:"remaining_attempts,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// httpError maps domain failure kinds to HTTP responses. Anything
// unrecognized collapses to a generic 500 with no internal detail.
func httpError(w http.ResponseWriter, err error) {
	var rle *domain.RateLimitedError
	if errors.As(err, &rle) {
		writeJSON(w, http.StatusTooManyRequests, MessageEnvelope{
			Error:             "too many requests, please try again later",
			Kind:              "rate_limited",
			RetryAfterSeconds: rle.RetryAfterSeconds,
		})
		return
	}
	var ice *domain.InvalidCodeError
	if errors.As(err, &ice) {
		remaining := ice.RemainingAttempts
		writeJSON(w, http.StatusUnauthorized, MessageEnvelope{
			Error:             "invalid verification code",
			Kind:              "invalid_code",
			RemainingAttempts: &remaining,
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrMalformedCode):
		writeJSON(w, http.StatusBadRequest, MessageEnvelope{Error: "verification code must be 6 digits", Kind: "malformed_code"})
	case errors.Is(err, domain.ErrMalformedToken):
		writeJSON(w, http.StatusBadRequest, MessageEnvelope{Error: "invalid token format", Kind: "malformed_token"})
	case errors.Is(err, domain.ErrWeakPassword):
		writeJSON(w, http.StatusBadRequest, MessageEnvelope{
			Error: "password must be at least 8 characters long and contain at least one uppercase letter, one lowercase letter, one number, and one special character",
			Kind:  "weak_password",
		})
	case errors.Is(err, domain.ErrNoActiveCredential):
		writeJSON(w, http.StatusUnauthorized, MessageEnvelope{Error: "no verification code found, please request a new one", Kind: "no_active_credential"})
	case errors.Is(err, domain.ErrCredentialExpired):
		writeJSON(w, http.StatusUnauthorized, MessageEnvelope{Error: "verification code has expired, please request a new one", Kind: "expired"})
	case errors.Is(err, domain.ErrLockedOut):
		writeJSON(w, http.StatusUnauthorized, MessageEnvelope{Error: "maximum attempts exceeded, please request a new code", Kind: "locked_out"})
	case errors.Is(err, domain.ErrTokenUsed):
		writeJSON(w, http.StatusBadRequest, MessageEnvelope{Error: "token has already been used", Kind: "token_already_used"})
	case errors.Is(err, domain.ErrTokenExpired):
		writeJSON(w, http.StatusBadRequest, MessageEnvelope{Error: "token has expired", Kind: "token_expired"})
	case errors.Is(err, domain.ErrTokenInvalid):
		writeJSON(w, http.StatusBadRequest, MessageEnvelope{Error: "invalid or expired token", Kind: "invalid_or_expired_token"})
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
