package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-verify-api/internal/application/reset"
	"github.com/go-verify-api/internal/domain"
	"github.com/go-verify-api/internal/pkg/validate"
	"github.com/go-verify-api/internal/transport/http/middleware"
)

// resetRequestedMessage is returned for every reset request that is not rate
// limited, whether or not the email maps to an account. The response body must
// not reveal which of the two it was.
const resetRequestedMessage = "If an account exists with that email, a password reset link has been sent."

// PasswordResetHandler handles the public password reset flow endpoints.
type PasswordResetHandler struct {
	svc reset.Service
}

func NewPasswordResetHandler(svc reset.Service) *PasswordResetHandler {
	return &PasswordResetHandler{svc: svc}
}

func (h *PasswordResetHandler) Action(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "action") {
	case "request":
		var body struct {
			Email string `json:"email" validate:"required,email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := validate.Struct(&body); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		if err := h.svc.Request(r.Context(), body.Email, middleware.RealIP(r)); err != nil {
			var rle *domain.RateLimitedError
			if errors.As(err, &rle) {
				httpError(w, err)
				return
			}
			// Unknown email and internal failures collapse into the same
			// generic acknowledgement to keep the response enumeration safe.
		}
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: resetRequestedMessage})
	case "confirm":
		var body struct {
			Token    string `json:"token" validate:"required"`
			Password string `json:"password" validate:"required"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := validate.Struct(&body); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		if err := h.svc.Consume(r.Context(), body.Token, body.Password, middleware.RealIP(r)); err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "password has been reset"})
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}
