package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-verify-api/internal/application/otp"
	"github.com/go-verify-api/internal/pkg/validate"
	"github.com/go-verify-api/internal/transport/http/middleware"
)

// VerificationHandler handles account verification flow endpoints.
type VerificationHandler struct {
	svc otp.Service
}

func NewVerificationHandler(svc otp.Service) *VerificationHandler {
	return &VerificationHandler{svc: svc}
}

func (h *VerificationHandler) Action(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	switch chi.URLParam(r, "action") {
	case "send", "resend":
		var body struct {
			Channel string `json:"channel" validate:"omitempty,oneof=email sms"`
		}
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
		}
		if err := validate.Struct(&body); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		result, err := h.svc.Issue(r.Context(), claims.UserID, body.Channel, middleware.RealIP(r))
		if err != nil {
			httpError(w, err)
			return
		}
		if result.AlreadyVerified {
			writeJSON(w, http.StatusOK, MessageEnvelope{Message: "account already verified"})
			return
		}
		writeJSON(w, http.StatusOK, MessageEnvelope{
			Message:          "verification code sent",
			ExpiresInSeconds: int(result.ExpiresIn.Seconds()),
		})
	case "validate-code":
		var body struct {
			OTP string `json:"otp" validate:"required,otp"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := validate.Struct(&body); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		if err := h.svc.Verify(r.Context(), claims.UserID, body.OTP, middleware.RealIP(r)); err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "account verified"})
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}
