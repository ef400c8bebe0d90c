package handler

import (
	"errors"
	"net/http"

	"github.com/go-otp-onboarding/internal/application/auth"
	"github.com/go-otp-onboarding/internal/domain"
	"github.com/go-otp-onboarding/internal/pkg/validate"
)

// OTPHandler handles the phone login flow: code dispatch and verification.
type OTPHandler struct {
	svc auth.Service
}

func NewOTPHandler(svc auth.Service) *OTPHandler {
	return &OTPHandler{svc: svc}
}

// RequestOTP sends a code to the posted number and returns the provider's
// acknowledgment unchanged.
func (h *OTPHandler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var req domain.RequestOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	dispatch, err := h.svc.RequestOTP(r.Context(), req.Number)
	if err != nil {
		httpError(w, err, "Failed to send OTP")
		return
	}
	writeJSON(w, http.StatusOK, dispatch)
}

func (h *OTPHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, VerifyEnvelope{Error: "invalid request body"})
		return
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, VerifyEnvelope{Error: err.Error()})
		return
	}
	res, err := h.svc.VerifyOTP(r.Context(), req.UserNumber, req.OTP)
	switch {
	case errors.Is(err, domain.ErrBadRequest):
		writeJSON(w, http.StatusBadRequest, VerifyEnvelope{Error: clientMessage(err, domain.ErrBadRequest)})
		return
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, VerifyEnvelope{Error: "Failed to verify OTP"})
		return
	}
	if !res.Valid {
		writeJSON(w, http.StatusBadRequest, VerifyEnvelope{Message: "Expired or invalid OTP"})
		return
	}
	newUser := res.NewUser
	if newUser {
		writeJSON(w, http.StatusOK, VerifyEnvelope{
			Valid:    true,
			NewUser:  &newUser,
			UserID:   res.UserID,
			Redirect: res.Redirect,
			Message:  "User created, proceed to email",
		})
		return
	}
	writeJSON(w, http.StatusOK, VerifyEnvelope{
		Valid:    true,
		Token:    res.Token,
		NewUser:  &newUser,
		Redirect: res.Redirect,
		Message:  "Welcome back",
	})
}
