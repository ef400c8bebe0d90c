package handler

import (
	"net/http"

	"github.com/go-otp-onboarding/internal/application/user"
	"github.com/go-otp-onboarding/internal/domain"
	"github.com/go-otp-onboarding/internal/pkg/validate"
	"github.com/go-otp-onboarding/internal/transport/http/middleware"
)

// UserHandler handles profile completion and the current-user endpoints.
type UserHandler struct {
	svc user.Service
}

func NewUserHandler(svc user.Service) *UserHandler { return &UserHandler{svc: svc} }

func (h *UserHandler) SetEmail(w http.ResponseWriter, r *http.Request) {
	var req domain.SetEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.SetEmail(r.Context(), req.UserID, req.Email); err != nil {
		httpError(w, err, "Failed to update email")
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Email updated successfully", Redirect: "/name"})
}

func (h *UserHandler) SetName(w http.ResponseWriter, r *http.Request) {
	var req domain.SetNameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.SetName(r.Context(), req.PhoneNumber, req.FirstName, req.LastName); err != nil {
		httpError(w, err, "Failed to update name")
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Name updated"})
}

// Me returns the user identified by the bearer token.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	u, err := h.svc.Get(r.Context(), claims.UserID)
	if err != nil {
		httpError(w, err, "Failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UserHandler) Protected(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "This is a protected route"})
}
