package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-otp-onboarding/internal/domain"
)

const maxBodyBytes = 1 << 16

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message  string `json:"message,omitempty"`
	Redirect string `json:"redirect,omitempty"`
	Error    string `json:"error,omitempty"`
}

// VerifyEnvelope wraps /otp responses. NewUser is a pointer so that it is
// present in success responses and absent from failures.
type VerifyEnvelope struct {
	Valid    bool   `json:"valid"`
	Token    string `json:"token,omitempty"`
	NewUser  *bool  `json:"newUser,omitempty"`
	UserID   string `json:"userId,omitempty"`
	Redirect string `json:"redirect,omitempty"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// decodeJSON reads a single JSON object from the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// clientMessage strips the trailing sentinel from a wrapped domain error.
func clientMessage(err error, sentinel error) string {
	return strings.TrimSuffix(err.Error(), ": "+sentinel.Error())
}

// statusFor maps domain sentinels to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrTooManyRequests):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// httpError writes err as a JSON error. Server errors are reported with
// internalMsg so infrastructure details never reach the client.
func httpError(w http.ResponseWriter, err error, internalMsg string) {
	status := statusFor(err)
	switch status {
	case http.StatusBadRequest:
		writeError(w, status, clientMessage(err, domain.ErrBadRequest))
	case http.StatusNotFound:
		writeError(w, status, "User not found")
	case http.StatusConflict:
		writeError(w, status, "Email already in use")
	case http.StatusInternalServerError:
		writeError(w, status, internalMsg)
	default:
		writeError(w, status, http.StatusText(status))
	}
}
