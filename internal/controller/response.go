// internal/controller/response.go
package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	appErrors "github.com/ewynk/mail-backend/internal/errors"
)

// UserHeader carries the id of the authenticated user. Authentication itself
// happens upstream of this service.
const UserHeader = "X-User-ID"

// ErrorResponse is the error envelope of every endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// JSON writes data with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func BadRequest(w http.ResponseWriter, message string) {
	JSON(w, http.StatusBadRequest, ErrorResponse{Error: message})
}

// StatusFor maps a service error to its HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, appErrors.ErrValidation):
		return http.StatusBadRequest
	case appErrors.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, appErrors.ErrAlreadySending):
		return http.StatusConflict
	case errors.Is(err, appErrors.ErrNoRecipients),
		errors.Is(err, appErrors.ErrCredentialsMissing),
		errors.Is(err, appErrors.ErrInvalidTransition):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// Error writes err with the status StatusFor picks. Server errors are logged
// and reported under a generic message.
func Error(w http.ResponseWriter, log *zap.SugaredLogger, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		log.Errorw("request failed", "error", err)
		JSON(w, status, ErrorResponse{Error: "internal server error", Details: err.Error()})
		return
	}
	JSON(w, status, ErrorResponse{Error: err.Error()})
}

// Decode reads the JSON request body into dst. It writes a 400 and returns
// false when the body cannot be parsed.
func Decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		BadRequest(w, "invalid body")
		return false
	}
	return true
}

// UserID returns the caller's user id, writing a 400 when the header is absent.
func UserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.Header.Get(UserHeader))
	if id == "" {
		BadRequest(w, "missing "+UserHeader+" header")
		return "", false
	}
	return id, true
}

// QueryInt parses an integer query parameter, returning def when it is absent
// or malformed.
func QueryInt(r *http.Request, key string, def int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil {
		return v
	}
	return def
}
