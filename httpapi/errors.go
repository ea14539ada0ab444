package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/civicpulse/authcore"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error             string `json:"error"`
	Message           string `json:"message"`
	RemainingAttempts *int   `json:"remainingAttempts,omitempty"`
	RetryAfterSeconds int    `json:"retryAfterSeconds,omitempty"`
}

// StatusFor maps an Engine error onto an HTTP status.
func StatusFor(err error) int {
	switch authcore.ErrorCode(err) {
	case "":
		return http.StatusOK
	case authcore.CodeNotFound:
		return http.StatusNotFound
	case authcore.CodeRateLimited:
		return http.StatusTooManyRequests
	case authcore.CodeExpired, authcore.CodeInvalidCode, authcore.CodeAttemptsExhausted, authcore.CodeValidation:
		return http.StatusBadRequest
	case authcore.CodeAccountLocked:
		return http.StatusLocked
	case authcore.CodeInvalidCredentials:
		return http.StatusUnauthorized
	case authcore.CodeUnverified:
		return http.StatusForbidden
	case authcore.CodeAlreadyVerified, authcore.CodeConflict:
		return http.StatusConflict
	case authcore.CodeDeliveryFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// messageFor returns a client-safe message. Infrastructure details never
// leave the process.
func messageFor(err error) string {
	switch authcore.ErrorCode(err) {
	case authcore.CodeStoreUnavailable, authcore.CodeInternal:
		return "internal error"
	case authcore.CodeDeliveryFailed:
		return "could not deliver the code, try again later"
	case authcore.CodeInvalidCredentials:
		return "invalid credentials"
	case authcore.CodeNotFound:
		return "not found"
	}
	return err.Error()
}

func writeError(w http.ResponseWriter, err error) {
	body := ErrorBody{
		Error:   authcore.ErrorCode(err),
		Message: messageFor(err),
	}

	var (
		limited  *authcore.RateLimitError
		locked   *authcore.LockedError
		mismatch *authcore.CodeMismatchError
	)
	switch {
	case errors.As(err, &limited):
		body.RetryAfterSeconds = limited.WaitSeconds()
		w.Header().Set("Retry-After", strconv.Itoa(body.RetryAfterSeconds))
	case errors.As(err, &locked):
		w.Header().Set("Retry-After", locked.Until.UTC().Format(http.TimeFormat))
	case errors.As(err, &mismatch):
		left := mismatch.Remaining
		body.RemainingAttempts = &left
	}
	writeJSON(w, StatusFor(err), body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}
