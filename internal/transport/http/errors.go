package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"parcels/internal/domain"
	obsmw "parcels/internal/observability/middleware"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// classify maps a service error to its status and envelope code. Token
// outcomes are checked first because they are not wrapped in a category.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidCode):
		return http.StatusBadRequest, "invalid_code"
	case errors.Is(err, domain.ErrTokenRevoked):
		return http.StatusConflict, "revoked"
	case errors.Is(err, domain.ErrTokenUsed):
		return http.StatusConflict, "already_used"
	case errors.Is(err, domain.ErrTokenExpired):
		return http.StatusGone, "expired"
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	}
	return http.StatusInternalServerError, "server_error"
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	msg := err.Error()
	switch {
	case status == http.StatusInternalServerError:
		obsmw.Logger(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
		msg = "internal error"
	case errors.Is(err, domain.ErrUnauthorized):
		// Never say which part of a credential was wrong.
		msg = "unauthorized"
	}
	writeErrorCode(w, status, code, msg)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "validation", "malformed request body")
		return false
	}
	return true
}
