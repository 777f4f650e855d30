package api

import (
	"encoding/json"
	"net/http"

	"pcbooking/internal/domain"
	"pcbooking/internal/models"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

type errorResponse struct {
	Error    string               `json:"error"`
	Code     string               `json:"code"`
	Field    string               `json:"field,omitempty"`
	Conflict *models.ConflictInfo `json:"conflict,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeErrorMessage(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, errorResponse{Error: message, Code: code})
}

// writeError maps a core error onto a status code and error body. Unexpected
// errors are logged and reported without their cause.
func writeError(w http.ResponseWriter, logger *zerolog.Logger, err error) {
	statusCode, resp := errorBody(err)
	if statusCode >= http.StatusInternalServerError {
		logger.Error().Err(err).Int("status", statusCode).Msg("request failed")
	}
	writeJSON(w, statusCode, resp)
}

func errorBody(err error) (int, errorResponse) {
	var (
		validation *domain.ValidationError
		conflict   *domain.ConflictError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "validation", Field: validation.Field}
	case errors.As(err, &conflict):
		info := conflict.Blocking
		return http.StatusConflict, errorResponse{Error: err.Error(), Code: "conflict", Conflict: &info}
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "validation"}
	case errors.Is(err, domain.ErrPastDate):
		return http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "past_date"}
	case errors.Is(err, domain.ErrInvalidExtension):
		return http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "invalid_extension"}
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden, errorResponse{Error: err.Error(), Code: "unauthorized"}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, errorResponse{Error: err.Error(), Code: "not_found"}
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, errorResponse{Error: err.Error(), Code: "conflict"}
	case errors.Is(err, domain.ErrConcurrentModification):
		return http.StatusConflict, errorResponse{Error: err.Error(), Code: "concurrent_modification"}
	case errors.Is(err, domain.ErrTooManyAttempts):
		return http.StatusTooManyRequests, errorResponse{Error: err.Error(), Code: "too_many_attempts"}
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, errorResponse{Error: domain.ErrStoreUnavailable.Error(), Code: "unavailable"}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "internal error", Code: "internal"}
	}
}

func codeForStatus(statusCode int) string {
	switch statusCode {
	case http.StatusUnauthorized:
		return "unauthenticated"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	default:
		return "error"
	}
}
