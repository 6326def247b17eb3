package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"event-request-backend/internal/domain"
	"event-request-backend/internal/logger"
)

type errorBody struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Current domain.RequestStatus   `json:"current_status,omitempty"`
	Allowed []domain.RequestStatus `json:"allowed_statuses,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// writeError maps the engine's error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var (
		validation *domain.ValidationError
		notFound   *domain.NotFoundError
		denied     *domain.PermissionDeniedError
		invalid    *domain.InvalidTransitionError
	)
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: errorBody{
			Code: "validation_failed", Message: validation.Error(), Field: validation.Field,
		}})
	case errors.As(err, &notFound):
		writeErrorBody(w, http.StatusNotFound, "not_found", notFound.Error())
	case errors.As(err, &denied):
		writeErrorBody(w, http.StatusForbidden, "permission_denied", denied.Error())
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusConflict, errorResponse{Error: errorBody{
			Code: "invalid_transition", Message: invalid.Error(), Current: invalid.Current, Allowed: invalid.Allowed,
		}})
	default:
		logger.Error("Unhandled error serving request", "error", err)
		writeErrorBody(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

func writeErrorBody(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to encode response", "error", err)
	}
}

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return &domain.ValidationError{Field: "body", Message: "malformed JSON: " + err.Error()}
	}
	return nil
}
