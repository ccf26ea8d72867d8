package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/logger"
	"github.com/utafrali/storefront/pkg/validator"
)

// ErrorBody is the envelope every error response is wrapped in.
type ErrorBody struct {
	Error *ErrorResponse `json:"error"`
}

// ErrorResponse describes one failed request.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// MessageResponse is the body of operations that only acknowledge success.
type MessageResponse struct {
	Message string `json:"message"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteMessage writes {"message": msg}.
func WriteMessage(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, MessageResponse{Message: msg})
}

// WriteError classifies err and writes the matching error envelope.
// Validation and decode failures become 400, AppErrors carry their own
// status, and anything unclassified is logged and answered with a fixed
// 500 message. The request-scoped logger is preferred over fallback.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}

	requestID := logger.CorrelationIDFromContext(r.Context())

	var valErr *validator.ValidationError
	var tooLarge *http.MaxBytesError
	var decErr *validator.DecodeError
	switch {
	case errors.As(err, &valErr):
		WriteJSON(w, http.StatusBadRequest, ErrorBody{Error: &ErrorResponse{
			Code:      "VALIDATION_ERROR",
			Message:   valErr.First(),
			Fields:    valErr.Fields(),
			RequestID: requestID,
		}})
		return
	case errors.As(err, &tooLarge):
		WriteJSON(w, http.StatusRequestEntityTooLarge, ErrorBody{Error: &ErrorResponse{
			Code:      "PAYLOAD_TOO_LARGE",
			Message:   fmt.Sprintf("request body must not exceed %d bytes", tooLarge.Limit),
			RequestID: requestID,
		}})
		return
	case errors.As(err, &decErr):
		WriteJSON(w, http.StatusBadRequest, ErrorBody{Error: &ErrorResponse{
			Code:      "INVALID_INPUT",
			Message:   decErr.Error(),
			RequestID: requestID,
		}})
		return
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Status >= http.StatusInternalServerError {
			l.ErrorContext(r.Context(), "request failed",
				slog.String("error", err.Error()),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
		}
		WriteJSON(w, appErr.Status, ErrorBody{
			Error: &ErrorResponse{Code: appErr.Code, Message: appErr.Message, RequestID: requestID},
		})
		return
	}

	status := apperrors.HTTPStatus(err)
	code := "INTERNAL_ERROR"
	message := "an internal error occurred"

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		code = "NOT_FOUND"
		message = "resource not found"
	case errors.Is(err, apperrors.ErrConflict):
		code = "CONFLICT"
		message = "resource was modified concurrently"
	case errors.Is(err, apperrors.ErrInvalidInput):
		code = "INVALID_INPUT"
		message = err.Error()
	}

	if status == http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "internal error",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, status, ErrorBody{
		Error: &ErrorResponse{Code: code, Message: message, RequestID: requestID},
	})
}
