package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"musicstore-backend/internal/domain"
	"musicstore-backend/internal/logger"
)

// Envelope is the body of every API response
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// WriteJSON writes a JSON response with a specific status code
func WriteJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	WriteJSON(w, statusCode, Envelope{Success: true, Data: data})
}

func writeFailure(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	WriteJSON(w, statusCode, Envelope{Success: false, Message: message, Data: data})
}

// errorResponder maps service errors onto status codes. Internal details are only exposed
// outside production.
type errorResponder struct {
	exposeInternal bool
}

func statusFor(err error) int {
	switch domain.ErrorType(err) {
	case domain.ErrorTypeValidation:
		return http.StatusBadRequest
	case domain.ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case domain.ErrorTypeForbidden:
		return http.StatusForbidden
	case domain.ErrorTypeNotFound:
		return http.StatusNotFound
	case domain.ErrorTypeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (e errorResponder) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status != http.StatusInternalServerError {
		var appErr *domain.AppError
		message := err.Error()
		if errors.As(err, &appErr) {
			message = appErr.Message
		}
		writeFailure(w, status, message, nil)
		return
	}

	logger.ErrorContext(r.Context(), "Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	var data interface{}
	if e.exposeInternal {
		data = map[string]string{"error": err.Error()}
	}
	writeFailure(w, status, "internal server error", data)
}
