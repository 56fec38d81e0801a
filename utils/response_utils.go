package utils

import (
	"encoding/json"
	"log/slog"
	"net/http"

	apierrors "github.com/terrahaven/api-server-go/pkg/errors"
)

// RespondWithError sends an error response
func RespondWithError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResponse := map[string]interface{}{
		"error": message,
		"code":  http.StatusText(statusCode),
	}

	if err := json.NewEncoder(w).Encode(errorResponse); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode success response", "error", err)
	}
}

// RespondWithAPIError maps a service error onto the wire. APIErrors carry
// their own HTTP status; anything else is surfaced as a 500.
func RespondWithAPIError(w http.ResponseWriter, err error) {
	if apiErr := apierrors.GetAPIError(err); apiErr != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(apiErr.HTTPStatus)
		if encodeErr := json.NewEncoder(w).Encode(apierrors.NewErrorResponse(apiErr)); encodeErr != nil {
			slog.Error("Failed to encode error response", "error", encodeErr)
		}
		return
	}
	RespondWithError(w, http.StatusInternalServerError, err.Error())
}

// PanicRecoveryMiddleware provides panic recovery for HTTP handlers
func PanicRecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("Handler panicked", "error", err, "path", r.URL.Path)
				RespondWithError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
