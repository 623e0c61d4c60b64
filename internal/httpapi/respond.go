package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/septivank/meter-field-ops/internal/apperror"
	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusFor maps an error onto an HTTP status
func statusFor(err error) int {
	var importErr *apperror.ImportError
	var storeErr *apperror.StoreError

	switch {
	case errors.Is(err, apperror.ErrDeviceLocked):
		return http.StatusForbidden
	case apperror.IsAuthFailure(err):
		return http.StatusUnauthorized
	case errors.Is(err, apperror.ErrCutoffActive):
		return http.StatusLocked
	case errors.Is(err, apperror.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, apperror.ErrNothingToResume), errors.Is(err, apperror.ErrDeviceAlreadyBound):
		return http.StatusConflict
	case apperror.IsClientError(err):
		return http.StatusBadRequest
	case errors.As(err, &importErr), errors.As(err, &storeErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeError logs err and answers with its user-facing message
func writeError(w http.ResponseWriter, logger *zap.Logger, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(msg, zap.Error(err), zap.Int("status", status))
	} else {
		logger.Warn(msg, zap.Error(err), zap.Int("status", status))
	}
	writeMessage(w, status, apperror.Message(err))
}
