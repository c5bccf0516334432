package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"go-image-playground/internal/model"
	"go-image-playground/pkg/apierror"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// writeError maps internal errors onto the flat {"message": ...} wire shape.
// Upstream and token failures intentionally collapse to a generic message;
// their detail only goes to the log.
func writeError(w http.ResponseWriter, err error) {
	var apiErr *apierror.APIError
	switch {
	case errors.As(err, &apiErr):
		writeMessage(w, apiErr.HTTPStatus, apiErr.Message)
	case errors.Is(err, model.ErrTemplateNotFound):
		writeMessage(w, http.StatusNotFound, "Template not found")
	case errors.Is(err, model.ErrInvalidCredentials):
		writeMessage(w, http.StatusUnauthorized, "Invalid username or password")
	case errors.Is(err, model.ErrUpstreamFailed), errors.Is(err, model.ErrTokenUnavailable):
		writeMessage(w, http.StatusInternalServerError, "Image edit failed")
	default:
		slog.Error("unhandled error in writeError", "error", err.Error())
		writeMessage(w, http.StatusInternalServerError, "Unexpected server error")
	}
}
