package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"suiviclient/internal/core"
	"suiviclient/internal/storage"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeServiceError maps application errors to API responses. Validation
// problems come back as 400 with their message, missing rows as 404,
// anything else as a generic 500 with the detail only logged.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case isValidationError(err):
		writeError(w, http.StatusBadRequest, "Données invalides: "+err.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "Prestation non trouvée")
	default:
		slog.ErrorContext(r.Context(), "Request failed",
			"error", err, "method", r.Method, "url", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "Erreur interne du serveur")
	}
}

func isValidationError(err error) bool {
	for _, sentinel := range []error{
		core.ErrEmptyClientName,
		core.ErrEmptyCategory,
		core.ErrEmptyProvider,
		core.ErrInvalidDate,
		core.ErrNegativePrice,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
