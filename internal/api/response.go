package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/oszuidwest/zwfm-imageproxy/internal/types"
)

// Response is the standard JSON response format for non-image endpoints.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(Response{
		Success: true,
		Data:    data,
	}); err != nil {
		slog.Debug("Failed to write JSON response to client", "error", err)
	}
}

func respondError(w http.ResponseWriter, statusCode int, errorMsg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(Response{
		Success: false,
		Error:   errorMsg,
	}); err != nil {
		slog.Debug("Failed to write error response to client", "error", err)
	}
}

// respondPipelineError maps a pipeline failure onto its HTTP status. Errors
// without a structured kind are internal faults and get a generic message
// so no internal detail leaks to callers.
func respondPipelineError(w http.ResponseWriter, r *http.Request, err error) {
	var httpErr types.HTTPError
	if errors.As(err, &httpErr) {
		respondError(w, httpErr.StatusCode(), httpErr.Error())
		return
	}

	slog.Error("Unhandled pipeline error", "path", r.URL.Path, "error", err)
	respondError(w, http.StatusInternalServerError, "Internal server error")
}
