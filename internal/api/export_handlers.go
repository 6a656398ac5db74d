package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cutroom/cutroom-agent/internal/export"
)

func startExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StartExportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		orch := cfg.Exports.For(chi.URLParam(r, "id"))
		if orch == nil {
			WriteError(w, http.StatusServiceUnavailable, "agent is shutting down", "SHUTTING_DOWN")
			return
		}

		if err := orch.Start(r.Context(), req.Options); err != nil {
			switch {
			case errors.Is(err, export.ErrExportInFlight):
				WriteError(w, http.StatusConflict, err.Error(), "EXPORT_IN_FLIGHT")
			case errors.Is(err, export.ErrClosed):
				WriteError(w, http.StatusServiceUnavailable, err.Error(), "SHUTTING_DOWN")
			default:
				WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			}
			return
		}

		WriteJSON(w, http.StatusAccepted, ExportToResponse(orch.Job()))
	}
}

func getExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orch := cfg.Exports.For(chi.URLParam(r, "id"))
		if orch == nil {
			WriteError(w, http.StatusServiceUnavailable, "agent is shutting down", "SHUTTING_DOWN")
			return
		}
		WriteJSON(w, http.StatusOK, ExportToResponse(orch.Job()))
	}
}

func cancelExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orch := cfg.Exports.For(chi.URLParam(r, "id"))
		if orch == nil {
			WriteError(w, http.StatusServiceUnavailable, "agent is shutting down", "SHUTTING_DOWN")
			return
		}
		// Cancelling an idle job is a no-op, not an error.
		orch.Cancel()
		WriteJSON(w, http.StatusOK, ExportToResponse(orch.Job()))
	}
}

func resetExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orch := cfg.Exports.For(chi.URLParam(r, "id"))
		if orch == nil {
			WriteError(w, http.StatusServiceUnavailable, "agent is shutting down", "SHUTTING_DOWN")
			return
		}
		if err := orch.Reset(); err != nil {
			WriteError(w, http.StatusConflict, err.Error(), "EXPORT_IN_FLIGHT")
			return
		}
		WriteJSON(w, http.StatusOK, ExportToResponse(orch.Job()))
	}
}
