package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cutroom/cutroom-agent/internal/config"
	"github.com/cutroom/cutroom-agent/internal/export"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))
		r.Get("/presets", presetsHandler(cfg))
		r.Get("/events", eventsHandler(cfg))

		r.Post("/sessions", createSessionHandler(cfg))
		r.Get("/sessions", listSessionsHandler(cfg))
		r.Get("/sessions/{id}", getSessionHandler(cfg))
		r.Delete("/sessions/{id}", deleteSessionHandler(cfg))

		r.Post("/sessions/{id}/clips", addClipHandler(cfg))
		r.Delete("/sessions/{id}/clips/{clipID}", removeClipHandler(cfg))
		r.Post("/sessions/{id}/clips/{clipID}/reorder", reorderClipHandler(cfg))
		r.Get("/sessions/{id}/clips/{clipID}/media", mediaHandler(cfg))

		r.Post("/sessions/{id}/split", splitHandler(cfg))
		r.Delete("/sessions/{id}/segments/{segmentID}", deleteSegmentHandler(cfg))
		r.Post("/sessions/{id}/segments/{segmentID}/select", selectSegmentHandler(cfg))

		r.Post("/sessions/{id}/overlays", addOverlayHandler(cfg))
		r.Patch("/sessions/{id}/overlays/{overlayID}", updateOverlayHandler(cfg))
		r.Delete("/sessions/{id}/overlays/{overlayID}", removeOverlayHandler(cfg))
		r.Post("/sessions/{id}/overlays/{overlayID}/select", selectOverlayHandler(cfg))

		r.Post("/sessions/{id}/playhead", playheadHandler(cfg))
		r.Post("/sessions/{id}/undo", undoHandler(cfg))
		r.Post("/sessions/{id}/redo", redoHandler(cfg))
		r.Post("/sessions/{id}/command", commandHandler(cfg))

		r.Post("/sessions/{id}/export", startExportHandler(cfg))
		r.Get("/sessions/{id}/export", getExportHandler(cfg))
		r.Post("/sessions/{id}/export/cancel", cancelExportHandler(cfg))
		r.Post("/sessions/{id}/export/reset", resetExportHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Version:  config.Version,
			UptimeS:  uptime,
			DeviceID: cfg.DeviceID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions, _ := cfg.SessionService.ListSessions(r.Context())

		state := "idle"
		exportsRunning := 0
		lastError := ""
		for _, sess := range sessions {
			orch := cfg.Exports.For(sess.ID)
			if orch == nil {
				// Manager already closed; shutdown is racing this request.
				continue
			}
			job := orch.Job()
			if job.InFlight() {
				exportsRunning++
				state = "exporting"
			}
			if job.Status == export.StateError && lastError == "" {
				lastError = job.ErrorMessage
			}
		}
		if lastError != "" && state == "idle" {
			state = "error"
		}

		WriteJSON(w, http.StatusOK, StatusResponse{
			State:          state,
			SessionsCount:  len(sessions),
			ExportsRunning: exportsRunning,
			LastError:      lastError,
		})
	}
}

func presetsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, cfg.Presets)
	}
}
