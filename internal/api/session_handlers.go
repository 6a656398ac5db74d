package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cutroom/cutroom-agent/internal/session"
)

// writeServiceError maps session service failures onto the wire. Invariant
// violations are rejections, not faults: the session is untouched and the
// frontend shows no toast, so they get a 409 the client can swallow.
func writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrInvariant) {
		WriteError(w, http.StatusConflict, err.Error(), "INVARIANT_VIOLATION")
		return
	}
	WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
}

// respondSession writes the current session state after a mutation so the
// frontend re-renders from one payload.
func respondSession(w http.ResponseWriter, cfg ServerConfig, r *http.Request, sessionID string) {
	sess, err := cfg.SessionService.GetSession(r.Context(), sessionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if sess == nil {
		WriteError(w, http.StatusNotFound, "session not found", "NOT_FOUND")
		return
	}
	playhead, playing := cfg.SessionService.Playhead(sessionID)
	canUndo, canRedo := cfg.SessionService.HistoryState(sessionID)
	WriteJSON(w, http.StatusOK, SessionToResponse(sess, playhead, playing, canUndo, canRedo))
}

func createSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		sess, err := cfg.SessionService.CreateSession(r.Context(), req.Name, req.FirstClip)
		if err != nil {
			if errors.Is(err, session.ErrInvariant) {
				WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
				return
			}
			writeServiceError(w, err)
			return
		}

		if cfg.Thumbs != nil {
			for _, clip := range sess.Clips {
				cfg.Thumbs.Enqueue(sess.ID, *clip)
			}
		}

		canUndo, canRedo := cfg.SessionService.HistoryState(sess.ID)
		WriteJSON(w, http.StatusCreated, SessionToResponse(sess, 0, false, canUndo, canRedo))
	}
}

func listSessionsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions, err := cfg.SessionService.ListSessions(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := SessionsResponse{Sessions: make([]SessionResponse, 0, len(sessions))}
		for _, sess := range sessions {
			playhead, playing := cfg.SessionService.Playhead(sess.ID)
			canUndo, canRedo := cfg.SessionService.HistoryState(sess.ID)
			resp.Sessions = append(resp.Sessions, SessionToResponse(sess, playhead, playing, canUndo, canRedo))
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondSession(w, cfg, r, chi.URLParam(r, "id"))
	}
}

func deleteSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := cfg.SessionService.DeleteSession(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		cfg.Exports.Drop(id)
		w.WriteHeader(http.StatusNoContent)
	}
}

func addClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddClipRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		id := chi.URLParam(r, "id")
		clip, err := cfg.SessionService.AddClip(r.Context(), id, req.Clip)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		if cfg.Thumbs != nil {
			cfg.Thumbs.Enqueue(id, *clip)
		}
		respondSession(w, cfg, r, id)
	}
}

func removeClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := cfg.SessionService.RemoveClip(r.Context(), id, chi.URLParam(r, "clipID")); err != nil {
			writeServiceError(w, err)
			return
		}
		respondSession(w, cfg, r, id)
	}
}

func reorderClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReorderClipRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		id := chi.URLParam(r, "id")
		if err := cfg.SessionService.ReorderClip(r.Context(), id, chi.URLParam(r, "clipID"), req.Order); err != nil {
			writeServiceError(w, err)
			return
		}
		respondSession(w, cfg, r, id)
	}
}

func mediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := cfg.SessionService.GetSession(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if sess == nil {
			WriteError(w, http.StatusNotFound, "session not found", "NOT_FOUND")
			return
		}
		clip, ok := sess.Clips[chi.URLParam(r, "clipID")]
		if !ok {
			WriteError(w, http.StatusNotFound, "clip not found", "NOT_FOUND")
			return
		}
		if err := cfg.Playback.ServeSource(w, r, clip.SourceRef); err != nil {
			cfg.Logger.Error("media serve failed", "clip_id", clip.ID, "error", err)
		}
	}
}

func splitHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SplitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		id := chi.URLParam(r, "id")
		if err := cfg.SessionService.SplitAt(r.Context(), id, req.TimeS); err != nil {
			writeServiceError(w, err)
			return
		}
		respondSession(w, cfg, r, id)
	}
}

func deleteSegmentHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := cfg.SessionService.DeleteSegment(r.Context(), id, chi.URLParam(r, "segmentID")); err != nil {
			writeServiceError(w, err)
			return
		}
		respondSession(w, cfg, r, id)
	}
}

func selectSegmentHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := cfg.SessionService.SelectSegment(r.Context(), id, chi.URLParam(r, "segmentID")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func addOverlayHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddOverlayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		id := chi.URLParam(r, "id")
		if _, err := cfg.SessionService.AddOverlay(r.Context(), id, req.Kind); err != nil {
			writeServiceError(w, err)
			return
		}
		respondSession(w, cfg, r, id)
	}
}

func updateOverlayHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdateOverlayRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		id := chi.URLParam(r, "id")
		err := cfg.SessionService.UpdateOverlay(r.Context(), id, chi.URLParam(r, "overlayID"), req.Patch, req.Transient)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if req.Transient {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		respondSession(w, cfg, r, id)
	}
}

func removeOverlayHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := cfg.SessionService.RemoveOverlay(r.Context(), id, chi.URLParam(r, "overlayID")); err != nil {
			writeServiceError(w, err)
			return
		}
		respondSession(w, cfg, r, id)
	}
}

func selectOverlayHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := cfg.SessionService.SelectOverlay(r.Context(), id, chi.URLParam(r, "overlayID")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func playheadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PlayheadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if err := cfg.SessionService.SetPlayhead(r.Context(), chi.URLParam(r, "id"), req.TimeS); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func undoHandler(cfg ServerConfig) http.HandlerFunc {
	return historyHandler(cfg, cfg.SessionService.Undo)
}

func redoHandler(cfg ServerConfig) http.HandlerFunc {
	return historyHandler(cfg, cfg.SessionService.Redo)
}

func historyHandler(cfg ServerConfig, op func(ctx context.Context, sessionID string) (bool, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		applied, err := op(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		canUndo, canRedo := cfg.SessionService.HistoryState(id)
		WriteJSON(w, http.StatusOK, HistoryResponse{Applied: applied, CanUndo: canUndo, CanRedo: canRedo})
	}
}

func commandHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CommandRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		result, err := cfg.Dispatcher.Dispatch(r.Context(), chi.URLParam(r, "id"), req.Command, req.FocusInText)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, result)
	}
}
