package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/cutroom/cutroom-agent/internal/session"
)

func TestCreateSession(t *testing.T) {
	env := newTestEnv(t)
	resp := env.createSession(t)

	if resp.ID == "" {
		t.Fatal("session id is empty")
	}
	if len(resp.Clips) != 1 || len(resp.Segments) != 1 {
		t.Errorf("clips = %d, segments = %d, want 1 and 1", len(resp.Clips), len(resp.Segments))
	}
	if resp.ComposedDurationS != 10 {
		t.Errorf("composed_duration_s = %v, want 10", resp.ComposedDurationS)
	}
	if resp.CanUndo || resp.CanRedo {
		t.Error("fresh session reports undo/redo availability")
	}
}

func TestCreateSession_InvalidClip(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/sessions", CreateSessionRequest{Name: "x"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestGetSession_NotFound(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/sessions/nope", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
	if code := errorCode(t, rr); code != "NOT_FOUND" {
		t.Errorf("code = %s, want NOT_FOUND", code)
	}
}

func TestSplit_ReturnsUpdatedSession(t *testing.T) {
	env := newTestEnv(t)
	sess := env.createSession(t)

	rr := env.do(t, http.MethodPost, "/sessions/"+sess.ID+"/split", SplitRequest{TimeS: 4})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	resp := decodeSession(t, rr)
	if len(resp.Segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(resp.Segments))
	}
	if !resp.CanUndo {
		t.Error("can_undo = false after an edit")
	}
}

func TestSplit_AtBoundaryIsConflict(t *testing.T) {
	env := newTestEnv(t)
	sess := env.createSession(t)

	rr := env.do(t, http.MethodPost, "/sessions/"+sess.ID+"/split", SplitRequest{TimeS: 0})
	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}
	if code := errorCode(t, rr); code != "INVARIANT_VIOLATION" {
		t.Errorf("code = %s, want INVARIANT_VIOLATION", code)
	}
}

func TestDeleteSegment_LastOneIsConflict(t *testing.T) {
	env := newTestEnv(t)
	sess := env.createSession(t)

	rr := env.do(t, http.MethodDelete, "/sessions/"+sess.ID+"/segments/"+sess.Segments[0].ID, nil)
	if rr.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rr.Code)
	}
}

func TestAddClip_ThenRemove(t *testing.T) {
	env := newTestEnv(t)
	sess := env.createSession(t)

	rr := env.do(t, http.MethodPost, "/sessions/"+sess.ID+"/clips", AddClipRequest{
		Clip: session.ClipInput{SourceRef: "media/b.mp4", DurationS: 5},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("add clip status = %d, body = %s", rr.Code, rr.Body.String())
	}
	resp := decodeSession(t, rr)
	if len(resp.Clips) != 2 || len(resp.Segments) != 2 {
		t.Fatalf("clips = %d, segments = %d, want 2 and 2", len(resp.Clips), len(resp.Segments))
	}

	var addedID string
	for _, c := range resp.Clips {
		if c.SourceRef == "media/b.mp4" {
			addedID = c.ID
		}
	}
	rr = env.do(t, http.MethodDelete, "/sessions/"+sess.ID+"/clips/"+addedID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("remove clip status = %d", rr.Code)
	}
	resp = decodeSession(t, rr)
	if len(resp.Clips) != 1 || len(resp.Segments) != 1 {
		t.Errorf("clips = %d, segments = %d after cascade, want 1 and 1", len(resp.Clips), len(resp.Segments))
	}
}

func TestOverlayLifecycle(t *testing.T) {
	env := newTestEnv(t)
	sess := env.createSession(t)

	rr := env.do(t, http.MethodPost, "/sessions/"+sess.ID+"/overlays", AddOverlayRequest{Kind: session.OverlayHeader})
	if rr.Code != http.StatusOK {
		t.Fatalf("add overlay status = %d, body = %s", rr.Code, rr.Body.String())
	}
	resp := decodeSession(t, rr)
	if len(resp.Overlays) != 1 {
		t.Fatalf("overlays = %d, want 1", len(resp.Overlays))
	}
	ovID := resp.Overlays[0].ID

	text := "Chapter One"
	rr = env.do(t, http.MethodPatch, "/sessions/"+sess.ID+"/overlays/"+ovID, UpdateOverlayRequest{
		Patch: session.OverlayPatch{Text: &text},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body = %s", rr.Code, rr.Body.String())
	}
	resp = decodeSession(t, rr)
	if resp.Overlays[0].Text != "Chapter One" {
		t.Errorf("text = %q, want Chapter One", resp.Overlays[0].Text)
	}

	// Transient patches answer 204 without a session payload.
	x := 0.3
	rr = env.do(t, http.MethodPatch, "/sessions/"+sess.ID+"/overlays/"+ovID, UpdateOverlayRequest{
		Patch: session.OverlayPatch{PosX: &x}, Transient: true,
	})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("transient patch status = %d, want 204", rr.Code)
	}

	rr = env.do(t, http.MethodDelete, "/sessions/"+sess.ID+"/overlays/"+ovID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rr.Code)
	}
	resp = decodeSession(t, rr)
	if len(resp.Overlays) != 0 {
		t.Errorf("overlays = %d after delete, want 0", len(resp.Overlays))
	}
}

func TestUnknownOverlayKind_IsConflict(t *testing.T) {
	env := newTestEnv(t)
	sess := env.createSession(t)

	rr := env.do(t, http.MethodPost, "/sessions/"+sess.ID+"/overlays", AddOverlayRequest{Kind: "ticker"})
	if rr.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rr.Code)
	}
}

func TestUndoRedoRoutes(t *testing.T) {
	env := newTestEnv(t)
	sess := env.createSession(t)

	env.do(t, http.MethodPost, "/sessions/"+sess.ID+"/split", SplitRequest{TimeS: 4})

	rr := env.do(t, http.MethodPost, "/sessions/"+sess.ID+"/undo", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("undo status = %d", rr.Code)
	}
	var hist HistoryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &hist); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if !hist.Applied || hist.CanUndo || !hist.CanRedo {
		t.Errorf("history = %+v, want applied with redo available", hist)
	}

	rr = env.do(t, http.MethodPost, "/sessions/"+sess.ID+"/redo", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("redo status = %d", rr.Code)
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &hist); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if !hist.Applied || !hist.CanUndo || hist.CanRedo {
		t.Errorf("history = %+v, want applied with undo available", hist)
	}

	// Exhausted redo is a clean non-applied response, not an error.
	rr = env.do(t, http.MethodPost, "/sessions/"+sess.ID+"/redo", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("second redo status = %d", rr.Code)
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &hist); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if hist.Applied {
		t.Error("redo applied on empty stack")
	}
}

func TestCommandRoute_FocusGuard(t *testing.T) {
	env := newTestEnv(t)
	sess := env.createSession(t)

	rr := env.do(t, http.MethodPost, "/sessions/"+sess.ID+"/command", CommandRequest{
		Command: session.CommandSplit, FocusInText: true,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var res session.DispatchResult
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if res.Applied {
		t.Error("command applied while a text field has focus")
	}

	rr = env.do(t, http.MethodGet, "/sessions/"+sess.ID, nil)
	if got := decodeSession(t, rr); len(got.Segments) != 1 {
		t.Errorf("segments = %d, want 1 (guard must block the split)", len(got.Segments))
	}
}

func TestDeleteSession(t *testing.T) {
	env := newTestEnv(t)
	sess := env.createSession(t)

	rr := env.do(t, http.MethodDelete, "/sessions/"+sess.ID, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/sessions/"+sess.ID, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d after delete, want 404", rr.Code)
	}
}
