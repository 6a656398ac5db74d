package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cutroom/cutroom-agent/internal/config"
	"github.com/cutroom/cutroom-agent/internal/events"
	"github.com/cutroom/cutroom-agent/internal/export"
	"github.com/cutroom/cutroom-agent/internal/playback"
	"github.com/cutroom/cutroom-agent/internal/render"
	"github.com/cutroom/cutroom-agent/internal/session"
)

const testAuthToken = "test-auth-token"

// stubRepo is an in-memory session.Repository for handler tests.
type stubRepo struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
	config   map[string]string
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		sessions: make(map[string]*session.Session),
		config:   map[string]string{"auth_token": testAuthToken},
	}
}

func (r *stubRepo) SaveSession(ctx context.Context, sess *session.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sess.ID] = sess.Clone()
	return nil
}

func (r *stubRepo) LoadSession(ctx context.Context, id string) (*session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s.Clone(), nil
	}
	return nil, nil
}

func (r *stubRepo) ListSessions(ctx context.Context) ([]*session.Session, error) {
	return nil, nil
}

func (r *stubRepo) DeleteSession(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func (r *stubRepo) UpdateClipThumbnail(ctx context.Context, sessionID, clipID, thumbnailPath string) error {
	return nil
}

func (r *stubRepo) GetConfig(ctx context.Context, key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.config[key], nil
}

func (r *stubRepo) SetConfig(ctx context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.config[key] = value
	return nil
}

type testEnv struct {
	router  *chi.Mux
	svc     *session.Service
	exports *export.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := newStubRepo()
	hub := events.NewHub(logger)
	svc := session.NewService(repo, hub, logger)
	exports := export.NewManager(export.ManagerConfig{
		Client:       render.NewStubClient(logger),
		Service:      svc,
		Presets:      config.DefaultPresets(),
		Notifier:     hub,
		Logger:       logger,
		PollInterval: 5 * time.Millisecond,
	})
	t.Cleanup(exports.Close)

	cfg := ServerConfig{
		SessionService: svc,
		Dispatcher:     session.NewDispatcher(svc),
		Exports:        exports,
		Playback:       playback.NewServer(logger),
		Repository:     repo,
		Hub:            hub,
		Presets:        config.DefaultPresets(),
		Logger:         logger,
		StartTime:      time.Now(),
		DeviceID:       "test-device",
	}
	return &testEnv{router: NewRouter(cfg), svc: svc, exports: exports}
}

// do issues an authenticated request against the router and returns the
// recorder.
func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json.Marshal error: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testAuthToken)

	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) createSession(t *testing.T) SessionResponse {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/sessions", CreateSessionRequest{
		Name: "test",
		FirstClip: session.ClipInput{
			SourceRef: "media/a.mp4", DurationS: 10, Width: 1920, Height: 1080, FPS: 30,
		},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create session status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var resp SessionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response unmarshal error: %v", err)
	}
	return resp
}

func decodeSession(t *testing.T, rr *httptest.ResponseRecorder) SessionResponse {
	t.Helper()
	var resp SessionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("session unmarshal error: %v (body: %s)", err, rr.Body.String())
	}
	return resp
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("error unmarshal error: %v (body: %s)", err, rr.Body.String())
	}
	return resp.Code
}

func TestHealth_NoAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if resp.Status != "ok" || resp.DeviceID != "test-device" {
		t.Errorf("response = %+v", resp)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}

func TestStatus_AggregatesExports(t *testing.T) {
	env := newTestEnv(t)
	env.createSession(t)

	rr := env.do(t, http.MethodGet, "/status", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp StatusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if resp.State != "idle" || resp.SessionsCount != 1 || resp.ExportsRunning != 0 {
		t.Errorf("response = %+v", resp)
	}
}

func TestStatus_SurvivesManagerShutdown(t *testing.T) {
	env := newTestEnv(t)
	env.createSession(t)

	// A /status request racing shutdown sees a closed export manager; it must
	// answer, not panic.
	env.exports.Close()

	rr := env.do(t, http.MethodGet, "/status", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp StatusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if resp.State != "idle" || resp.SessionsCount != 1 {
		t.Errorf("response = %+v", resp)
	}
}

func TestPresets_ReturnsDocument(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/presets", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var p config.Presets
	if err := json.Unmarshal(rr.Body.Bytes(), &p); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if len(p.CaptionStyles) == 0 || len(p.Placements) == 0 || len(p.ResolutionCaps) == 0 {
		t.Errorf("presets incomplete: %+v", p)
	}
}
