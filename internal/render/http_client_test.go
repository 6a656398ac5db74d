package render

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHTTPClient_Submit(t *testing.T) {
	var gotAuth, gotRequestID, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/render/jobs" {
			t.Errorf("request = %s %s, want POST /api/render/jobs", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Cutroom-Request-Id")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token":"job-abc"}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "secret-token", testLogger())
	token, err := client.Submit(context.Background(), []byte(`{"session_id":"s1"}`))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if token != "job-abc" {
		t.Errorf("token = %s, want job-abc", token)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("Authorization = %q, want Bearer secret-token", gotAuth)
	}
	if gotRequestID == "" {
		t.Error("X-Cutroom-Request-Id is empty")
	}
	if gotBody != `{"session_id":"s1"}` {
		t.Errorf("body = %s", gotBody)
	}
}

func TestHTTPClient_SubmitEmptyToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "t", testLogger())
	if _, err := client.Submit(context.Background(), nil); err == nil {
		t.Error("Submit() error = nil, want empty token error")
	}
}

func TestHTTPClient_SubmitServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "t", testLogger())
	_, err := client.Submit(context.Background(), nil)

	var renderErr *RenderError
	if !errors.As(err, &renderErr) {
		t.Fatalf("error = %v, want *RenderError", err)
	}
	if renderErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", renderErr.StatusCode)
	}
	if !renderErr.IsRetryable() {
		t.Error("IsRetryable() = false for a 5xx")
	}
	if !strings.Contains(renderErr.Body, "overloaded") {
		t.Errorf("body = %q, want to contain overloaded", renderErr.Body)
	}
}

func TestHTTPClient_Poll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/render/jobs/job-abc" {
			t.Errorf("path = %s, want /api/render/jobs/job-abc", r.URL.Path)
		}
		w.Write([]byte(`{"progress_percent":60,"status":"processing"}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "t", testLogger())
	status, err := client.Poll(context.Background(), "job-abc")
	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if status.Status != StatusProcessing || status.ProgressPercent != 60 {
		t.Errorf("status = %+v, want processing at 60", status)
	}
}

func TestHTTPClient_PollClientErrorNotRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown job", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "t", testLogger())
	_, err := client.Poll(context.Background(), "gone")

	var renderErr *RenderError
	if !errors.As(err, &renderErr) {
		t.Fatalf("error = %v, want *RenderError", err)
	}
	if renderErr.IsRetryable() {
		t.Error("IsRetryable() = true for a 404")
	}
}

func TestHTTPClient_Cancel(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "t", testLogger())
	if err := client.Cancel(context.Background(), "job-abc"); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if gotPath != "/api/render/jobs/job-abc/cancel" {
		t.Errorf("path = %s, want /api/render/jobs/job-abc/cancel", gotPath)
	}
}

func TestStubClient_CompletesAfterPolls(t *testing.T) {
	client := NewStubClient(testLogger())
	ctx := context.Background()

	token, err := client.Submit(ctx, []byte("{}"))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	var last *JobStatus
	for i := 0; i < 4; i++ {
		last, err = client.Poll(ctx, token)
		if err != nil {
			t.Fatalf("Poll() #%d error = %v", i+1, err)
		}
	}
	if last.Status != StatusComplete {
		t.Errorf("status after 4 polls = %s, want complete", last.Status)
	}
	if last.DownloadRef == "" {
		t.Error("download ref is empty on completion")
	}

	// The job is gone once complete.
	if _, err := client.Poll(ctx, token); err == nil {
		t.Error("Poll() after completion error = nil, want unknown job")
	}
}
