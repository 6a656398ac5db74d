package thumbs

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cutroom/cutroom-agent/internal/db"
	"github.com/cutroom/cutroom-agent/internal/session"
)

func TestStillOffset(t *testing.T) {
	tests := []struct {
		name      string
		durationS float64
		want      float64
	}{
		{"long clip", 10.0, 1.0},
		{"exactly two seconds", 2.0, 1.0},
		{"short clip midpoint", 1.0, 0.5},
		{"very short clip", 0.2, 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stillOffset(tt.durationS); got != tt.want {
				t.Errorf("stillOffset(%v) = %v, want %v", tt.durationS, got, tt.want)
			}
		})
	}
}

func TestStubProvider_WritesFile(t *testing.T) {
	provider := NewStubProvider(nil)
	outPath := filepath.Join(t.TempDir(), "nested", "clip.jpg")

	if err := provider.Still(context.Background(), "/src/clip.mp4", 1.0, outPath); err != nil {
		t.Fatalf("Still() error = %v", err)
	}
	if _, err := os.Stat(outPath); err != nil {
		t.Errorf("output file not written: %v", err)
	}
}

func newTestService(t *testing.T) *session.Service {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return session.NewService(session.NewRepository(database.Conn()), nil, logger)
}

func TestGenerator_WritesBackThumbnail(t *testing.T) {
	svc := newTestService(t)
	sess, err := svc.CreateSession(context.Background(), "Test", session.ClipInput{
		SourceRef: "/media/clip.mp4", DurationS: 10, Width: 1920, Height: 1080, FPS: 30,
	})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	var clip *session.Clip
	for _, c := range sess.Clips {
		clip = c
	}

	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gen := NewGenerator(NewStubProvider(nil), svc, dir, logger)
	defer gen.Close()

	gen.Enqueue(sess.ID, *clip)

	wantPath := filepath.Join(dir, clip.ID+".jpg")
	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := svc.GetSession(context.Background(), sess.ID)
		if err != nil {
			t.Fatalf("GetSession() error = %v", err)
		}
		if got.Clips[clip.ID].ThumbnailPath == wantPath {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("thumbnail path = %q, want %q", got.Clips[clip.ID].ThumbnailPath, wantPath)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := os.Stat(wantPath); err != nil {
		t.Errorf("thumbnail file missing: %v", err)
	}
}

type failingProvider struct{}

func (failingProvider) Still(ctx context.Context, sourceRef string, offsetS float64, outPath string) error {
	return os.ErrNotExist
}

func TestGenerator_ProviderFailureLeavesClipUntouched(t *testing.T) {
	svc := newTestService(t)
	sess, err := svc.CreateSession(context.Background(), "Test", session.ClipInput{
		SourceRef: "/media/clip.mp4", DurationS: 10, Width: 1920, Height: 1080, FPS: 30,
	})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	var clip *session.Clip
	for _, c := range sess.Clips {
		clip = c
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gen := NewGenerator(failingProvider{}, svc, t.TempDir(), logger)
	gen.Enqueue(sess.ID, *clip)
	gen.Close()

	got, err := svc.GetSession(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got.Clips[clip.ID].ThumbnailPath != "" {
		t.Errorf("thumbnail path = %q, want empty", got.Clips[clip.ID].ThumbnailPath)
	}
}
