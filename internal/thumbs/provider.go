// Package thumbs produces still-frame thumbnails for imported clips. The
// "give me a still image for time T" capability is consumed as an opaque
// Provider; production never blocks an edit operation.
package thumbs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

// Provider extracts a still frame from a source at the given offset and
// returns the path of the written image.
type Provider interface {
	Still(ctx context.Context, sourceRef string, offsetS float64, outPath string) error
}

// FFmpegProvider shells out to ffmpeg for the still frame.
type FFmpegProvider struct {
	ffmpegPath string
	logger     *slog.Logger
}

func NewFFmpegProvider(logger *slog.Logger) (*FFmpegProvider, error) {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	return &FFmpegProvider{ffmpegPath: path, logger: logger}, nil
}

func (p *FFmpegProvider) Still(ctx context.Context, sourceRef string, offsetS float64, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("create thumbnail dir: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.ffmpegPath,
		"-ss", fmt.Sprintf("%.3f", offsetS),
		"-i", sourceRef,
		"-frames:v", "1",
		"-q:v", "4",
		"-y", outPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg still failed: %w: %s", err, truncate(string(out), 512))
	}
	return nil
}

// StubProvider writes an empty file; used when ffmpeg is unavailable and in
// tests.
type StubProvider struct {
	logger *slog.Logger
}

func NewStubProvider(logger *slog.Logger) *StubProvider {
	return &StubProvider{logger: logger}
}

func (p *StubProvider) Still(ctx context.Context, sourceRef string, offsetS float64, outPath string) error {
	if p.logger != nil {
		p.logger.Info("thumbs stub: still requested", "source", sourceRef, "offset", offsetS)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return err
	}
	return os.WriteFile(outPath, nil, 0644)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
