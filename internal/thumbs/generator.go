package thumbs

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/cutroom/cutroom-agent/internal/session"
)

// stillOffset picks the frame time: near t=1s, or the midpoint for clips
// shorter than that.
func stillOffset(durationS float64) float64 {
	if durationS < 2.0 {
		return durationS / 2
	}
	return 1.0
}

const stillTimeout = 30 * time.Second

// Generator runs thumbnail production off the edit path. Completions write
// back through the session service, which drops the update if the clip was
// removed in the meantime.
type Generator struct {
	provider Provider
	svc      *session.Service
	dir      string
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewGenerator(provider Provider, svc *session.Service, dir string, logger *slog.Logger) *Generator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Generator{
		provider: provider,
		svc:      svc,
		dir:      dir,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Enqueue schedules thumbnail production for a clip and returns immediately.
func (g *Generator) Enqueue(sessionID string, clip session.Clip) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()

		ctx, cancel := context.WithTimeout(g.ctx, stillTimeout)
		defer cancel()

		outPath := filepath.Join(g.dir, clip.ID+".jpg")
		if err := g.provider.Still(ctx, clip.SourceRef, stillOffset(clip.DurationS), outPath); err != nil {
			if g.logger != nil {
				g.logger.Warn("thumbnail generation failed", "clip_id", clip.ID, "error", err)
			}
			return
		}

		if err := g.svc.SetClipThumbnail(context.Background(), sessionID, clip.ID, outPath); err != nil && g.logger != nil {
			g.logger.Warn("thumbnail write-back failed", "clip_id", clip.ID, "error", err)
		}
	}()
}

// Close stops in-flight work and waits for the workers to exit.
func (g *Generator) Close() {
	g.cancel()
	g.wg.Wait()
}
