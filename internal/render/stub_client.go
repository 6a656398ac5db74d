package render

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// StubClient simulates a render service for offline development. Each poll
// advances the job a fixed amount; jobs complete after a handful of polls.
type StubClient struct {
	logger *slog.Logger

	mu   sync.Mutex
	jobs map[string]int
}

func NewStubClient(logger *slog.Logger) *StubClient {
	return &StubClient{logger: logger, jobs: make(map[string]int)}
}

func (c *StubClient) Submit(ctx context.Context, payload []byte) (string, error) {
	token := uuid.NewString()
	c.mu.Lock()
	c.jobs[token] = 0
	c.mu.Unlock()
	c.logger.Info("render stub: export accepted", "body_bytes", len(payload))
	return token, nil
}

func (c *StubClient) Poll(ctx context.Context, token string) (*JobStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	progress, ok := c.jobs[token]
	if !ok {
		return nil, &RenderError{StatusCode: 404, Body: "unknown job"}
	}

	progress += 25
	if progress >= 100 {
		delete(c.jobs, token)
		return &JobStatus{ProgressPercent: 100, Status: StatusComplete, DownloadRef: "stub://" + token}, nil
	}
	c.jobs[token] = progress
	return &JobStatus{ProgressPercent: progress, Status: StatusProcessing}, nil
}

func (c *StubClient) Cancel(ctx context.Context, token string) error {
	c.mu.Lock()
	delete(c.jobs, token)
	c.mu.Unlock()
	c.logger.Info("render stub: cancel requested")
	return nil
}
