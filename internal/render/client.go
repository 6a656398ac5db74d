// Package render consumes the remote render service through its
// submit/poll/cancel contract. The service turns a serialized composition
// into a final media file; everything about how it does that is its business.
package render

import "context"

// JobStatus is the render service's view of a submitted job.
type JobStatus struct {
	ProgressPercent int    `json:"progress_percent"`
	Status          string `json:"status"` // processing | complete | failed
	DownloadRef     string `json:"download_ref,omitempty"`
	Error           string `json:"error,omitempty"`
}

const (
	StatusProcessing = "processing"
	StatusComplete   = "complete"
	StatusFailed     = "failed"
)

// Client is the render-service contract the export orchestrator consumes.
type Client interface {
	Submit(ctx context.Context, payload []byte) (token string, err error)
	Poll(ctx context.Context, token string) (*JobStatus, error)
	Cancel(ctx context.Context, token string) error
}
