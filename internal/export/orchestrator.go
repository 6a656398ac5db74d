// Package export owns the lifecycle of a render job: serialize the
// composition, submit it, poll progress, and surface a terminal
// download/cancel/retry contract. One job per session.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cutroom/cutroom-agent/internal/config"
	"github.com/cutroom/cutroom-agent/internal/render"
	"github.com/cutroom/cutroom-agent/internal/session"
)

// State is the export job state machine position.
type State string

const (
	StateIdle      State = "idle"
	StateStarting  State = "starting"
	StateExporting State = "exporting"
	StateComplete  State = "complete"
	StateError     State = "error"
)

// Job is the observable export state for one session.
type Job struct {
	Status          State     `json:"status"`
	ProgressPercent int       `json:"progress_percent"`
	Token           string    `json:"token,omitempty"`
	DownloadRef     string    `json:"download_ref,omitempty"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// InFlight reports whether the job occupies the one-job-per-session slot.
func (j Job) InFlight() bool {
	return j.Status == StateStarting || j.Status == StateExporting
}

// Terminal reports whether the job reached complete or error.
func (j Job) Terminal() bool {
	return j.Status == StateComplete || j.Status == StateError
}

var (
	// ErrExportInFlight rejects Start while a job is starting or exporting.
	ErrExportInFlight = errors.New("an export is already in progress")
	// ErrNotTerminal rejects Reset before the job reaches a terminal state.
	ErrNotTerminal = errors.New("export job is not in a terminal state")
	// ErrClosed rejects operations on a torn-down orchestrator.
	ErrClosed = errors.New("export orchestrator is closed")
)

// Notifier pushes export lifecycle events to the frontend.
type Notifier interface {
	ExportState(sessionID, state, errMsg string)
	ExportProgress(sessionID string, progress int)
}

// Orchestrator drives the export state machine for one session. The polling
// loop is an explicit task bound to the orchestrator's lifetime: reaching a
// terminal state, Cancel, or Close stops it, and a generation counter
// discards late poll results for superseded tokens.
type Orchestrator struct {
	sessionID string
	client    render.Client
	svc       *session.Service
	presets   config.Presets
	store     *Store
	notifier  Notifier
	logger    *slog.Logger

	pollInterval time.Duration

	mu         sync.Mutex
	job        Job
	generation int
	cancelPoll context.CancelFunc
	closed     bool
	wg         sync.WaitGroup
}

// OrchestratorConfig wires an orchestrator's collaborators.
type OrchestratorConfig struct {
	SessionID    string
	Client       render.Client
	Service      *session.Service
	Presets      config.Presets
	Store        *Store
	Notifier     Notifier
	Logger       *slog.Logger
	PollInterval time.Duration
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 1500 * time.Millisecond
	}
	return &Orchestrator{
		sessionID:    cfg.SessionID,
		client:       cfg.Client,
		svc:          cfg.Service,
		presets:      cfg.Presets,
		store:        cfg.Store,
		notifier:     cfg.Notifier,
		logger:       cfg.Logger,
		pollInterval: interval,
		job:          Job{Status: StateIdle, UpdatedAt: time.Now()},
	}
}

// Job returns a copy of the current job state.
func (o *Orchestrator) Job() Job {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.job
}

// Start serializes the current composition and submits it. Rejected while a
// job is in flight; retry after an error re-enters here.
func (o *Orchestrator) Start(ctx context.Context, opts Options) error {
	sess, err := o.svc.GetSession(ctx, o.sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("session %s not found", o.sessionID)
	}

	payload, err := BuildPayload(sess, opts, o.presets)
	if err != nil {
		return err
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	if o.job.InFlight() {
		o.mu.Unlock()
		return ErrExportInFlight
	}

	o.generation++
	gen := o.generation
	o.setJobLocked(Job{Status: StateStarting})

	pollCtx, cancel := context.WithCancel(context.Background())
	o.cancelPoll = cancel
	o.wg.Add(1)
	o.mu.Unlock()

	go o.run(pollCtx, gen, payload)
	return nil
}

// Cancel stops polling and returns the job to idle, signalling the render
// service best-effort. Cancelling an already-idle job is a no-op.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	if !o.job.InFlight() {
		o.mu.Unlock()
		return
	}

	token := o.job.Token
	o.generation++
	if o.cancelPoll != nil {
		o.cancelPoll()
		o.cancelPoll = nil
	}
	o.setJobLocked(Job{Status: StateIdle})
	o.mu.Unlock()

	if token != "" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := o.client.Cancel(ctx, token); err != nil && o.logger != nil {
				o.logger.Warn("render cancel signal failed", "session_id", o.sessionID, "error", err)
			}
		}()
	}
}

// Reset clears a terminal job back to idle so a new export can start.
func (o *Orchestrator) Reset() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.job.Status == StateIdle {
		return nil
	}
	if !o.job.Terminal() {
		return ErrNotTerminal
	}
	o.setJobLocked(Job{Status: StateIdle})
	return nil
}

// Close tears the orchestrator down. Any polling loop stops; the object
// rejects further starts. Blocks until the poll goroutine exits, which is
// what makes the no-polling-after-teardown property provable.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.generation++
	if o.cancelPoll != nil {
		o.cancelPoll()
		o.cancelPoll = nil
	}
	o.mu.Unlock()

	o.wg.Wait()
}

// run performs the submit and then the fixed-interval poll loop. Every state
// write re-checks the generation so a cancelled or superseded job's late
// responses fall on the floor.
func (o *Orchestrator) run(ctx context.Context, gen int, payload []byte) {
	defer o.wg.Done()

	token, err := o.client.Submit(ctx, payload)
	if err != nil {
		o.applyIfCurrent(gen, func() {
			o.setJobLocked(Job{Status: StateError, ErrorMessage: err.Error()})
		})
		return
	}

	if !o.applyIfCurrent(gen, func() {
		o.setJobLocked(Job{Status: StateExporting, Token: token})
	}) {
		// Cancelled between submit and acknowledgement; release the remote job.
		cancelCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = o.client.Cancel(cancelCtx, token)
		return
	}

	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		status, err := o.client.Poll(ctx, token)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			o.applyIfCurrent(gen, func() {
				o.setJobLocked(Job{Status: StateError, Token: token, ErrorMessage: err.Error()})
			})
			return
		}

		done := false
		o.applyIfCurrent(gen, func() {
			switch status.Status {
			case render.StatusComplete:
				o.setJobLocked(Job{Status: StateComplete, Token: token, ProgressPercent: 100, DownloadRef: status.DownloadRef})
				done = true
			case render.StatusFailed:
				msg := status.Error
				if msg == "" {
					msg = "render service reported failure"
				}
				o.setJobLocked(Job{Status: StateError, Token: token, ErrorMessage: msg})
				done = true
			default:
				o.job.ProgressPercent = status.ProgressPercent
				o.job.UpdatedAt = time.Now()
				o.persistLocked()
				if o.notifier != nil {
					o.notifier.ExportProgress(o.sessionID, status.ProgressPercent)
				}
			}
		})
		if done || o.isStale(gen) {
			return
		}
	}
}

// applyIfCurrent runs fn under the lock only when gen is still the live
// generation. Returns whether fn ran.
func (o *Orchestrator) applyIfCurrent(gen int, fn func()) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.generation {
		return false
	}
	fn()
	return true
}

func (o *Orchestrator) isStale(gen int) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return gen != o.generation
}

// setJobLocked replaces the job state, persists it, and notifies. Callers
// hold o.mu.
func (o *Orchestrator) setJobLocked(j Job) {
	j.UpdatedAt = time.Now()
	o.job = j
	o.persistLocked()

	if o.logger != nil {
		o.logger.Info("export state",
			"session_id", o.sessionID,
			"status", string(j.Status),
			"progress", j.ProgressPercent,
			"error", j.ErrorMessage,
		)
	}
	if o.notifier != nil {
		o.notifier.ExportState(o.sessionID, string(j.Status), j.ErrorMessage)
	}
}

func (o *Orchestrator) persistLocked() {
	if o.store == nil {
		return
	}
	if err := o.store.SaveJob(context.Background(), o.sessionID, o.job); err != nil && o.logger != nil {
		o.logger.Warn("failed to persist export job", "session_id", o.sessionID, "error", err)
	}
}
