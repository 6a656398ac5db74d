package export

import (
	"log/slog"
	"sync"
	"time"

	"github.com/cutroom/cutroom-agent/internal/config"
	"github.com/cutroom/cutroom-agent/internal/render"
	"github.com/cutroom/cutroom-agent/internal/session"
)

// Manager hands out one orchestrator per session and closes them all on
// shutdown.
type Manager struct {
	client       render.Client
	svc          *session.Service
	presets      config.Presets
	store        *Store
	notifier     Notifier
	logger       *slog.Logger
	pollInterval time.Duration

	mu            sync.Mutex
	orchestrators map[string]*Orchestrator
	closed        bool
}

type ManagerConfig struct {
	Client       render.Client
	Service      *session.Service
	Presets      config.Presets
	Store        *Store
	Notifier     Notifier
	Logger       *slog.Logger
	PollInterval time.Duration
}

func NewManager(cfg ManagerConfig) *Manager {
	return &Manager{
		client:        cfg.Client,
		svc:           cfg.Service,
		presets:       cfg.Presets,
		store:         cfg.Store,
		notifier:      cfg.Notifier,
		logger:        cfg.Logger,
		pollInterval:  cfg.PollInterval,
		orchestrators: make(map[string]*Orchestrator),
	}
}

// For returns the orchestrator for a session, creating it on first use.
// Returns nil after Close.
func (m *Manager) For(sessionID string) *Orchestrator {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	if o, ok := m.orchestrators[sessionID]; ok {
		return o
	}
	o := NewOrchestrator(OrchestratorConfig{
		SessionID:    sessionID,
		Client:       m.client,
		Service:      m.svc,
		Presets:      m.presets,
		Store:        m.store,
		Notifier:     m.notifier,
		Logger:       m.logger,
		PollInterval: m.pollInterval,
	})
	m.orchestrators[sessionID] = o
	return o
}

// Drop closes and forgets a session's orchestrator, e.g. when the session is
// deleted.
func (m *Manager) Drop(sessionID string) {
	m.mu.Lock()
	o, ok := m.orchestrators[sessionID]
	delete(m.orchestrators, sessionID)
	m.mu.Unlock()
	if ok {
		o.Close()
	}
}

// Close tears down every orchestrator and blocks until their poll loops exit.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	all := make([]*Orchestrator, 0, len(m.orchestrators))
	for _, o := range m.orchestrators {
		all = append(all, o)
	}
	m.orchestrators = nil
	m.mu.Unlock()

	for _, o := range all {
		o.Close()
	}
	if m.logger != nil {
		m.logger.Info("export manager closed", "orchestrators", len(all))
	}
}
