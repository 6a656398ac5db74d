// Package events fans agent-side happenings out to frontend subscribers.
// Thumbnail completions and export progress arrive outside any HTTP
// request/response cycle, so the frontend listens on a websocket fed from
// this hub.
package events

import (
	"log/slog"
	"sync"
)

const subscriberBuffer = 32

// Event is a single notification pushed to subscribers.
type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	ClipID    string `json:"clip_id,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
	State     string `json:"state,omitempty"`
	Progress  int    `json:"progress,omitempty"`
	Error     string `json:"error,omitempty"`
	Sessions  int    `json:"sessions,omitempty"`
}

const (
	TypeThumbnailReady = "thumbnail_ready"
	TypeExportState    = "export_state"
	TypeExportProgress = "export_progress"
	TypeSessionCount   = "session_count"
)

// Hub is a small fan-out. Subscribers get buffered channels; a subscriber
// that falls behind loses events rather than blocking publishers.
type Hub struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{subs: make(map[int]chan Event), logger: logger}
}

// Subscribe registers a listener. The returned cancel func must be called
// when the listener goes away; it closes the channel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Event, subscriberBuffer)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber, dropping it for any whose
// buffer is full.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			if h.logger != nil {
				h.logger.Debug("dropping event for slow subscriber", "type", ev.Type)
			}
		}
	}
}

// ThumbnailReady implements the session service notifier.
func (h *Hub) ThumbnailReady(sessionID, clipID, thumbnailPath string) {
	h.Publish(Event{
		Type:      TypeThumbnailReady,
		SessionID: sessionID,
		ClipID:    clipID,
		Thumbnail: thumbnailPath,
	})
}

// SessionsChanged implements the session service notifier.
func (h *Hub) SessionsChanged(count int) {
	h.Publish(Event{
		Type:     TypeSessionCount,
		Sessions: count,
	})
}

// ExportState implements the export orchestrator notifier.
func (h *Hub) ExportState(sessionID, state, errMsg string) {
	h.Publish(Event{
		Type:      TypeExportState,
		SessionID: sessionID,
		State:     state,
		Error:     errMsg,
	})
}

// ExportProgress implements the export orchestrator notifier.
func (h *Hub) ExportProgress(sessionID string, progress int) {
	h.Publish(Event{
		Type:      TypeExportProgress,
		SessionID: sessionID,
		Progress:  progress,
	})
}
