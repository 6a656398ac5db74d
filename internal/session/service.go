package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Notifier receives events the frontend cares about outside the
// request/response cycle. Implemented by the events hub; nil disables
// notifications.
type Notifier interface {
	ThumbnailReady(sessionID, clipID, thumbnailPath string)
	SessionsChanged(count int)
}

// defaultOverlayWindowS is the length of the time window a freshly added
// overlay covers, anchored at the playhead.
const defaultOverlayWindowS = 3.0

// Service is the single mutation gateway for editing sessions. Every edit
// reads and writes the current session under one lock, so two operations
// issued back to back never interleave. Committed mutations push a history
// snapshot and persist the session; rejected ones leave it untouched.
type Service struct {
	mu     sync.Mutex
	states map[string]*state

	repo     Repository
	notifier Notifier
	logger   *slog.Logger
}

// state pairs a session with its editing history and transient playback
// fields. Playhead and play state never enter history snapshots.
type state struct {
	sess     *Session
	history  *History
	playhead float64
	playing  bool

	// pending is the pre-interaction snapshot captured on the first
	// transient frame of a live drag. The interaction-end commit pushes it
	// instead of the last frame, so a single undo reverts the whole gesture.
	pending *Session
}

func NewService(repo Repository, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{
		states:   make(map[string]*state),
		repo:     repo,
		notifier: notifier,
		logger:   logger,
	}
}

// LoadAll rehydrates previously persisted sessions. Histories start empty;
// undo does not survive a restart.
func (s *Service) LoadAll(ctx context.Context) error {
	sessions, err := s.repo.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range sessions {
		s.states[sess.ID] = &state{sess: sess, history: NewHistory(DefaultHistoryDepth)}
	}
	s.notifySessions()
	if s.logger != nil && len(sessions) > 0 {
		s.logger.Info("sessions restored", "count", len(sessions))
	}
	return nil
}

// CreateSession starts a new composition from its first imported clip. A
// composition always contains at least one clip and one segment, so the
// first clip arrives with the session itself.
func (s *Service) CreateSession(ctx context.Context, name string, first ClipInput) (*Session, error) {
	if err := validateClipInput(first); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	clip := newClip(first, 0, now)
	sess := &Session{
		ID:           NewID(),
		Name:         name,
		Clips:        map[string]*Clip{clip.ID: clip},
		Segments:     []*Segment{{ID: NewID(), ClipID: clip.ID, InS: 0, OutS: clip.DurationS, Order: 0}},
		ActiveClipID: clip.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := checkCoverage(sess); err != nil {
		return nil, err
	}
	if err := s.repo.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	s.states[sess.ID] = &state{sess: sess, history: NewHistory(DefaultHistoryDepth)}
	s.notifySessions()
	if s.logger != nil {
		s.logger.Info("session created", "session_id", sess.ID, "name", name)
	}
	return sess.Clone(), nil
}

// GetSession returns a copy of the session, or nil if it does not exist.
func (s *Service) GetSession(ctx context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[id]
	if !ok {
		return nil, nil
	}
	return st.sess.Clone(), nil
}

// ListSessions returns copies of all live sessions.
func (s *Service) ListSessions(ctx context.Context) ([]*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Session, 0, len(s.states))
	for _, st := range s.states {
		out = append(out, st.sess.Clone())
	}
	return out, nil
}

// DeleteSession drops a session entirely.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.states[id]; !ok {
		return fmt.Errorf("session %s not found: %w", id, ErrInvariant)
	}
	if err := s.repo.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	delete(s.states, id)
	s.notifySessions()
	return nil
}

// HistoryState reports undo/redo availability so the frontend can disable
// the controls instead of round-tripping a rejected call.
func (s *Service) HistoryState(sessionID string) (canUndo, canRedo bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[sessionID]
	if !ok {
		return false, false
	}
	return st.history.CanUndo(), st.history.CanRedo()
}

// AddClip appends an imported clip to the registry and creates exactly one
// segment spanning its full duration at the end of the global order.
func (s *Service) AddClip(ctx context.Context, sessionID string, in ClipInput) (*Clip, error) {
	if err := validateClipInput(in); err != nil {
		return nil, err
	}

	var added Clip
	err := s.mutate(ctx, sessionID, func(st *state) error {
		sess := st.sess
		maxOrder := -1
		for _, c := range sess.Clips {
			if c.Order > maxOrder {
				maxOrder = c.Order
			}
		}
		clip := newClip(in, maxOrder+1, time.Now())
		sess.Clips[clip.ID] = clip
		sess.Segments = append(sess.Segments, &Segment{
			ID:     NewID(),
			ClipID: clip.ID,
			InS:    0,
			OutS:   clip.DurationS,
			Order:  len(sess.Segments),
		})
		sess.ActiveClipID = clip.ID
		added = *clip
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &added, nil
}

// RemoveClip deletes a clip and cascades to every segment referencing it.
// The last remaining clip cannot be removed. If the cascade leaves zero
// segments, a replacement spanning the lowest-ordered surviving clip is
// inserted so the coverage invariant holds.
func (s *Service) RemoveClip(ctx context.Context, sessionID, clipID string) error {
	return s.mutate(ctx, sessionID, func(st *state) error {
		sess := st.sess
		if _, ok := sess.Clips[clipID]; !ok {
			return fmt.Errorf("clip %s not found: %w", clipID, ErrInvariant)
		}
		if len(sess.Clips) == 1 {
			return fmt.Errorf("cannot remove the last clip: %w", ErrInvariant)
		}

		delete(sess.Clips, clipID)
		reindexClips(sess)

		kept := sess.Segments[:0]
		for _, seg := range sess.Segments {
			if seg.ClipID != clipID {
				kept = append(kept, seg)
			} else if seg.ID == sess.SelectedSegmentID {
				sess.SelectedSegmentID = ""
			}
		}
		sess.Segments = kept
		reindexSegments(sess.Segments)

		if len(sess.Segments) == 0 {
			next := sess.OrderedClips()[0]
			sess.Segments = []*Segment{{ID: NewID(), ClipID: next.ID, InS: 0, OutS: next.DurationS, Order: 0}}
		}

		if sess.ActiveClipID == clipID {
			sess.ActiveClipID = sess.OrderedClips()[0].ID
		}
		clampOverlays(sess)
		return nil
	})
}

// SetClipThumbnail records the generated still for a clip. Thumbnails are not
// undoable content: no history snapshot is pushed. A completion for a clip
// removed in the meantime is silently dropped (stale-write guard).
func (s *Service) SetClipThumbnail(ctx context.Context, sessionID, clipID, thumbnailPath string) error {
	s.mu.Lock()
	st, ok := s.states[sessionID]
	if ok {
		if clip, live := st.sess.Clips[clipID]; live {
			clip.ThumbnailPath = thumbnailPath
		} else {
			ok = false
		}
	}
	s.mu.Unlock()

	if !ok {
		if s.logger != nil {
			s.logger.Debug("dropping stale thumbnail", "session_id", sessionID, "clip_id", clipID)
		}
		return nil
	}

	if err := s.repo.UpdateClipThumbnail(ctx, sessionID, clipID, thumbnailPath); err != nil {
		return fmt.Errorf("persist thumbnail: %w", err)
	}
	if s.notifier != nil {
		s.notifier.ThumbnailReady(sessionID, clipID, thumbnailPath)
	}
	return nil
}

// ReorderClip moves a clip to a new position in the display order. Dependent
// segments move with their clip as a block; no durations change.
func (s *Service) ReorderClip(ctx context.Context, sessionID, clipID string, newOrder int) error {
	return s.mutate(ctx, sessionID, func(st *state) error {
		sess := st.sess
		moved, ok := sess.Clips[clipID]
		if !ok {
			return fmt.Errorf("clip %s not found: %w", clipID, ErrInvariant)
		}
		if newOrder < 0 || newOrder >= len(sess.Clips) {
			return fmt.Errorf("order %d out of range: %w", newOrder, ErrInvariant)
		}

		clips := sess.OrderedClips()
		from := moved.Order
		if from == newOrder {
			return nil
		}
		clips = append(clips[:from], clips[from+1:]...)
		clips = append(clips[:newOrder], append([]*Clip{moved}, clips[newOrder:]...)...)
		for i, c := range clips {
			c.Order = i
		}

		// Segments regroup by clip order, preserving their relative order
		// within each clip.
		regrouped := make([]*Segment, 0, len(sess.Segments))
		for _, c := range clips {
			for _, seg := range sess.Segments {
				if seg.ClipID == c.ID {
					regrouped = append(regrouped, seg)
				}
			}
		}
		sess.Segments = regrouped
		reindexSegments(sess.Segments)
		return nil
	})
}

// SplitAt splits the segment under the playhead time into two segments of the
// same clip. Points within SplitEpsilonS of either boundary are rejected.
func (s *Service) SplitAt(ctx context.Context, sessionID string, globalS float64) error {
	return s.mutate(ctx, sessionID, func(st *state) error {
		sess := st.sess
		seg, local, err := GlobalToLocal(sess.Segments, globalS)
		if err != nil {
			return err
		}
		if local < SplitEpsilonS || seg.Duration()-local < SplitEpsilonS {
			return fmt.Errorf("split at %.3fs would create a zero-length segment: %w", globalS, ErrInvariant)
		}

		cut := seg.InS + local
		left := &Segment{ID: NewID(), ClipID: seg.ClipID, InS: seg.InS, OutS: cut}
		right := &Segment{ID: NewID(), ClipID: seg.ClipID, InS: cut, OutS: seg.OutS}

		out := make([]*Segment, 0, len(sess.Segments)+1)
		for _, existing := range sess.Segments {
			if existing.ID == seg.ID {
				out = append(out, left, right)
				continue
			}
			out = append(out, existing)
		}
		sess.Segments = out
		reindexSegments(sess.Segments)

		if sess.SelectedSegmentID == seg.ID {
			sess.SelectedSegmentID = left.ID
		}
		return nil
	})
}

// DeleteSegment removes a segment from the timeline. The only remaining
// segment cannot be deleted. Later segments shift left; overlays past the new
// composed duration are clamped, emptied windows dropped.
func (s *Service) DeleteSegment(ctx context.Context, sessionID, segmentID string) error {
	return s.mutate(ctx, sessionID, func(st *state) error {
		sess := st.sess
		if sess.SegmentByID(segmentID) == nil {
			return fmt.Errorf("segment %s not found: %w", segmentID, ErrInvariant)
		}
		if len(sess.Segments) == 1 {
			return fmt.Errorf("cannot delete the last segment: %w", ErrInvariant)
		}

		kept := sess.Segments[:0]
		for _, seg := range sess.Segments {
			if seg.ID != segmentID {
				kept = append(kept, seg)
			}
		}
		sess.Segments = kept
		reindexSegments(sess.Segments)

		if sess.SelectedSegmentID == segmentID {
			sess.SelectedSegmentID = ""
		}
		clampOverlays(sess)
		return nil
	})
}

// AddOverlay inserts a text overlay defaulted to the viewport center with a
// short window anchored at the playhead.
func (s *Service) AddOverlay(ctx context.Context, sessionID string, kind OverlayKind) (*TextOverlay, error) {
	if kind != OverlayHeader && kind != OverlaySubheader {
		return nil, fmt.Errorf("unknown overlay kind %q: %w", kind, ErrInvariant)
	}

	var added TextOverlay
	err := s.mutate(ctx, sessionID, func(st *state) error {
		sess := st.sess
		dur := ComposedDuration(sess.Segments)

		start := st.playhead
		if start < 0 {
			start = 0
		}
		end := start + defaultOverlayWindowS
		if end > dur {
			end = dur
			start = end - defaultOverlayWindowS
			if start < 0 {
				start = 0
			}
		}

		ov := &TextOverlay{
			ID:     NewID(),
			Kind:   kind,
			PosX:   0.5,
			PosY:   0.5,
			StartS: start,
			EndS:   end,
		}
		sess.Overlays = append(sess.Overlays, ov)
		sess.SelectedOverlayID = ov.ID
		added = *ov
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &added, nil
}

// OverlayPatch carries partial overlay updates. Nil fields are untouched.
type OverlayPatch struct {
	Text   *string  `json:"text,omitempty"`
	Style  *string  `json:"style,omitempty"`
	PosX   *float64 `json:"pos_x,omitempty"`
	PosY   *float64 `json:"pos_y,omitempty"`
	StartS *float64 `json:"start_s,omitempty"`
	EndS   *float64 `json:"end_s,omitempty"`
}

// UpdateOverlay applies a patch to an overlay. Transient updates (live drag
// or resize frames) skip the history snapshot and persistence; the first one
// captures the pre-interaction state. The frontend sends a final
// non-transient patch on interaction end, which commits once against that
// captured state, so undoing the interaction restores the pre-drag overlay.
func (s *Service) UpdateOverlay(ctx context.Context, sessionID, overlayID string, patch OverlayPatch, transient bool) error {
	apply := func(st *state) error {
		sess := st.sess
		ov := sess.OverlayByID(overlayID)
		if ov == nil {
			return fmt.Errorf("overlay %s not found: %w", overlayID, ErrInvariant)
		}

		next := *ov
		if patch.Text != nil {
			next.Text = *patch.Text
		}
		if patch.Style != nil {
			next.Style = *patch.Style
		}
		if patch.PosX != nil {
			next.PosX = *patch.PosX
		}
		if patch.PosY != nil {
			next.PosY = *patch.PosY
		}
		if patch.StartS != nil {
			next.StartS = *patch.StartS
		}
		if patch.EndS != nil {
			next.EndS = *patch.EndS
		}

		dur := ComposedDuration(sess.Segments)
		if next.StartS < 0 || next.StartS >= next.EndS || next.EndS > dur+timeTolerance {
			return fmt.Errorf("overlay window [%.3f,%.3f) outside composition of %.3fs: %w",
				next.StartS, next.EndS, dur, ErrInvariant)
		}
		*ov = next
		return nil
	}

	if transient {
		s.mu.Lock()
		defer s.mu.Unlock()
		st, ok := s.states[sessionID]
		if !ok {
			return fmt.Errorf("session %s not found: %w", sessionID, ErrInvariant)
		}
		if st.pending == nil {
			st.pending = st.sess.Clone()
		}
		return apply(st)
	}
	return s.mutate(ctx, sessionID, apply)
}

// RemoveOverlay deletes an overlay; selection pointing at it clears.
func (s *Service) RemoveOverlay(ctx context.Context, sessionID, overlayID string) error {
	return s.mutate(ctx, sessionID, func(st *state) error {
		sess := st.sess
		if sess.OverlayByID(overlayID) == nil {
			return fmt.Errorf("overlay %s not found: %w", overlayID, ErrInvariant)
		}
		kept := sess.Overlays[:0]
		for _, ov := range sess.Overlays {
			if ov.ID != overlayID {
				kept = append(kept, ov)
			}
		}
		sess.Overlays = kept
		if sess.SelectedOverlayID == overlayID {
			sess.SelectedOverlayID = ""
		}
		return nil
	})
}

// SelectSegment updates the segment selection. Selection is transient view
// state: no history snapshot, and undo never restores it.
func (s *Service) SelectSegment(ctx context.Context, sessionID, segmentID string) error {
	return s.transient(sessionID, func(st *state) error {
		if segmentID != "" && st.sess.SegmentByID(segmentID) == nil {
			return fmt.Errorf("segment %s not found: %w", segmentID, ErrInvariant)
		}
		st.sess.SelectedSegmentID = segmentID
		st.sess.SelectedOverlayID = ""
		return nil
	})
}

// SelectOverlay updates the overlay selection.
func (s *Service) SelectOverlay(ctx context.Context, sessionID, overlayID string) error {
	return s.transient(sessionID, func(st *state) error {
		if overlayID != "" && st.sess.OverlayByID(overlayID) == nil {
			return fmt.Errorf("overlay %s not found: %w", overlayID, ErrInvariant)
		}
		st.sess.SelectedOverlayID = overlayID
		st.sess.SelectedSegmentID = ""
		return nil
	})
}

// SetPlayhead moves the global-time cursor. Scrubbing is continuous; it never
// commits history.
func (s *Service) SetPlayhead(ctx context.Context, sessionID string, globalS float64) error {
	return s.transient(sessionID, func(st *state) error {
		dur := ComposedDuration(st.sess.Segments)
		if globalS < 0 {
			globalS = 0
		}
		if globalS > dur {
			globalS = dur
		}
		st.playhead = globalS
		return nil
	})
}

// Playhead returns the current playhead position and play state.
func (s *Service) Playhead(sessionID string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[sessionID]
	if !ok {
		return 0, false
	}
	return st.playhead, st.playing
}

// Undo restores the previous snapshot. Returns false when the undo stack is
// empty; that is not an error.
func (s *Service) Undo(ctx context.Context, sessionID string) (bool, error) {
	return s.restore(ctx, sessionID, func(st *state) *Session {
		return st.history.Undo(st.sess)
	})
}

// Redo restores the most recently undone snapshot.
func (s *Service) Redo(ctx context.Context, sessionID string) (bool, error) {
	return s.restore(ctx, sessionID, func(st *state) *Session {
		return st.history.Redo(st.sess)
	})
}

func (s *Service) restore(ctx context.Context, sessionID string, pop func(*state) *Session) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[sessionID]
	if !ok {
		return false, fmt.Errorf("session %s not found: %w", sessionID, ErrInvariant)
	}

	restored := pop(st)
	if restored == nil {
		return false, nil
	}
	st.pending = nil

	// Thumbnails are not undoable content: a still that landed after the
	// snapshot was taken stays on the restored clip.
	for id, clip := range restored.Clips {
		if cur, ok := st.sess.Clips[id]; ok && cur.ThumbnailPath != "" {
			clip.ThumbnailPath = cur.ThumbnailPath
		}
	}

	// Selection survives a restore only while it still points at a live
	// entity; snapshots themselves carry no selection.
	if st.sess.SelectedSegmentID != "" && restored.SegmentByID(st.sess.SelectedSegmentID) != nil {
		restored.SelectedSegmentID = st.sess.SelectedSegmentID
	}
	if st.sess.SelectedOverlayID != "" && restored.OverlayByID(st.sess.SelectedOverlayID) != nil {
		restored.SelectedOverlayID = st.sess.SelectedOverlayID
	}
	restored.UpdatedAt = time.Now()
	st.sess = restored

	if err := s.repo.SaveSession(ctx, st.sess); err != nil {
		return true, fmt.Errorf("persist session: %w", err)
	}
	return true, nil
}

// mutate runs fn against the session under the lock. On success it pushes the
// pre-mutation snapshot onto the undo stack, re-validates coverage, bumps
// UpdatedAt, and persists. A pending pre-interaction snapshot left by
// transient frames is committed in place of the immediate predecessor. On any
// error the session is rolled back untouched.
func (s *Service) mutate(ctx context.Context, sessionID string, fn func(*state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[sessionID]
	if !ok {
		return fmt.Errorf("session %s not found: %w", sessionID, ErrInvariant)
	}

	prev := st.sess
	working := prev.Clone()
	st.sess = working

	if err := fn(st); err != nil {
		st.sess = prev
		return err
	}
	if err := checkCoverage(working); err != nil {
		st.sess = prev
		return err
	}

	working.UpdatedAt = time.Now()
	snap := prev
	if st.pending != nil {
		snap = st.pending
		st.pending = nil
	}
	st.history.Commit(snap)

	if err := s.repo.SaveSession(ctx, working); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// notifySessions pushes the live session count. Callers hold s.mu; the hub
// never blocks, so publishing under the lock is fine.
func (s *Service) notifySessions() {
	if s.notifier != nil {
		s.notifier.SessionsChanged(len(s.states))
	}
}

// transient runs fn under the lock without history or persistence.
func (s *Service) transient(sessionID string, fn func(*state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[sessionID]
	if !ok {
		return fmt.Errorf("session %s not found: %w", sessionID, ErrInvariant)
	}
	return fn(st)
}

// clampOverlays trims overlay windows that extend past the composed duration
// after a cut. A window that empties entirely is removed in the same commit.
func clampOverlays(sess *Session) {
	dur := ComposedDuration(sess.Segments)
	kept := sess.Overlays[:0]
	for _, ov := range sess.Overlays {
		if ov.StartS >= dur {
			if sess.SelectedOverlayID == ov.ID {
				sess.SelectedOverlayID = ""
			}
			continue
		}
		if ov.EndS > dur {
			ov.EndS = dur
		}
		kept = append(kept, ov)
	}
	sess.Overlays = kept
}

func newClip(in ClipInput, order int, now time.Time) *Clip {
	id := NewID()
	return &Clip{
		ID:               id,
		SourceRef:        in.SourceRef,
		DurationS:        in.DurationS,
		Width:            in.Width,
		Height:           in.Height,
		FPS:              in.FPS,
		PlaceholderColor: PlaceholderColor(id),
		Order:            order,
		CreatedAt:        now,
	}
}

func validateClipInput(in ClipInput) error {
	if in.SourceRef == "" {
		return fmt.Errorf("clip source ref is required: %w", ErrInvariant)
	}
	if in.DurationS <= 0 {
		return fmt.Errorf("clip duration must be positive: %w", ErrInvariant)
	}
	return nil
}

func reindexClips(sess *Session) {
	for i, c := range sess.OrderedClips() {
		c.Order = i
	}
}
