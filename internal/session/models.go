package session

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OverlayKind distinguishes the two text overlay variants the editor offers.
type OverlayKind string

const (
	OverlayHeader    OverlayKind = "header"
	OverlaySubheader OverlayKind = "subheader"
)

// Clip is an imported source media file plus its presentation metadata.
// The source reference and probe metadata are immutable after import;
// thumbnail and order are display state.
type Clip struct {
	ID               string    `json:"id"`
	SourceRef        string    `json:"source_ref"`
	DurationS        float64   `json:"duration_s"`
	Width            int       `json:"width"`
	Height           int       `json:"height"`
	FPS              float64   `json:"fps"`
	ThumbnailPath    string    `json:"thumbnail_path,omitempty"`
	PlaceholderColor string    `json:"placeholder_color"`
	Order            int       `json:"order"`
	CreatedAt        time.Time `json:"created_at"`
}

// Segment is a contiguous in/out range of one clip that is live in the
// composed timeline. Global positions are never stored; they derive from
// segment order and durations, so the composition always starts at 0.
type Segment struct {
	ID     string  `json:"id"`
	ClipID string  `json:"clip_id"`
	InS    float64 `json:"in_s"`
	OutS   float64 `json:"out_s"`
	Order  int     `json:"order"`
}

// Duration returns the playable length of the segment in seconds.
func (s *Segment) Duration() float64 {
	return s.OutS - s.InS
}

// TextOverlay is a time-boxed annotation positioned in the composition's
// global timeline. Its lifecycle is independent from segments.
type TextOverlay struct {
	ID     string      `json:"id"`
	Kind   OverlayKind `json:"kind"`
	Text   string      `json:"text"`
	Style  string      `json:"style,omitempty"`
	PosX   float64     `json:"pos_x"`
	PosY   float64     `json:"pos_y"`
	StartS float64     `json:"start_s"`
	EndS   float64     `json:"end_s"`
}

// Session is the full editable state of one composition: clips, segments,
// overlays, and selection. Selection fields are transient view state and are
// excluded from history snapshots.
type Session struct {
	ID       string                  `json:"id"`
	Name     string                  `json:"name"`
	Clips    map[string]*Clip        `json:"clips"`
	Segments []*Segment              `json:"segments"`
	Overlays []*TextOverlay          `json:"overlays"`

	SelectedSegmentID string `json:"selected_segment_id,omitempty"`
	SelectedOverlayID string `json:"selected_overlay_id,omitempty"`
	ActiveClipID      string `json:"active_clip_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ClipInput carries the probe metadata for a clip being imported. The source
// reference is issued by the upload collaborator before the clip reaches the
// registry.
type ClipInput struct {
	SourceRef string  `json:"source_ref"`
	DurationS float64 `json:"duration_s"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	FPS       float64 `json:"fps"`
}

// Clone returns a deep copy of the session. History snapshots and restores
// operate on clones so no live pointer ever aliases a stack entry.
func (s *Session) Clone() *Session {
	c := &Session{
		ID:                s.ID,
		Name:              s.Name,
		Clips:             make(map[string]*Clip, len(s.Clips)),
		Segments:          make([]*Segment, len(s.Segments)),
		Overlays:          make([]*TextOverlay, len(s.Overlays)),
		SelectedSegmentID: s.SelectedSegmentID,
		SelectedOverlayID: s.SelectedOverlayID,
		ActiveClipID:      s.ActiveClipID,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
	for id, clip := range s.Clips {
		cp := *clip
		c.Clips[id] = &cp
	}
	for i, seg := range s.Segments {
		sp := *seg
		c.Segments[i] = &sp
	}
	for i, ov := range s.Overlays {
		op := *ov
		c.Overlays[i] = &op
	}
	return c
}

// SegmentByID returns the segment with the given id, or nil.
func (s *Session) SegmentByID(id string) *Segment {
	for _, seg := range s.Segments {
		if seg.ID == id {
			return seg
		}
	}
	return nil
}

// OverlayByID returns the overlay with the given id, or nil.
func (s *Session) OverlayByID(id string) *TextOverlay {
	for _, ov := range s.Overlays {
		if ov.ID == id {
			return ov
		}
	}
	return nil
}

// OrderedClips returns the session's clips sorted by order.
func (s *Session) OrderedClips() []*Clip {
	clips := make([]*Clip, 0, len(s.Clips))
	for _, c := range s.Clips {
		clips = append(clips, c)
	}
	for i := 1; i < len(clips); i++ {
		for j := i; j > 0 && clips[j-1].Order > clips[j].Order; j-- {
			clips[j-1], clips[j] = clips[j], clips[j-1]
		}
	}
	return clips
}

// NewID returns a fresh entity identifier.
func NewID() string {
	return uuid.NewString()
}

// PlaceholderColor derives a stable color for a clip that has no thumbnail
// yet, so the frontend renders something distinctive without waiting for the
// still frame.
func PlaceholderColor(clipID string) string {
	sum := sha256.Sum256([]byte(clipID))
	return fmt.Sprintf("#%02x%02x%02x", sum[0], sum[1], sum[2])
}
