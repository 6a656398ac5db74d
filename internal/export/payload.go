package export

import (
	"encoding/json"
	"fmt"

	"github.com/cutroom/cutroom-agent/internal/config"
	"github.com/cutroom/cutroom-agent/internal/session"
)

// Options selects the style presets applied to an export. Empty ids fall back
// to the preset defaults.
type Options struct {
	CaptionStyleID  string `json:"caption_style_id,omitempty"`
	PlacementID     string `json:"placement_id,omitempty"`
	ResolutionCapID string `json:"resolution_cap_id,omitempty"`
}

// Payload is the composition document submitted to the render service: the
// ordered cut list, the overlay track, and the resolved style options.
type Payload struct {
	SessionID         string                `json:"session_id"`
	ComposedDurationS float64               `json:"composed_duration_s"`
	Clips             []PayloadClip         `json:"clips"`
	Segments          []PayloadSegment      `json:"segments"`
	Overlays          []PayloadOverlay      `json:"overlays"`
	CaptionStyle      config.CaptionStyle   `json:"caption_style"`
	Placement         config.Placement      `json:"placement"`
	ResolutionCap     config.ResolutionCap  `json:"resolution_cap"`
}

type PayloadClip struct {
	ID        string  `json:"id"`
	SourceRef string  `json:"source_ref"`
	DurationS float64 `json:"duration_s"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	FPS       float64 `json:"fps"`
}

type PayloadSegment struct {
	ClipID string  `json:"clip_id"`
	InS    float64 `json:"in_s"`
	OutS   float64 `json:"out_s"`
}

type PayloadOverlay struct {
	Kind   string  `json:"kind"`
	Text   string  `json:"text"`
	Style  string  `json:"style,omitempty"`
	PosX   float64 `json:"pos_x"`
	PosY   float64 `json:"pos_y"`
	StartS float64 `json:"start_s"`
	EndS   float64 `json:"end_s"`
}

// BuildPayload serializes a session snapshot plus resolved style options.
// Selection state never travels; the render service has no use for it.
func BuildPayload(sess *session.Session, opts Options, presets config.Presets) ([]byte, error) {
	style, placement, resCap, err := resolveOptions(opts, presets)
	if err != nil {
		return nil, err
	}

	p := Payload{
		SessionID:         sess.ID,
		ComposedDurationS: session.ComposedDuration(sess.Segments),
		Clips:             make([]PayloadClip, 0, len(sess.Clips)),
		Segments:          make([]PayloadSegment, 0, len(sess.Segments)),
		Overlays:          make([]PayloadOverlay, 0, len(sess.Overlays)),
		CaptionStyle:      *style,
		Placement:         *placement,
		ResolutionCap:     *resCap,
	}

	for _, clip := range sess.OrderedClips() {
		p.Clips = append(p.Clips, PayloadClip{
			ID:        clip.ID,
			SourceRef: clip.SourceRef,
			DurationS: clip.DurationS,
			Width:     clip.Width,
			Height:    clip.Height,
			FPS:       clip.FPS,
		})
	}
	for _, seg := range sess.Segments {
		p.Segments = append(p.Segments, PayloadSegment{ClipID: seg.ClipID, InS: seg.InS, OutS: seg.OutS})
	}
	for _, ov := range sess.Overlays {
		p.Overlays = append(p.Overlays, PayloadOverlay{
			Kind:   string(ov.Kind),
			Text:   ov.Text,
			Style:  ov.Style,
			PosX:   ov.PosX,
			PosY:   ov.PosY,
			StartS: ov.StartS,
			EndS:   ov.EndS,
		})
	}

	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal export payload: %w", err)
	}
	return data, nil
}

func resolveOptions(opts Options, presets config.Presets) (*config.CaptionStyle, *config.Placement, *config.ResolutionCap, error) {
	styleID := opts.CaptionStyleID
	if styleID == "" {
		styleID = presets.Defaults.CaptionStyle
	}
	style := presets.CaptionStyle(styleID)
	if style == nil {
		return nil, nil, nil, fmt.Errorf("unknown caption style %q", styleID)
	}

	placementID := opts.PlacementID
	if placementID == "" {
		placementID = presets.Defaults.Placement
	}
	placement := presets.Placement(placementID)
	if placement == nil {
		return nil, nil, nil, fmt.Errorf("unknown placement %q", placementID)
	}

	capID := opts.ResolutionCapID
	if capID == "" {
		capID = presets.Defaults.ResolutionCap
	}
	resCap := presets.ResolutionCap(capID)
	if resCap == nil {
		return nil, nil, nil, fmt.Errorf("unknown resolution cap %q", capID)
	}

	return style, placement, resCap, nil
}
