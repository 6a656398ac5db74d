package api

import (
	"time"

	"github.com/cutroom/cutroom-agent/internal/export"
	"github.com/cutroom/cutroom-agent/internal/session"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	DeviceID string `json:"device_id"`
}

type StatusResponse struct {
	State          string `json:"state"`
	SessionsCount  int    `json:"sessions_count"`
	ExportsRunning int    `json:"exports_running"`
	LastError      string `json:"last_error,omitempty"`
}

type CreateSessionRequest struct {
	Name      string            `json:"name"`
	FirstClip session.ClipInput `json:"first_clip"`
}

type AddClipRequest struct {
	Clip session.ClipInput `json:"clip"`
}

type ReorderClipRequest struct {
	Order int `json:"order"`
}

type SplitRequest struct {
	TimeS float64 `json:"time_s"`
}

type AddOverlayRequest struct {
	Kind session.OverlayKind `json:"kind"`
}

type UpdateOverlayRequest struct {
	Patch     session.OverlayPatch `json:"patch"`
	Transient bool                 `json:"transient,omitempty"`
}

type PlayheadRequest struct {
	TimeS float64 `json:"time_s"`
}

type CommandRequest struct {
	Command     session.Command `json:"command"`
	FocusInText bool            `json:"focus_in_text"`
}

type HistoryResponse struct {
	Applied bool `json:"applied"`
	CanUndo bool `json:"can_undo"`
	CanRedo bool `json:"can_redo"`
}

type StartExportRequest struct {
	Options export.Options `json:"options"`
}

type ExportResponse struct {
	Status          string `json:"status"`
	ProgressPercent int    `json:"progress_percent"`
	DownloadRef     string `json:"download_ref,omitempty"`
	ErrorMessage    string `json:"error_message,omitempty"`
	UpdatedAt       string `json:"updated_at"`
}

type SessionResponse struct {
	ID                string                 `json:"id"`
	Name              string                 `json:"name"`
	Clips             []session.Clip         `json:"clips"`
	Segments          []session.Segment      `json:"segments"`
	Overlays          []session.TextOverlay  `json:"overlays"`
	SelectedSegmentID string                 `json:"selected_segment_id,omitempty"`
	SelectedOverlayID string                 `json:"selected_overlay_id,omitempty"`
	ActiveClipID      string                 `json:"active_clip_id,omitempty"`
	ComposedDurationS float64                `json:"composed_duration_s"`
	PlayheadS         float64                `json:"playhead_s"`
	Playing           bool                   `json:"playing"`
	CanUndo           bool                   `json:"can_undo"`
	CanRedo           bool                   `json:"can_redo"`
	CreatedAt         string                 `json:"created_at"`
	UpdatedAt         string                 `json:"updated_at"`
}

type SessionsResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func ExportToResponse(j export.Job) ExportResponse {
	return ExportResponse{
		Status:          string(j.Status),
		ProgressPercent: j.ProgressPercent,
		DownloadRef:     j.DownloadRef,
		ErrorMessage:    j.ErrorMessage,
		UpdatedAt:       j.UpdatedAt.Format(time.RFC3339),
	}
}

func SessionToResponse(s *session.Session, playheadS float64, playing, canUndo, canRedo bool) SessionResponse {
	resp := SessionResponse{
		ID:                s.ID,
		Name:              s.Name,
		Clips:             make([]session.Clip, 0, len(s.Clips)),
		Segments:          make([]session.Segment, 0, len(s.Segments)),
		Overlays:          make([]session.TextOverlay, 0, len(s.Overlays)),
		SelectedSegmentID: s.SelectedSegmentID,
		SelectedOverlayID: s.SelectedOverlayID,
		ActiveClipID:      s.ActiveClipID,
		ComposedDurationS: session.ComposedDuration(s.Segments),
		PlayheadS:         playheadS,
		Playing:           playing,
		CanUndo:           canUndo,
		CanRedo:           canRedo,
		CreatedAt:         s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         s.UpdatedAt.Format(time.RFC3339),
	}
	for _, c := range s.OrderedClips() {
		resp.Clips = append(resp.Clips, *c)
	}
	for _, seg := range s.Segments {
		resp.Segments = append(resp.Segments, *seg)
	}
	for _, ov := range s.Overlays {
		resp.Overlays = append(resp.Overlays, *ov)
	}
	return resp
}
