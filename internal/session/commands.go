package session

import (
	"context"
	"errors"
	"fmt"
)

// Command names a keyboard-driven editor action. The frontend translates key
// events (Space, Delete/Backspace, Ctrl/Cmd+Z, Ctrl/Cmd+Shift+Z or +Y) into
// these and dispatches them here.
type Command string

const (
	CommandPlayPause      Command = "play_pause"
	CommandSplit          Command = "split"
	CommandDeleteSelected Command = "delete_selected"
	CommandUndo           Command = "undo"
	CommandRedo           Command = "redo"
)

// DispatchResult reports whether a command was applied. Rejections (focus
// guard, invariant violations, exhausted history) are not errors: the UI
// simply does not change.
type DispatchResult struct {
	Applied bool   `json:"applied"`
	Reason  string `json:"reason,omitempty"`
}

// Dispatcher routes keyboard commands to the session service. When the
// frontend reports that focus is inside a text-editing control, every command
// is dropped so ordinary typing is never intercepted.
type Dispatcher struct {
	svc *Service
}

func NewDispatcher(svc *Service) *Dispatcher {
	return &Dispatcher{svc: svc}
}

func (d *Dispatcher) Dispatch(ctx context.Context, sessionID string, cmd Command, focusInText bool) (DispatchResult, error) {
	if focusInText {
		return DispatchResult{Applied: false, Reason: "text field focused"}, nil
	}

	switch cmd {
	case CommandPlayPause:
		err := d.svc.transient(sessionID, func(st *state) error {
			st.playing = !st.playing
			return nil
		})
		if err != nil {
			return DispatchResult{}, err
		}
		return DispatchResult{Applied: true}, nil

	case CommandSplit:
		playhead, _ := d.svc.Playhead(sessionID)
		return rejectable(d.svc.SplitAt(ctx, sessionID, playhead))

	case CommandDeleteSelected:
		return d.deleteSelected(ctx, sessionID)

	case CommandUndo:
		applied, err := d.svc.Undo(ctx, sessionID)
		return historyResult(applied, err)

	case CommandRedo:
		applied, err := d.svc.Redo(ctx, sessionID)
		return historyResult(applied, err)

	default:
		return DispatchResult{}, fmt.Errorf("unknown command %q: %w", cmd, ErrInvariant)
	}
}

// deleteSelected removes the selected overlay if one is selected, otherwise
// the selected segment. Nothing selected is a no-op.
func (d *Dispatcher) deleteSelected(ctx context.Context, sessionID string) (DispatchResult, error) {
	sess, err := d.svc.GetSession(ctx, sessionID)
	if err != nil {
		return DispatchResult{}, err
	}
	if sess == nil {
		return DispatchResult{}, fmt.Errorf("session %s not found: %w", sessionID, ErrInvariant)
	}

	if sess.SelectedOverlayID != "" {
		return rejectable(d.svc.RemoveOverlay(ctx, sessionID, sess.SelectedOverlayID))
	}
	if sess.SelectedSegmentID != "" {
		return rejectable(d.svc.DeleteSegment(ctx, sessionID, sess.SelectedSegmentID))
	}
	return DispatchResult{Applied: false, Reason: "nothing selected"}, nil
}

// rejectable converts invariant violations into a clean rejection; other
// errors propagate.
func rejectable(err error) (DispatchResult, error) {
	if err == nil {
		return DispatchResult{Applied: true}, nil
	}
	if errors.Is(err, ErrInvariant) {
		return DispatchResult{Applied: false, Reason: err.Error()}, nil
	}
	return DispatchResult{}, err
}

func historyResult(applied bool, err error) (DispatchResult, error) {
	if err != nil {
		return DispatchResult{}, err
	}
	if !applied {
		return DispatchResult{Applied: false, Reason: "history exhausted"}, nil
	}
	return DispatchResult{Applied: true}, nil
}
