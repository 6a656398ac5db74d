package ui

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/getlantern/systray"
)

// Tray is the minimal desktop presence of the agent: current export state,
// session count, and a way to quit.
type Tray struct {
	logger *slog.Logger

	statusItem   *systray.MenuItem
	sessionsItem *systray.MenuItem

	mu sync.Mutex

	onOpen func()
	onQuit func()
}

type TrayConfig struct {
	Logger *slog.Logger
	OnOpen func()
	OnQuit func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		logger: cfg.Logger,
		onOpen: cfg.OnOpen,
		onQuit: cfg.OnQuit,
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes())
	systray.SetTitle("Cutroom")
	systray.SetTooltip("Cutroom Agent")

	t.statusItem = systray.AddMenuItem("Status: Idle", "Current agent status")
	t.statusItem.Disable()

	t.sessionsItem = systray.AddMenuItem("Sessions: 0", "Open editing sessions")
	t.sessionsItem.Disable()

	systray.AddSeparator()

	openItem := systray.AddMenuItem("Open Editor...", "Open the editor window")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Cutroom Agent")

	go func() {
		for {
			select {
			case <-openItem.ClickedCh:
				if t.onOpen != nil {
					t.onOpen()
				}
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

// UpdateExport reflects export progress in the status line.
func (t *Tray) UpdateExport(state string, progress int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.statusItem == nil {
		return
	}
	switch state {
	case "starting", "exporting":
		t.statusItem.SetTitle(fmt.Sprintf("Status: Exporting %d%%", progress))
	case "error":
		t.statusItem.SetTitle("Status: Export failed")
	case "complete":
		t.statusItem.SetTitle("Status: Export complete")
	default:
		t.statusItem.SetTitle("Status: Idle")
	}
}

func (t *Tray) UpdateSessionsCount(count int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sessionsItem == nil {
		return
	}
	t.sessionsItem.SetTitle(fmt.Sprintf("Sessions: %d", count))
}

func (t *Tray) Quit() {
	systray.Quit()
}
