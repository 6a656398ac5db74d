package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cutroom/cutroom-agent/internal/api"
	"github.com/cutroom/cutroom-agent/internal/config"
	"github.com/cutroom/cutroom-agent/internal/db"
	"github.com/cutroom/cutroom-agent/internal/events"
	"github.com/cutroom/cutroom-agent/internal/export"
	"github.com/cutroom/cutroom-agent/internal/logging"
	"github.com/cutroom/cutroom-agent/internal/playback"
	"github.com/cutroom/cutroom-agent/internal/render"
	"github.com/cutroom/cutroom-agent/internal/session"
	"github.com/cutroom/cutroom-agent/internal/thumbs"
	"github.com/cutroom/cutroom-agent/internal/ui"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := os.MkdirAll(cfg.ThumbsDir(), 0755); err != nil {
		return fmt.Errorf("failed to create thumbs dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting cutroom agent", "version", config.Version, "data_dir", cfg.DataDir())

	presets, err := config.LoadPresets(cfg.PresetsPath())
	if err != nil {
		return fmt.Errorf("failed to load style presets: %w", err)
	}

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := session.NewRepository(database.Conn())

	deviceID, err := ensureDeviceID(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}
	logger.Info("agent identity ready",
		"device_id", deviceID[:16]+"...",
		"api_url", fmt.Sprintf("http://127.0.0.1:%d", cfg.Port()),
		"auth_token", logging.SanitizeToken(authToken),
	)

	hub := events.NewHub(logger)

	sessionSvc := session.NewService(repo, hub, logger)
	if err := sessionSvc.LoadAll(context.Background()); err != nil {
		return fmt.Errorf("failed to restore sessions: %w", err)
	}
	dispatcher := session.NewDispatcher(sessionSvc)

	var renderClient render.Client
	if cfg.RenderBaseURL() != "" && cfg.RenderToken() != "" {
		renderClient = render.NewHTTPClient(cfg.RenderBaseURL(), cfg.RenderToken(), logger)
		logger.Info("render service configured", "base_url", cfg.RenderBaseURL())
	} else {
		renderClient = render.NewStubClient(logger)
		logger.Warn("render service not configured, using stub client")
	}

	exports := export.NewManager(export.ManagerConfig{
		Client:       renderClient,
		Service:      sessionSvc,
		Presets:      presets,
		Store:        export.NewStore(database.Conn()),
		Notifier:     hub,
		Logger:       logger,
		PollInterval: cfg.RenderPollInterval(),
	})

	var provider thumbs.Provider
	if p, err := thumbs.NewFFmpegProvider(logger); err != nil {
		logger.Warn("ffmpeg unavailable, thumbnails disabled", "error", err)
		provider = thumbs.NewStubProvider(logger)
	} else {
		provider = p
	}
	generator := thumbs.NewGenerator(provider, sessionSvc, cfg.ThumbsDir(), logger)

	apiServer := api.NewServer(api.ServerConfig{
		Port:           cfg.Port(),
		SessionService: sessionSvc,
		Dispatcher:     dispatcher,
		Exports:        exports,
		Thumbs:         generator,
		Playback:       playback.NewServer(logger),
		Repository:     repo,
		Hub:            hub,
		Presets:        presets,
		Logger:         logger,
		StartTime:      startTime,
		DeviceID:       deviceID,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			close(quitCh)
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Logger: logger,
			OnOpen: func() {
				logger.Info("open editor requested from tray (frontend launches itself in v0)")
			},
			OnQuit: func() {
				close(quitCh)
			},
		})
		go tray.Run()
		go mirrorEventsToTray(hub, tray)
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")

	// Export poll loops and thumbnail workers must be fully stopped before
	// the process exits; nothing may keep polling past teardown.
	exports.Close()
	generator.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func mirrorEventsToTray(hub *events.Hub, tray *ui.Tray) {
	stream, cancel := hub.Subscribe()
	defer cancel()

	progress := 0
	for ev := range stream {
		switch ev.Type {
		case events.TypeExportProgress:
			progress = ev.Progress
			tray.UpdateExport("exporting", progress)
		case events.TypeExportState:
			tray.UpdateExport(ev.State, progress)
		case events.TypeSessionCount:
			tray.UpdateSessionsCount(ev.Sessions)
		}
	}
}

func ensureDeviceID(repo session.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "device_id")
	if err == nil && existing != "" {
		return existing, nil
	}

	idBytes := make([]byte, 16)
	if _, err := rand.Read(idBytes); err != nil {
		return "", err
	}
	deviceID := hex.EncodeToString(idBytes)

	if err := repo.SetConfig(ctx, "device_id", deviceID); err != nil {
		return "", err
	}

	return deviceID, nil
}

func ensureAuthToken(repo session.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "auth_token")
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, "auth_token", token); err != nil {
		return "", err
	}

	return token, nil
}
