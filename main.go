// Package main provides a local meeting monitor that meters audio devices in
// real time, streams speech to a transcription provider, and summarizes the
// transcript with an LLM endpoint.
//
// Usage:
//
//	maceaves [-config path/to/config.json]
//
// If -config is not specified, the application looks for config.json in the
// same directory as the binary.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/acousland/MacEaves/internal/audio"
	"github.com/acousland/MacEaves/internal/config"
	"github.com/acousland/MacEaves/internal/eventlog"
	"github.com/acousland/MacEaves/internal/monitor"
	"github.com/acousland/MacEaves/internal/notify"
	"github.com/acousland/MacEaves/internal/recording"
	"github.com/acousland/MacEaves/internal/transcribe"
	"github.com/acousland/MacEaves/internal/types"
	"github.com/acousland/MacEaves/internal/util"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: config.json next to binary)")
	showVersion := flag.Bool("version", false, "Print version information and exit")
	flag.Parse()

	if *showVersion {
		slog.Info("version info", "version", Version, "commit", Commit, "build_time", BuildTime)
		return
	}

	if *configPath == "" {
		execPath, err := os.Executable()
		if err != nil {
			slog.Error("failed to get executable path", "error", err)
			os.Exit(1)
		}
		*configPath = filepath.Join(filepath.Dir(execPath), "config.json")
	}

	slog.Info("using config file", "path", *configPath)

	cfg := config.New(*configPath)
	if err := cfg.Load(); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	snap := cfg.Snapshot()

	platform, err := audio.NewMalgoPlatform()
	if err != nil {
		slog.Error("failed to initialize audio backend", "error", err)
		os.Exit(1)
	}
	defer util.SafeCloseFunc(platform, "audio backend")()

	catalog := audio.NewCatalog(platform)
	coordinator := monitor.NewCoordinator(platform, catalog)
	engine := transcribe.NewEngine(platform)
	notifier := notify.NewNotifier(cfg)

	eventPath := eventlog.DefaultLogPath(snap.WebPort)
	if snap.HasLogPath() {
		eventPath = snap.LogPath
	}
	events, err := eventlog.NewLogger(eventPath)
	if err != nil {
		slog.Error("failed to open event log", "path", eventPath, "error", err)
		os.Exit(1)
	}
	defer util.SafeCloseFunc(events, "event log")()

	recorder, err := recording.NewManager(snap.ArchiveDirectory, snap.RetentionDays, func() *recording.S3Config {
		s := cfg.Snapshot()
		if !s.HasS3() {
			return nil
		}
		return &recording.S3Config{
			Endpoint:        s.S3Endpoint,
			Bucket:          s.S3Bucket,
			AccessKeyID:     s.S3AccessKeyID,
			SecretAccessKey: s.S3SecretKey,
		}
	})
	if err != nil {
		slog.Error("failed to initialize recording storage", "dir", snap.ArchiveDirectory, "error", err)
		os.Exit(1)
	}
	defer recorder.Stop()

	// Device loss flows: session -> coordinator -> alerts and event log.
	coordinator.OnDeviceLost = func(deviceID string, direction types.Direction, lossErr error) {
		cause := ""
		name := ""
		if lossErr != nil {
			cause = lossErr.Error()
		}
		if dev, ok := catalog.Find(deviceID); ok {
			name = dev.Name
		}
		notifier.HandleDeviceLost(deviceID, name, direction, cause)
		if logErr := events.LogMonitor(eventlog.DeviceLost, deviceID, name, direction, cause); logErr != nil {
			slog.Warn("failed to write event log", "error", logErr)
		}
	}

	// Every transcription session is tee'd to a WAV recorder for archiving.
	engine.NewSink = func(sessionID string) (transcribe.Sink, error) {
		return recorder.NewSessionRecorder(sessionID)
	}

	recorder.OnArchived = func(key string, archiveErr error) {
		if logErr := events.LogUpload(key, archiveErr); logErr != nil {
			slog.Warn("failed to write event log", "error", logErr)
		}
	}

	srv := NewServer(cfg, catalog, coordinator, engine, recorder, notifier, events)
	httpServer := srv.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, util.ShutdownSignals()...)
	<-sigChan

	slog.Info("shutting down")

	srv.version.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	if err := engine.Stop(); err != nil && err != transcribe.ErrNotRunning {
		slog.Error("error stopping transcription", "error", err)
	}
	if err := coordinator.StopAll(); err != nil {
		slog.Error("error closing capture sessions", "error", err)
	}

	slog.Info("shutdown complete")
}
