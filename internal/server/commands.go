package server

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/acousland/MacEaves/internal/audio"
	"github.com/acousland/MacEaves/internal/config"
	"github.com/acousland/MacEaves/internal/eventlog"
	"github.com/acousland/MacEaves/internal/monitor"
	"github.com/acousland/MacEaves/internal/notify"
	"github.com/acousland/MacEaves/internal/recording"
	"github.com/acousland/MacEaves/internal/transcribe"
	"github.com/acousland/MacEaves/internal/types"
)

// MaxEventEntries is the default number of event log entries to return.
const MaxEventEntries = 100

// WSCommand is a command received from a WebSocket client.
type WSCommand struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// CommandHandler processes WebSocket commands against the application
// components.
type CommandHandler struct {
	cfg      *config.Config
	catalog  *audio.Catalog
	monitor  *monitor.Coordinator
	engine   *transcribe.Engine
	recorder *recording.Manager
	notifier *notify.Notifier
	events   *eventlog.Logger

	mu          sync.Mutex
	lastSummary *types.Summary
}

// NewCommandHandler creates a new command handler.
func NewCommandHandler(cfg *config.Config, catalog *audio.Catalog, mon *monitor.Coordinator, engine *transcribe.Engine, rec *recording.Manager, notifier *notify.Notifier, events *eventlog.Logger) *CommandHandler {
	return &CommandHandler{
		cfg:      cfg,
		catalog:  catalog,
		monitor:  mon,
		engine:   engine,
		recorder: rec,
		notifier: notifier,
		events:   events,
	}
}

// LastSummary returns the most recent summarization result, if any.
func (h *CommandHandler) LastSummary() *types.Summary {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastSummary
}

func (h *CommandHandler) setLastSummary(s *types.Summary) {
	h.mu.Lock()
	h.lastSummary = s
	h.mu.Unlock()
}

// Handle processes a WebSocket command and performs the requested action.
// Commands use slash-style format: namespace/action (e.g., "monitor/start",
// "notifications/webhook/update").
func (h *CommandHandler) Handle(cmd WSCommand, send chan<- any, triggerStatusUpdate func()) {
	parts := strings.SplitN(cmd.Type, "/", 3)
	namespace := parts[0]
	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}
	subaction := ""
	if len(parts) > 2 {
		subaction = parts[2]
	}

	switch namespace {
	case "monitor":
		h.handleMonitor(action, cmd, send)
	case "transcribe":
		h.handleTranscribe(action, cmd, send)
	case "summarize":
		h.handleSummarize(action, cmd, send)
	case "devices":
		h.handleDevices(action, cmd, send)
	case "settings":
		h.handleSettings(action, subaction, cmd, send)
	case "notifications":
		h.handleNotifications(action, subaction, cmd, send)
	case "archive":
		h.handleArchive(action, cmd, send)
	case "events":
		h.handleEvents(action, cmd, send)
	case "system":
		h.handleSystem(action, cmd, send)
	case "status":
		h.handleStatus(action)
	default:
		slog.Warn("unknown WebSocket command", "type", cmd.Type)
	}

	triggerStatusUpdate()
}

// --- Namespace routers ---

// handleMonitor routes monitor/* commands
func (h *CommandHandler) handleMonitor(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "start":
		h.handleMonitorStart(cmd, send)
	case "stop":
		h.handleMonitorStop(cmd, send)
	case "stop_all":
		h.handleMonitorStopAll(cmd, send)
	default:
		slog.Warn("unknown monitor action", "action", action)
	}
}

// handleTranscribe routes transcribe/* commands
func (h *CommandHandler) handleTranscribe(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "start":
		h.handleTranscribeStart(cmd, send)
	case "stop":
		h.handleTranscribeStop(cmd, send)
	default:
		slog.Warn("unknown transcribe action", "action", action)
	}
}

// handleSummarize routes summarize/* commands
func (h *CommandHandler) handleSummarize(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "run":
		h.handleSummarizeRun(cmd, send)
	case "get":
		h.handleSummarizeGet(send)
	default:
		slog.Warn("unknown summarize action", "action", action)
	}
}

// handleDevices routes devices/* commands
func (h *CommandHandler) handleDevices(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "update":
		h.handleDevicesUpdate(cmd, send)
	case "refresh":
		h.handleDevicesRefresh(cmd, send)
	default:
		slog.Warn("unknown devices action", "action", action)
	}
}

// handleSettings routes settings/*/* commands
func (h *CommandHandler) handleSettings(action, subaction string, cmd WSCommand, send chan<- any) {
	switch action {
	case "transcription":
		if subaction == "update" {
			h.handleTranscriptionUpdate(cmd, send)
			return
		}
		slog.Warn("unknown transcription action", "subaction", subaction)
	case "summarizer":
		if subaction == "update" {
			h.handleSummarizerUpdate(cmd, send)
			return
		}
		slog.Warn("unknown summarizer action", "subaction", subaction)
	default:
		slog.Warn("unknown settings action", "action", action)
	}
}

// handleNotifications routes notifications/*/* commands
func (h *CommandHandler) handleNotifications(action, subaction string, cmd WSCommand, send chan<- any) {
	switch action {
	case "webhook":
		switch subaction {
		case "update":
			h.handleWebhookUpdate(cmd, send)
		case "test":
			h.handleTest(send, "test_webhook")
		default:
			slog.Warn("unknown webhook action", "subaction", subaction)
		}
	case "log":
		switch subaction {
		case "update":
			h.handleLogUpdate(cmd, send)
		default:
			slog.Warn("unknown log action", "subaction", subaction)
		}
	case "email":
		switch subaction {
		case "update":
			h.handleEmailUpdate(cmd, send)
		case "test":
			h.handleTest(send, "test_email")
		default:
			slog.Warn("unknown email action", "subaction", subaction)
		}
	default:
		slog.Warn("unknown notifications action", "action", action)
	}
}

// handleArchive routes archive/* commands
func (h *CommandHandler) handleArchive(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "update":
		h.handleArchiveUpdate(cmd, send)
	case "test-s3":
		h.handleTestArchiveS3(cmd, send)
	default:
		slog.Warn("unknown archive action", "action", action)
	}
}

// handleEvents routes events/* commands
func (h *CommandHandler) handleEvents(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "read":
		h.handleEventsRead(cmd, send)
	default:
		slog.Warn("unknown events action", "action", action)
	}
}

// handleSystem routes system/* commands
func (h *CommandHandler) handleSystem(action string, cmd WSCommand, send chan<- any) {
	switch action {
	case "regenerate-key":
		h.handleRegenerateAPIKey(cmd, send)
	default:
		slog.Warn("unknown system action", "action", action)
	}
}

// handleStatus routes status/* commands
func (h *CommandHandler) handleStatus(action string) {
	switch action {
	case "get":
		// Status is sent automatically, but explicit get triggers immediate update
		slog.Debug("status/get received, status update will be triggered")
	default:
		slog.Warn("unknown status action", "action", action)
	}
}
