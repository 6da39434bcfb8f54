package server

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/acousland/MacEaves/internal/audio"
	"github.com/acousland/MacEaves/internal/audio/audiotest"
	"github.com/acousland/MacEaves/internal/config"
	"github.com/acousland/MacEaves/internal/eventlog"
	"github.com/acousland/MacEaves/internal/monitor"
	"github.com/acousland/MacEaves/internal/notify"
	"github.com/acousland/MacEaves/internal/recording"
	"github.com/acousland/MacEaves/internal/transcribe"
)

func newTestHandler(t *testing.T) (*CommandHandler, *audiotest.FakePlatform) {
	t.Helper()

	platform := &audiotest.FakePlatform{
		Inputs:  []audio.PlatformDevice{{ID: "mic-1", Name: "Test Mic", Channels: 2}},
		Outputs: []audio.PlatformDevice{{ID: "spk-1", Name: "Test Speakers", Channels: 2}},
	}
	catalog := audio.NewCatalog(platform)
	coord := monitor.NewCoordinator(platform, catalog)
	engine := transcribe.NewEngine(platform)

	cfg := config.New(filepath.Join(t.TempDir(), "config.json"))
	if err := cfg.Load(); err != nil {
		t.Fatalf("config load: %v", err)
	}

	rec, err := recording.NewManager(t.TempDir(), 0, func() *recording.S3Config { return nil })
	if err != nil {
		t.Fatalf("recording manager: %v", err)
	}
	t.Cleanup(rec.Stop)

	events, err := eventlog.NewLogger(filepath.Join(t.TempDir(), "events.jsonl"))
	if err != nil {
		t.Fatalf("event logger: %v", err)
	}
	t.Cleanup(func() { _ = events.Close() })

	h := NewCommandHandler(cfg, catalog, coord, engine, rec, notify.NewNotifier(cfg), events)
	t.Cleanup(func() { _ = coord.StopAll() })
	return h, platform
}

func command(t *testing.T, cmdType string, data any) WSCommand {
	t.Helper()
	cmd := WSCommand{Type: cmdType}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			t.Fatalf("marshal command data: %v", err)
		}
		cmd.Data = raw
	}
	return cmd
}

// awaitResult drains the send channel until a message of the wanted type
// arrives. Async handlers deliver results on their own goroutines.
func awaitResult(t *testing.T, send chan any, wantType string) map[string]any {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-send:
			result, ok := msg.(map[string]any)
			if !ok {
				continue
			}
			if result["type"] == wantType {
				return result
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", wantType)
		}
	}
}

func TestMonitorStartStopCommands(t *testing.T) {
	h, platform := newTestHandler(t)
	send := make(chan any, 16)
	statusUpdates := 0
	trigger := func() { statusUpdates++ }

	h.Handle(command(t, "monitor/start", MonitorStartRequest{DeviceID: "mic-1", Direction: "input"}), send, trigger)

	result := awaitResult(t, send, "monitor/start_result")
	if result["success"] != true {
		t.Fatalf("expected monitor/start to succeed, got %v", result)
	}
	if platform.GraphCount() != 1 {
		t.Errorf("expected 1 graph opened, got %d", platform.GraphCount())
	}
	if statusUpdates == 0 {
		t.Error("expected status update to be triggered")
	}

	h.Handle(command(t, "monitor/stop", MonitorStopRequest{DeviceID: "mic-1", Direction: "input"}), send, trigger)
	result = awaitResult(t, send, "monitor/stop_result")
	if result["success"] != true {
		t.Fatalf("expected monitor/stop to succeed, got %v", result)
	}
	if platform.LastGraph().Started() {
		t.Error("expected graph to be stopped")
	}

	// Lifecycle events land in the log.
	events, _, err := eventlog.ReadLast(h.events.Path(), 10, 0, eventlog.FilterMonitor)
	if err != nil {
		t.Fatalf("ReadLast: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 monitor events, got %d", len(events))
	}
	if events[0].Type != eventlog.MonitorStopped || events[1].Type != eventlog.MonitorStarted {
		t.Errorf("unexpected event order: %s, %s", events[0].Type, events[1].Type)
	}
}

func TestMonitorStartRejectsBadDirection(t *testing.T) {
	h, platform := newTestHandler(t)
	send := make(chan any, 16)

	h.Handle(command(t, "monitor/start", map[string]string{"device_id": "mic-1", "direction": "sideways"}), send, func() {})

	result := awaitResult(t, send, "monitor/start_result")
	if result["success"] != false {
		t.Fatal("expected validation failure for bad direction")
	}
	if platform.GraphCount() != 0 {
		t.Errorf("expected no graph opened, got %d", platform.GraphCount())
	}
}

func TestDevicesRefreshReturnsCatalog(t *testing.T) {
	h, _ := newTestHandler(t)
	send := make(chan any, 16)

	h.Handle(command(t, "devices/refresh", nil), send, func() {})

	result := awaitResult(t, send, "devices/refresh_result")
	if result["success"] != true {
		t.Fatalf("expected devices/refresh to succeed, got %v", result)
	}
}

func TestDevicesUpdatePersists(t *testing.T) {
	h, _ := newTestHandler(t)
	send := make(chan any, 16)

	h.Handle(command(t, "devices/update", DevicesUpdateRequest{Input: "mic-1", Output: "spk-1"}), send, func() {})

	result := awaitResult(t, send, "devices/update_result")
	if result["success"] != true {
		t.Fatalf("expected devices/update to succeed, got %v", result)
	}
	if h.cfg.InputDevice() != "mic-1" {
		t.Errorf("expected input device mic-1, got %q", h.cfg.InputDevice())
	}
	if h.cfg.OutputDevice() != "spk-1" {
		t.Errorf("expected output device spk-1, got %q", h.cfg.OutputDevice())
	}
}

func TestTranscribeStartRequiresDevice(t *testing.T) {
	h, _ := newTestHandler(t)
	send := make(chan any, 16)

	h.Handle(command(t, "transcribe/start", TranscribeStartRequest{}), send, func() {})

	result := awaitResult(t, send, "transcribe/start_result")
	if result["success"] != false {
		t.Fatal("expected transcribe/start without a device to fail")
	}
}

func TestEventsReadCommand(t *testing.T) {
	h, _ := newTestHandler(t)
	send := make(chan any, 16)

	if err := h.events.LogSummary("gpt-4o-mini", 2, ""); err != nil {
		t.Fatalf("LogSummary: %v", err)
	}

	h.Handle(command(t, "events/read", EventsReadRequest{Limit: 10}), send, func() {})

	result := awaitResult(t, send, "events/read_result")
	if result["success"] != true {
		t.Fatalf("expected events/read to succeed, got %v", result)
	}
	data, ok := result["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data map, got %T", result["data"])
	}
	events, ok := data["events"].([]eventlog.Event)
	if !ok {
		t.Fatalf("expected event slice, got %T", data["events"])
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != eventlog.SummaryGenerated {
		t.Errorf("expected %s, got %s", eventlog.SummaryGenerated, events[0].Type)
	}
}

func TestSummarizeGetWithoutSummary(t *testing.T) {
	h, _ := newTestHandler(t)
	send := make(chan any, 16)

	h.Handle(command(t, "summarize/get", nil), send, func() {})

	result := awaitResult(t, send, "summarize/get_result")
	if result["success"] != false {
		t.Fatal("expected summarize/get without a summary to fail")
	}
}
