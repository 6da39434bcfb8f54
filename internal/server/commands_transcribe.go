package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/acousland/MacEaves/internal/eventlog"
	"github.com/acousland/MacEaves/internal/summarize"
	"github.com/acousland/MacEaves/internal/transcribe"
	"github.com/acousland/MacEaves/internal/types"
)

// summarizeTimeout bounds a single summarization run.
const summarizeTimeout = 2 * time.Minute

// --- Transcribe handlers ---

// handleTranscribeStart processes a transcribe/start command.
func (h *CommandHandler) handleTranscribeStart(cmd WSCommand, send chan<- any) {
	HandleCommand(cmd, send, func(req *TranscribeStartRequest) error {
		snap := h.cfg.Snapshot()

		deviceID := req.DeviceID
		if deviceID == "" {
			deviceID = snap.InputDevice
		}
		if deviceID == "" {
			return errors.New("no input device selected")
		}

		factory, err := transcribe.NewFactory(snap.Provider, snap.APIKey, types.TranscribeSampleRate)
		if err != nil {
			return err
		}
		h.engine.SetFactory(factory)

		slog.Info("transcribe/start", "device", deviceID, "provider", snap.Provider)
		if err := h.engine.Start(deviceID); err != nil {
			return err
		}

		status := h.engine.Status()
		h.logTranscribeEvent(eventlog.TranscribeStarted, status.SessionID, deviceID, 0, "")
		return nil
	})
}

// handleTranscribeStop processes a transcribe/stop command.
func (h *CommandHandler) handleTranscribeStop(cmd WSCommand, send chan<- any) {
	status := h.engine.Status()

	slog.Info("transcribe/stop", "session", status.SessionID, "lines", status.Lines)
	if err := h.engine.Stop(); err != nil {
		SendError(send, cmd.Type, err)
		return
	}

	h.logTranscribeEvent(eventlog.TranscribeStopped, status.SessionID, status.DeviceID, status.Lines, "")
	SendSuccess(send, cmd.Type, nil)
}

// --- Summarize handlers ---

// handleSummarizeRun processes a summarize/run command. Summarization calls
// the LLM endpoint, so it runs asynchronously and the result is pushed to
// the client when ready.
func (h *CommandHandler) handleSummarizeRun(cmd WSCommand, send chan<- any) {
	HandleActionAsync(cmd, send, func() (any, error) {
		transcript := h.engine.FullTranscript()
		if transcript == "" {
			return nil, fmt.Errorf("no transcript to summarize")
		}

		snap := h.cfg.Snapshot()
		opts := []summarize.Option{}
		if snap.SummarizerModel != "" {
			opts = append(opts, summarize.WithModel(snap.SummarizerModel))
		}
		if snap.SummarizerPrompt != "" {
			opts = append(opts, summarize.WithPrompt(snap.SummarizerPrompt))
		}
		client := summarize.NewClient(snap.SummarizerEndpoint, snap.SummarizerAPIKey, opts...)

		ctx, cancel := context.WithTimeout(context.Background(), summarizeTimeout)
		defer cancel()

		summary, err := client.Summarize(ctx, transcript)
		if err != nil {
			h.logSummaryEvent("", 0, err.Error())
			return nil, err
		}

		h.setLastSummary(summary)
		h.notifier.HandleSummary(summary)
		h.logSummaryEvent(summary.Model, len(summary.ActionItems), "")

		return summary, nil
	})
}

// handleSummarizeGet returns the most recent summary.
func (h *CommandHandler) handleSummarizeGet(send chan<- any) {
	summary := h.LastSummary()
	if summary == nil {
		SendError(send, "summarize/get", errors.New("no summary available"))
		return
	}
	SendSuccess(send, "summarize/get", summary)
}

// logTranscribeEvent records a transcription session event.
func (h *CommandHandler) logTranscribeEvent(eventType eventlog.EventType, sessionID, deviceID string, lines int, errMsg string) {
	if h.events == nil {
		return
	}
	if err := h.events.LogTranscribe(eventType, sessionID, deviceID, lines, errMsg); err != nil {
		slog.Warn("failed to write event log", "type", eventType, "error", err)
	}
}

// logSummaryEvent records a summary run.
func (h *CommandHandler) logSummaryEvent(model string, actionItems int, errMsg string) {
	if h.events == nil {
		return
	}
	if err := h.events.LogSummary(model, actionItems, errMsg); err != nil {
		slog.Warn("failed to write event log", "type", eventlog.SummaryGenerated, "error", err)
	}
}
