package server

import (
	"log/slog"
	"path/filepath"

	"github.com/acousland/MacEaves/internal/config"
	"github.com/acousland/MacEaves/internal/util"
)

// --- Device handlers ---

// handleDevicesUpdate processes a devices/update command.
func (h *CommandHandler) handleDevicesUpdate(cmd WSCommand, send chan<- any) {
	HandleCommand(cmd, send, func(req *DevicesUpdateRequest) error {
		if req.Input != "" {
			slog.Info("devices/update: input device selected", "device", req.Input)
			if err := h.cfg.SetInputDevice(req.Input); err != nil {
				return err
			}
		}
		if req.Output != "" {
			slog.Info("devices/update: output device selected", "device", req.Output)
			if err := h.cfg.SetOutputDevice(req.Output); err != nil {
				return err
			}
		}
		return nil
	})
}

// handleDevicesRefresh processes a devices/refresh command. The result
// carries the current device lists so the client can rebuild its pickers
// without waiting for the next status broadcast.
func (h *CommandHandler) handleDevicesRefresh(cmd WSCommand, send chan<- any) {
	inputs, outputs := h.catalog.List()
	SendSuccess(send, cmd.Type, map[string]any{
		"input_devices":  inputs,
		"output_devices": outputs,
	})
}

// --- Transcription settings ---

// handleTranscriptionUpdate processes a settings/transcription/update command.
func (h *CommandHandler) handleTranscriptionUpdate(cmd WSCommand, send chan<- any) {
	HandleCommand(cmd, send, func(req *TranscriptionUpdateRequest) error {
		snap := h.cfg.Snapshot()

		provider := req.Provider
		if provider == "" {
			provider = snap.Provider
		}
		apiKey := req.APIKey
		if apiKey == "" {
			apiKey = snap.APIKey
		}

		return h.cfg.SetTranscription(provider, apiKey)
	})
}

// --- Summarizer settings ---

// handleSummarizerUpdate processes a settings/summarizer/update command.
func (h *CommandHandler) handleSummarizerUpdate(cmd WSCommand, send chan<- any) {
	HandleCommand(cmd, send, func(req *SummarizerUpdateRequest) error {
		return h.cfg.SetSummarizer(req.Endpoint, req.APIKey, req.Model, req.Prompt)
	})
}

// --- Notification settings ---

// handleWebhookUpdate processes a notifications/webhook/update command.
func (h *CommandHandler) handleWebhookUpdate(cmd WSCommand, send chan<- any) {
	HandleCommand(cmd, send, func(req *WebhookUpdateRequest) error {
		return h.cfg.SetWebhookURL(req.URL)
	})
}

// handleLogUpdate processes a notifications/log/update command.
func (h *CommandHandler) handleLogUpdate(cmd WSCommand, send chan<- any) {
	HandleCommand(cmd, send, func(req *LogUpdateRequest) error {
		if req.Path != "" {
			if err := util.ValidatePath("path", req.Path); err != nil {
				return err
			}
			if err := util.CheckPathWritable(filepath.Dir(req.Path)); err != nil {
				return err
			}
		}
		return h.cfg.SetLogPath(req.Path)
	})
}

// handleEmailUpdate processes a notifications/email/update command.
func (h *CommandHandler) handleEmailUpdate(cmd WSCommand, send chan<- any) {
	HandleCommand(cmd, send, func(req *EmailUpdateRequest) error {
		if err := h.cfg.SetGraphConfig(
			req.TenantID,
			req.ClientID,
			req.ClientSecret,
			req.FromAddress,
			req.Recipients,
		); err != nil {
			return err
		}
		h.notifier.InvalidateGraphClient()
		return nil
	})
}

// --- System settings ---

// handleRegenerateAPIKey processes a system/regenerate-key command.
func (h *CommandHandler) handleRegenerateAPIKey(cmd WSCommand, send chan<- any) {
	HandleActionAsync(cmd, send, func() (any, error) {
		newKey, err := config.GenerateAPIKey()
		if err != nil {
			return nil, err
		}
		if err := h.cfg.SetControlAPIKey(newKey); err != nil {
			return nil, err
		}
		slog.Info("control API key regenerated")
		return map[string]string{"api_key": newKey}, nil
	})
}

// --- Archive settings ---

// handleArchiveUpdate processes an archive/update command.
func (h *CommandHandler) handleArchiveUpdate(cmd WSCommand, send chan<- any) {
	HandleCommand(cmd, send, func(req *ArchiveUpdateRequest) error {
		return h.cfg.SetArchiveS3(req.S3Endpoint, req.S3Bucket, req.S3AccessKey, req.S3SecretKey)
	})
}
