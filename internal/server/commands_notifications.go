package server

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/acousland/MacEaves/internal/eventlog"
	"github.com/acousland/MacEaves/internal/notify"
	"github.com/acousland/MacEaves/internal/recording"
	"github.com/acousland/MacEaves/internal/types"
)

// runTest dispatches to the appropriate notification test.
func (h *CommandHandler) runTest(testType string) error {
	snap := h.cfg.Snapshot()

	switch testType {
	case "webhook":
		return notify.SendTestWebhook(snap.WebhookURL, snap.AppTitle)
	case "email":
		cfg := &notify.GraphConfig{
			TenantID:     snap.GraphTenantID,
			ClientID:     snap.GraphClientID,
			ClientSecret: snap.GraphClientSecret,
			FromAddress:  snap.GraphFromAddress,
			Recipients:   snap.GraphRecipients,
		}
		return notify.SendTestEmail(cfg, snap.AppTitle)
	default:
		return fmt.Errorf("unknown test type: %s", testType)
	}
}

// handleTest executes a notification test and sends the result to the client.
// testCmd should be in format "test_<type>" (e.g., "test_email", "test_webhook").
func (h *CommandHandler) handleTest(send chan<- any, testCmd string) {
	testType := strings.TrimPrefix(testCmd, "test_")

	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in test handler", "command", testCmd, "panic", r)
			}
		}()

		result := types.WSTestResult{
			Type:     "test_result",
			TestType: testType,
			Success:  true,
		}

		if err := h.runTest(testType); err != nil {
			slog.Error("test failed", "command", testCmd, "error", err)
			result.Success = false
			result.Error = err.Error()
		} else {
			slog.Info("test succeeded", "command", testCmd)
		}

		// Non-blocking send to prevent goroutine leak if channel is closed
		select {
		case send <- result:
		default:
			slog.Warn("failed to send test response: channel full or closed", "command", testCmd)
		}
	}()
}

// handleTestArchiveS3 processes an archive/test-s3 command. The probe does
// network I/O against the S3 endpoint, so it runs asynchronously.
func (h *CommandHandler) handleTestArchiveS3(cmd WSCommand, send chan<- any) {
	var req S3TestRequest
	if !DecodeAndValidate(cmd, send, &req) {
		return
	}

	HandleActionAsync(cmd, send, func() (any, error) {
		s3cfg := &recording.S3Config{
			Endpoint:        req.Endpoint,
			Bucket:          req.Bucket,
			AccessKeyID:     req.AccessKey,
			SecretAccessKey: req.SecretKey,
		}
		if err := recording.TestS3Connection(s3cfg); err != nil {
			return nil, err
		}
		return map[string]string{"bucket": req.Bucket}, nil
	})
}

// handleEventsRead processes an events/read command with pagination.
func (h *CommandHandler) handleEventsRead(cmd WSCommand, send chan<- any) {
	var req EventsReadRequest
	if !DecodeAndValidate(cmd, send, &req) {
		return
	}

	limit := req.Limit
	if limit == 0 {
		limit = MaxEventEntries
	}

	HandleActionAsync(cmd, send, func() (any, error) {
		events, hasMore, err := eventlog.ReadLast(h.events.Path(), limit, req.Offset, eventlog.TypeFilter(req.Filter))
		if err != nil {
			return nil, fmt.Errorf("read event log: %w", err)
		}
		return map[string]any{
			"events":   events,
			"has_more": hasMore,
			"path":     h.events.Path(),
		}, nil
	})
}
