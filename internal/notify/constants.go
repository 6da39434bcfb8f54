// Package notify delivers device-loss alerts and meeting summaries through
// webhooks and Microsoft Graph email.
package notify

import (
	"log/slog"
	"time"
)

// AppName is the application name used in notifications.
const AppName = "MacEaves"

// timestampUTC returns the current UTC time in RFC3339 format.
func timestampUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// logNotifyResult logs the result of a notification attempt.
func logNotifyResult(fn func() error, notifyType string) {
	if err := fn(); err != nil {
		slog.Error("notification failed", "type", notifyType, "error", err)
	} else {
		slog.Info("notification sent", "type", notifyType)
	}
}
