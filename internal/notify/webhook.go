package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/acousland/MacEaves/internal/types"
	"github.com/acousland/MacEaves/internal/util"
)

// WebhookPayload represents the data sent to webhook endpoints.
type WebhookPayload struct {
	Event     string `json:"event"`
	DeviceID  string `json:"device_id,omitempty"`
	Device    string `json:"device,omitempty"`
	Direction string `json:"direction,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp"`
}

// SendDeviceLostWebhook notifies the configured webhook that a monitored
// device disappeared.
func SendDeviceLostWebhook(webhookURL, deviceID, deviceName string, direction types.Direction, cause string) error {
	return sendWebhook(webhookURL, &WebhookPayload{
		Event:     "device_lost",
		DeviceID:  deviceID,
		Device:    deviceName,
		Direction: string(direction),
		Message:   cause,
		Timestamp: timestampUTC(),
	})
}

// SendSummaryWebhook notifies the configured webhook that a meeting summary
// is ready.
func SendSummaryWebhook(webhookURL string, summary *types.Summary) error {
	return sendWebhook(webhookURL, &WebhookPayload{
		Event:     "summary_ready",
		Message:   summary.Text,
		Timestamp: timestampUTC(),
	})
}

// SendTestWebhook sends a test webhook notification.
func SendTestWebhook(webhookURL, appTitle string) error {
	if webhookURL == "" {
		return fmt.Errorf("webhook URL not configured")
	}

	return sendWebhook(webhookURL, &WebhookPayload{
		Event:     "test",
		Message:   "This is a test notification from " + appTitle,
		Timestamp: timestampUTC(),
	})
}

// sendWebhook delivers a notification to the configured webhook endpoint.
func sendWebhook(webhookURL string, payload *WebhookPayload) error {
	if !util.IsConfigured(webhookURL) {
		return nil // Silently skip if not configured
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return util.WrapError("marshal payload", err)
	}

	client := &http.Client{Timeout: 10000 * time.Millisecond}
	resp, err := client.Post(webhookURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return util.WrapError("send webhook request", err)
	}
	defer util.SafeCloseFunc(resp.Body, "webhook response body")()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
