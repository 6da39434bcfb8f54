package notify

import (
	"sync"

	"github.com/acousland/MacEaves/internal/config"
	"github.com/acousland/MacEaves/internal/types"
	"github.com/acousland/MacEaves/internal/util"
)

// Notifier fans device-loss alerts and summary deliveries out to the
// configured channels. Each (device, direction) pair gets at most one
// device-loss alert until monitoring for it is restarted, so a flapping
// USB hub cannot flood the inbox.
type Notifier struct {
	cfg *config.Config

	// mu protects the notification state fields below
	mu sync.Mutex

	// Alerts already sent, keyed device|direction
	sent map[string]bool

	// Cached Graph client for email notifications
	graphClient *GraphClient
}

// NewNotifier returns a Notifier configured with the given config.
func NewNotifier(cfg *config.Config) *Notifier {
	return &Notifier{
		cfg:  cfg,
		sent: make(map[string]bool),
	}
}

// InvalidateGraphClient clears the cached Graph client.
// Call this when Graph configuration changes.
func (n *Notifier) InvalidateGraphClient() {
	n.mu.Lock()
	n.graphClient = nil
	n.mu.Unlock()
}

// getOrCreateGraphClient returns the cached Graph client, creating it if needed.
func (n *Notifier) getOrCreateGraphClient(cfg *GraphConfig) (*GraphClient, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.graphClient != nil {
		return n.graphClient, nil
	}

	client, err := NewGraphClient(cfg)
	if err != nil {
		return nil, err
	}
	n.graphClient = client
	return client, nil
}

func slotKey(deviceID string, direction types.Direction) string {
	return deviceID + "|" + string(direction)
}

// HandleDeviceLost triggers alerts for a lost device, once per slot.
func (n *Notifier) HandleDeviceLost(deviceID, deviceName string, direction types.Direction, cause string) {
	n.mu.Lock()
	key := slotKey(deviceID, direction)
	alreadySent := n.sent[key]
	n.sent[key] = true
	n.mu.Unlock()

	if alreadySent {
		return
	}

	snap := n.cfg.Snapshot()

	if snap.HasWebhook() {
		go logNotifyResult(func() error {
			return SendDeviceLostWebhook(snap.WebhookURL, deviceID, deviceName, direction, cause)
		}, "device-lost webhook")
	}
	if snap.HasGraph() {
		go logNotifyResult(func() error {
			return n.sendDeviceLostEmail(&snap, deviceName, direction, cause)
		}, "device-lost email")
	}
}

// HandleMonitorStarted clears the per-slot alert state so the next loss of
// the same device alerts again.
func (n *Notifier) HandleMonitorStarted(deviceID string, direction types.Direction) {
	n.mu.Lock()
	delete(n.sent, slotKey(deviceID, direction))
	n.mu.Unlock()
}

// HandleSummary delivers a finished meeting summary to the configured
// channels.
func (n *Notifier) HandleSummary(summary *types.Summary) {
	snap := n.cfg.Snapshot()

	if snap.HasWebhook() {
		go logNotifyResult(func() error {
			return SendSummaryWebhook(snap.WebhookURL, summary)
		}, "summary webhook")
	}
	if snap.HasGraph() {
		go logNotifyResult(func() error {
			return n.sendSummaryEmail(&snap, summary)
		}, "summary email")
	}
}

// Reset clears all per-slot alert state.
func (n *Notifier) Reset() {
	n.mu.Lock()
	n.sent = make(map[string]bool)
	n.mu.Unlock()
}

// sendEmail handles the common email sending infrastructure.
func (n *Notifier) sendEmail(cfg *GraphConfig, subject, body string) error {
	if !IsConfigured(cfg) {
		return nil
	}

	client, err := n.getOrCreateGraphClient(cfg)
	if err != nil {
		return util.WrapError("create Graph client", err)
	}

	recipients := ParseRecipients(cfg.Recipients)
	if len(recipients) == 0 {
		return util.WrapError("parse recipients", ErrNoRecipients)
	}

	if err := client.SendMail(recipients, subject, body); err != nil {
		return util.WrapError("send email via Graph", err)
	}

	return nil
}

func (n *Notifier) sendDeviceLostEmail(snap *config.Snapshot, deviceName string, direction types.Direction, cause string) error {
	subject := "[ALERT] Audio Device Lost - " + snap.AppTitle
	return n.sendEmail(buildGraphConfig(snap), subject, buildDeviceLostBody(deviceName, direction, cause))
}

func (n *Notifier) sendSummaryEmail(snap *config.Snapshot, summary *types.Summary) error {
	subject := "[SUMMARY] Meeting Notes - " + snap.AppTitle
	return n.sendEmail(buildGraphConfig(snap), subject, buildSummaryBody(summary))
}

// buildGraphConfig creates a GraphConfig from the config snapshot.
func buildGraphConfig(snap *config.Snapshot) *GraphConfig {
	return &GraphConfig{
		TenantID:     snap.GraphTenantID,
		ClientID:     snap.GraphClientID,
		ClientSecret: snap.GraphClientSecret,
		FromAddress:  snap.GraphFromAddress,
		Recipients:   snap.GraphRecipients,
	}
}
