package notify

import (
	"fmt"
	"strings"

	"github.com/acousland/MacEaves/internal/types"
	"github.com/acousland/MacEaves/internal/util"
)

// buildDeviceLostBody formats the device-loss alert body.
func buildDeviceLostBody(deviceName string, direction types.Direction, cause string) string {
	return fmt.Sprintf(
		"A monitored audio device disappeared.\n\n"+
			"Device:    %s\n"+
			"Direction: %s\n"+
			"Cause:     %s\n"+
			"Time:      %s\n\n"+
			"Monitoring for this device has stopped. Restart it from the dashboard once the device is back.",
		deviceName, direction, cause, util.HumanTime(),
	)
}

// buildSummaryBody formats the meeting summary body.
func buildSummaryBody(summary *types.Summary) string {
	var b strings.Builder
	b.WriteString(summary.Text)

	if len(summary.ActionItems) > 0 {
		b.WriteString("\n\nAction items:\n")
		for _, item := range summary.ActionItems {
			b.WriteString("- " + item + "\n")
		}
	}
	if len(summary.Topics) > 0 {
		b.WriteString("\nTopics: " + strings.Join(summary.Topics, ", ") + "\n")
	}
	b.WriteString("\nGenerated at " + util.HumanTime())
	return b.String()
}

// SendTestEmail sends a test email to verify email configuration.
func SendTestEmail(cfg *GraphConfig, appTitle string) error {
	if err := ValidateConfig(cfg); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	client, err := NewGraphClient(cfg)
	if err != nil {
		return fmt.Errorf("create Graph client: %w", err)
	}

	// Validate authentication first
	if err := client.ValidateAuth(); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	subject := "[TEST] " + appTitle
	body := fmt.Sprintf(
		"Test email from the meeting monitor.\n\n"+
			"Time: %s\n\n"+
			"Microsoft Graph configuration is working correctly.",
		util.HumanTime(),
	)

	recipients := ParseRecipients(cfg.Recipients)
	if err := client.SendMail(recipients, subject, body); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	return nil
}
