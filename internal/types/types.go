// Package types provides shared type definitions used across MacEaves.
package types

import (
	"time"
)

// SessionState represents the lifecycle state of a capture session.
type SessionState string

const (
	// StateIdle indicates no capture graph is open.
	StateIdle SessionState = "idle"
	// StateStarting indicates the capture graph is being allocated and started.
	StateStarting SessionState = "starting"
	// StateRunning indicates the capture graph is live and processing buffers.
	StateRunning SessionState = "running"
	// StateStopping indicates the capture graph is shutting down.
	StateStopping SessionState = "stopping"
	// StateFailed indicates the graph failed to start or the device was lost.
	StateFailed SessionState = "failed"
)

// Direction selects which side of a device is monitored.
type Direction string

const (
	// DirectionInput monitors a device's capture (microphone) side.
	DirectionInput Direction = "input"
	// DirectionOutput monitors the input side of an output device, which
	// yields signal only when a loopback/virtual routing driver is active.
	DirectionOutput Direction = "output"
)

// Valid reports whether the direction is one of the two known values.
func (d Direction) Valid() bool {
	return d == DirectionInput || d == DirectionOutput
}

// TranscribeState represents the state of the transcription engine.
type TranscribeState string

const (
	// TranscribeStopped indicates no transcription session is active.
	TranscribeStopped TranscribeState = "stopped"
	// TranscribeStarting indicates the engine is connecting to the provider.
	TranscribeStarting TranscribeState = "starting"
	// TranscribeRunning indicates audio is streaming to the provider.
	TranscribeRunning TranscribeState = "running"
	// TranscribeError indicates the session ended with an error.
	TranscribeError TranscribeState = "error"
)

const (
	// TeardownTimeout is the bounded wait for a capture graph to confirm
	// shutdown before reporting a concurrency-integrity error.
	TeardownTimeout = 2000 * time.Millisecond
	// RefreshInterval is the cadence at which level samples are pushed to
	// the UI. The ticker only publishes; it performs no audio computation.
	RefreshInterval = 50 * time.Millisecond
	// ShutdownTimeout is the duration to wait for graceful shutdown.
	ShutdownTimeout = 3000 * time.Millisecond
)

// Audio format constants for the capture graphs.
const (
	// SampleRate is the capture sample rate in Hz.
	SampleRate = 48000
	// FramesPerBuffer is the fixed tap buffer size in frames.
	FramesPerBuffer = 1024
	// TranscribeSampleRate is the sample rate expected by speech providers.
	TranscribeSampleRate = 16000
)

// LevelSample is one metering result. All values are dB in [-60, 0].
type LevelSample struct {
	// Left is the smoothed left channel level in dB.
	Left float64 `json:"left"`
	// Right is the smoothed right channel level in dB.
	Right float64 `json:"right"`
	// Average is the mean of the left and right levels in dB.
	Average float64 `json:"average"`
	// Peak is the held peak level in dB.
	Peak float64 `json:"peak"`
}

// LevelFloor is the metering floor in dB, representing silence.
const LevelFloor = -60.0

// FloorSample returns a sample with every field at the metering floor.
// It is the value reported when no buffer has been processed yet.
func FloorSample() LevelSample {
	return LevelSample{Left: LevelFloor, Right: LevelFloor, Average: LevelFloor, Peak: LevelFloor}
}

// AudioDevice represents an available audio endpoint.
type AudioDevice struct {
	// ID is the platform-assigned device identifier, stable per hot-plug session.
	ID string `json:"id"`
	// Name is the device display name.
	Name string `json:"name"`
	// Input reports whether the device has capture channels.
	Input bool `json:"input"`
	// Output reports whether the device has playback channels.
	Output bool `json:"output"`
}

// SlotStatus is the per-(device, direction) monitoring status.
type SlotStatus struct {
	DeviceID   string       `json:"device_id"`
	DeviceName string       `json:"device_name,omitempty"`
	Direction  Direction    `json:"direction"`
	State      SessionState `json:"state"`
	Monitoring bool         `json:"monitoring"`
	Sample     LevelSample  `json:"sample"`
	LastError  string       `json:"last_error,omitempty"`
}

// TranscriptLine is one line of the live transcript.
type TranscriptLine struct {
	At    time.Time `json:"at"`
	Text  string    `json:"text"`
	Final bool      `json:"final"`
}

// TranscribeStatus summarizes the transcription engine state.
type TranscribeStatus struct {
	State     TranscribeState `json:"state"`
	DeviceID  string          `json:"device_id,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	StartedAt string          `json:"started_at,omitzero"`
	Lines     int             `json:"lines"`
	LastError string          `json:"last_error,omitempty"`
}

// Summary is the result of a summarization run.
type Summary struct {
	Text        string   `json:"text"`
	ActionItems []string `json:"action_items,omitempty"`
	Topics      []string `json:"topics,omitempty"`
	Model       string   `json:"model,omitempty"`
	GeneratedAt string   `json:"generated_at,omitempty"`
}

// GraphConfig contains Microsoft Graph API settings for email delivery.
type GraphConfig struct {
	TenantID     string `json:"tenant_id,omitempty"`     // Azure AD tenant ID
	ClientID     string `json:"client_id,omitempty"`     // App registration client ID
	ClientSecret string `json:"client_secret,omitempty"` // App registration client secret
	FromAddress  string `json:"from_address,omitempty"`  // Shared mailbox address (sender)
	Recipients   string `json:"recipients,omitempty"`    // Comma-separated recipients
}

// WSStatusResponse is sent to clients with full application status.
type WSStatusResponse struct {
	Type            string           `json:"type"`              // Message type identifier
	Slots           []SlotStatus     `json:"slots"`             // Monitoring slot statuses
	InputDevices    []AudioDevice    `json:"input_devices"`     // Input-capable devices
	OutputDevices   []AudioDevice    `json:"output_devices"`    // Output-capable devices
	Transcribe      TranscribeStatus `json:"transcribe"`        // Transcription engine status
	Summary         *Summary         `json:"summary,omitempty"` // Latest summary, if any
	WebhookURL      string           `json:"webhook_url"`       // Notification webhook URL
	ControlAPIKey   string           `json:"control_api_key"`   // REST control API key
	EventLogPath    string           `json:"event_log_path"`    // JSON-lines event log path
	GraphTenantID   string           `json:"graph_tenant_id"`   // Azure AD tenant ID
	GraphClientID   string           `json:"graph_client_id"`   // App registration client ID
	GraphFrom       string           `json:"graph_from"`        // Shared mailbox address
	GraphRecipients string           `json:"graph_recipients"`  // Comma-separated recipients
	Settings        WSSettings       `json:"settings"`          // Current settings
	Version         VersionInfo      `json:"version"`           // Version information
}

// WSSettings contains the settings sub-object in status responses.
type WSSettings struct {
	InputDevice  string `json:"input_device"`  // Selected input device ID
	OutputDevice string `json:"output_device"` // Selected output device ID
	Provider     string `json:"provider"`      // Transcription provider name
	Platform     string `json:"platform"`      // Operating system platform
}

// WSLevelsResponse is sent to clients on every refresh tick.
type WSLevelsResponse struct {
	Type  string       `json:"type"`  // Message type identifier
	Slots []SlotStatus `json:"slots"` // Per-slot samples and states
}

// WSTranscriptResponse is sent to clients when new transcript lines arrive.
type WSTranscriptResponse struct {
	Type  string           `json:"type"`
	Lines []TranscriptLine `json:"lines"`
}

// WSTestResult is sent to clients after a test operation completes.
type WSTestResult struct {
	Type     string `json:"type"`            // Message type identifier
	TestType string `json:"test_type"`       // Type of test performed
	Success  bool   `json:"success"`         // Test succeeded
	Error    string `json:"error,omitempty"` // Error message if failed
}

// VersionInfo contains version comparison data.
type VersionInfo struct {
	Current     string `json:"current"`              // Current version
	Latest      string `json:"latest,omitempty"`     // Latest available version
	UpdateAvail bool   `json:"update_available"`     // Update is available
	Commit      string `json:"commit,omitempty"`     // Git commit hash
	BuildTime   string `json:"build_time,omitempty"` // Build timestamp
}
