package server

// Request types for WebSocket commands with validation tags.
// These types define the expected input for each command and use
// go-playground/validator struct tags for automatic validation.

// --- Monitoring ---

// MonitorStartRequest is the request body for monitor/start.
type MonitorStartRequest struct {
	DeviceID  string `json:"device_id" validate:"required,max=256"`
	Direction string `json:"direction" validate:"required,oneof=input output"`
}

// MonitorStopRequest is the request body for monitor/stop.
type MonitorStopRequest struct {
	DeviceID  string `json:"device_id" validate:"required,max=256"`
	Direction string `json:"direction" validate:"required,oneof=input output"`
}

// --- Transcription ---

// TranscribeStartRequest is the request body for transcribe/start.
type TranscribeStartRequest struct {
	DeviceID string `json:"device_id" validate:"omitempty,max=256"`
}

// --- Device settings ---

// DevicesUpdateRequest is the request body for devices/update.
type DevicesUpdateRequest struct {
	Input  string `json:"input" validate:"omitempty,max=256"`
	Output string `json:"output" validate:"omitempty,max=256"`
}

// --- Transcription settings ---

// TranscriptionUpdateRequest is the request body for settings/transcription/update.
type TranscriptionUpdateRequest struct {
	Provider string `json:"provider" validate:"omitempty,oneof=assemblyai"`
	APIKey   string `json:"api_key" validate:"omitempty,max=256"`
}

// --- Summarizer settings ---

// SummarizerUpdateRequest is the request body for settings/summarizer/update.
type SummarizerUpdateRequest struct {
	Endpoint string `json:"endpoint" validate:"omitempty,url,max=2048"`
	APIKey   string `json:"api_key" validate:"omitempty,max=256"`
	Model    string `json:"model" validate:"omitempty,max=100"`
	Prompt   string `json:"prompt" validate:"omitempty,max=8192"`
}

// --- Notification settings ---

// WebhookUpdateRequest is the request body for notifications/webhook/update.
type WebhookUpdateRequest struct {
	URL string `json:"url" validate:"omitempty,max=2048"`
}

// LogUpdateRequest is the request body for notifications/log/update.
type LogUpdateRequest struct {
	Path string `json:"path" validate:"omitempty,max=4096"`
}

// EmailUpdateRequest is the request body for notifications/email/update.
type EmailUpdateRequest struct {
	TenantID     string `json:"tenant_id" validate:"omitempty,max=100"`
	ClientID     string `json:"client_id" validate:"omitempty,max=100"`
	ClientSecret string `json:"client_secret" validate:"omitempty,max=500"`
	FromAddress  string `json:"from_address" validate:"omitempty,max=254"`
	Recipients   string `json:"recipients" validate:"omitempty,max=1000"`
}

// --- Archive settings ---

// ArchiveUpdateRequest is the request body for archive/update.
type ArchiveUpdateRequest struct {
	S3Endpoint  string `json:"s3_endpoint" validate:"omitempty,max=2048"`
	S3Bucket    string `json:"s3_bucket" validate:"omitempty,max=63"`
	S3AccessKey string `json:"s3_access_key_id" validate:"omitempty,max=128"`
	S3SecretKey string `json:"s3_secret_access_key" validate:"omitempty,max=256"`
}

// S3TestRequest is the request body for archive/test-s3.
type S3TestRequest struct {
	Endpoint  string `json:"s3_endpoint" validate:"omitempty,max=2048"`
	Bucket    string `json:"s3_bucket" validate:"required,max=63"`
	AccessKey string `json:"s3_access_key_id" validate:"required,max=128"`
	SecretKey string `json:"s3_secret_access_key" validate:"required,max=256"`
}

// --- Event log ---

// EventsReadRequest is the request body for events/read.
type EventsReadRequest struct {
	Limit  int    `json:"limit" validate:"omitempty,gte=1,lte=500"`
	Offset int    `json:"offset" validate:"omitempty,gte=0"`
	Filter string `json:"filter" validate:"omitempty,oneof=monitor transcribe archive"`
}
