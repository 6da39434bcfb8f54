// Package config provides application configuration management.
package config

import (
	"cmp"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/acousland/MacEaves/internal/util"
)

// Configuration defaults are used when values are not specified.
const (
	DefaultWebPort       = 8080
	DefaultWebUsername   = "admin"
	DefaultWebPassword   = "maceaves"
	DefaultAppTitle      = "MacEaves"
	DefaultColorLight    = "#1D7A5F"
	DefaultColorDark     = "#2BAE8A"
	DefaultProvider      = "assemblyai"
	DefaultArchiveDir    = "recordings"
	DefaultRetentionDays = 30
)

// Validation patterns define regular expressions for configuration value validation.
var (
	// App title: any printable characters except control chars (blocks CRLF injection in emails)
	appTitlePattern = regexp.MustCompile(`^[^\x00-\x1F\x7F]+$`)
	colorPattern    = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
)

// SystemConfig holds system-level settings that require restart.
type SystemConfig struct {
	Port          int    `json:"port"`            // HTTP server port
	Username      string `json:"username"`        // Login username
	Password      string `json:"password"`        // Login password
	ControlAPIKey string `json:"control_api_key"` // API key for the REST control API
}

// WebConfig holds UI branding settings.
type WebConfig struct {
	AppTitle   string `json:"app_title"`   // Application display name
	ColorLight string `json:"color_light"` // Theme color for light mode (#RRGGBB)
	ColorDark  string `json:"color_dark"`  // Theme color for dark mode (#RRGGBB)
}

// AudioConfig holds the preferred monitoring devices.
type AudioConfig struct {
	InputDevice  string `json:"input_device"`  // Preferred input device identifier
	OutputDevice string `json:"output_device"` // Preferred output device identifier
}

// TranscriptionConfig holds speech-to-text provider settings.
type TranscriptionConfig struct {
	Provider string `json:"provider"` // Provider name
	APIKey   string `json:"api_key"`  // Provider API key
}

// SummarizerConfig holds LLM summarization settings.
type SummarizerConfig struct {
	Endpoint string `json:"endpoint"` // Chat completions URL
	APIKey   string `json:"api_key"`  // API key
	Model    string `json:"model"`    // Model name (empty = client default)
	Prompt   string `json:"prompt"`   // Custom system prompt (empty = default)
}

// WebhookConfig holds webhook notification settings.
type WebhookConfig struct {
	URL string `json:"url"` // Webhook URL for device-loss alerts
}

// LogConfig holds event log settings.
type LogConfig struct {
	Path string `json:"path"` // JSON-lines event log path
}

// EmailConfig holds Microsoft Graph email notification settings.
type EmailConfig struct {
	TenantID     string `json:"tenant_id"`     // Azure AD tenant ID
	ClientID     string `json:"client_id"`     // App registration client ID
	ClientSecret string `json:"client_secret"` // App registration client secret
	FromAddress  string `json:"from_address"`  // Shared mailbox sender address
	Recipients   string `json:"recipients"`    // Comma-separated recipient addresses
}

// NotificationsConfig holds all notification channel settings.
type NotificationsConfig struct {
	Webhook WebhookConfig `json:"webhook"` // Webhook settings
	Log     LogConfig     `json:"log"`     // Event log settings
	Email   EmailConfig   `json:"email"`   // Email settings
}

// ArchiveConfig holds recording storage settings.
type ArchiveConfig struct {
	Directory     string `json:"directory"`      // Local recording directory
	RetentionDays int    `json:"retention_days"` // Days to keep local recordings (0 = forever)
	S3Endpoint    string `json:"s3_endpoint"`    // Custom S3 endpoint (empty for AWS)
	S3Bucket      string `json:"s3_bucket"`      // S3 bucket name
	S3AccessKeyID string `json:"s3_access_key"`  // AWS access key ID
	S3SecretKey   string `json:"s3_secret_key"`  // AWS secret access key
}

// Config holds all application configuration. It is safe for concurrent use.
type Config struct {
	System        SystemConfig        `json:"system"`
	Web           WebConfig           `json:"web"`
	Audio         AudioConfig         `json:"audio"`
	Transcription TranscriptionConfig `json:"transcription"`
	Summarizer    SummarizerConfig    `json:"summarizer"`
	Notifications NotificationsConfig `json:"notifications"`
	Archive       ArchiveConfig       `json:"archive"`

	mu       sync.RWMutex
	filePath string
}

// New creates a new Config with default values.
func New(filePath string) *Config {
	return &Config{
		System: SystemConfig{
			Port:     DefaultWebPort,
			Username: DefaultWebUsername,
			Password: DefaultWebPassword,
		},
		Web: WebConfig{
			AppTitle:   DefaultAppTitle,
			ColorLight: DefaultColorLight,
			ColorDark:  DefaultColorDark,
		},
		Transcription: TranscriptionConfig{Provider: DefaultProvider},
		Archive: ArchiveConfig{
			Directory:     DefaultArchiveDir,
			RetentionDays: DefaultRetentionDays,
		},
		filePath: filePath,
	}
}

// Load reads config from file, creating a default if none exists.
func (c *Config) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.filePath)
	if os.IsNotExist(err) {
		return c.saveLocked()
	}
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, c); err != nil {
		return util.WrapError("parse config", err)
	}

	c.applyDefaults()

	return c.validate()
}

// validate checks all configuration fields for correctness.
func (c *Config) validate() error {
	title := c.Web.AppTitle
	if title == "" || len(title) > 30 || !appTitlePattern.MatchString(title) {
		return fmt.Errorf("invalid app_title %q: must be 1-30 printable characters", title)
	}
	if !colorPattern.MatchString(c.Web.ColorLight) {
		return fmt.Errorf("invalid color_light %q: must be hex format (#RRGGBB)", c.Web.ColorLight)
	}
	if !colorPattern.MatchString(c.Web.ColorDark) {
		return fmt.Errorf("invalid color_dark %q: must be hex format (#RRGGBB)", c.Web.ColorDark)
	}
	if c.Archive.RetentionDays < 0 {
		return fmt.Errorf("invalid retention_days %d: must not be negative", c.Archive.RetentionDays)
	}
	return nil
}

// applyDefaults sets default values for zero-value fields.
func (c *Config) applyDefaults() {
	if c.System.Port == 0 {
		c.System.Port = DefaultWebPort
	}
	if c.System.Username == "" {
		c.System.Username = DefaultWebUsername
	}
	if c.System.Password == "" {
		c.System.Password = DefaultWebPassword
	}
	if c.Web.AppTitle == "" {
		c.Web.AppTitle = DefaultAppTitle
	}
	if c.Web.ColorLight == "" {
		c.Web.ColorLight = DefaultColorLight
	}
	if c.Web.ColorDark == "" {
		c.Web.ColorDark = DefaultColorDark
	}
	if c.Transcription.Provider == "" {
		c.Transcription.Provider = DefaultProvider
	}
	if c.Archive.Directory == "" {
		c.Archive.Directory = DefaultArchiveDir
	}
}

// saveLocked persists configuration. Caller must hold c.mu.
func (c *Config) saveLocked() error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return util.WrapError("marshal config", err)
	}

	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return util.WrapError("create config directory", err)
	}

	if err := os.WriteFile(c.filePath, data, 0o600); err != nil {
		return util.WrapError("write config", err)
	}

	return nil
}

// --- Getters for individual settings ---

// InputDevice returns the preferred input device identifier.
func (c *Config) InputDevice() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Audio.InputDevice
}

// OutputDevice returns the preferred output device identifier.
func (c *Config) OutputDevice() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Audio.OutputDevice
}

// ControlAPIKey returns the REST control API key.
func (c *Config) ControlAPIKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.System.ControlAPIKey
}

// --- Setters for individual settings ---

// SetInputDevice updates the preferred input device and saves.
func (c *Config) SetInputDevice(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Audio.InputDevice = id
	return c.saveLocked()
}

// SetOutputDevice updates the preferred output device and saves.
func (c *Config) SetOutputDevice(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Audio.OutputDevice = id
	return c.saveLocked()
}

// SetTranscription updates the speech-to-text settings and saves.
func (c *Config) SetTranscription(provider, apiKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if provider != "" {
		c.Transcription.Provider = provider
	}
	c.Transcription.APIKey = apiKey
	return c.saveLocked()
}

// SetSummarizer updates the summarizer settings and saves.
func (c *Config) SetSummarizer(endpoint, apiKey, model, prompt string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Summarizer = SummarizerConfig{
		Endpoint: endpoint,
		APIKey:   apiKey,
		Model:    model,
		Prompt:   prompt,
	}
	return c.saveLocked()
}

// SetWebhookURL updates the webhook URL and saves.
func (c *Config) SetWebhookURL(url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Notifications.Webhook.URL = url
	return c.saveLocked()
}

// SetLogPath updates the event log path and saves.
func (c *Config) SetLogPath(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Notifications.Log.Path = path
	return c.saveLocked()
}

// SetGraphConfig updates all Microsoft Graph/Email configuration fields and saves.
func (c *Config) SetGraphConfig(tenantID, clientID, clientSecret, fromAddress, recipients string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Notifications.Email.TenantID = tenantID
	c.Notifications.Email.ClientID = clientID
	c.Notifications.Email.ClientSecret = clientSecret
	c.Notifications.Email.FromAddress = fromAddress
	c.Notifications.Email.Recipients = recipients
	return c.saveLocked()
}

// SetControlAPIKey updates the REST control API key and saves.
func (c *Config) SetControlAPIKey(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.System.ControlAPIKey = key
	return c.saveLocked()
}

// SetArchiveS3 updates the S3 archive settings and saves.
func (c *Config) SetArchiveS3(endpoint, bucket, accessKeyID, secretKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Archive.S3Endpoint = endpoint
	c.Archive.S3Bucket = bucket
	c.Archive.S3AccessKeyID = accessKeyID
	c.Archive.S3SecretKey = secretKey
	return c.saveLocked()
}

// --- Snapshot for atomic reads ---

// Snapshot is a point-in-time copy of configuration values.
type Snapshot struct {
	// System
	WebPort       int
	WebUser       string
	WebPassword   string
	ControlAPIKey string

	// Web/Branding
	AppTitle   string
	ColorLight string
	ColorDark  string

	// Audio
	InputDevice  string
	OutputDevice string

	// Transcription
	Provider string
	APIKey   string

	// Summarizer
	SummarizerEndpoint string
	SummarizerAPIKey   string
	SummarizerModel    string
	SummarizerPrompt   string

	// Notifications
	WebhookURL        string
	LogPath           string
	GraphTenantID     string
	GraphClientID     string
	GraphClientSecret string
	GraphFromAddress  string
	GraphRecipients   string

	// Archive
	ArchiveDirectory string
	RetentionDays    int
	S3Endpoint       string
	S3Bucket         string
	S3AccessKeyID    string
	S3SecretKey      string
}

// Snapshot returns a point-in-time copy of all configuration values.
func (c *Config) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		WebPort:       c.System.Port,
		WebUser:       c.System.Username,
		WebPassword:   c.System.Password,
		ControlAPIKey: c.System.ControlAPIKey,

		AppTitle:   c.Web.AppTitle,
		ColorLight: c.Web.ColorLight,
		ColorDark:  c.Web.ColorDark,

		InputDevice:  c.Audio.InputDevice,
		OutputDevice: c.Audio.OutputDevice,

		Provider: cmp.Or(c.Transcription.Provider, DefaultProvider),
		APIKey:   c.Transcription.APIKey,

		SummarizerEndpoint: c.Summarizer.Endpoint,
		SummarizerAPIKey:   c.Summarizer.APIKey,
		SummarizerModel:    c.Summarizer.Model,
		SummarizerPrompt:   c.Summarizer.Prompt,

		WebhookURL:        c.Notifications.Webhook.URL,
		LogPath:           c.Notifications.Log.Path,
		GraphTenantID:     c.Notifications.Email.TenantID,
		GraphClientID:     c.Notifications.Email.ClientID,
		GraphClientSecret: c.Notifications.Email.ClientSecret,
		GraphFromAddress:  c.Notifications.Email.FromAddress,
		GraphRecipients:   c.Notifications.Email.Recipients,

		ArchiveDirectory: cmp.Or(c.Archive.Directory, DefaultArchiveDir),
		RetentionDays:    c.Archive.RetentionDays,
		S3Endpoint:       c.Archive.S3Endpoint,
		S3Bucket:         c.Archive.S3Bucket,
		S3AccessKeyID:    c.Archive.S3AccessKeyID,
		S3SecretKey:      c.Archive.S3SecretKey,
	}
}

// HasWebhook reports whether a webhook URL is configured.
func (s *Snapshot) HasWebhook() bool {
	return s.WebhookURL != ""
}

// HasGraph reports whether Microsoft Graph email notifications are configured.
func (s *Snapshot) HasGraph() bool {
	return s.GraphTenantID != "" && s.GraphClientID != "" && s.GraphClientSecret != "" &&
		s.GraphFromAddress != "" && s.GraphRecipients != ""
}

// HasLogPath reports whether an event log path is configured.
func (s *Snapshot) HasLogPath() bool {
	return s.LogPath != ""
}

// HasTranscription reports whether a provider API key is configured.
func (s *Snapshot) HasTranscription() bool {
	return s.APIKey != ""
}

// HasSummarizer reports whether a summarizer endpoint is configured.
func (s *Snapshot) HasSummarizer() bool {
	return s.SummarizerEndpoint != ""
}

// HasS3 reports whether S3 archive settings are configured.
func (s *Snapshot) HasS3() bool {
	return s.S3Bucket != "" && s.S3AccessKeyID != "" && s.S3SecretKey != ""
}

// --- Utility functions ---

// GenerateAPIKey generates a new random 32-character alphanumeric key.
func GenerateAPIKey() (string, error) {
	const chars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const length = 32
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		if err != nil {
			return "", err
		}
		result[i] = chars[n.Int64()]
	}
	return string(result), nil
}
