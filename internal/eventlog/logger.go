// Package eventlog provides unified event logging for the meeting monitor.
// It captures monitoring events (started, stopped, device_lost), transcription
// session events, summary runs, and archive uploads in a single JSON lines file.
package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/acousland/MacEaves/internal/types"
)

// EventType represents the type of event.
type EventType string

// Monitoring event types.
const (
	MonitorStarted EventType = "monitor_started"
	MonitorStopped EventType = "monitor_stopped"
	DeviceLost     EventType = "device_lost"
)

// Transcription event types.
const (
	TranscribeStarted EventType = "transcribe_started"
	TranscribeStopped EventType = "transcribe_stopped"
	TranscribeError   EventType = "transcribe_error"
)

// Summary and archive event types.
const (
	SummaryGenerated EventType = "summary_generated"
	UploadCompleted  EventType = "upload_completed"
	UploadFailed     EventType = "upload_failed"
)

// Event represents a single log entry with type-specific details.
type Event struct {
	Timestamp time.Time `json:"ts"`
	Type      EventType `json:"type"`
	Message   string    `json:"msg,omitempty"`
	Details   any       `json:"details,omitempty"`
}

// MonitorDetails contains monitoring-specific event details.
type MonitorDetails struct {
	DeviceID   string `json:"device_id,omitempty"`
	DeviceName string `json:"device_name,omitempty"`
	Direction  string `json:"direction,omitempty"`
	Error      string `json:"error,omitempty"`
}

// TranscribeDetails contains transcription-specific event details.
type TranscribeDetails struct {
	SessionID string `json:"session_id,omitempty"`
	DeviceID  string `json:"device_id,omitempty"`
	Lines     int    `json:"lines,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SummaryDetails contains summary-run event details.
type SummaryDetails struct {
	Model       string `json:"model,omitempty"`
	ActionItems int    `json:"action_items,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ArchiveDetails contains upload-specific event details.
type ArchiveDetails struct {
	S3Key string `json:"s3_key,omitempty"`
	Error string `json:"error,omitempty"`
}

// Logger writes events to a JSON lines file.
type Logger struct {
	mu       sync.Mutex
	filePath string
	file     *os.File
	encoder  *json.Encoder
}

// DefaultLogPath returns the platform-specific log file path.
func DefaultLogPath(port int) string {
	switch runtime.GOOS {
	case "windows":
		programData := os.Getenv("PROGRAMDATA")
		if programData == "" {
			programData = `C:\ProgramData`
		}
		return filepath.Join(programData, "maceaves", "logs", fmt.Sprintf("%d", port), "maceaves.jsonl")
	default: // linux, darwin
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		return filepath.Join(home, "Library", "Logs", "MacEaves", fmt.Sprintf("%d", port), "maceaves.jsonl")
	}
}

// NewLogger creates a new event logger at the specified path.
func NewLogger(filePath string) (*Logger, error) {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return &Logger{
		filePath: filePath,
		file:     file,
		encoder:  json.NewEncoder(file),
	}, nil
}

// Log writes an event to the log file.
func (l *Logger) Log(event *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	return l.encoder.Encode(event)
}

// LogMonitor logs a monitoring lifecycle event.
func (l *Logger) LogMonitor(eventType EventType, deviceID, deviceName string, direction types.Direction, errMsg string) error {
	return l.Log(&Event{
		Timestamp: time.Now(),
		Type:      eventType,
		Details: &MonitorDetails{
			DeviceID:   deviceID,
			DeviceName: deviceName,
			Direction:  string(direction),
			Error:      errMsg,
		},
	})
}

// LogTranscribe logs a transcription session event.
func (l *Logger) LogTranscribe(eventType EventType, sessionID, deviceID string, lines int, errMsg string) error {
	return l.Log(&Event{
		Timestamp: time.Now(),
		Type:      eventType,
		Details: &TranscribeDetails{
			SessionID: sessionID,
			DeviceID:  deviceID,
			Lines:     lines,
			Error:     errMsg,
		},
	})
}

// LogSummary logs a summary run.
func (l *Logger) LogSummary(model string, actionItems int, errMsg string) error {
	return l.Log(&Event{
		Timestamp: time.Now(),
		Type:      SummaryGenerated,
		Details: &SummaryDetails{
			Model:       model,
			ActionItems: actionItems,
			Error:       errMsg,
		},
	})
}

// LogUpload logs an archive upload attempt.
func (l *Logger) LogUpload(s3Key string, uploadErr error) error {
	event := &Event{Timestamp: time.Now(), Type: UploadCompleted, Details: &ArchiveDetails{S3Key: s3Key}}
	if uploadErr != nil {
		event.Type = UploadFailed
		event.Details = &ArchiveDetails{S3Key: s3Key, Error: uploadErr.Error()}
	}
	return l.Log(event)
}

// Close closes the log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Path returns the path to the log file.
func (l *Logger) Path() string {
	return l.filePath
}

// TypeFilter specifies which event types to include when reading.
type TypeFilter string

// Filter constants for ReadLast.
const (
	FilterAll        TypeFilter = ""
	FilterMonitor    TypeFilter = "monitor"
	FilterTranscribe TypeFilter = "transcribe"
	FilterArchive    TypeFilter = "archive"
)

// IsMonitorEvent reports whether the type belongs to the monitor group.
func IsMonitorEvent(t EventType) bool {
	return t == MonitorStarted || t == MonitorStopped || t == DeviceLost
}

// IsTranscribeEvent reports whether the type belongs to the transcribe group.
func IsTranscribeEvent(t EventType) bool {
	return t == TranscribeStarted || t == TranscribeStopped || t == TranscribeError || t == SummaryGenerated
}

// IsArchiveEvent reports whether the type belongs to the archive group.
func IsArchiveEvent(t EventType) bool {
	return t == UploadCompleted || t == UploadFailed
}

func matchesFilter(t EventType, filter TypeFilter) bool {
	switch filter {
	case FilterMonitor:
		return IsMonitorEvent(t)
	case FilterTranscribe:
		return IsTranscribeEvent(t)
	case FilterArchive:
		return IsArchiveEvent(t)
	default:
		return true
	}
}

// MaxReadLimit is the maximum number of events that can be read at once.
// This prevents denial-of-service via excessive memory allocation.
const MaxReadLimit = 500

// ReadLast reads events from the log file with pagination support.
// Returns up to n events starting from offset, filtered by type.
// Events are returned in reverse chronological order (newest first).
func ReadLast(filePath string, n, offset int, filter TypeFilter) ([]Event, bool, error) {
	if n > MaxReadLimit {
		n = MaxReadLimit
	}
	if n <= 0 {
		return []Event{}, false, nil
	}

	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []Event{}, false, nil
		}
		return nil, false, err
	}
	defer file.Close() //nolint:errcheck // Read-only operation, close error not critical

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, false, err
	}

	// Parse in reverse order (newest first), applying filter and offset.
	events := make([]Event, 0, n)
	skipped := 0
	hasMore := false
	for i := len(lines) - 1; i >= 0; i-- {
		var event Event
		if err := json.Unmarshal([]byte(lines[i]), &event); err != nil {
			continue // Skip malformed lines
		}
		if !matchesFilter(event.Type, filter) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		if len(events) >= n {
			hasMore = true
			break
		}
		events = append(events, event)
	}

	return events, hasMore, nil
}
