package recording

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/acousland/MacEaves/internal/types"
	"github.com/acousland/MacEaves/internal/util"
)

// Manager creates session recorders in a fixed directory, archives finished
// files to S3 when configured, and prunes old recordings on a daily schedule.
type Manager struct {
	dir           string
	retentionDays int
	s3            func() *S3Config // re-read per use so settings changes apply

	mu      sync.Mutex
	current string // path being written, excluded from cleanup

	cleanupStopCh chan struct{}
	stopOnce      sync.Once

	// OnArchived is invoked after each upload attempt. Set before the
	// first session; never changed afterward.
	OnArchived func(key string, err error)
}

// NewManager ensures the recording directory exists and returns a manager.
// retentionDays of 0 keeps recordings forever. s3 may return nil.
func NewManager(dir string, retentionDays int, s3 func() *S3Config) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, util.WrapError("create recording directory", err)
	}
	if err := util.CheckPathWritable(dir); err != nil {
		return nil, err
	}
	if s3 == nil {
		s3 = func() *S3Config { return nil }
	}

	m := &Manager{
		dir:           dir,
		retentionDays: retentionDays,
		s3:            s3,
		cleanupStopCh: make(chan struct{}),
	}
	m.startCleanupScheduler()
	return m, nil
}

// Dir returns the recording directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Stop halts the cleanup scheduler. Active recorders are unaffected.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.cleanupStopCh) })
}

// SessionRecorder is one meeting recording. Closing it finalizes the WAV
// file and hands it to the archive uploader.
type SessionRecorder struct {
	rec     *Recorder
	manager *Manager
}

// NewSessionRecorder opens a WAV recorder for the given session at the
// provider PCM rate.
func (m *Manager) NewSessionRecorder(sessionID string) (*SessionRecorder, error) {
	short := sessionID
	if len(short) > 8 {
		short = short[:8]
	}
	name := fmt.Sprintf("meeting-%s-%s.wav", time.Now().Format("2006-01-02-15-04"), short)
	path := filepath.Join(m.dir, name)

	rec, err := NewRecorder(path, types.TranscribeSampleRate)
	if err != nil {
		return nil, util.WrapError("create session recording", err)
	}

	m.mu.Lock()
	m.current = path
	m.mu.Unlock()

	slog.Info("session recording started", "path", path)
	return &SessionRecorder{rec: rec, manager: m}, nil
}

// WritePCM forwards PCM to the underlying recorder.
func (s *SessionRecorder) WritePCM(pcm []byte) error {
	return s.rec.WritePCM(pcm)
}

// Path returns the recording file path.
func (s *SessionRecorder) Path() string {
	return s.rec.Path()
}

// Close finalizes the file and starts the archive upload in the background.
func (s *SessionRecorder) Close() error {
	err := s.rec.Close()

	s.manager.mu.Lock()
	if s.manager.current == s.rec.Path() {
		s.manager.current = ""
	}
	s.manager.mu.Unlock()

	if err != nil {
		return err
	}
	slog.Info("session recording finished", "path", s.rec.Path())

	go s.manager.archive(s.rec.Path())
	return nil
}

// archive uploads one finished recording if S3 is configured.
func (m *Manager) archive(path string) {
	cfg := m.s3()
	if !cfg.IsConfigured() {
		return
	}

	key := filepath.Base(path)
	err := UploadFile(cfg, path, key)
	if err != nil {
		slog.Error("recording upload failed", "key", key, "error", err)
	} else {
		slog.Info("recording uploaded", "key", key)
	}
	if m.OnArchived != nil {
		m.OnArchived(key, err)
	}
}

// isCurrentFile reports whether the path is being written right now.
func (m *Manager) isCurrentFile(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current == path
}
