package transcribe

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/acousland/MacEaves/internal/audio"
	"github.com/acousland/MacEaves/internal/types"
)

// Sink receives the provider-rate PCM stream for session recording. Writes
// happen on the capture path, so implementations must buffer and never block.
type Sink interface {
	WritePCM(pcm []byte) error
	Close() error
}

// Engine runs transcription sessions. Each session owns a capture graph on
// the selected input device, downmixes and decimates the buffers to provider
// PCM, and streams them to a Transcriber created by the configured factory.
type Engine struct {
	platform audio.Platform

	mu        sync.Mutex
	factory   Factory
	state     types.TranscribeState
	deviceID  string
	sessionID string
	startedAt time.Time
	lastError string
	lines     []types.TranscriptLine
	partial   string
	finalText string

	graph    audio.Graph
	tr       Transcriber
	sink     Sink
	active   *captureState
	pumpDone chan struct{}

	// NewSink, when set, is called on every Start to create the session
	// recorder. A sink creation error is logged, not fatal.
	NewSink func(sessionID string) (Sink, error)
	// OnLines receives the visible transcript after every change. Set
	// before the first Start; never changed afterward.
	OnLines func(lines []types.TranscriptLine)
}

// captureState is the per-session data touched by the tap callback. It is
// created on Start and fenced with the alive flag so late buffers from a
// stopping graph are dropped instead of racing the next session.
type captureState struct {
	alive atomic.Bool
	ds    *downsampler
	tr    Transcriber
	sink  Sink
}

// NewEngine returns a stopped engine bound to the platform backend.
func NewEngine(platform audio.Platform) *Engine {
	return &Engine{
		platform: platform,
		state:    types.TranscribeStopped,
	}
}

// SetFactory installs the provider factory used by subsequent Starts.
func (e *Engine) SetFactory(f Factory) {
	e.mu.Lock()
	e.factory = f
	e.mu.Unlock()
}

// Start opens a transcription session on the given input device. The
// previous transcript is cleared. Only one session runs at a time.
func (e *Engine) Start(deviceID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == types.TranscribeRunning || e.state == types.TranscribeStarting {
		return ErrAlreadyRunning
	}
	if e.factory == nil {
		return ErrNoAPIKey
	}
	e.state = types.TranscribeStarting

	tr, err := e.factory()
	if err != nil {
		e.state = types.TranscribeError
		e.lastError = err.Error()
		return fmt.Errorf("create transcriber: %w", err)
	}

	sessionID := uuid.NewString()

	state := &captureState{
		ds: newDownsampler(types.SampleRate, types.TranscribeSampleRate),
		tr: tr,
	}
	if e.NewSink != nil {
		sink, err := e.NewSink(sessionID)
		if err != nil {
			slog.Warn("session recorder unavailable", "session_id", sessionID, "error", err)
		} else {
			state.sink = sink
		}
	}

	graph, err := e.platform.OpenGraph(audio.GraphSpec{
		DeviceID:        deviceID,
		Scope:           audio.ScopeInput,
		SampleRate:      types.SampleRate,
		Channels:        2,
		FramesPerBuffer: types.FramesPerBuffer,
	}, audio.GraphFuncs{
		Frames:  state.onFrames,
		Stopped: func(err error) { e.onStopped(state, err) },
	})
	if err == nil {
		err = graph.Start()
		if err != nil {
			_ = graph.Stop()
		}
	}
	if err != nil {
		_ = tr.Close()
		if state.sink != nil {
			_ = state.sink.Close()
		}
		e.state = types.TranscribeError
		e.lastError = err.Error()
		return fmt.Errorf("%w: %v", audio.ErrGraphOpen, err)
	}

	e.graph = graph
	e.tr = tr
	e.sink = state.sink
	e.active = state
	e.deviceID = deviceID
	e.sessionID = sessionID
	e.startedAt = time.Now()
	e.lastError = ""
	e.lines = nil
	e.partial = ""
	e.finalText = ""
	e.pumpDone = make(chan struct{})
	e.state = types.TranscribeRunning

	state.alive.Store(true)
	go e.pumpResults(tr, e.pumpDone)

	slog.Info("transcription started", "session_id", sessionID, "device", deviceID)
	return nil
}

// Stop ends the session: the capture graph is closed, the provider stream is
// drained and terminated, and the recorder is finalized. The transcript
// remains available until the next Start.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.state != types.TranscribeRunning {
		e.mu.Unlock()
		return ErrNotRunning
	}
	graph, tr, sink, state, pumpDone := e.graph, e.tr, e.sink, e.active, e.pumpDone
	e.graph, e.tr, e.sink, e.active = nil, nil, nil, nil
	e.state = types.TranscribeStopped
	sessionID := e.sessionID
	e.mu.Unlock()

	state.alive.Store(false)
	if err := graph.Stop(); err != nil {
		slog.Warn("transcription graph stop", "session_id", sessionID, "error", err)
	}

	err := tr.Close()
	<-pumpDone

	if sink != nil {
		if cerr := sink.Close(); cerr != nil {
			slog.Warn("session recorder close", "session_id", sessionID, "error", cerr)
		}
	}

	slog.Info("transcription stopped", "session_id", sessionID)
	return err
}

// onStopped handles the capture graph dying mid-session.
func (e *Engine) onStopped(state *captureState, err error) {
	if !state.alive.Swap(false) {
		return
	}

	go func() {
		e.mu.Lock()
		if e.active != state {
			e.mu.Unlock()
			return
		}
		tr, sink := e.tr, e.sink
		e.graph, e.tr, e.sink, e.active = nil, nil, nil, nil
		e.state = types.TranscribeError
		e.lastError = fmt.Sprintf("%v: %v", audio.ErrDeviceLost, err)
		sessionID := e.sessionID
		e.mu.Unlock()

		slog.Error("transcription device lost", "session_id", sessionID, "error", err)
		_ = tr.Close()
		if sink != nil {
			_ = sink.Close()
		}
	}()
}

// pumpResults folds provider results into the transcript and notifies the
// UI. It exits when the provider closes its result stream.
func (e *Engine) pumpResults(tr Transcriber, done chan struct{}) {
	defer close(done)

	for r := range tr.Results() {
		e.mu.Lock()
		if r.Final {
			e.partial = ""
			e.lines = append(e.lines, types.TranscriptLine{
				At:    time.Now(),
				Text:  r.Text,
				Final: true,
			})
			if e.finalText != "" {
				e.finalText += " "
			}
			e.finalText += r.Text
		} else {
			e.partial = r.Text
		}
		lines := e.visibleLinesLocked()
		cb := e.OnLines
		e.mu.Unlock()

		if cb != nil {
			cb(lines)
		}
	}
}

// visibleLinesLocked returns the final lines plus the in-flight partial.
func (e *Engine) visibleLinesLocked() []types.TranscriptLine {
	lines := make([]types.TranscriptLine, len(e.lines), len(e.lines)+1)
	copy(lines, e.lines)
	if e.partial != "" {
		lines = append(lines, types.TranscriptLine{At: time.Now(), Text: e.partial})
	}
	return lines
}

// Lines returns the current visible transcript.
func (e *Engine) Lines() []types.TranscriptLine {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.visibleLinesLocked()
}

// FullTranscript returns every final line joined into one string. It stays
// available after Stop, which is what the summarizer consumes.
func (e *Engine) FullTranscript() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.finalText
}

// Status returns the engine status for the UI.
func (e *Engine) Status() types.TranscribeStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	status := types.TranscribeStatus{
		State:     e.state,
		DeviceID:  e.deviceID,
		SessionID: e.sessionID,
		Lines:     len(e.lines),
		LastError: e.lastError,
	}
	if !e.startedAt.IsZero() && e.state == types.TranscribeRunning {
		status.StartedAt = e.startedAt.UTC().Format(time.RFC3339)
	}
	return status
}

// Running reports whether a session is currently active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == types.TranscribeRunning
}

// onFrames is the tap callback: downmix, decimate, and hand off. Provider
// and sink writes only append to internal buffers, so the capture thread
// never blocks here.
func (s *captureState) onFrames(frame []float32, channels int) {
	if !s.alive.Load() {
		return
	}
	pcm := s.ds.Process(frame, channels)
	if len(pcm) == 0 {
		return
	}
	if err := s.tr.ProcessAudio(pcm); err != nil {
		slog.Warn("transcriber rejected audio", "error", err)
	}
	if s.sink != nil {
		if err := s.sink.WritePCM(pcm); err != nil {
			slog.Warn("session recorder write failed", "error", err)
			s.sink = nil
		}
	}
}
