package transcribe

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/acousland/MacEaves/internal/audio"
	"github.com/acousland/MacEaves/internal/audio/audiotest"
	"github.com/acousland/MacEaves/internal/types"
)

// fakeTranscriber collects PCM and lets tests inject provider results.
type fakeTranscriber struct {
	mu      sync.Mutex
	pcm     []byte
	closed  bool
	results chan Result
}

func newFakeTranscriber() *fakeTranscriber {
	return &fakeTranscriber{results: make(chan Result, 16)}
}

func (f *fakeTranscriber) ProcessAudio(pcm []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pcm = append(f.pcm, pcm...)
	return nil
}

func (f *fakeTranscriber) Results() <-chan Result { return f.results }

func (f *fakeTranscriber) FullTranscript() string { return "" }

func (f *fakeTranscriber) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.results)
	}
	return nil
}

func (f *fakeTranscriber) pcmLen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pcm)
}

func (f *fakeTranscriber) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// emit injects a provider result and waits for the engine to fold it in.
func emit(t *testing.T, e *Engine, f *fakeTranscriber, r Result, wantLines int) {
	t.Helper()
	f.results <- r
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(e.Lines()) >= wantLines {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("transcript never reached %d lines", wantLines)
}

type fakeSink struct {
	mu     sync.Mutex
	pcm    []byte
	closed bool
}

func (s *fakeSink) WritePCM(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pcm = append(s.pcm, pcm...)
	return nil
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func newTestEngine(platform *audiotest.FakePlatform, tr *fakeTranscriber) *Engine {
	e := NewEngine(platform)
	e.SetFactory(func() (Transcriber, error) { return tr, nil })
	return e
}

func inputPlatform() *audiotest.FakePlatform {
	return &audiotest.FakePlatform{
		Inputs: []audio.PlatformDevice{{ID: "mic-1", Name: "Mic", Channels: 2}},
	}
}

func TestEngineStartStop(t *testing.T) {
	platform := inputPlatform()
	tr := newFakeTranscriber()
	e := newTestEngine(platform, tr)

	if err := e.Start("mic-1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	status := e.Status()
	if status.State != types.TranscribeRunning {
		t.Errorf("state = %s, want %s", status.State, types.TranscribeRunning)
	}
	if status.SessionID == "" || status.DeviceID != "mic-1" {
		t.Errorf("status = %+v, want session id and device", status)
	}

	// Audio flows through the downsampler into the provider.
	platform.LastGraph().Feed(audiotest.ConstFrame(0.5, 512, 2), 2)
	if got := tr.pcmLen(); got == 0 {
		t.Error("provider received no PCM")
	}

	emit(t, e, tr, Result{Text: "hello everyone.", Final: true}, 1)
	emit(t, e, tr, Result{Text: "let us begin.", Final: true}, 2)

	if err := e.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !tr.isClosed() {
		t.Error("provider connection not closed on Stop")
	}
	if got := platform.LastGraph().StopCount(); got != 1 {
		t.Errorf("graph stops = %d, want 1", got)
	}

	// The transcript survives until the next Start.
	if got, want := e.FullTranscript(), "hello everyone. let us begin."; got != want {
		t.Errorf("FullTranscript = %q, want %q", got, want)
	}
	if got := e.Status().State; got != types.TranscribeStopped {
		t.Errorf("state after stop = %s, want %s", got, types.TranscribeStopped)
	}
}

func TestEnginePartialSupersededByFinal(t *testing.T) {
	platform := inputPlatform()
	tr := newFakeTranscriber()
	e := newTestEngine(platform, tr)

	if err := e.Start("mic-1"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	emit(t, e, tr, Result{Text: "hel"}, 1)
	lines := e.Lines()
	if len(lines) != 1 || lines[0].Final {
		t.Fatalf("lines = %+v, want one partial", lines)
	}

	emit(t, e, tr, Result{Text: "hello there.", Final: true}, 1)
	deadline := time.Now().Add(time.Second)
	for {
		lines = e.Lines()
		if len(lines) == 1 && lines[0].Final {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("lines = %+v, want one final line", lines)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if lines[0].Text != "hello there." {
		t.Errorf("line text = %q, want %q", lines[0].Text, "hello there.")
	}

	if err := e.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestEngineLifecycleErrors(t *testing.T) {
	platform := inputPlatform()
	tr := newFakeTranscriber()

	e := NewEngine(platform)
	if err := e.Start("mic-1"); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("Start without factory = %v, want ErrNoAPIKey", err)
	}
	if err := e.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Stop while stopped = %v, want ErrNotRunning", err)
	}

	e.SetFactory(func() (Transcriber, error) { return tr, nil })
	if err := e.Start("mic-1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := e.Start("mic-1"); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start = %v, want ErrAlreadyRunning", err)
	}
	if err := e.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestEngineGraphOpenFailureClosesProvider(t *testing.T) {
	platform := inputPlatform()
	platform.OpenErr = errors.New("device busy")
	tr := newFakeTranscriber()
	e := newTestEngine(platform, tr)

	err := e.Start("mic-1")
	if !errors.Is(err, audio.ErrGraphOpen) {
		t.Fatalf("Start error = %v, want ErrGraphOpen", err)
	}
	if !tr.isClosed() {
		t.Error("provider connection leaked after failed start")
	}
	if got := e.Status().State; got != types.TranscribeError {
		t.Errorf("state = %s, want %s", got, types.TranscribeError)
	}
}

func TestEngineDeviceLoss(t *testing.T) {
	platform := inputPlatform()
	tr := newFakeTranscriber()
	e := newTestEngine(platform, tr)

	if err := e.Start("mic-1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	platform.LastGraph().Lose(errors.New("unplugged"))

	deadline := time.Now().Add(time.Second)
	for e.Status().State != types.TranscribeError {
		if time.Now().After(deadline) {
			t.Fatalf("state = %s, want %s", e.Status().State, types.TranscribeError)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := e.Status().LastError; got == "" {
		t.Error("last error empty after device loss")
	}
	if !tr.isClosed() {
		t.Error("provider connection not closed after device loss")
	}
	if err := e.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Stop after loss = %v, want ErrNotRunning", err)
	}
}

func TestEngineTeesPCMToSink(t *testing.T) {
	platform := inputPlatform()
	tr := newFakeTranscriber()
	e := newTestEngine(platform, tr)

	sink := &fakeSink{}
	e.NewSink = func(string) (Sink, error) { return sink, nil }

	if err := e.Start("mic-1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	platform.LastGraph().Feed(audiotest.ConstFrame(0.5, 512, 2), 2)

	sink.mu.Lock()
	n := len(sink.pcm)
	sink.mu.Unlock()
	if n == 0 {
		t.Error("sink received no PCM")
	}
	if n != tr.pcmLen() {
		t.Errorf("sink got %d bytes, provider got %d, want identical streams", n, tr.pcmLen())
	}

	if err := e.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	sink.mu.Lock()
	closed := sink.closed
	sink.mu.Unlock()
	if !closed {
		t.Error("sink not closed on Stop")
	}
}
