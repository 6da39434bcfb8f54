package audio

import (
	"errors"
	"testing"
	"time"

	"github.com/acousland/MacEaves/internal/types"
)

func TestSessionOpenAndLatest(t *testing.T) {
	platform := &fakePlatform{}
	s := NewSession(platform, "dev-1", types.DirectionInput)

	if got, want := s.Latest(), types.FloorSample(); got != want {
		t.Errorf("Latest before open = %+v, want %+v", got, want)
	}

	if err := s.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := s.State(); got != types.StateRunning {
		t.Fatalf("state = %s, want %s", got, types.StateRunning)
	}

	graph := platform.lastGraph()
	if graph == nil {
		t.Fatal("no graph opened")
	}
	for i := 0; i < 10; i++ {
		graph.feed(constFrame(0.5, 512, 2), 2)
	}
	if got := s.Latest(); got.Left <= types.LevelFloor {
		t.Errorf("Latest().Left = %v after tone, want above floor", got.Left)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := s.State(); got != types.StateIdle {
		t.Errorf("state after close = %s, want %s", got, types.StateIdle)
	}
}

func TestSessionOpenFailure(t *testing.T) {
	platform := &fakePlatform{openErr: errors.New("device busy")}
	s := NewSession(platform, "dev-1", types.DirectionInput)

	err := s.Open()
	if !errors.Is(err, ErrGraphOpen) {
		t.Fatalf("Open error = %v, want ErrGraphOpen", err)
	}
	if got := s.State(); got != types.StateFailed {
		t.Errorf("state = %s, want %s", got, types.StateFailed)
	}
	// Close recovers the slot to idle.
	if err := s.Close(); err != nil {
		t.Fatalf("Close after failed open: %v", err)
	}
	if got := s.State(); got != types.StateIdle {
		t.Errorf("state after close = %s, want %s", got, types.StateIdle)
	}
}

func TestSessionStartFailureTearsDown(t *testing.T) {
	platform := &fakePlatform{startErr: errors.New("format rejected")}
	s := NewSession(platform, "dev-1", types.DirectionInput)

	err := s.Open()
	if !errors.Is(err, ErrGraphOpen) {
		t.Fatalf("Open error = %v, want ErrGraphOpen", err)
	}
	graph := platform.lastGraph()
	if graph == nil {
		t.Fatal("no graph opened")
	}
	if got := graph.stopCount(); got != 1 {
		t.Errorf("graph stops = %d, want 1 (partial graph torn down)", got)
	}
}

func TestSessionReopenRequiresClose(t *testing.T) {
	platform := &fakePlatform{}
	s := NewSession(platform, "dev-1", types.DirectionInput)

	if err := s.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Open(); !errors.Is(err, ErrSessionOpen) {
		t.Fatalf("second Open error = %v, want ErrSessionOpen", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Open(); err != nil {
		t.Fatalf("reopen after close: %v", err)
	}
	if got := len(platform.graphs); got != 2 {
		t.Errorf("graphs opened = %d, want 2", got)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("final Close: %v", err)
	}
}

func TestSessionCloseIdempotent(t *testing.T) {
	platform := &fakePlatform{}
	s := NewSession(platform, "dev-1", types.DirectionInput)

	// Close on a never-opened session is a no-op.
	if err := s.Close(); err != nil {
		t.Fatalf("Close on idle session: %v", err)
	}

	if err := s.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	graph := platform.lastGraph()
	for i := 0; i < 3; i++ {
		if err := s.Close(); err != nil {
			t.Fatalf("Close #%d: %v", i+1, err)
		}
	}
	if got := graph.stopCount(); got != 1 {
		t.Errorf("graph stops = %d, want 1", got)
	}
}

func TestSessionCloseBoundedTeardown(t *testing.T) {
	if testing.Short() {
		t.Skip("waits out the teardown timeout")
	}
	platform := &fakePlatform{stopHang: types.TeardownTimeout + 500*time.Millisecond}
	s := NewSession(platform, "dev-1", types.DirectionInput)

	if err := s.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}

	start := time.Now()
	err := s.Close()
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTeardownTimeout) {
		t.Fatalf("Close error = %v, want ErrTeardownTimeout", err)
	}
	if elapsed > types.TeardownTimeout+time.Second {
		t.Errorf("Close took %v, want bounded near %v", elapsed, types.TeardownTimeout)
	}
	// The handle is discarded regardless; the slot may be reused.
	if got := s.State(); got != types.StateIdle {
		t.Errorf("state after timed-out close = %s, want %s", got, types.StateIdle)
	}
}

func TestSessionDeviceLossDispatchesFailure(t *testing.T) {
	platform := &fakePlatform{}
	s := NewSession(platform, "dev-1", types.DirectionInput)

	failed := make(chan error, 1)
	s.OnFailure(func(err error) { failed <- err })

	if err := s.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	graph := platform.lastGraph()
	graph.feed(constFrame(0.5, 512, 2), 2)

	graph.lose(errors.New("device unplugged"))

	select {
	case err := <-failed:
		if !errors.Is(err, ErrDeviceLost) {
			t.Errorf("failure callback error = %v, want ErrDeviceLost", err)
		}
	case <-time.After(time.Second):
		t.Fatal("failure callback not dispatched")
	}

	if got := s.State(); got != types.StateFailed {
		t.Errorf("state = %s, want %s", got, types.StateFailed)
	}
	if err := s.Err(); !errors.Is(err, ErrDeviceLost) {
		t.Errorf("Err() = %v, want ErrDeviceLost", err)
	}

	// Frames arriving after the loss are ignored.
	before := s.Latest()
	graph.feed(constFrame(1.0, 512, 2), 2)
	if got := s.Latest(); got != before {
		t.Errorf("sample changed after device loss: %+v != %+v", got, before)
	}

	// Close clears the failed slot back to idle.
	if err := s.Close(); err != nil {
		t.Fatalf("Close after device loss: %v", err)
	}
	if got := s.State(); got != types.StateIdle {
		t.Errorf("state after close = %s, want %s", got, types.StateIdle)
	}
}

func TestSessionStopAfterCloseIsSilent(t *testing.T) {
	platform := &fakePlatform{}
	s := NewSession(platform, "dev-1", types.DirectionInput)

	failed := make(chan error, 1)
	s.OnFailure(func(err error) { failed <- err })

	if err := s.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	graph := platform.lastGraph()
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// A late Stopped notification from a deliberately closed graph must
	// not be reported as a failure.
	graph.lose(errors.New("stopped"))

	select {
	case err := <-failed:
		t.Fatalf("unexpected failure callback after close: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
	if got := s.State(); got != types.StateIdle {
		t.Errorf("state = %s, want %s", got, types.StateIdle)
	}
}
