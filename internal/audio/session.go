package audio

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/acousland/MacEaves/internal/types"
)

// Session owns one open binding between a (device, direction) pair and a
// live capture graph. Lifecycle calls (Open, Close) must come from a single
// goroutine (in practice the coordinator), while the tap callback runs on
// the platform's capture thread and touches only the session's own meter and
// its lock-free latest-sample slot.
type Session struct {
	platform  Platform
	deviceID  string // empty = platform default
	direction types.Direction

	mu      sync.Mutex
	state   types.SessionState
	graph   Graph
	lastErr error

	meter  *Meter
	alive  atomic.Bool
	latest sampleSlot

	// onFailure is dispatched (on a fresh goroutine) when the device is
	// lost while running. Set before Open; never changed afterward.
	onFailure func(err error)
}

// NewSession returns an idle session for the given slot. An empty deviceID
// selects the platform default device.
func NewSession(platform Platform, deviceID string, direction types.Direction) *Session {
	s := &Session{
		platform:  platform,
		deviceID:  deviceID,
		direction: direction,
		state:     types.StateIdle,
		meter:     NewMeter(),
	}
	s.latest.store(types.FloorSample())
	return s
}

// OnFailure registers the device-loss callback. Must be called before Open.
func (s *Session) OnFailure(fn func(err error)) {
	s.onFailure = fn
}

// Open allocates the capture graph, installs the tap, and starts delivery.
// On any platform error the partially constructed graph is torn down before
// returning, so no taps or handles leak. Open is only valid from Idle; a
// Close must precede any reopen of the same slot.
func (s *Session) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != types.StateIdle {
		return fmt.Errorf("%w: state %s", ErrSessionOpen, s.state)
	}
	s.state = types.StateStarting

	scope := ScopeInput
	if s.direction == types.DirectionOutput {
		scope = ScopeOutput
	}

	spec := GraphSpec{
		DeviceID:        s.deviceID,
		Scope:           scope,
		SampleRate:      types.SampleRate,
		Channels:        2,
		FramesPerBuffer: types.FramesPerBuffer,
	}

	graph, err := s.platform.OpenGraph(spec, GraphFuncs{
		Frames:  s.onFrames,
		Stopped: s.onStopped,
	})
	if err != nil {
		s.state = types.StateFailed
		s.lastErr = fmt.Errorf("%w: %v", ErrGraphOpen, err)
		return s.lastErr
	}

	if err := graph.Start(); err != nil {
		// Tear down the partially constructed graph before reporting.
		_ = graph.Stop()
		s.state = types.StateFailed
		s.lastErr = fmt.Errorf("%w: %v", ErrGraphOpen, err)
		return s.lastErr
	}

	s.graph = graph
	s.alive.Store(true)
	s.state = types.StateRunning
	return nil
}

// Close stops the graph and removes the tap. It is idempotent and safe from
// Idle, Running, or Failed. The graph teardown is synchronous with a bounded
// wait: if the platform does not confirm shutdown within the teardown
// timeout, ErrTeardownTimeout is returned and the handle is discarded anyway.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.alive.Store(false)

	if s.graph == nil {
		s.state = types.StateIdle
		return nil
	}

	s.state = types.StateStopping
	graph := s.graph
	s.graph = nil

	done := make(chan error, 1)
	go func() {
		done <- graph.Stop()
	}()

	var err error
	select {
	case err = <-done:
	case <-time.After(types.TeardownTimeout):
		err = ErrTeardownTimeout
	}

	s.state = types.StateIdle
	return err
}

// Latest returns the most recently published level sample, or the floor
// sample if no buffer has been processed yet.
func (s *Session) Latest() types.LevelSample {
	return s.latest.load()
}

// State returns the current lifecycle state.
func (s *Session) State() types.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the most recent session error, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// onFrames is the tap callback. It runs on the platform capture thread: it
// only drives the meter and stores the result in the lock-free slot.
func (s *Session) onFrames(frame []float32, channels int) {
	if !s.alive.Load() {
		return
	}
	s.latest.store(s.meter.Process(frame, channels))
}

// onStopped handles an unexpected graph stop (device lost or reconfigured).
// Deliberate closes are filtered via the alive flag. The failure handler is
// dispatched on its own goroutine so the platform's notification thread is
// never blocked on coordinator locks.
func (s *Session) onStopped(err error) {
	if !s.alive.Swap(false) {
		return
	}

	s.mu.Lock()
	if s.state == types.StateRunning || s.state == types.StateStarting {
		s.state = types.StateFailed
		s.lastErr = fmt.Errorf("%w: %v", ErrDeviceLost, err)
	}
	fn := s.onFailure
	reported := s.lastErr
	s.mu.Unlock()

	if fn != nil {
		go fn(reported)
	}
}

// sampleSlot is a lock-free single-producer/single-consumer handoff for the
// latest level sample. Each field is stored as its own atomic word; readers
// may observe fields from adjacent frames but never a torn float, which is
// acceptable for metering at UI refresh rates.
type sampleSlot struct {
	left, right, average, peak atomic.Uint64
}

func (p *sampleSlot) store(s types.LevelSample) {
	p.left.Store(math.Float64bits(s.Left))
	p.right.Store(math.Float64bits(s.Right))
	p.average.Store(math.Float64bits(s.Average))
	p.peak.Store(math.Float64bits(s.Peak))
}

func (p *sampleSlot) load() types.LevelSample {
	return types.LevelSample{
		Left:    math.Float64frombits(p.left.Load()),
		Right:   math.Float64frombits(p.right.Load()),
		Average: math.Float64frombits(p.average.Load()),
		Peak:    math.Float64frombits(p.peak.Load()),
	}
}
