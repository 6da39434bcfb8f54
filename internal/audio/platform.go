package audio

import "errors"

// Sentinel errors for capture operations.
var (
	// ErrGraphOpen indicates the capture graph failed to allocate, bind to
	// a device, or start. No resources are leaked when it is returned.
	ErrGraphOpen = errors.New("capture graph open failed")
	// ErrDeviceLost indicates a running session's device disappeared or
	// was reconfigured. The session does not recover on its own.
	ErrDeviceLost = errors.New("audio device lost or reconfigured")
	// ErrTeardownTimeout indicates a graph did not confirm shutdown within
	// the bounded teardown wait.
	ErrTeardownTimeout = errors.New("capture graph teardown timed out")
	// ErrSessionOpen indicates Open was called on a session that has not
	// been closed. A close must always precede a reopen of the same slot.
	ErrSessionOpen = errors.New("capture session already open")
	// ErrUnknownDevice indicates the requested device identifier is not
	// known to the platform.
	ErrUnknownDevice = errors.New("unknown audio device")
	// ErrNotSupported indicates the platform backend cannot perform the
	// requested best-effort mutation.
	ErrNotSupported = errors.New("operation not supported by audio backend")
)

// Scope selects which side of a device a query or graph refers to.
type Scope int

const (
	// ScopeInput refers to a device's capture side.
	ScopeInput Scope = iota
	// ScopeOutput refers to a device's playback side.
	ScopeOutput
)

// PlatformDevice is raw per-device information as reported by the backend.
type PlatformDevice struct {
	ID       string
	Name     string
	Channels int
}

// GraphSpec describes a capture graph to open.
type GraphSpec struct {
	// DeviceID selects the device to bind; empty uses the platform default.
	DeviceID string
	// Scope selects which side of the device the graph is bound to. Output
	// scope taps the input side of the named output device, which carries
	// signal only when a loopback/virtual routing driver is active.
	Scope Scope
	// SampleRate in Hz.
	SampleRate int
	// Channels is the number of interleaved channels to deliver.
	Channels int
	// FramesPerBuffer is the tap buffer size in frames.
	FramesPerBuffer int
}

// GraphFuncs are the callbacks installed on an open graph.
type GraphFuncs struct {
	// Frames receives each interleaved float32 buffer. It runs on the
	// platform's real-time capture thread and must not block or allocate.
	Frames func(frame []float32, channels int)
	// Stopped is invoked when the graph stops outside of a deliberate
	// Stop call, e.g. because the device vanished or was reconfigured.
	Stopped func(err error)
}

// Graph is one live platform capture graph with an installed tap.
type Graph interface {
	// Start begins buffer delivery.
	Start() error
	// Stop halts the graph and removes the tap. It is synchronous: after
	// it returns no further Frames callbacks are delivered. Stop is
	// idempotent.
	Stop() error
}

// Platform is the low-level audio backend boundary. Production code uses the
// malgo-backed implementation; tests substitute fakes.
type Platform interface {
	// Devices enumerates endpoints for the given scope, in the platform's
	// native order. Implementations skip devices whose property queries
	// fail rather than returning partial entries.
	Devices(scope Scope) ([]PlatformDevice, error)
	// OpenGraph allocates a capture graph, binds it to the requested
	// device, and installs the tap callbacks. The graph is not started.
	OpenGraph(spec GraphSpec, funcs GraphFuncs) (Graph, error)
	// SetDefaultDevice asks the platform to change its default device.
	// Best-effort; backends that cannot do this return ErrNotSupported.
	SetDefaultDevice(scope Scope, deviceID string) error
}
