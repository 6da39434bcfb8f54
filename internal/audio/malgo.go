package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

// MalgoPlatform is the production Platform backed by miniaudio, which maps
// to CoreAudio on macOS, WASAPI on Windows, and ALSA/PulseAudio on Linux.
type MalgoPlatform struct {
	ctx *malgo.AllocatedContext

	// ids maps the string form of a device ID back to the platform's
	// native identifier. Rebuilt on every enumeration.
	mu  sync.Mutex
	ids map[string]malgo.DeviceID
}

// NewMalgoPlatform initializes the backend audio context.
func NewMalgoPlatform() (*MalgoPlatform, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	return &MalgoPlatform{
		ctx: ctx,
		ids: make(map[string]malgo.DeviceID),
	}, nil
}

// Close tears down the backend audio context. All graphs opened through this
// platform must be stopped first.
func (p *MalgoPlatform) Close() error {
	if err := p.ctx.Uninit(); err != nil {
		return fmt.Errorf("uninit audio context: %w", err)
	}
	p.ctx.Free()
	return nil
}

func scopeDeviceType(scope Scope) malgo.DeviceType {
	if scope == ScopeOutput {
		return malgo.Playback
	}
	return malgo.Capture
}

// Devices enumerates endpoints for the given scope. Devices whose detail
// query fails are skipped entirely, so callers never see partial entries.
func (p *MalgoPlatform) Devices(scope Scope) ([]PlatformDevice, error) {
	deviceType := scopeDeviceType(scope)
	infos, err := p.ctx.Devices(deviceType)
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	devices := make([]PlatformDevice, 0, len(infos))
	for _, info := range infos {
		full, err := p.ctx.DeviceInfo(deviceType, info.ID, malgo.Shared)
		if err != nil {
			continue
		}
		id := info.ID.String()
		p.ids[id] = info.ID
		devices = append(devices, PlatformDevice{
			ID:       id,
			Name:     info.Name(),
			Channels: maxChannels(full.Formats),
		})
	}
	return devices, nil
}

// maxChannels returns the widest channel layout among the native data
// formats a device advertises. A device reporting no formats yields zero and
// is dropped by the catalog.
func maxChannels(formats []malgo.DataFormat) int {
	channels := 0
	for _, f := range formats {
		if int(f.Channels) > channels {
			channels = int(f.Channels)
		}
	}
	return channels
}

// OpenGraph allocates a capture graph with the tap installed but not started.
// Output scope taps the capture side of the named output device (loopback).
func (p *MalgoPlatform) OpenGraph(spec GraphSpec, funcs GraphFuncs) (Graph, error) {
	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = uint32(spec.Channels)
	cfg.SampleRate = uint32(spec.SampleRate)
	cfg.PeriodSizeInFrames = uint32(spec.FramesPerBuffer)
	cfg.Alsa.NoMMap = 1

	if spec.DeviceID != "" {
		p.mu.Lock()
		id, ok := p.ids[spec.DeviceID]
		p.mu.Unlock()
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, spec.DeviceID)
		}
		cfg.Capture.DeviceID = id.Pointer()
	}

	g := &malgoGraph{
		channels: spec.Channels,
		funcs:    funcs,
		scratch:  make([]float32, spec.FramesPerBuffer*spec.Channels),
	}

	callbacks := malgo.DeviceCallbacks{
		Data: g.onData,
		Stop: g.onStop,
	}

	device, err := malgo.InitDevice(p.ctx.Context, cfg, callbacks)
	if err != nil {
		return nil, fmt.Errorf("init capture device: %w", err)
	}
	g.device = device
	return g, nil
}

// SetDefaultDevice is not supported by miniaudio; the coordinator treats this
// as a best-effort fallback and ignores ErrNotSupported.
func (p *MalgoPlatform) SetDefaultDevice(Scope, string) error {
	return ErrNotSupported
}

// malgoGraph is one live miniaudio capture device with an installed tap.
type malgoGraph struct {
	device   *malgo.Device
	channels int
	funcs    GraphFuncs
	scratch  []float32
	stopping atomic.Bool
	stopped  atomic.Bool
}

func (g *malgoGraph) Start() error {
	if err := g.device.Start(); err != nil {
		return fmt.Errorf("start capture device: %w", err)
	}
	return nil
}

// Stop halts the device and removes the tap. After Uninit returns miniaudio
// guarantees no further data callbacks, which gives Stop its synchronous
// contract.
func (g *malgoGraph) Stop() error {
	if g.stopped.Swap(true) {
		return nil
	}
	g.stopping.Store(true)
	g.device.Uninit()
	return nil
}

// onData runs on the capture thread. It decodes the raw little-endian float32
// bytes into a scratch buffer owned by this graph; the scratch is reused
// across callbacks so the hot path stays allocation-free.
func (g *malgoGraph) onData(_, input []byte, frameCount uint32) {
	if g.funcs.Frames == nil {
		return
	}
	n := int(frameCount) * g.channels
	if len(input) < n*4 {
		n = len(input) / 4
	}
	if n > len(g.scratch) {
		g.scratch = make([]float32, n)
	}
	for i := 0; i < n; i++ {
		g.scratch[i] = math.Float32frombits(binary.LittleEndian.Uint32(input[i*4:]))
	}
	g.funcs.Frames(g.scratch[:n], g.channels)
}

// onStop fires whenever the device stops. Deliberate stops are filtered so
// only unexpected ones (device lost, reconfigured) reach the session.
func (g *malgoGraph) onStop() {
	if g.stopping.Load() {
		return
	}
	if g.funcs.Stopped != nil {
		g.funcs.Stopped(ErrDeviceLost)
	}
}
