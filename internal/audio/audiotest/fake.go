// Package audiotest provides fake audio backends for tests in packages that
// sit on top of the platform boundary.
package audiotest

import (
	"sync"
	"time"

	"github.com/acousland/MacEaves/internal/audio"
)

// FakeGraph is a controllable capture graph. Tests push frames through Feed
// and simulate device loss through Lose.
type FakeGraph struct {
	mu       sync.Mutex
	funcs    audio.GraphFuncs
	spec     audio.GraphSpec
	startErr error
	stopHang time.Duration
	started  bool
	stops    int
}

func (g *FakeGraph) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.startErr != nil {
		return g.startErr
	}
	g.started = true
	return nil
}

func (g *FakeGraph) Stop() error {
	if g.stopHang > 0 {
		time.Sleep(g.stopHang)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.started = false
	g.stops++
	return nil
}

// Started reports whether the graph is currently delivering buffers.
func (g *FakeGraph) Started() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.started
}

// StopCount returns how many times Stop has been called.
func (g *FakeGraph) StopCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stops
}

// Spec returns the spec the graph was opened with.
func (g *FakeGraph) Spec() audio.GraphSpec {
	return g.spec
}

// Feed delivers one interleaved frame to the installed tap.
func (g *FakeGraph) Feed(frame []float32, channels int) {
	g.funcs.Frames(frame, channels)
}

// Lose simulates the device disappearing out from under a running graph.
func (g *FakeGraph) Lose(err error) {
	g.funcs.Stopped(err)
}

// FakePlatform is an audio.Platform backed by canned device lists. Every
// OpenGraph call produces a fresh FakeGraph, retrievable via LastGraph.
type FakePlatform struct {
	Inputs   []audio.PlatformDevice
	Outputs  []audio.PlatformDevice
	DevErr   error
	OpenErr  error
	StartErr error
	StopHang time.Duration

	mu     sync.Mutex
	graphs []*FakeGraph
}

func (p *FakePlatform) Devices(scope audio.Scope) ([]audio.PlatformDevice, error) {
	if p.DevErr != nil {
		return nil, p.DevErr
	}
	if scope == audio.ScopeOutput {
		return p.Outputs, nil
	}
	return p.Inputs, nil
}

func (p *FakePlatform) OpenGraph(spec audio.GraphSpec, funcs audio.GraphFuncs) (audio.Graph, error) {
	if p.OpenErr != nil {
		return nil, p.OpenErr
	}
	g := &FakeGraph{funcs: funcs, spec: spec, startErr: p.StartErr, stopHang: p.StopHang}
	p.mu.Lock()
	p.graphs = append(p.graphs, g)
	p.mu.Unlock()
	return g, nil
}

func (p *FakePlatform) SetDefaultDevice(audio.Scope, string) error {
	return audio.ErrNotSupported
}

// LastGraph returns the most recently opened graph, or nil.
func (p *FakePlatform) LastGraph() *FakeGraph {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.graphs) == 0 {
		return nil
	}
	return p.graphs[len(p.graphs)-1]
}

// GraphCount returns how many graphs have been opened.
func (p *FakePlatform) GraphCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.graphs)
}

// ConstFrame builds an interleaved frame with every sample at the given
// amplitude.
func ConstFrame(amp float32, frames, channels int) []float32 {
	buf := make([]float32, frames*channels)
	for i := range buf {
		buf[i] = amp
	}
	return buf
}
