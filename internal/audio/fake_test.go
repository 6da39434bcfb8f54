package audio

import (
	"sync"
	"time"
)

// fakeGraph is a controllable Graph for lifecycle tests. Tests drive the tap
// through feed and simulate device loss through lose.
type fakeGraph struct {
	mu       sync.Mutex
	funcs    GraphFuncs
	startErr error
	stopErr  error
	stopHang time.Duration
	started  bool
	stops    int
}

func (g *fakeGraph) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.startErr != nil {
		return g.startErr
	}
	g.started = true
	return nil
}

func (g *fakeGraph) Stop() error {
	if g.stopHang > 0 {
		time.Sleep(g.stopHang)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.started = false
	g.stops++
	return g.stopErr
}

func (g *fakeGraph) stopCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stops
}

func (g *fakeGraph) feed(frame []float32, channels int) {
	g.funcs.Frames(frame, channels)
}

func (g *fakeGraph) lose(err error) {
	g.funcs.Stopped(err)
}

// fakePlatform is a Platform backed by canned device lists and fakeGraphs.
type fakePlatform struct {
	inputs   []PlatformDevice
	outputs  []PlatformDevice
	devErr   error
	openErr  error
	startErr error
	stopHang time.Duration

	mu     sync.Mutex
	graphs []*fakeGraph
}

func (p *fakePlatform) Devices(scope Scope) ([]PlatformDevice, error) {
	if p.devErr != nil {
		return nil, p.devErr
	}
	if scope == ScopeOutput {
		return p.outputs, nil
	}
	return p.inputs, nil
}

func (p *fakePlatform) OpenGraph(_ GraphSpec, funcs GraphFuncs) (Graph, error) {
	if p.openErr != nil {
		return nil, p.openErr
	}
	g := &fakeGraph{funcs: funcs, startErr: p.startErr, stopHang: p.stopHang}
	p.mu.Lock()
	p.graphs = append(p.graphs, g)
	p.mu.Unlock()
	return g, nil
}

func (p *fakePlatform) SetDefaultDevice(Scope, string) error {
	return ErrNotSupported
}

func (p *fakePlatform) lastGraph() *fakeGraph {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.graphs) == 0 {
		return nil
	}
	return p.graphs[len(p.graphs)-1]
}

// constFrame builds an interleaved frame with every sample at the given
// amplitude.
func constFrame(amp float32, frames, channels int) []float32 {
	buf := make([]float32, frames*channels)
	for i := range buf {
		buf[i] = amp
	}
	return buf
}
