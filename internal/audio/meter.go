// Package audio provides device discovery, per-channel level metering, and
// capture session lifecycle management on top of a platform audio backend.
package audio

import (
	"math"

	"github.com/acousland/MacEaves/internal/types"
)

const (
	// MinDB is the metering floor in dB (silence).
	MinDB = types.LevelFloor
	// MaxDB is the metering ceiling in dB (full scale).
	MaxDB = 0.0

	// rmsEpsilon avoids -inf when converting silent frames to dB.
	rmsEpsilon = 1e-6

	// smoothingAlpha is the per-frame exponential smoothing constant.
	smoothingAlpha = 0.8

	// peakHoldTicks is how many processed frames a peak is held before it
	// starts to decay (~1 second at the expected ~20 Hz frame rate).
	peakHoldTicks = 20

	// peakDecayDB is the per-frame decay step once the hold has expired.
	peakDecayDB = 0.5
)

// Meter computes smoothed per-channel levels with peak hold from raw sample
// frames. It is owned by exactly one capture session and must only be used
// from that session's tap callback. Process never allocates, never locks,
// and never blocks, so it is safe on the real-time capture path.
type Meter struct {
	left      float64
	right     float64
	peak      float64
	holdTicks int
	current   types.LevelSample
}

// NewMeter returns a meter initialized to the metering floor.
func NewMeter() *Meter {
	return &Meter{
		left:    MinDB,
		right:   MinDB,
		peak:    MinDB,
		current: types.FloorSample(),
	}
}

// Process computes the next level sample from one interleaved frame of
// float32 samples. A mono frame mirrors channel 0 onto both sides. An empty
// frame is a no-op and returns the previous sample unchanged.
func (m *Meter) Process(frame []float32, channels int) types.LevelSample {
	if len(frame) == 0 || channels <= 0 {
		return m.current
	}

	frames := len(frame) / channels
	if frames == 0 {
		return m.current
	}

	var sumL, sumR float64
	for i := 0; i < frames; i++ {
		l := float64(frame[i*channels])
		sumL += l * l
		if channels >= 2 {
			r := float64(frame[i*channels+1])
			sumR += r * r
		}
	}

	rmsL := math.Sqrt(sumL / float64(frames))
	rmsR := rmsL
	if channels >= 2 {
		rmsR = math.Sqrt(sumR / float64(frames))
	}

	rawL := clampDB(20 * math.Log10(math.Max(rmsL, rmsEpsilon)))
	rawR := clampDB(20 * math.Log10(math.Max(rmsR, rmsEpsilon)))

	m.left = clampDB(m.left*smoothingAlpha + rawL*(1-smoothingAlpha))
	m.right = clampDB(m.right*smoothingAlpha + rawR*(1-smoothingAlpha))

	m.updatePeak(math.Max(m.left, m.right))

	m.current = types.LevelSample{
		Left:    m.left,
		Right:   m.right,
		Average: clampDB((m.left + m.right) / 2),
		Peak:    m.peak,
	}
	return m.current
}

// updatePeak advances the peak-hold state machine: a new maximum jumps the
// peak immediately and resets the hold window; once the hold expires the peak
// decays in fixed steps toward the current level.
func (m *Meter) updatePeak(cur float64) {
	if cur >= m.peak {
		m.peak = cur
		m.holdTicks = peakHoldTicks
		return
	}
	if m.holdTicks > 0 {
		m.holdTicks--
		return
	}
	m.peak = math.Max(m.peak-peakDecayDB, cur)
}

// Current returns the most recent sample without processing anything.
func (m *Meter) Current() types.LevelSample {
	return m.current
}

// Reset returns the meter to the metering floor.
func (m *Meter) Reset() {
	m.left = MinDB
	m.right = MinDB
	m.peak = MinDB
	m.holdTicks = 0
	m.current = types.FloorSample()
}

func clampDB(v float64) float64 {
	if v < MinDB {
		return MinDB
	}
	if v > MaxDB {
		return MaxDB
	}
	return v
}
