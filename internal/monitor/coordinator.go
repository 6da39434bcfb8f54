// Package monitor provides the monitoring coordinator. It owns every live
// capture session, keyed by (device, direction), and serializes all
// lifecycle mutations behind a single mutex so start/stop races cannot leak
// capture graphs.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/acousland/MacEaves/internal/audio"
	"github.com/acousland/MacEaves/internal/types"
)

// ErrInvalidDirection is returned when a direction is neither input nor
// output.
var ErrInvalidDirection = errors.New("invalid direction")

// slotKey identifies one monitoring slot. The same device may be monitored
// on both directions at once; those are independent slots.
type slotKey struct {
	deviceID  string
	direction types.Direction
}

// slot holds the coordinator's bookkeeping for one (device, direction) pair.
// A slot outlives its session: after a device loss it stays in the table,
// not monitoring, carrying the last error until the next Start or Stop.
type slot struct {
	session    *audio.Session
	deviceName string
	monitoring bool
	lastError  string
}

// Coordinator manages the set of active monitoring slots and publishes
// level samples to the UI at a fixed cadence. All exported methods are safe
// for concurrent use.
type Coordinator struct {
	platform audio.Platform
	catalog  *audio.Catalog

	mu    sync.Mutex
	slots map[slotKey]*slot

	// OnLevels receives the slot snapshot on every refresh tick while Run
	// is active. Set before Run; never changed afterward.
	OnLevels func(slots []types.SlotStatus)
	// OnDeviceLost is invoked when a running slot's device disappears.
	// Set before the first Start; never changed afterward.
	OnDeviceLost func(deviceID string, direction types.Direction, err error)
}

// NewCoordinator returns a coordinator with no active slots.
func NewCoordinator(platform audio.Platform, catalog *audio.Catalog) *Coordinator {
	return &Coordinator{
		platform: platform,
		catalog:  catalog,
		slots:    make(map[slotKey]*slot),
	}
}

// Start begins monitoring the given device and direction. If the slot is
// already active (or failed), its previous session is fully closed before
// the new one is opened; a close always precedes a reopen. The first sample
// reported for a fresh slot is the metering floor.
func (c *Coordinator) Start(deviceID string, direction types.Direction) error {
	if !direction.Valid() {
		return ErrInvalidDirection
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := slotKey{deviceID: deviceID, direction: direction}

	if existing, ok := c.slots[key]; ok && existing.session != nil {
		if err := existing.session.Close(); err != nil {
			slog.Warn("closing previous session", "device", deviceID, "direction", direction, "error", err)
		}
	}

	name := deviceID
	if d, ok := c.catalog.Find(deviceID); ok {
		name = d.Name
	}

	session := audio.NewSession(c.platform, deviceID, direction)
	session.OnFailure(func(err error) {
		c.handleFailure(key, err)
	})

	if err := session.Open(); err != nil {
		c.slots[key] = &slot{
			session:    session,
			deviceName: name,
			monitoring: false,
			lastError:  err.Error(),
		}
		slog.Error("monitor start failed", "device", deviceID, "direction", direction, "error", err)
		return err
	}

	c.slots[key] = &slot{
		session:    session,
		deviceName: name,
		monitoring: true,
	}
	slog.Info("monitor started", "device", deviceID, "direction", direction)
	return nil
}

// Stop closes the slot's session and removes the slot. Stopping a slot that
// is not active is a no-op.
func (c *Coordinator) Stop(deviceID string, direction types.Direction) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := slotKey{deviceID: deviceID, direction: direction}
	s, ok := c.slots[key]
	if !ok {
		return nil
	}
	delete(c.slots, key)

	var err error
	if s.session != nil {
		err = s.session.Close()
	}
	slog.Info("monitor stopped", "device", deviceID, "direction", direction)
	return err
}

// StopAll closes every active session and clears the slot table. The first
// teardown error is returned; all sessions are closed regardless.
func (c *Coordinator) StopAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var first error
	for key, s := range c.slots {
		if s.session != nil {
			if err := s.session.Close(); err != nil && first == nil {
				first = err
			}
		}
		delete(c.slots, key)
	}
	return first
}

// Sample returns the latest level sample for the slot, or the metering
// floor if the slot is unknown or not monitoring.
func (c *Coordinator) Sample(deviceID string, direction types.Direction) types.LevelSample {
	c.mu.Lock()
	s, ok := c.slots[slotKey{deviceID: deviceID, direction: direction}]
	c.mu.Unlock()

	if !ok || !s.monitoring || s.session == nil {
		return types.FloorSample()
	}
	return s.session.Latest()
}

// LastError returns the most recent error message for the slot, or empty.
func (c *Coordinator) LastError(deviceID string, direction types.Direction) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.slots[slotKey{deviceID: deviceID, direction: direction}]; ok {
		return s.lastError
	}
	return ""
}

// Snapshot returns the status of every known slot, sorted by device ID and
// then direction for stable UI rendering.
func (c *Coordinator) Snapshot() []types.SlotStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	statuses := make([]types.SlotStatus, 0, len(c.slots))
	for key, s := range c.slots {
		status := types.SlotStatus{
			DeviceID:   key.deviceID,
			DeviceName: s.deviceName,
			Direction:  key.direction,
			Monitoring: s.monitoring,
			LastError:  s.lastError,
			Sample:     types.FloorSample(),
			State:      types.StateIdle,
		}
		if s.session != nil {
			status.State = s.session.State()
			if s.monitoring {
				status.Sample = s.session.Latest()
			}
		}
		statuses = append(statuses, status)
	}

	sort.Slice(statuses, func(i, j int) bool {
		if statuses[i].DeviceID != statuses[j].DeviceID {
			return statuses[i].DeviceID < statuses[j].DeviceID
		}
		return statuses[i].Direction < statuses[j].Direction
	})
	return statuses
}

// Active reports whether any slot is currently monitoring.
func (c *Coordinator) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.slots {
		if s.monitoring {
			return true
		}
	}
	return false
}

// Run publishes level snapshots on every refresh tick until the context is
// canceled. The tick only reads and publishes what the capture callbacks
// already produced; no audio computation happens here. All sessions are
// closed before Run returns.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(types.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := c.StopAll(); err != nil {
				slog.Warn("closing sessions on shutdown", "error", err)
			}
			return
		case <-ticker.C:
			if c.OnLevels != nil {
				c.OnLevels(c.Snapshot())
			}
		}
	}
}

// handleFailure records a device loss. It runs on a goroutine dispatched by
// the session, never on the platform notification thread, so taking the
// coordinator mutex here cannot deadlock a teardown. The slot is kept, not
// monitoring, so the UI can show what failed and why.
func (c *Coordinator) handleFailure(key slotKey, err error) {
	c.mu.Lock()
	s, ok := c.slots[key]
	if ok {
		s.monitoring = false
		if err != nil {
			s.lastError = err.Error()
		}
	}
	c.mu.Unlock()

	if !ok {
		// The slot was stopped before the failure was dispatched.
		return
	}

	slog.Warn("monitored device lost", "device", key.deviceID, "direction", key.direction, "error", err)
	if c.OnDeviceLost != nil {
		c.OnDeviceLost(key.deviceID, key.direction, err)
	}
}
