package audio

import (
	"log/slog"

	"github.com/acousland/MacEaves/internal/types"
)

// Catalog enumerates hardware audio endpoints through a Platform backend.
// It is a stateless query layer: every call rebuilds the lists from scratch.
type Catalog struct {
	platform Platform
}

// NewCatalog returns a catalog backed by the given platform.
func NewCatalog(platform Platform) *Catalog {
	return &Catalog{platform: platform}
}

// List returns the input-capable and output-capable devices in the
// platform's native enumeration order. Enumeration is best-effort: a failed
// platform query excludes the affected devices and never surfaces an error,
// so a fully broken backend yields two empty lists.
func (c *Catalog) List() (inputs, outputs []types.AudioDevice) {
	inputs = c.listScope(ScopeInput)
	outputs = c.listScope(ScopeOutput)
	return inputs, outputs
}

func (c *Catalog) listScope(scope Scope) []types.AudioDevice {
	raw, err := c.platform.Devices(scope)
	if err != nil {
		slog.Warn("device enumeration failed", "scope", scopeName(scope), "error", err)
		return []types.AudioDevice{}
	}

	devices := make([]types.AudioDevice, 0, len(raw))
	for _, d := range raw {
		// A device with no channels on this scope is never surfaced.
		if d.Channels <= 0 {
			continue
		}
		devices = append(devices, types.AudioDevice{
			ID:     d.ID,
			Name:   d.Name,
			Input:  scope == ScopeInput,
			Output: scope == ScopeOutput,
		})
	}
	return devices
}

// Find returns the device with the given ID from either scope, or false if
// it is not currently present. A duplex device enumerable on both scopes
// reports both capability flags.
func (c *Catalog) Find(id string) (types.AudioDevice, bool) {
	inputs, outputs := c.List()
	var found types.AudioDevice
	ok := false
	for _, d := range inputs {
		if d.ID == id {
			found = d
			ok = true
			break
		}
	}
	for _, d := range outputs {
		if d.ID != id {
			continue
		}
		if ok {
			found.Output = true
		} else {
			found = d
			ok = true
		}
		break
	}
	return found, ok
}

// SetDefault asks the platform to change its default device for the scope.
// Best-effort: unsupported backends are not an error.
func (c *Catalog) SetDefault(scope Scope, deviceID string) {
	if err := c.platform.SetDefaultDevice(scope, deviceID); err != nil {
		slog.Debug("set default device skipped", "scope", scopeName(scope), "device", deviceID, "error", err)
	}
}

func scopeName(scope Scope) string {
	if scope == ScopeOutput {
		return "output"
	}
	return "input"
}
