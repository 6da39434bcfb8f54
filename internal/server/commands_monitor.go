package server

import (
	"log/slog"

	"github.com/acousland/MacEaves/internal/eventlog"
	"github.com/acousland/MacEaves/internal/types"
)

// --- Monitor handlers ---

// handleMonitorStart processes a monitor/start command.
func (h *CommandHandler) handleMonitorStart(cmd WSCommand, send chan<- any) {
	HandleCommand(cmd, send, func(req *MonitorStartRequest) error {
		direction := types.Direction(req.Direction)

		slog.Info("monitor/start", "device", req.DeviceID, "direction", direction)
		if err := h.monitor.Start(req.DeviceID, direction); err != nil {
			h.logMonitorEvent(eventlog.DeviceLost, req.DeviceID, direction, err.Error())
			return err
		}

		// Restarting a slot re-arms its device-lost alert.
		h.notifier.HandleMonitorStarted(req.DeviceID, direction)
		h.logMonitorEvent(eventlog.MonitorStarted, req.DeviceID, direction, "")
		return nil
	})
}

// handleMonitorStop processes a monitor/stop command.
func (h *CommandHandler) handleMonitorStop(cmd WSCommand, send chan<- any) {
	HandleCommand(cmd, send, func(req *MonitorStopRequest) error {
		direction := types.Direction(req.Direction)

		slog.Info("monitor/stop", "device", req.DeviceID, "direction", direction)
		if err := h.monitor.Stop(req.DeviceID, direction); err != nil {
			return err
		}

		h.logMonitorEvent(eventlog.MonitorStopped, req.DeviceID, direction, "")
		return nil
	})
}

// handleMonitorStopAll processes a monitor/stop_all command.
func (h *CommandHandler) handleMonitorStopAll(cmd WSCommand, send chan<- any) {
	slog.Info("monitor/stop_all")
	if err := h.monitor.StopAll(); err != nil {
		SendError(send, cmd.Type, err)
		return
	}
	h.notifier.Reset()
	SendSuccess(send, cmd.Type, nil)
}

// logMonitorEvent records a monitoring event with the resolved device name.
func (h *CommandHandler) logMonitorEvent(eventType eventlog.EventType, deviceID string, direction types.Direction, errMsg string) {
	if h.events == nil {
		return
	}
	name := ""
	if dev, ok := h.catalog.Find(deviceID); ok {
		name = dev.Name
	}
	if err := h.events.LogMonitor(eventType, deviceID, name, direction, errMsg); err != nil {
		slog.Warn("failed to write event log", "type", eventType, "error", err)
	}
}
