package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/acousland/MacEaves/internal/audio"
	"github.com/acousland/MacEaves/internal/audio/audiotest"
	"github.com/acousland/MacEaves/internal/types"
)

func newTestCoordinator(platform *audiotest.FakePlatform) *Coordinator {
	return NewCoordinator(platform, audio.NewCatalog(platform))
}

func twoDevicePlatform() *audiotest.FakePlatform {
	return &audiotest.FakePlatform{
		Inputs: []audio.PlatformDevice{
			{ID: "mic-1", Name: "Built-in Microphone", Channels: 1},
		},
		Outputs: []audio.PlatformDevice{
			{ID: "spk-1", Name: "Built-in Output", Channels: 2},
		},
	}
}

func TestCoordinatorStartStop(t *testing.T) {
	platform := twoDevicePlatform()
	c := newTestCoordinator(platform)

	if err := c.Start("mic-1", types.DirectionInput); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !c.Active() {
		t.Error("Active = false after start")
	}

	// A fresh slot reports the floor until a buffer arrives.
	if got, want := c.Sample("mic-1", types.DirectionInput), types.FloorSample(); got != want {
		t.Errorf("initial sample = %+v, want %+v", got, want)
	}

	platform.LastGraph().Feed(audiotest.ConstFrame(0.5, 512, 2), 2)
	if got := c.Sample("mic-1", types.DirectionInput); got.Left <= types.LevelFloor {
		t.Errorf("sample.Left = %v after tone, want above floor", got.Left)
	}

	if err := c.Stop("mic-1", types.DirectionInput); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if c.Active() {
		t.Error("Active = true after stop")
	}
	if got, want := c.Sample("mic-1", types.DirectionInput), types.FloorSample(); got != want {
		t.Errorf("sample after stop = %+v, want floor", got)
	}
}

func TestCoordinatorStopUnknownSlotIsNoOp(t *testing.T) {
	c := newTestCoordinator(twoDevicePlatform())
	if err := c.Stop("never-started", types.DirectionInput); err != nil {
		t.Errorf("Stop on unknown slot: %v", err)
	}
}

func TestCoordinatorStartRejectsInvalidDirection(t *testing.T) {
	c := newTestCoordinator(twoDevicePlatform())
	err := c.Start("mic-1", types.Direction("sideways"))
	if !errors.Is(err, ErrInvalidDirection) {
		t.Errorf("Start with invalid direction = %v, want ErrInvalidDirection", err)
	}
	if c.Active() {
		t.Error("Active = true after rejected start")
	}
}

func TestCoordinatorIndependentDirections(t *testing.T) {
	platform := twoDevicePlatform()
	c := newTestCoordinator(platform)

	if err := c.Start("spk-1", types.DirectionOutput); err != nil {
		t.Fatalf("Start output: %v", err)
	}
	if err := c.Start("mic-1", types.DirectionInput); err != nil {
		t.Fatalf("Start input: %v", err)
	}

	snap := c.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot has %d slots, want 2", len(snap))
	}
	// Sorted by device ID.
	if snap[0].DeviceID != "mic-1" || snap[1].DeviceID != "spk-1" {
		t.Errorf("snapshot order = [%s, %s], want [mic-1, spk-1]", snap[0].DeviceID, snap[1].DeviceID)
	}
	if snap[0].DeviceName != "Built-in Microphone" {
		t.Errorf("device name = %q, want resolved catalog name", snap[0].DeviceName)
	}

	if err := c.StopAll(); err != nil {
		t.Fatalf("StopAll: %v", err)
	}
	if len(c.Snapshot()) != 0 {
		t.Error("slots remain after StopAll")
	}
}

func TestCoordinatorRestartClosesPreviousSession(t *testing.T) {
	platform := twoDevicePlatform()
	c := newTestCoordinator(platform)

	if err := c.Start("mic-1", types.DirectionInput); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	first := platform.LastGraph()

	if err := c.Start("mic-1", types.DirectionInput); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if got := first.StopCount(); got != 1 {
		t.Errorf("previous graph stops = %d, want 1 (closed before reopen)", got)
	}
	if got := platform.GraphCount(); got != 2 {
		t.Errorf("graphs opened = %d, want 2", got)
	}
	if err := c.StopAll(); err != nil {
		t.Fatalf("StopAll: %v", err)
	}
}

func TestCoordinatorStartFailureRecordsError(t *testing.T) {
	platform := twoDevicePlatform()
	platform.OpenErr = errors.New("device busy")
	c := newTestCoordinator(platform)

	err := c.Start("mic-1", types.DirectionInput)
	if !errors.Is(err, audio.ErrGraphOpen) {
		t.Fatalf("Start error = %v, want ErrGraphOpen", err)
	}
	if c.Active() {
		t.Error("Active = true after failed start")
	}
	if got := c.LastError("mic-1", types.DirectionInput); got == "" {
		t.Error("LastError empty after failed start")
	}

	snap := c.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("snapshot has %d slots, want 1", len(snap))
	}
	if snap[0].State != types.StateFailed || snap[0].Monitoring {
		t.Errorf("slot = %+v, want failed and not monitoring", snap[0])
	}

	// The failed slot can be restarted once the device is back.
	platform.OpenErr = nil
	if err := c.Start("mic-1", types.DirectionInput); err != nil {
		t.Fatalf("restart after failure: %v", err)
	}
	if got := c.LastError("mic-1", types.DirectionInput); got != "" {
		t.Errorf("LastError = %q after successful restart, want empty", got)
	}
	if err := c.StopAll(); err != nil {
		t.Fatalf("StopAll: %v", err)
	}
}

func TestCoordinatorDeviceLossKeepsSlot(t *testing.T) {
	platform := twoDevicePlatform()
	c := newTestCoordinator(platform)

	lost := make(chan error, 1)
	c.OnDeviceLost = func(deviceID string, direction types.Direction, err error) {
		if deviceID != "mic-1" || direction != types.DirectionInput {
			t.Errorf("device lost reported for %s/%s", deviceID, direction)
		}
		lost <- err
	}

	if err := c.Start("mic-1", types.DirectionInput); err != nil {
		t.Fatalf("Start: %v", err)
	}

	platform.LastGraph().Lose(errors.New("unplugged"))

	select {
	case err := <-lost:
		if !errors.Is(err, audio.ErrDeviceLost) {
			t.Errorf("loss callback error = %v, want ErrDeviceLost", err)
		}
	case <-time.After(time.Second):
		t.Fatal("device loss not reported")
	}

	// The slot stays visible with the failure recorded.
	snap := c.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("snapshot has %d slots, want 1", len(snap))
	}
	if snap[0].Monitoring {
		t.Error("slot still monitoring after device loss")
	}
	if snap[0].State != types.StateFailed {
		t.Errorf("slot state = %s, want %s", snap[0].State, types.StateFailed)
	}
	if snap[0].LastError == "" {
		t.Error("slot last error empty after device loss")
	}
	if got, want := c.Sample("mic-1", types.DirectionInput), types.FloorSample(); got != want {
		t.Errorf("sample after loss = %+v, want floor", got)
	}

	// Monitoring resumes cleanly once the device returns.
	if err := c.Start("mic-1", types.DirectionInput); err != nil {
		t.Fatalf("restart after loss: %v", err)
	}
	if !c.Active() {
		t.Error("Active = false after restart")
	}
	if err := c.StopAll(); err != nil {
		t.Fatalf("StopAll: %v", err)
	}
}

func TestCoordinatorRunPublishesAndShutsDown(t *testing.T) {
	platform := twoDevicePlatform()
	c := newTestCoordinator(platform)

	published := make(chan []types.SlotStatus, 8)
	c.OnLevels = func(slots []types.SlotStatus) {
		select {
		case published <- slots:
		default:
		}
	}

	if err := c.Start("mic-1", types.DirectionInput); err != nil {
		t.Fatalf("Start: %v", err)
	}
	graph := platform.LastGraph()
	graph.Feed(audiotest.ConstFrame(0.5, 512, 2), 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	select {
	case slots := <-published:
		if len(slots) != 1 || slots[0].Sample.Left <= types.LevelFloor {
			t.Errorf("published slots = %+v, want one slot above floor", slots)
		}
	case <-time.After(time.Second):
		t.Fatal("no levels published")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	// Shutdown closed the session.
	if got := graph.StopCount(); got != 1 {
		t.Errorf("graph stops = %d, want 1 after shutdown", got)
	}
	if c.Active() {
		t.Error("Active = true after shutdown")
	}
}
