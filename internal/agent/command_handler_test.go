package agent

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ledble-controller/internal/ble"
	"ledble-controller/internal/config"
	"ledble-controller/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (f *fakeTransport) Write(_ context.Context, frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, append([]byte(nil), frame...))
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) Frames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.frames...)
}

func newTestAgent(t *testing.T) (*Agent, *fakeTransport) {
	t.Helper()
	dir := t.TempDir()

	cfg, err := config.Load(filepath.Join(dir, "missing.json"))
	require.NoError(t, err)
	cfg.PatternsDir = filepath.Join(dir, "patterns")
	cfg.SchedulesFile = filepath.Join(dir, "schedules.json")
	cfg.BLE.DIYStepDelay = "0s"
	cfg.BLE.DIYSettleDelay = "0s"

	ft := &fakeTransport{}
	a := newAgent(cfg)
	a.wire(ft)
	t.Cleanup(func() {
		a.luaEngine.Close()
		a.cancel()
	})
	return a, ft
}

func nextEvent(t *testing.T, sub core.Subscriber) core.Event {
	t.Helper()
	select {
	case ev := <-sub:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event published")
		return core.Event{}
	}
}

func TestHandlePower(t *testing.T) {
	a, ft := newTestAgent(t)
	sub := a.eventBus.Subscribe(core.PowerChangedEvent)

	require.NoError(t, a.handleCommand(core.Command{Type: core.CmdSetPower, Payload: map[string]interface{}{"isOn": true}}))

	assert.Equal(t, [][]byte{ble.PowerFrame(true)}, ft.Frames())
	assert.True(t, a.state.Clone().Power)
	assert.Equal(t, map[string]interface{}{"isOn": true}, nextEvent(t, sub).Payload)
}

func TestHandleColorClearsMode(t *testing.T) {
	a, ft := newTestAgent(t)
	a.state.SetMode("Jump")

	cmd := core.Command{Type: core.CmdSetColor, Payload: map[string]interface{}{"r": 300.0, "g": 20.0, "b": 30.0}}
	require.NoError(t, a.handleCommand(cmd))

	assert.Equal(t, [][]byte{ble.ColorFrame(255, 20, 30)}, ft.Frames())
	assert.Equal(t, "", a.state.Clone().Mode)
}

func TestHandleRecordsClampedValues(t *testing.T) {
	a, ft := newTestAgent(t)
	colors := a.eventBus.Subscribe(core.ColorChangedEvent)
	states := a.eventBus.Subscribe(core.StateChangedEvent)

	require.NoError(t, a.handleCommand(core.Command{Type: core.CmdSetColor, Payload: map[string]interface{}{"r": 300.0, "g": 20.0, "b": -4.0}}))
	require.NoError(t, a.handleCommand(core.Command{Type: core.CmdSetBrightness, Payload: map[string]interface{}{"value": 150.0}}))
	require.NoError(t, a.handleCommand(core.Command{Type: core.CmdSetSpeed, Payload: map[string]interface{}{"value": -10.0}}))

	assert.Equal(t, [][]byte{ble.ColorFrame(255, 20, 0), ble.BrightnessFrame(100), ble.SpeedFrame(0)}, ft.Frames())

	s := a.state.Clone()
	assert.Equal(t, []int{255, 20, 0}, []int{s.ColorR, s.ColorG, s.ColorB})
	assert.Equal(t, 100, s.Brightness)
	assert.Equal(t, 0, s.Speed)

	assert.Equal(t, map[string]interface{}{"r": 255, "g": 20, "b": 0, "hex": "#FF1400"}, nextEvent(t, colors).Payload)
	assert.Equal(t, map[string]interface{}{"brightness": 100}, nextEvent(t, states).Payload)
	assert.Equal(t, map[string]interface{}{"speed": 0}, nextEvent(t, states).Payload)
}

func TestTrackedLightRecordsClampedValues(t *testing.T) {
	a, ft := newTestAgent(t)
	light := &trackedLight{driver: a.driver, state: a.state}
	ctx := context.Background()

	require.NoError(t, light.SetRGB(ctx, 999, 1, 2))
	require.NoError(t, light.SetBrightness(ctx, 101))
	require.NoError(t, light.SetSpeed(ctx, 250))

	s := a.state.Clone()
	assert.Equal(t, []int{255, 1, 2}, []int{s.ColorR, s.ColorG, s.ColorB})
	assert.Equal(t, 100, s.Brightness)
	assert.Equal(t, 100, s.Speed)
	assert.Len(t, ft.Frames(), 3)
}

func TestHandleRgbModeByNameAndNumber(t *testing.T) {
	a, ft := newTestAgent(t)
	sub := a.eventBus.Subscribe(core.ModeChangedEvent)

	require.NoError(t, a.handleCommand(core.Command{Type: core.CmdSetRgbMode, Payload: map[string]interface{}{"mode": "seven-color jump"}}))
	assert.Equal(t, "Seven-color jump", a.state.Clone().Mode)
	assert.Equal(t, map[string]interface{}{"family": "rgb", "mode": "Seven-color jump"}, nextEvent(t, sub).Payload)

	require.NoError(t, a.handleCommand(core.Command{Type: core.CmdSetRgbMode, Payload: map[string]interface{}{"mode": 999.0}}))
	assert.Equal(t, "White flash", a.state.Clone().Mode)

	assert.Equal(t, [][]byte{ble.RGBModeFrame(136), ble.RGBModeFrame(156)}, ft.Frames())
}

func TestHandleUnknownModeName(t *testing.T) {
	a, ft := newTestAgent(t)

	err := a.handleCommand(core.Command{Type: core.CmdSetDynamic, Payload: map[string]interface{}{"mode": "Disco"}})
	assert.ErrorIs(t, err, ble.ErrUnknownName)
	assert.Empty(t, ft.Frames())
}

func TestHandleDiyUpload(t *testing.T) {
	a, ft := newTestAgent(t)

	cmd := core.Command{Type: core.CmdSetDiy, Payload: map[string]interface{}{
		"style": "Flash",
		"colors": []interface{}{
			[]interface{}{255.0, 0.0, 0.0},
			map[string]interface{}{"r": 0.0, "g": 0.0, "b": 255.0},
		},
	}}
	require.NoError(t, a.handleCommand(cmd))

	frames := ft.Frames()
	require.Len(t, frames, 4)
	for _, f := range frames {
		assert.Len(t, f, 9)
	}
	assert.Equal(t, "DIY Flash", a.state.Clone().Mode)
}

func TestHandleDiyStopsPatternFirst(t *testing.T) {
	a, ft := newTestAgent(t)
	patterns := a.eventBus.Subscribe(core.PatternChangedEvent)

	a.luaEngine.ExecuteString(`
		while not should_stop() do
			set_color(9, 9, 9)
			sleep(1)
		end
	`)
	require.Eventually(t, func() bool { return len(ft.Frames()) > 0 }, 2*time.Second, 5*time.Millisecond)

	cmd := core.Command{Type: core.CmdSetDiy, Payload: map[string]interface{}{
		"style":  "Jump",
		"colors": []interface{}{[]interface{}{1.0, 2.0, 3.0}},
	}}
	require.NoError(t, a.handleCommand(cmd))

	time.Sleep(30 * time.Millisecond)
	frames := ft.Frames()
	require.GreaterOrEqual(t, len(frames), 3)
	upload := frames[len(frames)-3:]
	assert.Equal(t, byte(0x0E), upload[0][2], "begin")
	assert.Equal(t, byte(0x10), upload[1][2], "color")
	assert.Equal(t, byte(0x0F), upload[2][2], "end")

	var stopped bool
	for len(patterns) > 0 {
		ev := <-patterns
		if ev.Payload.(map[string]interface{})["running"] == "" {
			stopped = true
		}
	}
	assert.True(t, stopped)
}

func TestHandleTimers(t *testing.T) {
	a, ft := newTestAgent(t)

	require.NoError(t, a.handleCommand(core.Command{Type: core.CmdSetOnTimer, Payload: map[string]interface{}{"hour": 7.0, "minute": 30.0, "model": "Static blue"}}))
	require.NoError(t, a.handleCommand(core.Command{Type: core.CmdEnableTimer, Payload: map[string]interface{}{"timer": "on"}}))
	require.NoError(t, a.handleCommand(core.Command{Type: core.CmdDisableTimer, Payload: map[string]interface{}{"isOn": false}}))

	frames := ft.Frames()
	require.Len(t, frames, 3)
	assert.Equal(t, byte(0x0D), frames[0][2])
	assert.Equal(t, byte(1), frames[0][6])
	assert.Equal(t, ble.TimerSwitchFrame(ble.TimerOn, true), frames[1])
	assert.Equal(t, ble.TimerSwitchFrame(ble.TimerOff, false), frames[2])
}

func TestHandleSchedulesAndPatterns(t *testing.T) {
	a, _ := newTestAgent(t)
	schedules := a.eventBus.Subscribe(core.ScheduleListEvent)
	patterns := a.eventBus.Subscribe(core.PatternListEvent, core.PatternCodeEvent)

	require.NoError(t, a.handleCommand(core.Command{Type: core.CmdAddSchedule, Payload: map[string]interface{}{"spec": "0 22 * * *", "command": "power off"}}))
	list := nextEvent(t, schedules).Payload
	assert.Len(t, list, 1)

	assert.Error(t, a.handleCommand(core.Command{Type: core.CmdAddSchedule, Payload: map[string]interface{}{"spec": "0 22 * * *", "command": "dance"}}))

	require.NoError(t, a.handleCommand(core.Command{Type: core.CmdSavePatternCode, Payload: map[string]interface{}{"name": "glow.lua", "code": "set_color(1, 2, 3)"}}))
	assert.Equal(t, []string{"glow.lua"}, nextEvent(t, patterns).Payload)

	require.NoError(t, a.handleCommand(core.Command{Type: core.CmdGetPatternCode, Payload: map[string]interface{}{"name": "glow.lua"}}))
	assert.Equal(t, map[string]string{"name": "glow.lua", "code": "set_color(1, 2, 3)"}, nextEvent(t, patterns).Payload)

	assert.Error(t, a.handleCommand(core.Command{Type: core.CmdSavePatternCode, Payload: map[string]interface{}{"name": "glow.lua"}}))
}

func TestHandleUnknownCommand(t *testing.T) {
	a, _ := newTestAgent(t)
	assert.Error(t, a.handleCommand(core.Command{Type: "explode"}))
}

func TestShutdownClosesTransport(t *testing.T) {
	a, ft := newTestAgent(t)
	a.Shutdown()
	assert.True(t, ft.closed)
}

func TestConnectionStatusReachesState(t *testing.T) {
	a, _ := newTestAgent(t)
	go a.listenEvents()

	require.Eventually(t, func() bool {
		a.eventBus.Publish(core.Event{
			Type: core.DeviceConnectedEvent,
			Payload: map[string]interface{}{
				"connected": true,
				"address":   "C0:00:00:00:02:37",
				"name":      "LEDBLE-0237",
				"rssi":      int16(-61),
			},
		})
		return a.state.Clone().IsConnected
	}, 2*time.Second, 20*time.Millisecond)

	s := a.state.Clone()
	assert.Equal(t, "LEDBLE-0237", s.Name)
	assert.Equal(t, "C0:00:00:00:02:37", s.Address)
	assert.Equal(t, int16(-61), s.RSSI)
}
