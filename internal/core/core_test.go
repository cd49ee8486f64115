package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBusDelivers(t *testing.T) {
	eb := NewEventBus()
	sub := eb.Subscribe(PowerChangedEvent, ColorChangedEvent)

	eb.Publish(Event{Type: PowerChangedEvent, Payload: true})
	eb.Publish(Event{Type: ModeChangedEvent, Payload: "ignored"})
	eb.Publish(Event{Type: ColorChangedEvent, Payload: "red"})

	require.Len(t, sub, 2)
	assert.Equal(t, PowerChangedEvent, (<-sub).Type)
	assert.Equal(t, ColorChangedEvent, (<-sub).Type)
}

func TestEventBusUnsubscribe(t *testing.T) {
	eb := NewEventBus()
	a := eb.Subscribe(PowerChangedEvent)
	b := eb.Subscribe(PowerChangedEvent)

	eb.Unsubscribe(a, PowerChangedEvent)
	eb.Publish(Event{Type: PowerChangedEvent})

	assert.Len(t, a, 0)
	assert.Len(t, b, 1)
}

func TestEventBusDropsWhenFull(t *testing.T) {
	eb := NewEventBus()
	sub := eb.Subscribe(StateChangedEvent)

	for i := 0; i < subscriberBuffer+10; i++ {
		eb.Publish(Event{Type: StateChangedEvent, Payload: i})
	}
	assert.Len(t, sub, subscriberBuffer)
}

func TestCommandPayloadHelpers(t *testing.T) {
	var cmd Command
	require.NoError(t, json.Unmarshal([]byte(`{
		"type": "setDiy",
		"payload": {"style": "Gradient", "speed": 40, "isOn": true, "level": "7",
			"colors": [[255, 0, 0], {"r": 0, "g": 255, "b": 0}]}
	}`), &cmd))

	assert.Equal(t, CmdSetDiy, cmd.Type)
	assert.Equal(t, 40, cmd.Int("speed", 0))
	assert.Equal(t, 7, cmd.Int("level", 0))
	assert.Equal(t, 9, cmd.Int("missing", 9))
	assert.True(t, cmd.Bool("isOn", false))

	style, ok := cmd.String("style")
	assert.True(t, ok)
	assert.Equal(t, "Gradient", style)

	speed, ok := cmd.String("speed")
	assert.True(t, ok)
	assert.Equal(t, "40", speed)

	colors, err := cmd.Colors("colors")
	require.NoError(t, err)
	assert.Equal(t, [][3]int{{255, 0, 0}, {0, 255, 0}}, colors)
}

func TestCommandColorsRejectsMalformed(t *testing.T) {
	cmd := Command{Payload: map[string]interface{}{
		"short": []interface{}{[]interface{}{1.0, 2.0}},
		"text":  "red",
	}}

	_, err := cmd.Colors("short")
	assert.Error(t, err)
	_, err = cmd.Colors("text")
	assert.Error(t, err)
}

func TestStateSetColorClearsMode(t *testing.T) {
	s := NewState()
	s.SetMode("Seven-color jump")
	s.SetColor(1, 2, 3)

	snap := s.Clone()
	assert.Equal(t, "", snap.Mode)
	assert.Equal(t, 1, snap.ColorR)
	assert.Equal(t, 100, snap.Brightness)
}
