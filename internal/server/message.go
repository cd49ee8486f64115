package server

import "ledble-controller/internal/core"

// Message represents an outgoing JSON message sent to WebSocket clients.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// NewMessage creates a new structured Message for broadcasting to clients.
func NewMessage(msgType string, payload interface{}) Message {
	return Message{Type: msgType, Payload: payload}
}

// eventMessages maps bus events onto the message types the web UI listens for.
var eventMessages = map[core.EventType]string{
	core.StateChangedEvent:    "device_state",
	core.DeviceConnectedEvent: "ble_status",
	core.PatternChangedEvent:  "pattern_status",
	core.PowerChangedEvent:    "power_update",
	core.ColorChangedEvent:    "color_update",
	core.ModeChangedEvent:     "mode_update",
	core.ScheduleListEvent:    "schedule_list",
	core.PatternListEvent:     "pattern_list",
	core.PatternCodeEvent:     "pattern_code",
	core.CommandFailedEvent:   "error",
}

func eventTypes() []core.EventType {
	types := make([]core.EventType, 0, len(eventMessages))
	for t := range eventMessages {
		types = append(types, t)
	}
	return types
}

// messageFor converts an event into its outgoing message.
func messageFor(ev core.Event) (Message, bool) {
	t, ok := eventMessages[ev.Type]
	if !ok {
		return Message{}, false
	}
	return NewMessage(t, ev.Payload), true
}
