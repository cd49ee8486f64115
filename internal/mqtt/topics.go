package mqtt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"ledble-controller/internal/ble"
	"ledble-controller/internal/config"
	"ledble-controller/internal/core"
)

var errBadPayload = errors.New("bad payload")

// commandTopics are the subtopics we subscribe to under the prefix.
var commandTopics = []string{
	"power/set",
	"brightness/set",
	"color/set",
	"effect/set",
	"speed/set",
	"pattern/run",
	"pattern/stop",
}

// commandFor turns a message on one of commandTopics into an agent command.
func commandFor(sub, payload string) (core.Command, error) {
	payload = strings.TrimSpace(payload)

	switch sub {
	case "power/set":
		on, err := parsePower(payload)
		if err != nil {
			return core.Command{}, err
		}
		return core.Command{Type: core.CmdSetPower, Payload: map[string]interface{}{"isOn": on}}, nil

	case "brightness/set", "speed/set":
		val, err := strconv.Atoi(payload)
		if err != nil {
			return core.Command{}, fmt.Errorf("%w: %q is not a number", errBadPayload, payload)
		}
		t := core.CmdSetBrightness
		if sub == "speed/set" {
			t = core.CmdSetSpeed
		}
		return core.Command{Type: t, Payload: map[string]interface{}{"value": val}}, nil

	case "color/set":
		r, g, b, err := parseColor(payload)
		if err != nil {
			return core.Command{}, err
		}
		return core.Command{Type: core.CmdSetColor, Payload: map[string]interface{}{"r": r, "g": g, "b": b}}, nil

	case "effect/set":
		return effectCommand(payload)

	case "pattern/run":
		return core.Command{Type: core.CmdRunPattern, Payload: map[string]interface{}{"name": payload}}, nil

	case "pattern/stop":
		return core.Command{Type: core.CmdStopPattern}, nil
	}
	return core.Command{}, fmt.Errorf("unhandled topic %s", sub)
}

func parsePower(payload string) (bool, error) {
	switch strings.ToLower(payload) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("%w: power %q", errBadPayload, payload)
}

// parseColor accepts "#RRGGBB", "RRGGBB" or "r,g,b".
func parseColor(payload string) (r, g, b int, err error) {
	if strings.Contains(payload, ",") {
		parts := strings.Split(payload, ",")
		if len(parts) != 3 {
			return 0, 0, 0, fmt.Errorf("%w: color %q", errBadPayload, payload)
		}
		var rgb [3]int
		for i, p := range parts {
			if rgb[i], err = strconv.Atoi(strings.TrimSpace(p)); err != nil {
				return 0, 0, 0, fmt.Errorf("%w: color %q", errBadPayload, payload)
			}
		}
		return rgb[0], rgb[1], rgb[2], nil
	}

	hex := strings.TrimPrefix(payload, "#")
	if len(hex) != 6 {
		return 0, 0, 0, fmt.Errorf("%w: color %q", errBadPayload, payload)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: color %q", errBadPayload, payload)
	}
	return int(v >> 16 & 0xFF), int(v >> 8 & 0xFF), int(v & 0xFF), nil
}

// effectCommand picks the command for an effect name: Lua pattern files,
// then built-in RGB modes, then dynamic modes.
func effectCommand(name string) (core.Command, error) {
	if strings.HasSuffix(strings.ToLower(name), ".lua") {
		return core.Command{Type: core.CmdRunPattern, Payload: map[string]interface{}{"name": name}}, nil
	}
	if _, err := ble.RGBModes.Lookup(name); err == nil {
		return core.Command{Type: core.CmdSetRgbMode, Payload: map[string]interface{}{"mode": name}}, nil
	}
	if _, err := ble.DynamicModes.Lookup(name); err == nil {
		return core.Command{Type: core.CmdSetDynamic, Payload: map[string]interface{}{"mode": name}}, nil
	}
	return core.Command{}, fmt.Errorf("%w: unknown effect %q", errBadPayload, name)
}

type publication struct {
	topic   string
	payload string
}

func mirroredEvents() []core.EventType {
	return []core.EventType{
		core.PowerChangedEvent,
		core.ColorChangedEvent,
		core.StateChangedEvent,
		core.ModeChangedEvent,
		core.PatternChangedEvent,
		core.DeviceConnectedEvent,
	}
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func intValue(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	}
	return 0, false
}

// publicationsFor maps a bus event onto the state topics it changes.
func publicationsFor(ev core.Event) []publication {
	payload, ok := ev.Payload.(map[string]interface{})
	if !ok {
		return nil
	}

	var out []publication
	if on, ok := payload["isOn"].(bool); ok && ev.Type != core.DeviceConnectedEvent {
		out = append(out, publication{"power/state", onOff(on)})
	}
	r, rok := intValue(payload["r"])
	g, gok := intValue(payload["g"])
	b, bok := intValue(payload["b"])
	if rok && gok && bok {
		out = append(out, publication{"color/state", fmt.Sprintf("%d,%d,%d", r, g, b)})
	}
	if v, ok := intValue(payload["brightness"]); ok {
		out = append(out, publication{"brightness/state", strconv.Itoa(v)})
	}
	if v, ok := intValue(payload["speed"]); ok {
		out = append(out, publication{"speed/state", strconv.Itoa(v)})
	}

	switch ev.Type {
	case core.ModeChangedEvent, core.StateChangedEvent:
		if mode, ok := payload["mode"].(string); ok && mode != "" {
			out = append(out, publication{"effect/state", mode})
		}
	case core.PatternChangedEvent:
		running, _ := payload["running"].(string)
		out = append(out, publication{"pattern/state", running})
		if running != "" {
			out = append(out, publication{"effect/state", running})
		}
	case core.DeviceConnectedEvent:
		status := "disconnected"
		if connected, _ := payload["connected"].(bool); connected {
			status = "connected"
		}
		out = append(out, publication{"connection", status})
	}
	return out
}

func safeID(clientID string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == ' ':
			return '_'
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-':
			return r
		}
		return -1
	}, clientID)
}

// effectList is every effect Home Assistant may offer for the light.
func effectList(patterns []string) []string {
	list := append([]string{}, ble.RGBModes.Names()...)
	list = append(list, ble.DynamicModes.Names()...)
	return append(list, patterns...)
}

// discovery builds the Home Assistant MQTT light config topic and payload.
func discovery(cfg config.MQTTConfig, prefix string, patterns []string) (string, map[string]interface{}) {
	id := safeID(cfg.ClientID)
	topic := fmt.Sprintf("%s/light/%s/light/config", cfg.HADiscoveryPrefix, id)
	t := func(sub string) string { return prefix + "/" + sub }

	return topic, map[string]interface{}{
		"name":      "Light",
		"unique_id": id + "_light",
		"object_id": id,
		"icon":      "mdi:led-strip",

		"command_topic": t("power/set"),
		"state_topic":   t("power/state"),
		"payload_on":    "ON",
		"payload_off":   "OFF",

		"brightness_command_topic": t("brightness/set"),
		"brightness_state_topic":   t("brightness/state"),
		"brightness_scale":         100,

		"rgb_command_topic": t("color/set"),
		"rgb_state_topic":   t("color/state"),

		"effect_command_topic": t("effect/set"),
		"effect_state_topic":   t("effect/state"),
		"effect_list":          effectList(patterns),

		"availability_mode": "all",
		"availability": []map[string]string{
			{
				"topic":                 t("availability"),
				"payload_available":     "online",
				"payload_not_available": "offline",
			},
			{
				"topic":                 t("connection"),
				"payload_available":     "connected",
				"payload_not_available": "disconnected",
			},
		},

		"device": map[string]interface{}{
			"identifiers":  []string{id},
			"name":         "LEDBLE Controller",
			"manufacturer": "LEDBLE",
			"model":        "LEDBLE BLE Agent",
			"sw_version":   SoftwareVersion,
		},
	}
}
