package core

import (
	"fmt"
	"strconv"
)

// CommandType defines the type of command being dispatched.
type CommandType string

const (
	CmdSetPower          CommandType = "setPower"
	CmdSetColor          CommandType = "setColor"
	CmdSetBrightness     CommandType = "setBrightness"
	CmdSetSpeed          CommandType = "setSpeed"
	CmdSetRgbMode        CommandType = "setRgbMode"
	CmdSetRgbSort        CommandType = "setRgbSort"
	CmdSetDynamic        CommandType = "setDynamic"
	CmdSetDiy            CommandType = "setDiy"
	CmdSetDynamicDiy     CommandType = "setDynamicDiy"
	CmdSetMusic          CommandType = "setMusic"
	CmdSetSensitivity    CommandType = "setSensitivity"
	CmdSetDim            CommandType = "setDim"
	CmdSetDimModel       CommandType = "setDimModel"
	CmdSetColorWarm      CommandType = "setColorWarm"
	CmdSetColorWarmModel CommandType = "setColorWarmModel"
	CmdSetOnTimer        CommandType = "setOnTimer"
	CmdSetOffTimer       CommandType = "setOffTimer"
	CmdEnableTimer       CommandType = "enableTimer"
	CmdDisableTimer      CommandType = "disableTimer"
	CmdRunPattern        CommandType = "runPattern"
	CmdStopPattern       CommandType = "stopPattern"
	CmdAddSchedule       CommandType = "addSchedule"
	CmdRemoveSchedule    CommandType = "removeSchedule"
	CmdGetPatternCode    CommandType = "getPatternCode"
	CmdSavePatternCode   CommandType = "savePatternCode"
	CmdDeletePattern     CommandType = "deletePattern"
)

// Command is the envelope for incoming requests to change state or perform actions.
type Command struct {
	Type    CommandType            `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}

// CommandChannel is the single channel that the core Agent listens to for commands.
type CommandChannel chan Command

// Int reads a numeric payload field. JSON numbers arrive as float64,
// Go callers may pass ints, and numeric strings are accepted too.
func (c Command) Int(key string, def int) int {
	switch v := c.Payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Bool reads a boolean payload field.
func (c Command) Bool(key string, def bool) bool {
	if v, ok := c.Payload[key].(bool); ok {
		return v
	}
	return def
}

// String reads a string payload field. Numbers are formatted.
func (c Command) String(key string) (string, bool) {
	switch v := c.Payload[key].(type) {
	case string:
		return v, true
	case float64:
		return strconv.Itoa(int(v)), true
	case int:
		return strconv.Itoa(v), true
	}
	return "", false
}

// Colors reads a list of [r, g, b] triples (or {"r","g","b"} objects).
func (c Command) Colors(key string) ([][3]int, error) {
	raw, ok := c.Payload[key].([]interface{})
	if !ok {
		if typed, ok := c.Payload[key].([][3]int); ok {
			return typed, nil
		}
		return nil, fmt.Errorf("payload field %q is not a list", key)
	}

	out := make([][3]int, 0, len(raw))
	for i, item := range raw {
		var rgb [3]int
		switch v := item.(type) {
		case []interface{}:
			if len(v) != 3 {
				return nil, fmt.Errorf("color %d: want 3 components, got %d", i, len(v))
			}
			for j := range v {
				f, ok := v[j].(float64)
				if !ok {
					return nil, fmt.Errorf("color %d: component %d is not a number", i, j)
				}
				rgb[j] = int(f)
			}
		case map[string]interface{}:
			for j, k := range []string{"r", "g", "b"} {
				f, ok := v[k].(float64)
				if !ok {
					return nil, fmt.Errorf("color %d: %q is not a number", i, k)
				}
				rgb[j] = int(f)
			}
		default:
			return nil, fmt.Errorf("color %d: unsupported type %T", i, item)
		}
		out = append(out, rgb)
	}
	return out, nil
}
