package agent

import (
	"fmt"
	"strconv"
	"strings"

	"ledble-controller/internal/ble"
	"ledble-controller/internal/core"
)

// resolve reads a table value given either by name or by number. Numbers are
// clamped into the table's range.
func resolve(t ble.Table, cmd core.Command, key string, def int) (int, error) {
	raw, ok := cmd.String(key)
	if !ok || raw == "" {
		return def, nil
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return int(t.Clamp(n)), nil
	}
	return t.Lookup(raw)
}

func timerKind(cmd core.Command) ble.TimerKind {
	if s, ok := cmd.String("timer"); ok {
		if strings.EqualFold(s, "on") || s == "1" {
			return ble.TimerOn
		}
		return ble.TimerOff
	}
	if cmd.Bool("isOn", false) {
		return ble.TimerOn
	}
	return ble.TimerOff
}

func diyColors(cmd core.Command) ([]ble.RGB, error) {
	raw, err := cmd.Colors("colors")
	if err != nil {
		return nil, err
	}
	colors := make([]ble.RGB, len(raw))
	for i, c := range raw {
		colors[i] = ble.RGB{R: c[0], G: c[1], B: c[2]}
	}
	return colors, nil
}

func (a *Agent) publishMode(family, name string) {
	a.eventBus.Publish(core.Event{
		Type:    core.ModeChangedEvent,
		Payload: map[string]interface{}{"family": family, "mode": name},
	})
}

func (a *Agent) publishPatternList() {
	patterns, err := a.luaEngine.GetPatternList()
	if err != nil {
		a.log.Errorf("Error listing patterns: %v", err)
		return
	}
	a.eventBus.Publish(core.Event{Type: core.PatternListEvent, Payload: patterns})
}

// handleCommand applies one command to the strip and the host-side state.
func (a *Agent) handleCommand(cmd core.Command) error {
	a.log.Debugf("Handling command: %s with payload: %v", cmd.Type, cmd.Payload)

	ctx := a.ctx
	current := a.state.Clone()

	switch cmd.Type {
	case core.CmdSetPower:
		isOn := cmd.Bool("isOn", false)
		if current.Power != isOn {
			a.log.Debugf("Power changing to %v, stopping pattern.", isOn)
			a.luaEngine.StopAndWait()
		}
		if err := a.driver.SetPower(ctx, isOn); err != nil {
			return err
		}
		a.state.SetPower(isOn)
		a.eventBus.Publish(core.Event{Type: core.PowerChangedEvent, Payload: map[string]interface{}{"isOn": isOn}})

	case core.CmdSetColor:
		r, g, b := int(ble.Clamp8(cmd.Int("r", 0))), int(ble.Clamp8(cmd.Int("g", 0))), int(ble.Clamp8(cmd.Int("b", 0)))
		if current.ColorR != r || current.ColorG != g || current.ColorB != b || current.Mode != "" {
			a.luaEngine.StopAndWait()
		}
		if err := a.driver.SetRGB(ctx, r, g, b); err != nil {
			return err
		}
		a.state.SetColor(r, g, b)
		a.eventBus.Publish(core.Event{
			Type: core.ColorChangedEvent,
			Payload: map[string]interface{}{
				"r": r, "g": g, "b": b, "hex": fmt.Sprintf("#%02X%02X%02X", r, g, b),
			},
		})

	case core.CmdSetBrightness:
		val := int(ble.ClampPercent(cmd.Int("value", 100)))
		if err := a.driver.SetBrightness(ctx, val); err != nil {
			return err
		}
		a.state.SetBrightness(val)
		a.eventBus.Publish(core.Event{Type: core.StateChangedEvent, Payload: map[string]interface{}{"brightness": val}})

	case core.CmdSetSpeed:
		val := int(ble.ClampPercent(cmd.Int("value", 50)))
		if err := a.driver.SetSpeed(ctx, val); err != nil {
			return err
		}
		a.state.SetSpeed(val)
		a.eventBus.Publish(core.Event{Type: core.StateChangedEvent, Payload: map[string]interface{}{"speed": val}})

	case core.CmdSetRgbMode:
		mode, err := resolve(ble.RGBModes, cmd, "mode", ble.RGBModes.Min)
		if err != nil {
			return err
		}
		a.luaEngine.StopAndWait()
		if err := a.driver.SetRGBMode(ctx, mode); err != nil {
			return err
		}
		name := ble.RGBModes.NameOf(mode)
		a.state.SetMode(name)
		a.publishMode("rgb", name)

	case core.CmdSetDynamic:
		mode, err := resolve(ble.DynamicModes, cmd, "mode", ble.DynamicModes.Min)
		if err != nil {
			return err
		}
		a.luaEngine.StopAndWait()
		if err := a.driver.SetDynamic(ctx, mode); err != nil {
			return err
		}
		name := ble.DynamicModes.NameOf(mode)
		a.state.SetMode(name)
		a.publishMode("dynamic", name)

	case core.CmdSetColorWarmModel:
		model, err := resolve(ble.ColorTempModes, cmd, "model", ble.ColorTempModes.Min)
		if err != nil {
			return err
		}
		if err := a.driver.SetColorWarmModel(ctx, model); err != nil {
			return err
		}
		name := ble.ColorTempModes.NameOf(model)
		a.state.SetMode(name)
		a.publishMode("color_temperature", name)

	case core.CmdSetDimModel:
		model, err := resolve(ble.DimModes, cmd, "model", ble.DimModes.Min)
		if err != nil {
			return err
		}
		if err := a.driver.SetDimModel(ctx, model); err != nil {
			return err
		}
		name := ble.DimModes.NameOf(model)
		a.state.SetMode(name)
		a.publishMode("dim", name)

	case core.CmdSetRgbSort:
		sort, err := resolve(ble.RGBSorts, cmd, "sort", 1)
		if err != nil {
			return err
		}
		return a.driver.SetRGBSort(ctx, sort)

	case core.CmdSetDiy, core.CmdSetDynamicDiy:
		style, err := resolve(ble.DIYStyles, cmd, "style", 0)
		if err != nil {
			return err
		}
		colors, err := diyColors(cmd)
		if err != nil {
			return err
		}
		a.luaEngine.StopAndWait()
		if cmd.Type == core.CmdSetDiy {
			err = a.driver.SetDIY(ctx, style, colors)
		} else {
			err = a.driver.SetDynamicDIY(ctx, style, colors)
		}
		if err != nil {
			return err
		}
		name := "DIY " + ble.DIYStyles.NameOf(style)
		a.state.SetMode(name)
		a.publishMode("diy", name)

	case core.CmdSetMusic:
		return a.driver.SetMusic(ctx, cmd.Int("brightness", 100))

	case core.CmdSetSensitivity:
		return a.driver.SetSensitivity(ctx, cmd.Int("value", 50))

	case core.CmdSetDim:
		return a.driver.SetDim(ctx, cmd.Int("value", 100))

	case core.CmdSetColorWarm:
		return a.driver.SetColorWarm(ctx, cmd.Int("warm", 50), cmd.Int("cool", -1))

	case core.CmdSetOnTimer:
		model, err := resolve(ble.TimerModels, cmd, "model", 1)
		if err != nil {
			return err
		}
		return a.driver.SetOnTimer(ctx, cmd.Int("hour", 0), cmd.Int("minute", 0), model)

	case core.CmdSetOffTimer:
		return a.driver.SetOffTimer(ctx, cmd.Int("hour", 0), cmd.Int("minute", 0))

	case core.CmdEnableTimer:
		return a.driver.EnableTimer(ctx, timerKind(cmd))

	case core.CmdDisableTimer:
		return a.driver.DisableTimer(ctx, timerKind(cmd))

	case core.CmdRunPattern:
		name, _ := cmd.String("name")
		return a.luaEngine.RunPattern(name)

	case core.CmdStopPattern:
		a.luaEngine.StopCurrentPattern()

	case core.CmdAddSchedule:
		spec, _ := cmd.String("spec")
		command, _ := cmd.String("command")
		if _, err := a.scheduler.Add(spec, command); err != nil {
			return err
		}
		a.eventBus.Publish(core.Event{Type: core.ScheduleListEvent, Payload: a.scheduler.GetAll()})

	case core.CmdRemoveSchedule:
		a.scheduler.Remove(cmd.Int("id", 0))
		a.eventBus.Publish(core.Event{Type: core.ScheduleListEvent, Payload: a.scheduler.GetAll()})

	case core.CmdGetPatternCode:
		name, _ := cmd.String("name")
		content, err := a.luaEngine.GetPatternCode(name)
		if err != nil {
			return err
		}
		a.eventBus.Publish(core.Event{Type: core.PatternCodeEvent, Payload: map[string]string{"name": name, "code": content}})

	case core.CmdSavePatternCode:
		name, nameOk := cmd.String("name")
		code, codeOk := cmd.String("code")
		if !nameOk || !codeOk {
			return fmt.Errorf("savePatternCode needs name and code")
		}
		if err := a.luaEngine.SavePatternCode(name, code); err != nil {
			return err
		}
		a.publishPatternList()

	case core.CmdDeletePattern:
		name, _ := cmd.String("name")
		if err := a.luaEngine.DeletePattern(name); err != nil {
			return fmt.Errorf("delete pattern '%s': %w", name, err)
		}
		a.publishPatternList()

	default:
		return fmt.Errorf("unknown command type: %s", cmd.Type)
	}
	return nil
}
