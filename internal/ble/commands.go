package ble

import "time"

// Frame delimiters shared by every LEDBLE command.
const (
	StartByte byte = 0x7E
	EndByte   byte = 0xEF
)

// Opcodes (third byte of a frame).
const (
	opBrightness  byte = 0x01
	opSpeed       byte = 0x02
	opMode        byte = 0x03
	opPower       byte = 0x04
	opColor       byte = 0x05
	opMusic       byte = 0x06
	opSensitivity byte = 0x07
	opRGBSort     byte = 0x08
	opDynDIYBegin byte = 0x0A
	opDynDIYColor byte = 0x0B
	opDynDIYEnd   byte = 0x0C
	opTimer       byte = 0x0D
	opDIYBegin    byte = 0x0E
	opDIYEnd      byte = 0x0F
	opDIYColor    byte = 0x10
)

// Mode families (fifth byte of an opMode frame).
const (
	familyDim       byte = 0x01
	familyColorTemp byte = 0x02
	familyRGB       byte = 0x03
	familyDynamic   byte = 0x04
)

// TimerKind selects the on or the off timer slot.
type TimerKind byte

const (
	TimerOff TimerKind = 0
	TimerOn  TimerKind = 1
)

const secondsPerDay = 24 * 60 * 60

func clampByte(v, lo, hi int) byte {
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return byte(v)
}

// Clamp8 forces v into a color channel, 0..255.
func Clamp8(v int) byte { return clampByte(v, 0, 255) }

// ClampPercent forces v into 0..100 as used for brightness, speed and dim.
func ClampPercent(v int) byte { return clampByte(v, 0, 100) }

func frame(b1, op, b3, b4, b5, b6, b7 byte) []byte {
	return []byte{StartByte, b1, op, b3, b4, b5, b6, b7, EndByte}
}

// single-argument commands share the 7E 04 op v FF FF FF 00 EF shape.
func scalarFrame(op, v byte) []byte {
	return frame(0x04, op, v, 0xFF, 0xFF, 0xFF, 0x00)
}

// PowerFrame switches the strip on or off.
func PowerFrame(on bool) []byte {
	var v byte
	if on {
		v = 0x01
	}
	return scalarFrame(opPower, v)
}

// RGBSortFrame sets the channel order, 1..6 (see RGBSorts).
func RGBSortFrame(sort int) []byte {
	return scalarFrame(opRGBSort, RGBSorts.Clamp(sort))
}

// ColorFrame sets a static RGB color.
func ColorFrame(r, g, b int) []byte {
	return frame(0x07, opColor, 0x03, Clamp8(r), Clamp8(g), Clamp8(b), 0x00)
}

// SpeedFrame sets the animation speed, 0..100.
func SpeedFrame(speed int) []byte {
	return scalarFrame(opSpeed, ClampPercent(speed))
}

// BrightnessFrame sets the brightness, 0..100.
func BrightnessFrame(brightness int) []byte {
	return scalarFrame(opBrightness, ClampPercent(brightness))
}

// SensitivityFrame sets the speed/sensitivity paired with dynamic DIY, 0..100.
func SensitivityFrame(v int) []byte {
	return scalarFrame(opSensitivity, ClampPercent(v))
}

// MusicFrame enables the microphone mode at the given brightness, 0..100.
func MusicFrame(brightness int) []byte {
	return frame(0x07, opMusic, ClampPercent(brightness), 0x00, 0x00, 0x00, 0x00)
}

func modeFrame(mode, family byte) []byte {
	return frame(0x05, opMode, mode, family, 0xFF, 0xFF, 0x00)
}

// RGBModeFrame selects a preprogrammed animation, 128..156.
func RGBModeFrame(mode int) []byte {
	return modeFrame(RGBModes.Clamp(mode), familyRGB)
}

// DynamicFrame selects a dynamic style, 128..131.
func DynamicFrame(mode int) []byte {
	return modeFrame(DynamicModes.Clamp(mode), familyDynamic)
}

// ColorTempModelFrame selects a color temperature preset, 128..138.
func ColorTempModelFrame(model int) []byte {
	return modeFrame(ColorTempModes.Clamp(model), familyColorTemp)
}

// DimModelFrame selects a dim preset, 128..138.
func DimModelFrame(model int) []byte {
	return modeFrame(DimModes.Clamp(model), familyDim)
}

// DimFrame sets the dim level of single color strips, 0..100.
func DimFrame(dim int) []byte {
	return frame(0x05, opColor, 0x01, ClampPercent(dim), 0xFF, 0xFF, 0x08)
}

// ColorWarmFrame sets the warm/cool mix. A negative cool means 100-warm.
func ColorWarmFrame(warm, cool int) []byte {
	w := ClampPercent(warm)
	if cool < 0 {
		cool = 100 - int(w)
	}
	return frame(0x06, opColor, 0x02, w, ClampPercent(cool), 0xFF, 0x08)
}

// DIY sequences are uploaded as begin, one frame per color, end.
func diyBeginFrame(style int) []byte {
	return frame(0x05, opDIYBegin, DIYStyles.Clamp(style), 0x03, 0xFF, 0xFF, 0x00)
}

func diyColorFrame(r, g, b int) []byte {
	return frame(0x07, opDIYColor, 0x03, Clamp8(r), Clamp8(g), Clamp8(b), 0x00)
}

func diyEndFrame(style int) []byte {
	return frame(0x05, opDIYEnd, DIYStyles.Clamp(style), 0x03, 0xFF, 0xFF, 0x00)
}

func dynamicDIYBeginFrame(style int) []byte {
	return frame(0x05, opDynDIYBegin, DIYStyles.Clamp(style), 0x03, 0xFF, 0xFF, 0x00)
}

func dynamicDIYColorFrame(r, g, b int) []byte {
	return frame(0x07, opDynDIYColor, 0x03, Clamp8(r), Clamp8(g), Clamp8(b), 0x00)
}

func dynamicDIYEndFrame(style int) []byte {
	return frame(0x05, opDynDIYEnd, DIYStyles.Clamp(style), 0x03, 0xFF, 0xFF, 0x00)
}

// SecondsUntil returns how many seconds lie between now and the next hour:minute.
// The strip has no clock, so timers are armed as a countdown.
func SecondsUntil(hour, minute int, now time.Time) int {
	h := int(clampByte(hour, 0, 23))
	m := int(clampByte(minute, 0, 59))

	want := (h*60 + m) * 60
	cur := (now.Hour()*60+now.Minute())*60 + now.Second()

	seconds := want - cur
	if seconds < 0 {
		seconds += secondsPerDay
	}
	return seconds
}

func timerFrame(seconds int, action, model byte) []byte {
	minutes := seconds / 60
	return []byte{
		StartByte, 0x01, opTimer,
		byte(minutes >> 8), byte(minutes),
		action, model,
		byte(seconds % 60),
		EndByte,
	}
}

// OnTimerFrame arms the on timer for hour:minute showing the given timer model.
func OnTimerFrame(hour, minute, model int, now time.Time) []byte {
	return timerFrame(SecondsUntil(hour, minute, now), 0x01, TimerModels.Clamp(model))
}

// OffTimerFrame arms the off timer for hour:minute.
func OffTimerFrame(hour, minute int, now time.Time) []byte {
	return timerFrame(SecondsUntil(hour, minute, now), 0x00, 0xFF)
}

// TimerSwitchFrame enables or disables an armed timer.
func TimerSwitchFrame(kind TimerKind, enable bool) []byte {
	var v byte
	if enable {
		v = 0x01
	}
	return []byte{StartByte, clampByte(int(kind), 0, 1), opTimer, 0xFF, 0xFF, v, 0xFF, 0xFF, EndByte}
}
