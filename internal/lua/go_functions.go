package lua

import (
	"context"
	"math"
	"time"

	"ledble-controller/internal/ble"

	"github.com/sirupsen/logrus"
	lua "github.com/yuin/gopher-lua"
)

// bindings exposes the strip to one running script.
type bindings struct {
	light Light
	ctx   context.Context
	log   *logrus.Entry
}

func newBindings(light Light, ctx context.Context, log *logrus.Entry) *bindings {
	return &bindings{light: light, ctx: ctx, log: log}
}

func (b *bindings) register(L *lua.LState) {
	L.SetGlobal("set_color", L.NewFunction(b.setColor))
	L.SetGlobal("set_brightness", L.NewFunction(b.setBrightness))
	L.SetGlobal("set_power", L.NewFunction(b.setPower))
	L.SetGlobal("set_speed", L.NewFunction(b.setSpeed))
	L.SetGlobal("set_mode", L.NewFunction(b.setMode))
	L.SetGlobal("print", L.NewFunction(b.print))
	L.SetGlobal("sleep", L.NewFunction(b.sleep))
	L.SetGlobal("should_stop", L.NewFunction(b.shouldStop))

	L.SetGlobal("breathe", L.NewFunction(b.breathe))
	L.SetGlobal("strobe", L.NewFunction(b.strobe))
	L.SetGlobal("fade", L.NewFunction(b.fade))
}

// check aborts the script when a write fails.
func (b *bindings) check(L *lua.LState, err error) {
	if err != nil {
		L.RaiseError("%v", err)
	}
}

func (b *bindings) print(L *lua.LState) int {
	b.log.Infof("[LUA] %s", L.ToString(1))
	return 0
}

func (b *bindings) setColor(L *lua.LState) int {
	b.check(L, b.light.SetRGB(b.ctx, L.ToInt(1), L.ToInt(2), L.ToInt(3)))
	return 0
}

func (b *bindings) setBrightness(L *lua.LState) int {
	b.check(L, b.light.SetBrightness(b.ctx, L.ToInt(1)))
	return 0
}

func (b *bindings) setPower(L *lua.LState) int {
	b.check(L, b.light.SetPower(b.ctx, L.ToBool(1)))
	return 0
}

func (b *bindings) setSpeed(L *lua.LState) int {
	b.check(L, b.light.SetSpeed(b.ctx, L.ToInt(1)))
	return 0
}

// set_mode accepts an RGB mode name ("Seven-color jump") or its number.
func (b *bindings) setMode(L *lua.LState) int {
	v := L.Get(1)
	var mode int
	switch v.Type() {
	case lua.LTNumber:
		mode = int(lua.LVAsNumber(v))
	default:
		m, err := ble.RGBModes.Lookup(L.ToString(1))
		if err != nil {
			L.ArgError(1, err.Error())
			return 0
		}
		mode = m
	}
	b.check(L, b.light.SetRGBMode(b.ctx, mode))
	return 0
}

// cancellableSleep sleeps for d, waking early if ctx is cancelled.
// It returns true if the context was cancelled.
func cancellableSleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return false
	case <-ctx.Done():
		return true
	}
}

func (b *bindings) sleep(L *lua.LState) int {
	cancellableSleep(b.ctx, time.Duration(L.ToInt(1))*time.Millisecond)
	return 0
}

func (b *bindings) shouldStop(L *lua.LState) int {
	L.Push(lua.LBool(b.ctx.Err() != nil))
	return 1
}

// breathe pulses brightness 1 -> 100 -> 1 over the duration. Set the color first.
func (b *bindings) breathe(L *lua.LState) int {
	duration := time.Duration(L.ToInt(1)) * time.Millisecond

	const steps = 100
	stepDuration := duration / (2 * steps)

	for i := 1; i <= steps; i++ {
		b.check(L, b.light.SetBrightness(b.ctx, i))
		if cancellableSleep(b.ctx, stepDuration) {
			return 0
		}
	}
	for i := steps; i >= 1; i-- {
		b.check(L, b.light.SetBrightness(b.ctx, i))
		if cancellableSleep(b.ctx, stepDuration) {
			return 0
		}
	}
	return 0
}

// strobe flashes r,g,b for the duration at hz flashes per second.
func (b *bindings) strobe(L *lua.LState) int {
	r, g, bl := L.ToInt(1), L.ToInt(2), L.ToInt(3)
	duration := time.Duration(L.ToInt(4)) * time.Millisecond
	hz := float64(L.ToNumber(5))
	if hz <= 0 {
		return 0
	}

	b.check(L, b.light.SetPower(b.ctx, true))
	b.check(L, b.light.SetBrightness(b.ctx, 100))

	halfPeriod := time.Duration(float64(time.Second) / hz / 2)
	start := time.Now()

	for time.Since(start) < duration {
		b.check(L, b.light.SetRGB(b.ctx, r, g, bl))
		if cancellableSleep(b.ctx, halfPeriod) {
			return 0
		}
		b.check(L, b.light.SetRGB(b.ctx, 0, 0, 0))
		if cancellableSleep(b.ctx, halfPeriod) {
			return 0
		}
	}
	return 0
}

// fade moves linearly from one color to another over the duration.
func (b *bindings) fade(L *lua.LState) int {
	r1, g1, b1 := L.ToInt(1), L.ToInt(2), L.ToInt(3)
	r2, g2, b2 := L.ToInt(4), L.ToInt(5), L.ToInt(6)
	duration := time.Duration(L.ToInt(7)) * time.Millisecond

	b.check(L, b.light.SetPower(b.ctx, true))

	const steps = 100
	stepDuration := duration / steps

	lerp := func(from, to int, p float64) int {
		return int(math.Round(float64(from) + p*float64(to-from)))
	}

	for i := 0; i <= steps; i++ {
		p := float64(i) / steps
		b.check(L, b.light.SetRGB(b.ctx, lerp(r1, r2, p), lerp(g1, g2, p), lerp(b1, b2, p)))
		if cancellableSleep(b.ctx, stepDuration) {
			return 0
		}
	}
	return 0
}
