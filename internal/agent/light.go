package agent

import (
	"context"

	"ledble-controller/internal/ble"
	"ledble-controller/internal/core"
)

// trackedLight lets Lua patterns drive the strip while keeping the host-side
// state in step, so the final state can be published when a pattern ends.
type trackedLight struct {
	driver *ble.Driver
	state  *core.State
}

func (l *trackedLight) SetRGB(ctx context.Context, r, g, b int) error {
	if err := l.driver.SetRGB(ctx, r, g, b); err != nil {
		return err
	}
	l.state.SetColor(int(ble.Clamp8(r)), int(ble.Clamp8(g)), int(ble.Clamp8(b)))
	return nil
}

func (l *trackedLight) SetBrightness(ctx context.Context, brightness int) error {
	if err := l.driver.SetBrightness(ctx, brightness); err != nil {
		return err
	}
	l.state.SetBrightness(int(ble.ClampPercent(brightness)))
	return nil
}

func (l *trackedLight) SetPower(ctx context.Context, on bool) error {
	if err := l.driver.SetPower(ctx, on); err != nil {
		return err
	}
	l.state.SetPower(on)
	return nil
}

func (l *trackedLight) SetSpeed(ctx context.Context, speed int) error {
	if err := l.driver.SetSpeed(ctx, speed); err != nil {
		return err
	}
	l.state.SetSpeed(int(ble.ClampPercent(speed)))
	return nil
}

func (l *trackedLight) SetRGBMode(ctx context.Context, mode int) error {
	if err := l.driver.SetRGBMode(ctx, mode); err != nil {
		return err
	}
	l.state.SetMode(ble.RGBModes.NameOf(int(ble.RGBModes.Clamp(mode))))
	return nil
}
