package ble

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Default pauses between frames of a DIY upload.
const (
	DefaultStepDelay   = 100 * time.Millisecond
	DefaultSettleDelay = 200 * time.Millisecond
)

// Transport delivers a single encoded frame to the strip.
type Transport interface {
	Write(ctx context.Context, frame []byte) error
	Close() error
}

// RGB is one color of a DIY sequence.
type RGB struct {
	R, G, B int
}

// Driver turns LEDBLE operations into frames and writes them one at a time.
type Driver struct {
	transport   Transport
	now         func() time.Time
	stepDelay   time.Duration
	settleDelay time.Duration
	log         *logrus.Entry
}

// DriverOption customises a Driver.
type DriverOption func(*Driver)

// WithClock overrides the clock used to compute timer countdowns.
func WithClock(now func() time.Time) DriverOption {
	return func(d *Driver) { d.now = now }
}

// WithDelays overrides the pauses used while uploading DIY sequences.
func WithDelays(step, settle time.Duration) DriverOption {
	return func(d *Driver) {
		d.stepDelay = step
		d.settleDelay = settle
	}
}

// WithLogger sets the logger entry used for per-command debug output.
func WithLogger(l *logrus.Entry) DriverOption {
	return func(d *Driver) { d.log = l }
}

// NewDriver creates a driver writing to t.
func NewDriver(t Transport, opts ...DriverOption) *Driver {
	d := &Driver{
		transport:   t,
		now:         time.Now,
		stepDelay:   DefaultStepDelay,
		settleDelay: DefaultSettleDelay,
		log:         logrus.WithField("component", "ledble"),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Driver) write(ctx context.Context, op string, data []byte) error {
	d.log.WithField("op", op).Debugf("data=% X", data)
	if err := d.transport.Write(ctx, data); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// sleep waits for dur unless ctx is cancelled first.
func sleep(ctx context.Context, dur time.Duration) error {
	if dur <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetOn turns the LEDs on.
func (d *Driver) SetOn(ctx context.Context) error {
	return d.write(ctx, "on", PowerFrame(true))
}

// SetOff turns the LEDs off.
func (d *Driver) SetOff(ctx context.Context) error {
	return d.write(ctx, "off", PowerFrame(false))
}

// SetPower is SetOn or SetOff depending on on.
func (d *Driver) SetPower(ctx context.Context, on bool) error {
	if on {
		return d.SetOn(ctx)
	}
	return d.SetOff(ctx)
}

// SetRGBSort sets the channel order from RGBSorts. Change it if the colors
// you set show up wrong.
func (d *Driver) SetRGBSort(ctx context.Context, sort int) error {
	d.log.Debugf("rgb_sort=%d", sort)
	return d.write(ctx, "rgb_sort", RGBSortFrame(sort))
}

// SetRGB sets a static color.
func (d *Driver) SetRGB(ctx context.Context, r, g, b int) error {
	d.log.Debugf("r=%d,g=%d,b=%d", r, g, b)
	return d.write(ctx, "rgb", ColorFrame(r, g, b))
}

// SetRGBMode starts one of the preprogrammed RGBModes.
func (d *Driver) SetRGBMode(ctx context.Context, mode int) error {
	d.log.Debugf("mode=%d", mode)
	return d.write(ctx, "rgb_mode", RGBModeFrame(mode))
}

// SetSpeed sets the animation speed, 0..100.
func (d *Driver) SetSpeed(ctx context.Context, speed int) error {
	d.log.Debugf("speed=%d", speed)
	return d.write(ctx, "speed", SpeedFrame(speed))
}

// SetBrightness sets the brightness, 0..100.
func (d *Driver) SetBrightness(ctx context.Context, brightness int) error {
	d.log.Debugf("brightness=%d", brightness)
	return d.write(ctx, "brightness", BrightnessFrame(brightness))
}

// SetDIY uploads a custom color sequence played with a DIYStyles style.
// The firmware does not store it.
func (d *Driver) SetDIY(ctx context.Context, style int, colors []RGB) error {
	d.log.Debugf("style=%d colors=%v", style, colors)
	return d.upload(ctx, "diy", diyBeginFrame(style), diyColorFrame, diyEndFrame(style), colors)
}

// SetDynamicDIY uploads a custom sequence for the dynamic (sound reactive) mode.
func (d *Driver) SetDynamicDIY(ctx context.Context, style int, colors []RGB) error {
	d.log.Debugf("style=%d colors=%v", style, colors)
	return d.upload(ctx, "dynamic_diy", dynamicDIYBeginFrame(style), dynamicDIYColorFrame, dynamicDIYEndFrame(style), colors)
}

func (d *Driver) upload(ctx context.Context, op string, begin []byte, color func(r, g, b int) []byte, end []byte, colors []RGB) error {
	if err := d.write(ctx, op+" begin", begin); err != nil {
		return err
	}
	if err := sleep(ctx, d.stepDelay); err != nil {
		return err
	}

	for _, c := range colors {
		if err := d.write(ctx, op+" color", color(c.R, c.G, c.B)); err != nil {
			return err
		}
		if err := sleep(ctx, d.stepDelay); err != nil {
			return err
		}
	}

	if err := sleep(ctx, d.settleDelay); err != nil {
		return err
	}
	return d.write(ctx, op+" end", end)
}

// SetMusic switches to the microphone driven mode.
func (d *Driver) SetMusic(ctx context.Context, brightness int) error {
	d.log.Debugf("brightness=%d", brightness)
	return d.write(ctx, "music", MusicFrame(brightness))
}

// SetSensitivity sets the speed/sensitivity paired with dynamic DIY.
func (d *Driver) SetSensitivity(ctx context.Context, v int) error {
	d.log.Debugf("sensitivity=%d", v)
	return d.write(ctx, "sensitivity", SensitivityFrame(v))
}

// SetOnTimer arms a timer that turns the strip on at hour:minute with a
// TimerModels model.
func (d *Driver) SetOnTimer(ctx context.Context, hour, minute, model int) error {
	now := d.now()
	d.log.Debugf("hour=%d minute=%d model=%d -> %ds", hour, minute, model, SecondsUntil(hour, minute, now))
	return d.write(ctx, "on_timer", OnTimerFrame(hour, minute, model, now))
}

// SetOffTimer arms a timer that turns the strip off at hour:minute.
func (d *Driver) SetOffTimer(ctx context.Context, hour, minute int) error {
	now := d.now()
	d.log.Debugf("hour=%d minute=%d -> %ds", hour, minute, SecondsUntil(hour, minute, now))
	return d.write(ctx, "off_timer", OffTimerFrame(hour, minute, now))
}

// EnableTimer enables the on or off timer.
func (d *Driver) EnableTimer(ctx context.Context, kind TimerKind) error {
	return d.write(ctx, "enable_timer", TimerSwitchFrame(kind, true))
}

// DisableTimer disables the on or off timer.
func (d *Driver) DisableTimer(ctx context.Context, kind TimerKind) error {
	return d.write(ctx, "disable_timer", TimerSwitchFrame(kind, false))
}

// SetDim sets the dim level, 0..100.
func (d *Driver) SetDim(ctx context.Context, dim int) error {
	d.log.Debugf("dim=%d", dim)
	return d.write(ctx, "dim", DimFrame(dim))
}

// SetColorWarm sets the warm white share, 0..100. Pass cool < 0 to use 100-warm
// the way the vendor app does.
func (d *Driver) SetColorWarm(ctx context.Context, warm, cool int) error {
	d.log.Debugf("warm=%d cool=%d", warm, cool)
	return d.write(ctx, "color_warm", ColorWarmFrame(warm, cool))
}

// SetColorWarmModel selects a ColorTempModes preset.
func (d *Driver) SetColorWarmModel(ctx context.Context, model int) error {
	d.log.Debugf("model=%d", model)
	return d.write(ctx, "color_warm_model", ColorTempModelFrame(model))
}

// SetDimModel selects a DimModes preset.
func (d *Driver) SetDimModel(ctx context.Context, model int) error {
	d.log.Debugf("model=%d", model)
	return d.write(ctx, "dim_model", DimModelFrame(model))
}

// SetDynamic selects one of the DynamicModes.
func (d *Driver) SetDynamic(ctx context.Context, model int) error {
	d.log.Debugf("model=%d", model)
	return d.write(ctx, "dynamic", DynamicFrame(model))
}

// Disconnect closes the underlying connection.
func (d *Driver) Disconnect() error {
	return d.transport.Close()
}
