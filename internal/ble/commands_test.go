package ble

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFrames(t *testing.T) {
	tests := []struct {
		name string
		got  []byte
		want []byte
	}{
		{"on", PowerFrame(true), []byte{126, 4, 4, 1, 255, 255, 255, 0, 239}},
		{"off", PowerFrame(false), []byte{126, 4, 4, 0, 255, 255, 255, 0, 239}},
		{"rgb sort GRB", RGBSortFrame(3), []byte{126, 4, 8, 3, 255, 255, 255, 0, 239}},
		{"rgb sort clamped low", RGBSortFrame(0), []byte{126, 4, 8, 1, 255, 255, 255, 0, 239}},
		{"rgb sort clamped high", RGBSortFrame(9), []byte{126, 4, 8, 6, 255, 255, 255, 0, 239}},
		{"rgb", ColorFrame(0, 0, 225), []byte{126, 7, 5, 3, 0, 0, 225, 0, 239}},
		{"rgb clamped", ColorFrame(-5, 300, 128), []byte{126, 7, 5, 3, 0, 255, 128, 0, 239}},
		{"rgb mode", RGBModeFrame(135), []byte{126, 5, 3, 135, 3, 255, 255, 0, 239}},
		{"rgb mode clamped", RGBModeFrame(200), []byte{126, 5, 3, 156, 3, 255, 255, 0, 239}},
		{"speed", SpeedFrame(50), []byte{126, 4, 2, 50, 255, 255, 255, 0, 239}},
		{"speed clamped", SpeedFrame(150), []byte{126, 4, 2, 100, 255, 255, 255, 0, 239}},
		{"brightness", BrightnessFrame(10), []byte{126, 4, 1, 10, 255, 255, 255, 0, 239}},
		{"brightness clamped", BrightnessFrame(-1), []byte{126, 4, 1, 0, 255, 255, 255, 0, 239}},
		{"music", MusicFrame(80), []byte{126, 7, 6, 80, 0, 0, 0, 0, 239}},
		{"sensitivity", SensitivityFrame(30), []byte{126, 4, 7, 30, 255, 255, 255, 0, 239}},
		{"dim", DimFrame(40), []byte{126, 5, 5, 1, 40, 255, 255, 8, 239}},
		{"color warm default cool", ColorWarmFrame(30, -1), []byte{126, 6, 5, 2, 30, 70, 255, 8, 239}},
		{"color warm explicit cool", ColorWarmFrame(30, 20), []byte{126, 6, 5, 2, 30, 20, 255, 8, 239}},
		{"color warm clamped", ColorWarmFrame(120, -1), []byte{126, 6, 5, 2, 100, 0, 255, 8, 239}},
		{"color warm model", ColorTempModelFrame(133), []byte{126, 5, 3, 133, 2, 255, 255, 0, 239}},
		{"dim model", DimModelFrame(138), []byte{126, 5, 3, 138, 1, 255, 255, 0, 239}},
		{"dim model clamped", DimModelFrame(10), []byte{126, 5, 3, 128, 1, 255, 255, 0, 239}},
		{"dynamic strobe", DynamicFrame(131), []byte{126, 5, 3, 131, 4, 255, 255, 0, 239}},
		{"dynamic clamped", DynamicFrame(140), []byte{126, 5, 3, 131, 4, 255, 255, 0, 239}},
		{"enable on timer", TimerSwitchFrame(TimerOn, true), []byte{126, 1, 13, 255, 255, 1, 255, 255, 239}},
		{"disable off timer", TimerSwitchFrame(TimerOff, false), []byte{126, 0, 13, 255, 255, 0, 255, 255, 239}},
		{"diy begin", diyBeginFrame(3), []byte{126, 5, 14, 3, 3, 255, 255, 0, 239}},
		{"diy color", diyColorFrame(1, 2, 3), []byte{126, 7, 16, 3, 1, 2, 3, 0, 239}},
		{"diy end", diyEndFrame(9), []byte{126, 5, 15, 3, 3, 255, 255, 0, 239}},
		{"dynamic diy begin", dynamicDIYBeginFrame(1), []byte{126, 5, 10, 1, 3, 255, 255, 0, 239}},
		{"dynamic diy color", dynamicDIYColorFrame(4, 5, 6), []byte{126, 7, 11, 3, 4, 5, 6, 0, 239}},
		{"dynamic diy end", dynamicDIYEndFrame(1), []byte{126, 5, 12, 1, 3, 255, 255, 0, 239}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
			assert.Len(t, tt.got, 9)
			assert.Equal(t, StartByte, tt.got[0])
			assert.Equal(t, EndByte, tt.got[len(tt.got)-1])
		})
	}
}

func TestSecondsUntil(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 30, 15, 0, time.UTC)

	tests := []struct {
		name         string
		hour, minute int
		want         int
	}{
		{"later today", 11, 0, 29*60 + 45},
		{"earlier wraps to tomorrow", 10, 0, secondsPerDay - 30*60 - 15},
		{"same minute wraps", 10, 30, secondsPerDay - 15},
		{"hour clamped", 30, 0, (23*60-10*60-30)*60 - 15},
		{"minute clamped", 11, 99, 5325},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SecondsUntil(tt.hour, tt.minute, now))
		})
	}
}

func TestTimerFrames(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 30, 15, 0, time.UTC)

	// 11:00 is 1785s away: 29 minutes, 45 seconds.
	assert.Equal(t, []byte{126, 1, 13, 0, 29, 1, 1, 45, 239}, OnTimerFrame(11, 0, 1, now))
	assert.Equal(t, []byte{126, 1, 13, 0, 29, 0, 255, 45, 239}, OffTimerFrame(11, 0, now))

	// 20:00 is 34185s away: 569 minutes (0x0239), 45 seconds.
	assert.Equal(t, []byte{126, 1, 13, 0x02, 0x39, 1, 21, 45, 239}, OnTimerFrame(20, 0, 99, now))
}

func TestTimerMinutesSplitAcrossBytes(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 30, 15, 0, time.UTC)

	// 15:00 is 269 minutes 45 seconds away. 269 = 0x010D, so the low byte
	// carries 0x0D rather than saturating at 0xFF.
	assert.Equal(t, []byte{126, 1, 13, 0x01, 0x0D, 0, 255, 45, 239}, OffTimerFrame(15, 0, now))

	// 10:29 tomorrow is 1438 minutes 45 seconds away: 0x059E.
	assert.Equal(t, []byte{126, 1, 13, 0x05, 0x9E, 1, 11, 45, 239}, OnTimerFrame(10, 29, 11, now))
	assert.Equal(t, 1438*60+45, SecondsUntil(10, 29, now))
}
