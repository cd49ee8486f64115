package ble

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tinygo.org/x/bluetooth"
)

func TestUnconnectedDevice(t *testing.T) {
	d := NewDevice(DeviceOptions{RateLimit: 50})

	assert.False(t, d.Connected())
	assert.Empty(t, d.Address())
	assert.Empty(t, d.Name())
	assert.ErrorIs(t, d.Write(context.Background(), PowerFrame(true)), ErrNotConnected)
	assert.NoError(t, d.Close())
}

func TestUnconnectedDeviceHonoursContext(t *testing.T) {
	d := NewDevice(DeviceOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, d.Write(ctx, PowerFrame(true)), context.Canceled)
}

func TestReleaseLateClosesLinkThatCameUp(t *testing.T) {
	logger, hook := test.NewNullLogger()
	log := logrus.NewEntry(logger)

	var closed int
	disconnect := func(bluetooth.Device) error {
		closed++
		return nil
	}

	done := make(chan connectResult, 1)
	done <- connectResult{}
	releaseLate(done, disconnect, log)
	assert.Equal(t, 1, closed)

	done <- connectResult{err: errors.New("connect: refused")}
	releaseLate(done, disconnect, log)
	assert.Equal(t, 1, closed, "a failed attempt has no link to close")

	done <- connectResult{}
	releaseLate(done, func(bluetooth.Device) error { return errors.New("busy") }, log)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}
