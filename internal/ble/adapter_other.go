//go:build !linux

package ble

import (
	"github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"
)

func selectAdapter(id string) *bluetooth.Adapter {
	if id != "" {
		logrus.WithField("component", "ble").Warnf("adapter %q ignored, only the default adapter is available on this platform", id)
	}
	return bluetooth.DefaultAdapter
}
