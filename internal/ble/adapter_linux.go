//go:build linux

package ble

import "tinygo.org/x/bluetooth"

func selectAdapter(id string) *bluetooth.Adapter {
	if id == "" {
		return bluetooth.DefaultAdapter
	}
	return bluetooth.NewAdapter(id)
}
