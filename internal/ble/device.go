package ble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"tinygo.org/x/bluetooth"
)

// Connection errors.
var (
	ErrNotConnected           = errors.New("device not connected")
	ErrDeviceNotFound         = errors.New("device not found")
	ErrCharacteristicNotFound = errors.New("characteristic not found")
)

// NamePrefix is what every LEDBLE controller advertises its name with.
const NamePrefix = "LEDBLE"

// Default timeouts.
const (
	DefaultScanTimeout    = 2 * time.Second
	DefaultConnectTimeout = 10 * time.Second
)

// CharacteristicUUID is the write characteristic (0xFFE1 on the base UUID).
var CharacteristicUUID = bluetooth.New16BitUUID(0xFFE1)

// CompatibleName reports whether a device advertising name can be driven.
func CompatibleName(name string) bool {
	return strings.HasPrefix(strings.ToUpper(name), NamePrefix)
}

// Advertisement describes a compatible device seen while scanning.
type Advertisement struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	RSSI    int16  `json:"rssi"`
}

// DeviceOptions configures a Device.
type DeviceOptions struct {
	// AdapterID selects a host adapter such as "hci1"; empty means the default.
	AdapterID      string
	ScanTimeout    time.Duration
	ConnectTimeout time.Duration
	// RateLimit paces writes in frames per second; zero disables pacing.
	RateLimit float64
	RateBurst int
	// OnStatusChange is called after connecting and when the link drops.
	OnStatusChange func(connected bool, rssi int16)
}

// Device is a Transport over a tinygo bluetooth connection to one strip.
type Device struct {
	opts    DeviceOptions
	adapter *bluetooth.Adapter
	limiter *rate.Limiter
	log     *logrus.Entry

	mu        sync.Mutex
	enabled   bool
	connected bool
	device    bluetooth.Device
	char      bluetooth.DeviceCharacteristic
	address   string
	name      string
}

// NewDevice creates an unconnected Device.
func NewDevice(opts DeviceOptions) *Device {
	if opts.ScanTimeout <= 0 {
		opts.ScanTimeout = DefaultScanTimeout
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	d := &Device{
		opts:    opts,
		adapter: selectAdapter(opts.AdapterID),
		log:     logrus.WithField("component", "ble"),
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return d
}

func (d *Device) enable() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.enabled {
		return nil
	}
	if err := d.adapter.Enable(); err != nil {
		return fmt.Errorf("enable adapter: %w", err)
	}
	d.adapter.SetConnectHandler(d.handleConnect)
	d.enabled = true
	return nil
}

func (d *Device) handleConnect(dev bluetooth.Device, connected bool) {
	if connected {
		return
	}
	d.mu.Lock()
	if !d.connected || !strings.EqualFold(dev.Address.String(), d.address) {
		d.mu.Unlock()
		return
	}
	d.connected = false
	d.char = bluetooth.DeviceCharacteristic{}
	addr := d.address
	d.mu.Unlock()

	d.log.WithField("address", addr).Warn("Device disconnected")
	if d.opts.OnStatusChange != nil {
		d.opts.OnStatusChange(false, 0)
	}
}

// scan runs the adapter scan until match accepts a result, ctx ends or
// timeout elapses. A nil match collects every compatible device.
func (d *Device) scan(ctx context.Context, timeout time.Duration, match func(bluetooth.ScanResult) bool) ([]bluetooth.ScanResult, error) {
	if err := d.enable(); err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		results []bluetooth.ScanResult
		seen    = make(map[string]bool)
		found   = make(chan struct{})
		once    sync.Once
		scanErr = make(chan error, 1)
	)

	// A previous scan may still be registered with the host stack.
	_ = d.adapter.StopScan()

	go func() {
		scanErr <- d.adapter.Scan(func(a *bluetooth.Adapter, r bluetooth.ScanResult) {
			addr := r.Address.String()
			mu.Lock()
			defer mu.Unlock()
			if seen[addr] {
				return
			}
			if match != nil {
				if match(r) {
					seen[addr] = true
					results = append(results, r)
					once.Do(func() { close(found) })
				}
				return
			}
			if CompatibleName(r.LocalName()) {
				seen[addr] = true
				results = append(results, r)
			}
		})
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-found:
	case <-timer.C:
	case <-ctx.Done():
	case err := <-scanErr:
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
	}

	if err := d.adapter.StopScan(); err != nil {
		d.log.Debugf("stop scan: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]bluetooth.ScanResult(nil), results...), nil
}

// Scan lists compatible devices advertising within timeout.
func (d *Device) Scan(ctx context.Context, timeout time.Duration) ([]Advertisement, error) {
	if timeout <= 0 {
		timeout = d.opts.ScanTimeout
	}
	results, err := d.scan(ctx, timeout, nil)
	if err != nil {
		return nil, err
	}
	ads := make([]Advertisement, 0, len(results))
	for _, r := range results {
		ads = append(ads, Advertisement{Address: r.Address.String(), Name: r.LocalName(), RSSI: r.RSSI})
	}
	d.log.Infof("Scan found %d compatible device(s)", len(ads))
	return ads, nil
}

// Connect finds the device with the given address and opens a connection.
func (d *Device) Connect(ctx context.Context, address string) error {
	d.log.WithField("address", address).Info("Scanning for device...")
	results, err := d.scan(ctx, d.opts.ScanTimeout, func(r bluetooth.ScanResult) bool {
		return strings.EqualFold(r.Address.String(), address)
	})
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return fmt.Errorf("a device with address %s could not be found: %w", address, ErrDeviceNotFound)
	}
	return d.connect(ctx, results[0])
}

// ConnectFirst connects to the first compatible device that advertises.
func (d *Device) ConnectFirst(ctx context.Context) error {
	d.log.Infof("Scanning for %s device...", NamePrefix)
	results, err := d.scan(ctx, d.opts.ScanTimeout, func(r bluetooth.ScanResult) bool {
		return CompatibleName(r.LocalName())
	})
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return fmt.Errorf("no %s device advertising: %w", NamePrefix, ErrDeviceNotFound)
	}
	return d.connect(ctx, results[0])
}

func (d *Device) connect(ctx context.Context, r bluetooth.ScanResult) error {
	log := d.log.WithField("address", r.Address.String())
	log.Infof("Found device: %s (RSSI: %d), connecting...", r.LocalName(), r.RSSI)

	done := make(chan connectResult, 1)

	go func() {
		dev, err := d.adapter.Connect(r.Address, bluetooth.ConnectionParams{})
		if err != nil {
			done <- connectResult{err: fmt.Errorf("connect: %w", err)}
			return
		}
		char, err := findCharacteristic(dev)
		if err != nil {
			_ = dev.Disconnect()
			done <- connectResult{err: err}
			return
		}
		done <- connectResult{dev: dev, char: char}
	}()

	timer := time.NewTimer(d.opts.ConnectTimeout)
	defer timer.Stop()

	var res connectResult
	select {
	case res = <-done:
	case <-timer.C:
		go releaseLate(done, disconnectDevice, log)
		return fmt.Errorf("connect to %s: timed out after %s", r.Address.String(), d.opts.ConnectTimeout)
	case <-ctx.Done():
		go releaseLate(done, disconnectDevice, log)
		return ctx.Err()
	}
	if res.err != nil {
		return res.err
	}

	d.mu.Lock()
	d.device = res.dev
	d.char = res.char
	d.address = r.Address.String()
	d.name = r.LocalName()
	d.connected = true
	d.mu.Unlock()

	log.Info("connect")
	if d.opts.OnStatusChange != nil {
		d.opts.OnStatusChange(true, r.RSSI)
	}
	return nil
}

type connectResult struct {
	dev  bluetooth.Device
	char bluetooth.DeviceCharacteristic
	err  error
}

func disconnectDevice(dev bluetooth.Device) error { return dev.Disconnect() }

// releaseLate waits for an abandoned connect attempt and closes the link if
// it came up after the caller stopped waiting.
func releaseLate(done <-chan connectResult, disconnect func(bluetooth.Device) error, log *logrus.Entry) {
	res := <-done
	if res.err != nil {
		return
	}
	if err := disconnect(res.dev); err != nil {
		log.Warnf("Closing abandoned connection: %v", err)
		return
	}
	log.Info("Closed connection that completed after giving up")
}

func findCharacteristic(dev bluetooth.Device) (bluetooth.DeviceCharacteristic, error) {
	services, err := dev.DiscoverServices(nil)
	if err != nil {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("discover services: %w", err)
	}
	for _, svc := range services {
		chars, err := svc.DiscoverCharacteristics([]bluetooth.UUID{CharacteristicUUID})
		if err != nil || len(chars) == 0 {
			continue
		}
		return chars[0], nil
	}
	return bluetooth.DeviceCharacteristic{}, fmt.Errorf("%s: %w", CharacteristicUUID.String(), ErrCharacteristicNotFound)
}

// Write sends one frame without waiting for a response.
func (d *Device) Write(ctx context.Context, frame []byte) error {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected {
		return ErrNotConnected
	}
	if _, err := d.char.WriteWithoutResponse(frame); err != nil {
		return fmt.Errorf("write %s: %w", CharacteristicUUID.String(), err)
	}
	return nil
}

// Close disconnects if a connection is open.
func (d *Device) Close() error {
	d.mu.Lock()
	if !d.connected {
		d.mu.Unlock()
		return nil
	}
	d.connected = false
	dev := d.device
	d.char = bluetooth.DeviceCharacteristic{}
	d.mu.Unlock()

	if err := dev.Disconnect(); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	d.log.Info("Disconnected")
	if d.opts.OnStatusChange != nil {
		d.opts.OnStatusChange(false, 0)
	}
	return nil
}

// Connected reports whether a connection is open.
func (d *Device) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// Address returns the address of the connected (or last connected) device.
func (d *Device) Address() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.address
}

// Name returns the advertised name of the connected (or last connected) device.
func (d *Device) Name() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.name
}
