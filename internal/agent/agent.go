package agent

import (
	"context"
	"fmt"
	"sync"

	"ledble-controller/internal/ble"
	"ledble-controller/internal/config"
	"ledble-controller/internal/core"
	"ledble-controller/internal/lua"
	"ledble-controller/internal/mqtt"
	"ledble-controller/internal/scheduler"
	"ledble-controller/internal/server"

	"github.com/sirupsen/logrus"
)

// Agent wires the strip to the web UI, MQTT, cron schedules and Lua patterns.
// Every command funnels through one channel so frames reach the strip in order.
type Agent struct {
	ctx    context.Context
	cancel context.CancelFunc
	config *config.Config
	wg     sync.WaitGroup
	log    *logrus.Entry

	state          *core.State
	eventBus       *core.EventBus
	commandChannel core.CommandChannel

	device     *ble.Device
	driver     *ble.Driver
	luaEngine  *lua.Engine
	scheduler  *scheduler.Scheduler
	server     *server.Server
	mqttClient *mqtt.Client
}

// NewAgent builds an agent that talks to a real BLE device.
func NewAgent(cfg *config.Config) (*Agent, error) {
	scanTimeout, connectTimeout, _, _ := cfg.BLE.Durations()

	a := newAgent(cfg)
	a.device = ble.NewDevice(ble.DeviceOptions{
		AdapterID:      cfg.BLE.Adapter,
		ScanTimeout:    scanTimeout,
		ConnectTimeout: connectTimeout,
		RateLimit:      cfg.BLE.RateLimit,
		RateBurst:      cfg.BLE.RateBurst,
		OnStatusChange: a.onStatusChange,
	})
	a.wire(a.device)
	return a, nil
}

func newAgent(cfg *config.Config) *Agent {
	ctx, cancel := context.WithCancel(context.Background())
	return &Agent{
		ctx:            ctx,
		cancel:         cancel,
		config:         cfg,
		log:            logrus.WithField("component", "agent"),
		state:          core.NewState(),
		eventBus:       core.NewEventBus(),
		commandChannel: make(core.CommandChannel, 20),
	}
}

// wire creates everything that sits on top of the transport.
func (a *Agent) wire(t ble.Transport) {
	cfg := a.config
	_, _, step, settle := cfg.BLE.Durations()

	driverLog := logrus.WithField("component", "ledble")
	if cfg.BLE.Address != "" {
		driverLog = driverLog.WithField("address", cfg.BLE.Address)
	}
	a.driver = ble.NewDriver(t, ble.WithDelays(step, settle), ble.WithLogger(driverLog))
	a.luaEngine = lua.NewEngine(&trackedLight{driver: a.driver, state: a.state}, cfg.PatternsDir, a.eventBus)
	a.scheduler = scheduler.NewScheduler(a.commandChannel, cfg.SchedulesFile)

	a.server = server.NewServer(
		a.luaEngine,
		a.eventBus,
		a.state,
		a.scheduler,
		a.commandChannel,
		cfg.Server.Port,
		cfg.Server.WebFilesDir,
		cfg.Server.AllowedOrigins,
	)

	// Optional, nil when MQTT is disabled.
	a.mqttClient = mqtt.NewClient(cfg, a.eventBus, a.state, a.commandChannel, a.luaEngine.GetPatternList)
}

func (a *Agent) onStatusChange(connected bool, rssi int16) {
	address, name := "", ""
	if a.device != nil {
		address, name = a.device.Address(), a.device.Name()
	}
	a.eventBus.Publish(core.Event{
		Type: core.DeviceConnectedEvent,
		Payload: map[string]interface{}{
			"connected": connected,
			"address":   address,
			"name":      name,
			"rssi":      rssi,
		},
	})
}

// connect opens the single BLE connection. There is no reconnection: if the
// strip goes away the agent keeps serving but writes fail.
func (a *Agent) connect() error {
	if a.device.Connected() {
		return nil
	}
	var err error
	if a.config.BLE.Address != "" {
		err = a.device.Connect(a.ctx, a.config.BLE.Address)
	} else {
		err = a.device.ConnectFirst(a.ctx)
	}
	if err != nil {
		return fmt.Errorf("connect to LEDBLE device: %w", err)
	}

	if a.config.BLE.RGBSort != "" {
		sort, err := ble.RGBSorts.Lookup(a.config.BLE.RGBSort)
		if err != nil {
			return err
		}
		if err := a.driver.SetRGBSort(a.ctx, sort); err != nil {
			return err
		}
	}
	return nil
}

// Run connects to the strip and serves commands until Shutdown.
func (a *Agent) Run() error {
	go a.listenEvents()

	if a.device != nil {
		if err := a.connect(); err != nil {
			return err
		}
	}

	if a.mqttClient != nil {
		go func() {
			if err := a.mqttClient.Connect(); err != nil {
				a.log.Errorf("MQTT setup error: %v", err)
			}
		}()
	}

	a.scheduler.Start()

	a.log.Infof("Agent running on http://localhost:%s", a.config.Server.Port)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.server.ListenAndServe(a.ctx); err != nil {
			a.log.Errorf("Server error: %v", err)
		}
	}()

	a.log.Info("Agent orchestrator ready.")
	a.loop()
	return nil
}

func (a *Agent) loop() {
	for {
		select {
		case <-a.ctx.Done():
			a.log.Info("Agent orchestrator shutting down...")
			return
		case cmd := <-a.commandChannel:
			if err := a.handleCommand(cmd); err != nil {
				a.log.WithField("command", cmd.Type).Errorf("Command failed: %v", err)
				a.eventBus.Publish(core.Event{
					Type:    core.CommandFailedEvent,
					Payload: map[string]interface{}{"command": string(cmd.Type), "error": err.Error()},
				})
			}
		}
	}
}

func (a *Agent) listenEvents() {
	sub := a.eventBus.Subscribe(core.DeviceConnectedEvent, core.PatternChangedEvent)
	defer a.eventBus.Unsubscribe(sub, core.DeviceConnectedEvent, core.PatternChangedEvent)

	for {
		select {
		case <-a.ctx.Done():
			return
		case event := <-sub:
			payload, ok := event.Payload.(map[string]interface{})
			if !ok {
				continue
			}
			switch event.Type {
			case core.DeviceConnectedEvent:
				connected, _ := payload["connected"].(bool)
				address, _ := payload["address"].(string)
				name, _ := payload["name"].(string)
				rssi, _ := payload["rssi"].(int16)
				a.state.SetConnection(connected, address, name, rssi)
			case core.PatternChangedEvent:
				pattern, _ := payload["running"].(string)
				a.state.SetRunningPattern(pattern)
				if pattern == "" {
					a.publishState()
				}
			}
		}
	}
}

// publishState broadcasts the full state snapshot.
func (a *Agent) publishState() {
	s := a.state.Clone()
	a.eventBus.Publish(core.Event{
		Type: core.StateChangedEvent,
		Payload: map[string]interface{}{
			"isOn":       s.Power,
			"r":          s.ColorR,
			"g":          s.ColorG,
			"b":          s.ColorB,
			"hex":        fmt.Sprintf("#%02X%02X%02X", s.ColorR, s.ColorG, s.ColorB),
			"brightness": s.Brightness,
			"speed":      s.Speed,
			"mode":       s.Mode,
		},
	})
}

// Shutdown stops every surface and closes the BLE connection.
func (a *Agent) Shutdown() {
	a.scheduler.Stop()
	if a.mqttClient != nil {
		a.mqttClient.Disconnect()
	}
	a.luaEngine.Close()
	a.cancel()
	a.wg.Wait()
	if err := a.driver.Disconnect(); err != nil {
		a.log.Warnf("Disconnect warning: %v", err)
	}
}
