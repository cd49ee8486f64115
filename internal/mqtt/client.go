package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"ledble-controller/internal/config"
	"ledble-controller/internal/core"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// SoftwareVersion is reported in the Home Assistant device block.
var SoftwareVersion = "dev"

// Client bridges MQTT topics to the agent's command channel and mirrors
// state changes back out as retained state topics.
type Client struct {
	client      mqtt.Client
	cfg         *config.Config
	eventBus    *core.EventBus
	state       *core.State
	commands    core.CommandChannel
	patternList func() ([]string, error)
	prefix      string
	log         *logrus.Entry

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewClient returns nil when MQTT is disabled in the config.
func NewClient(cfg *config.Config, eb *core.EventBus, state *core.State, cmds core.CommandChannel, patternList func() ([]string, error)) *Client {
	if !cfg.MQTT.Enabled {
		return nil
	}

	prefix := strings.TrimSuffix(cfg.MQTT.TopicPrefix, "/")

	c := &Client{
		cfg:         cfg,
		eventBus:    eb,
		state:       state,
		commands:    cmds,
		patternList: patternList,
		prefix:      prefix,
		log:         logrus.WithField("component", "mqtt"),
		done:        make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTT.Broker)
	opts.SetClientID(cfg.MQTT.ClientID)
	opts.SetUsername(cfg.MQTT.Username)
	opts.SetPassword(cfg.MQTT.Password)

	opts.SetKeepAlive(10 * time.Second)
	opts.SetPingTimeout(5 * time.Second)

	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(1 * time.Minute)

	// Keep retrying at startup so a broker that boots after us is picked up.
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetOrderMatters(false)

	opts.SetWill(c.topic("availability"), "offline", 1, true)

	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.log.Warnf("Connection lost: %v. Retrying in background...", err)
	})
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		c.log.Info("Attempting to reconnect...")
	})

	c.client = mqtt.NewClient(opts)
	return c
}

func (c *Client) topic(sub string) string {
	return fmt.Sprintf("%s/%s", c.prefix, sub)
}

// Connect starts the state mirror and the connection loop.
func (c *Client) Connect() error {
	if c.client == nil {
		return nil
	}

	types := mirroredEvents()
	sub := c.eventBus.Subscribe(types...)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.eventBus.Unsubscribe(sub, types...)
		for {
			select {
			case <-c.done:
				return
			case ev := <-sub:
				for _, p := range publicationsFor(ev) {
					c.Publish(p.topic, p.payload, true)
				}
			}
		}
	}()

	c.log.Infof("Starting connection loop to %s...", c.cfg.MQTT.Broker)
	token := c.client.Connect()
	if token.Wait() && token.Error() != nil {
		c.log.Errorf("Initial connection error: %v", token.Error())
		return token.Error()
	}
	return nil
}

// Disconnect publishes offline, stops the mirror and closes the socket.
func (c *Client) Disconnect() {
	c.stopOnce.Do(func() { close(c.done) })
	c.wg.Wait()

	if c.client == nil || !c.client.IsConnected() {
		return
	}
	c.log.Info("Disconnecting...")

	token := c.client.Publish(c.topic("availability"), 0, true, "offline")
	if !token.WaitTimeout(2 * time.Second) {
		c.log.Warn("Timed out publishing offline status")
	} else if token.Error() != nil {
		c.log.Warnf("Failed to publish offline status: %v", token.Error())
	}

	c.client.Disconnect(250)
	c.log.Info("Disconnected.")
}

// Publish sends payload to prefix/subtopic without blocking the caller.
func (c *Client) Publish(subtopic string, payload interface{}, retained bool) {
	if c.client == nil || !c.client.IsConnected() {
		return
	}

	topic := c.topic(subtopic)
	token := c.client.Publish(topic, 0, retained, fmt.Sprintf("%v", payload))

	go func() {
		if !token.WaitTimeout(5 * time.Second) {
			c.log.Warnf("Timeout publishing to %s", topic)
		} else if token.Error() != nil {
			c.log.Warnf("Publish error to %s: %v", topic, token.Error())
		}
	}()
}

func (c *Client) onConnect(client mqtt.Client) {
	c.log.Info("Connected to broker.")

	for _, sub := range commandTopics {
		topic := c.topic(sub)
		if token := client.Subscribe(topic, 1, c.handler(sub)); token.Wait() && token.Error() != nil {
			c.log.Errorf("Error subscribing to %s: %v", topic, token.Error())
		} else {
			c.log.Debugf("Subscribed to %s", topic)
		}
	}

	// onConnect runs on paho's event goroutine.
	go func() {
		c.Publish("availability", "online", true)
		c.publishSnapshot()
		if c.cfg.MQTT.HADiscoveryEnabled {
			c.PublishHADiscovery()
		}
	}()
}

func (c *Client) handler(sub string) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		cmd, err := commandFor(sub, string(msg.Payload()))
		if err != nil {
			c.log.Warnf("Ignoring %s: %v", msg.Topic(), err)
			return
		}
		select {
		case c.commands <- cmd:
		case <-c.done:
		}
	}
}

// publishSnapshot refreshes every retained state topic from the current state.
func (c *Client) publishSnapshot() {
	s := c.state.Clone()
	c.Publish("power/state", onOff(s.Power), true)
	c.Publish("brightness/state", s.Brightness, true)
	c.Publish("speed/state", s.Speed, true)
	c.Publish("color/state", fmt.Sprintf("%d,%d,%d", s.ColorR, s.ColorG, s.ColorB), true)
	if s.IsConnected {
		c.Publish("connection", "connected", true)
	} else {
		c.Publish("connection", "disconnected", true)
	}
	effect := s.RunningPattern
	if effect == "" {
		effect = s.Mode
	}
	if effect != "" {
		c.Publish("effect/state", effect, true)
	}
}

// PublishHADiscovery sends the Home Assistant light config.
func (c *Client) PublishHADiscovery() {
	patterns, err := c.patternList()
	if err != nil {
		c.log.Warnf("Could not get patterns for HA discovery: %v", err)
		patterns = []string{}
	}

	topic, payload := discovery(c.cfg.MQTT, c.prefix, patterns)
	data, err := json.Marshal(payload)
	if err != nil {
		c.log.Errorf("HA discovery payload: %v", err)
		return
	}
	c.client.Publish(topic, 0, true, data)
	c.log.Infof("HA Discovery sent to %s", topic)
}
