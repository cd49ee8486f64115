package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ServerConfig - HTTP/WebSocket server settings.
type ServerConfig struct {
	Port           string   `json:"port" yaml:"port"`
	WebFilesDir    string   `json:"web_files_dir" yaml:"web_files_dir"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`
}

// BLEConfig - Bluetooth Low Energy settings.
type BLEConfig struct {
	// Address of the strip. Empty means connect to the first LEDBLE device found.
	Address        string  `json:"address" yaml:"address"`
	Adapter        string  `json:"adapter" yaml:"adapter"`
	ScanTimeout    string  `json:"scan_timeout" yaml:"scan_timeout"`
	ConnectTimeout string  `json:"connect_timeout" yaml:"connect_timeout"`
	DIYStepDelay   string  `json:"diy_step_delay" yaml:"diy_step_delay"`
	DIYSettleDelay string  `json:"diy_settle_delay" yaml:"diy_settle_delay"`
	RateLimit      float64 `json:"command_rate_limit" yaml:"command_rate_limit"`
	RateBurst      int     `json:"command_rate_burst" yaml:"command_rate_burst"`
	// RGBSort is applied right after connecting when set (e.g. "GRB").
	RGBSort string `json:"rgb_sort" yaml:"rgb_sort"`
}

// MQTTConfig - MQTT and Home Assistant discovery settings.
type MQTTConfig struct {
	Enabled            bool   `json:"enabled" yaml:"enabled"`
	Broker             string `json:"broker" yaml:"broker"` // tcp://IP:PORT
	Username           string `json:"username" yaml:"username"`
	Password           string `json:"password" yaml:"password"`
	ClientID           string `json:"client_id" yaml:"client_id"`
	TopicPrefix        string `json:"topic_prefix" yaml:"topic_prefix"`
	HADiscoveryEnabled bool   `json:"ha_discovery_enabled" yaml:"ha_discovery_enabled"`
	HADiscoveryPrefix  string `json:"ha_discovery_prefix" yaml:"ha_discovery_prefix"`
}

// Config - top level structure.
type Config struct {
	Server ServerConfig `json:"server" yaml:"server"`
	BLE    BLEConfig    `json:"ble" yaml:"ble"`
	MQTT   MQTTConfig   `json:"mqtt" yaml:"mqtt"`

	// File system settings
	PatternsDir   string `json:"patterns_dir" yaml:"patterns_dir"`
	SchedulesFile string `json:"schedules_file" yaml:"schedules_file"`

	LogLevel string `json:"log_level" yaml:"log_level"`
}

// Load reads the file, decodes JSON or YAML (by extension) and applies defaults and validation.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// No file: run on defaults plus the environment.
	case err != nil:
		return nil, fmt.Errorf("failed to open config file '%s': %w", path, err)
	default:
		if err := decode(path, data, cfg); err != nil {
			return nil, err
		}
	}

	if addr := os.Getenv("LEDBLE_ADDRESS"); addr != "" {
		cfg.BLE.Address = addr
	}

	cfg.sanitize()
	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to decode yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to decode json: %w", err)
		}
	}
	return nil
}

func (c *Config) sanitize() {
	c.Server.Port = strings.TrimSpace(c.Server.Port)
	c.Server.WebFilesDir = strings.TrimSpace(c.Server.WebFilesDir)
	c.BLE.Address = strings.ToUpper(strings.TrimSpace(c.BLE.Address))
	c.BLE.Adapter = strings.TrimSpace(c.BLE.Adapter)
	c.BLE.RGBSort = strings.TrimSpace(c.BLE.RGBSort)
	c.PatternsDir = strings.TrimSpace(c.PatternsDir)
	c.SchedulesFile = strings.TrimSpace(c.SchedulesFile)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
}

func (c *Config) setDefaults() {
	// Server Defaults
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.WebFilesDir == "" {
		c.Server.WebFilesDir = "./web"
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:8080"}
	}

	// BLE Defaults
	if c.BLE.ScanTimeout == "" {
		c.BLE.ScanTimeout = "2s"
	}
	if c.BLE.ConnectTimeout == "" {
		c.BLE.ConnectTimeout = "10s"
	}
	if c.BLE.DIYStepDelay == "" {
		c.BLE.DIYStepDelay = "100ms"
	}
	if c.BLE.DIYSettleDelay == "" {
		c.BLE.DIYSettleDelay = "200ms"
	}
	if c.BLE.RateBurst <= 0 {
		c.BLE.RateBurst = 1
	}

	// File Defaults
	if c.PatternsDir == "" {
		c.PatternsDir = "patterns"
	}
	if c.SchedulesFile == "" {
		c.SchedulesFile = "schedules.json"
	}

	// MQTT Defaults
	if c.MQTT.Broker == "" {
		c.MQTT.Broker = "tcp://localhost:1883"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "ledble-controller"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "ledble"
	}
	if c.MQTT.HADiscoveryPrefix == "" {
		c.MQTT.HADiscoveryPrefix = "homeassistant"
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) validate() error {
	if c.BLE.RateLimit < 0 {
		return fmt.Errorf("config error: 'command_rate_limit' must not be negative")
	}
	durations := map[string]string{
		"scan_timeout":     c.BLE.ScanTimeout,
		"connect_timeout":  c.BLE.ConnectTimeout,
		"diy_step_delay":   c.BLE.DIYStepDelay,
		"diy_settle_delay": c.BLE.DIYSettleDelay,
	}
	for name, v := range durations {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("config error: '%s': %w", name, err)
		}
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config error: 'log_level': %w", err)
	}
	return nil
}

// Durations returns the parsed BLE timing settings. Load has already validated them.
func (b BLEConfig) Durations() (scan, connect, step, settle time.Duration) {
	scan, _ = time.ParseDuration(b.ScanTimeout)
	connect, _ = time.ParseDuration(b.ConnectTimeout)
	step, _ = time.ParseDuration(b.DIYStepDelay)
	settle, _ = time.ParseDuration(b.DIYSettleDelay)
	return
}

// Level returns the configured logrus level, falling back to info.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
