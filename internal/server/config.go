package server

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/shaunagostinho/field-compass/internal/gps"
	"github.com/shaunagostinho/field-compass/internal/heading"
	"github.com/shaunagostinho/field-compass/internal/logger"
	"github.com/shaunagostinho/field-compass/internal/nav"
	"github.com/shaunagostinho/field-compass/internal/publish"
)

const defaultConfigPath = "/etc/field-compass/config.yaml"

// Config holds all service configuration.
type Config struct {
	mu sync.RWMutex

	// Sensors
	GPS     GPSConfig     `yaml:"gps" json:"gps"`
	Compass CompassConfig `yaml:"compass" json:"compass"`

	// Navigation engine
	Nav NavConfig `yaml:"nav" json:"nav"`

	// Survey export file with the targets
	Targets TargetsConfig `yaml:"targets" json:"targets"`

	Logging logger.Config  `yaml:"logging" json:"logging"`
	MQTT    publish.Config `yaml:"mqtt" json:"mqtt"`
	Server  ServerConfig   `yaml:"server" json:"server"`

	path string // file path for save/load
}

// GPSConfig selects and configures the position source.
type GPSConfig struct {
	Type     string         `yaml:"type" json:"type"`          // "nmea", "demo", "browser" or "disabled"
	PortPath string         `yaml:"port_path" json:"portPath"` // e.g. /dev/ttyGPS
	BaudRate int            `yaml:"baud_rate" json:"baudRate"`
	Demo     gps.DemoConfig `yaml:"demo" json:"demo"`
}

// CompassConfig selects and configures the orientation source.
type CompassConfig struct {
	Type     string `yaml:"type" json:"type"`          // "nmea", "demo", "browser" or "disabled"
	PortPath string `yaml:"port_path" json:"portPath"` // e.g. /dev/ttyCompass
	BaudRate int    `yaml:"baud_rate" json:"baudRate"`
}

// NavConfig holds engine thresholds and the recompute interval.
type NavConfig struct {
	nav.Config `yaml:",inline" json:"engine"`
	TickMs     int `yaml:"tick_ms" json:"tickMs"` // periodic refresh
}

// TargetsConfig points at the saved-targets export.
type TargetsConfig struct {
	File string `yaml:"file" json:"file"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" json:"listenAddr"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		GPS: GPSConfig{
			Type:     "browser",
			PortPath: "/dev/ttyGPS",
			BaudRate: 9600,
		},
		Compass: CompassConfig{
			Type:     "browser",
			PortPath: "/dev/ttyCompass",
			BaudRate: 4800,
		},
		Nav: NavConfig{
			Config: nav.Config{
				Heading: heading.Config{Window: heading.DefaultWindow},
				ArriveM: nav.DefaultArriveM,
				RearmM:  nav.DefaultRearmM,
			},
			TickMs: 500,
		},
		Targets: TargetsConfig{
			File: "/etc/field-compass/targets.json",
		},
		Logging: logger.Config{
			Enabled:    false,
			Path:       "/var/log/field-compass",
			IntervalMs: 500,
		},
		MQTT: publish.Config{
			Enabled:  false,
			Broker:   "tcp://localhost:1883",
			ClientID: "field-compass",
			Topic:    "fieldcompass",
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
	}
}

// LoadConfig reads config from a YAML file, then applies .env and environment
// variable overrides. Falls back to defaults if YAML not found.
func LoadConfig(path string) *Config {
	cfg := DefaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[config] no config at %s, using defaults", path)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		log.Printf("[config] error parsing %s: %v, using defaults", path, err)
		cfg = DefaultConfig()
		cfg.path = path
	} else {
		log.Printf("[config] loaded from %s", path)
	}

	// Load .env file from the same directory as the config, or from CWD
	envPaths := []string{
		filepath.Join(filepath.Dir(path), ".env"),
		".env",
	}
	for _, ep := range envPaths {
		loadEnvFile(ep)
	}

	cfg.applyEnvOverrides()
	return cfg
}

// loadEnvFile reads a simple KEY=VALUE .env file and sets os env vars.
func loadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	log.Printf("[config] loading .env from %s", path)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
		// Real env takes precedence
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

// applyEnvOverrides reads environment variables and overrides config values.
// Supported: GPS_TYPE, GPS_PORT, GPS_BAUD, COMPASS_TYPE, COMPASS_PORT,
// COMPASS_BAUD, DECLINATION_DEG, TARGETS_FILE, LISTEN_ADDR, LOG_ENABLED,
// LOG_PATH, LOG_INTERVAL_MS, MQTT_ENABLED, MQTT_BROKER, MQTT_TOPIC
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GPS_TYPE"); v != "" {
		c.GPS.Type = v
	}
	if v := os.Getenv("GPS_PORT"); v != "" {
		c.GPS.PortPath = v
	}
	if v := os.Getenv("GPS_BAUD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.GPS.BaudRate = n
		}
	}
	if v := os.Getenv("COMPASS_TYPE"); v != "" {
		c.Compass.Type = v
	}
	if v := os.Getenv("COMPASS_PORT"); v != "" {
		c.Compass.PortPath = v
	}
	if v := os.Getenv("COMPASS_BAUD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Compass.BaudRate = n
		}
	}
	if v := os.Getenv("DECLINATION_DEG"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			c.Nav.Heading.DeclinationDeg = n
		}
	}
	if v := os.Getenv("TARGETS_FILE"); v != "" {
		c.Targets.File = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	// Logging
	if v := os.Getenv("LOG_ENABLED"); v != "" {
		c.Logging.Enabled = truthy(v)
	}
	if v := os.Getenv("LOG_PATH"); v != "" {
		c.Logging.Path = v
	}
	if v := os.Getenv("LOG_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Logging.IntervalMs = n
		}
	}
	// MQTT
	if v := os.Getenv("MQTT_ENABLED"); v != "" {
		c.MQTT.Enabled = truthy(v)
	}
	if v := os.Getenv("MQTT_BROKER"); v != "" {
		c.MQTT.Broker = v
	}
	if v := os.Getenv("MQTT_TOPIC"); v != "" {
		c.MQTT.Topic = v
	}
}

func truthy(v string) bool {
	return v == "1" || v == "true" || v == "yes"
}

// Save writes the config to its YAML file.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	path := c.path
	if path == "" {
		path = defaultConfigPath
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ToJSON serializes config for the API.
func (c *Config) ToJSON() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return json.Marshal(c)
}

// LoggingEnabled reports the current logging toggle.
func (c *Config) LoggingEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Logging.Enabled
}

// UpdateFromJSON applies a partial JSON config update by deep-merging
// incoming fields into the existing config. Fields not present in the
// incoming JSON are preserved (e.g. port paths, baud rates, logging).
func (c *Config) UpdateFromJSON(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	currentBytes, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal current config: %w", err)
	}
	var base map[string]interface{}
	if err := json.Unmarshal(currentBytes, &base); err != nil {
		return fmt.Errorf("unmarshal current config: %w", err)
	}

	var patch map[string]interface{}
	if err := json.Unmarshal(data, &patch); err != nil {
		return fmt.Errorf("unmarshal patch: %w", err)
	}

	deepMerge(base, patch)

	merged, err := json.Marshal(base)
	if err != nil {
		return fmt.Errorf("marshal merged config: %w", err)
	}
	return json.Unmarshal(merged, c)
}

// deepMerge recursively merges src into dst. For nested maps, values are
// merged rather than replaced. For all other types, src overwrites dst.
func deepMerge(dst, src map[string]interface{}) {
	for key, srcVal := range src {
		if srcMap, ok := srcVal.(map[string]interface{}); ok {
			if dstMap, ok := dst[key].(map[string]interface{}); ok {
				deepMerge(dstMap, srcMap)
				continue
			}
		}
		dst[key] = srcVal
	}
}
