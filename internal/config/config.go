package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultEventService is the logical name the resolver uses for the
// event-distribution service.
const DefaultEventService = "event.EventService"

// Config is the top-level configuration loaded from file/env.
type Config struct {
	// EventService is the service name handed to the resolver.
	EventService string `json:"eventService" yaml:"eventService"`
	// EventAddress is a static host:port for the event service, used by the
	// CLI when no configuration document is available.
	EventAddress string `json:"eventAddress" yaml:"eventAddress"`

	Hub    HubConfig    `json:"hub" yaml:"hub"`
	Server ServerConfig `json:"server" yaml:"server"`

	// Document is the path of the globule configuration document served by
	// the resolver. Optional.
	Document string `json:"document" yaml:"document"`
	// DataDir holds the resolver's configuration snapshot.
	DataDir string `json:"dataDir" yaml:"dataDir"`

	LogLevel  string `json:"logLevel" yaml:"logLevel"`
	LogFormat string `json:"logFormat" yaml:"logFormat"`
}

// HubConfig tunes the client-side event hub.
type HubConfig struct {
	HeartbeatTimeoutMs int `json:"heartbeatTimeoutMs" yaml:"heartbeatTimeoutMs"`
	SweepIntervalMs    int `json:"sweepIntervalMs" yaml:"sweepIntervalMs"`
	RegisterAttempts   int `json:"registerAttempts" yaml:"registerAttempts"`
}

// ServerConfig tunes the event-distribution service.
type ServerConfig struct {
	GRPCAddr            string `json:"grpcAddr" yaml:"grpcAddr"`
	HTTPAddr            string `json:"httpAddr" yaml:"httpAddr"`
	KeepAliveIntervalMs int    `json:"keepAliveIntervalMs" yaml:"keepAliveIntervalMs"`
	SubscriberBuffer    int    `json:"subscriberBuffer" yaml:"subscriberBuffer"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		EventService: DefaultEventService,
		EventAddress: "127.0.0.1:10000",
		Hub: HubConfig{
			HeartbeatTimeoutMs: 25_000,
			SweepIntervalMs:    5_000,
			RegisterAttempts:   1,
		},
		Server: ServerConfig{
			GRPCAddr:            ":10000",
			HTTPAddr:            ":8080",
			KeepAliveIntervalMs: 15_000,
			SubscriberBuffer:    1024,
		},
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// HeartbeatTimeout returns the hub watchdog timeout.
func (c Config) HeartbeatTimeout() time.Duration {
	return time.Duration(c.Hub.HeartbeatTimeoutMs) * time.Millisecond
}

// SweepInterval returns the period of the listener-reference sweep.
func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.Hub.SweepIntervalMs) * time.Millisecond
}

// KeepAliveInterval returns the server keep-alive period.
func (c Config) KeepAliveInterval() time.Duration {
	return time.Duration(c.Server.KeepAliveIntervalMs) * time.Millisecond
}

// Validate reports configuration values that cannot work.
func (c Config) Validate() error {
	if strings.TrimSpace(c.EventService) == "" {
		return fmt.Errorf("config: eventService must not be empty")
	}
	if c.Hub.HeartbeatTimeoutMs <= 0 {
		return fmt.Errorf("config: hub.heartbeatTimeoutMs must be > 0")
	}
	if c.Hub.SweepIntervalMs <= 0 {
		return fmt.Errorf("config: hub.sweepIntervalMs must be > 0")
	}
	if c.Hub.RegisterAttempts < 1 {
		return fmt.Errorf("config: hub.registerAttempts must be >= 1")
	}
	if c.Server.KeepAliveIntervalMs <= 0 {
		return fmt.Errorf("config: server.keepAliveIntervalMs must be > 0")
	}
	if c.Server.KeepAliveIntervalMs >= c.Hub.HeartbeatTimeoutMs {
		return fmt.Errorf("config: server keep-alive (%dms) must be shorter than hub heartbeat timeout (%dms)",
			c.Server.KeepAliveIntervalMs, c.Hub.HeartbeatTimeoutMs)
	}
	return nil
}

// Load reads configuration from a JSON or YAML file (by extension). If path is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	return cfg, nil
}
