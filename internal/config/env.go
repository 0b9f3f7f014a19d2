package config

import (
	"os"
	"strconv"
)

// FromEnv overlays GLOBULAR_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("GLOBULAR_EVENT_SERVICE"); v != "" {
		cfg.EventService = v
	}
	if v := os.Getenv("GLOBULAR_EVENT_ADDR"); v != "" {
		cfg.EventAddress = v
	}
	envInt("GLOBULAR_HEARTBEAT_TIMEOUT_MS", &cfg.Hub.HeartbeatTimeoutMs)
	envInt("GLOBULAR_SWEEP_INTERVAL_MS", &cfg.Hub.SweepIntervalMs)
	envInt("GLOBULAR_REGISTER_ATTEMPTS", &cfg.Hub.RegisterAttempts)
	if v := os.Getenv("GLOBULAR_GRPC"); v != "" {
		cfg.Server.GRPCAddr = v
	}
	if v := os.Getenv("GLOBULAR_HTTP"); v != "" {
		cfg.Server.HTTPAddr = v
	}
	envInt("GLOBULAR_KEEPALIVE_MS", &cfg.Server.KeepAliveIntervalMs)
	envInt("GLOBULAR_SUB_BUF", &cfg.Server.SubscriberBuffer)
	if v := os.Getenv("GLOBULAR_DOCUMENT"); v != "" {
		cfg.Document = v
	}
	if v := os.Getenv("GLOBULAR_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("GLOBULAR_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("GLOBULAR_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
