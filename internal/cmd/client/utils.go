package client

import (
	"os"
	"unicode/utf8"

	"github.com/bytedance/sonic"
	cfgpkg "github.com/globulario/services-sub005/internal/config"
	"github.com/globulario/services-sub005/internal/hub"
)

var jsonAPI = sonic.ConfigStd

// clientConfig returns the defaults overlaid with GLOBULAR_* variables.
func clientConfig() cfgpkg.Config {
	cfg := cfgpkg.Default()
	cfgpkg.FromEnv(&cfg)
	return cfg
}

// hubOptions maps the hub section of cfg onto hub.Options.
func hubOptions(cfg cfgpkg.Config) hub.Options {
	return hub.Options{
		HeartbeatTimeout: cfg.HeartbeatTimeout(),
		SweepInterval:    cfg.SweepInterval(),
		RegisterAttempts: cfg.Hub.RegisterAttempts,
	}
}

// httpURLFromEnv returns the HTTP gateway base URL from GLOBULAR_HTTP_URL or
// a default.
func httpURLFromEnv() string {
	if u := os.Getenv("GLOBULAR_HTTP_URL"); u != "" {
		return u
	}
	return "http://127.0.0.1:8080"
}

// decodedEvent returns a map with name and one of data_json, data_text or
// data_bytes.
func decodedEvent(name string, data []byte) map[string]any {
	out := map[string]any{"name": name}
	if len(data) > 0 && (data[0] == '{' || data[0] == '[') {
		var v any
		if jsonAPI.Unmarshal(data, &v) == nil {
			out["data_json"] = v
			return out
		}
	}
	if utf8.Valid(data) {
		out["data_text"] = string(data)
		return out
	}
	out["data_bytes"] = data
	return out
}
