// Package config provides loading and environment overlay for the event hub
// client, the event service and the CLI. It exposes a Default() baseline,
// Load for JSON or YAML files, and FromEnv for GLOBULAR_* overrides.
//
// Example:
//
//	cfg := config.Default()
//	if fileCfg, err := config.Load("/etc/globular/events.yaml"); err == nil {
//	    cfg = fileCfg
//	}
//	config.FromEnv(&cfg)
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
package config
