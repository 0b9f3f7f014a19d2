// Package log is the structured logging facade used across the event hub,
// the event service and the CLI.
//
// Loggers are built from options and passed explicitly; there is no global
// default logger.
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("eventhub"))
//	l.Info("stream established", log.Str("client_id", id))
//
// Records flow through a log/slog handler (see slog_bridge.go) so the
// formatter and output pipeline stays the same whether callers use this
// facade or a *slog.Logger obtained from Slog.
//
// ApplyConfig builds a logger from a declarative Config (level, text or json
// format, console/file/null output). RedirectStdLog routes the standard
// library logger (used by Pebble and gRPC internals) through a Logger.
package log
