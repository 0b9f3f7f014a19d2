// Package httpserver provides a small REST gateway for the event service:
// JSON publish, Server-Sent Events subscribe, service configuration routes
// and Prometheus metrics.
//
// Example:
//
//	svc := eventserver.New(eventserver.Options{})
//	s := httpserver.New(svc, httpserver.Options{Gatherer: prometheus.DefaultGatherer})
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":8080")
package httpserver
