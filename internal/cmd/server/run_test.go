package serverrun

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	cfgpkg "github.com/globulario/services-sub005/internal/config"
	"github.com/globulario/services-sub005/internal/eventrpc"
	"github.com/globulario/services-sub005/internal/globular"
	"github.com/globulario/services-sub005/internal/hub"
	"github.com/globulario/services-sub005/internal/resolver"
	pebblestore "github.com/globulario/services-sub005/internal/storage/pebble"
	logpkg "github.com/globulario/services-sub005/pkg/log"
)

type running struct {
	grpcAddr string
	httpURL  string
	dataDir  string
	cancel   context.CancelFunc
	done     chan error
}

func start(t *testing.T, mutate func(*cfgpkg.Config)) *running {
	t.Helper()
	gl, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	hl, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	cfg := cfgpkg.Default()
	cfg.DataDir = t.TempDir()
	cfg.Server.GRPCAddr = gl.Addr().String()
	cfg.Server.HTTPAddr = hl.Addr().String()
	cfg.Server.KeepAliveIntervalMs = 50
	if mutate != nil {
		mutate(&cfg)
	}
	logger, _ := logpkg.ApplyConfig(&logpkg.Config{Level: "error", Format: "text"})

	ctx, cancel := context.WithCancel(context.Background())
	r := &running{
		grpcAddr: gl.Addr().String(),
		httpURL:  "http://" + hl.Addr().String(),
		dataDir:  cfg.DataDir,
		cancel:   cancel,
		done:     make(chan error, 1),
	}
	go func() {
		r.done <- Run(ctx, Options{Config: cfg, Logger: logger, GRPCListener: gl, HTTPListener: hl})
	}()
	t.Cleanup(func() { r.stop(t) })
	waitHTTP(t, r.httpURL+"/v1/healthz")
	return r
}

func (r *running) stop(t *testing.T) {
	t.Helper()
	r.cancel()
	select {
	case err, ok := <-r.done:
		if ok && err != nil {
			t.Errorf("run: %v", err)
		}
		if ok {
			close(r.done)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("server did not stop")
	}
}

func waitHTTP(t *testing.T, url string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("%s never became ready: %v", url, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRunServesEventsOverGRPC(t *testing.T) {
	r := start(t, nil)
	cli, err := eventrpc.DialTarget(r.grpcAddr)
	if err != nil {
		t.Fatal(err)
	}
	defer cli.Close()

	h := hub.New(cli, hub.Options{HeartbeatTimeout: 2 * time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	defer h.Close(ctx)

	got := make(chan string, 1)
	if _, err := h.Subscribe(ctx, "orders", func(d string) { got <- d }, hub.Remote()); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for h.State() != hub.Connected {
		if time.Now().After(deadline) {
			t.Fatalf("no keep-alive received")
		}
		time.Sleep(5 * time.Millisecond)
	}

	resp, err := http.Post(r.httpURL+"/v1/events/publish", "application/json", strings.NewReader(`{"name":"orders","data":"from-http"}`))
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("publish status %d", resp.StatusCode)
	}
	select {
	case d := <-got:
		if d != "from-http" {
			t.Fatalf("got %q", d)
		}
	case <-ctx.Done():
		t.Fatalf("event not delivered")
	}

	resp, err = http.Get(r.httpURL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "globular_eventserver_attached_clients 1") {
		t.Fatalf("metrics:\n%s", body)
	}
}

func TestConfigUpdatesReachFacadeAndPersist(t *testing.T) {
	r := start(t, nil)
	host, port, _ := net.SplitHostPort(r.grpcAddr)
	doc := resolver.Document{
		Name:   "globule",
		Domain: host,
		Services: map[string]resolver.ServiceConfig{
			"event": {Id: "event", Name: globular.EventServiceName, Address: r.grpcAddr, Port: mustAtoi(t, port)},
		},
	}
	g := globular.New(doc, globular.Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	defer g.Close(ctx)

	h, err := g.EventHub(ctx)
	if err != nil {
		t.Fatalf("event hub: %v", err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for h.State() != hub.Connected {
		if time.Now().After(deadline) {
			t.Fatalf("no keep-alive received")
		}
		time.Sleep(5 * time.Millisecond)
	}

	resp, err := http.Post(r.httpURL+"/v1/services", "application/json",
		strings.NewReader(`{"Id":"file-1","Name":"file.FileService","Address":"files.local:443","Port":10010}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	for len(g.Configs("file.FileService")) != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("configuration update not applied to the facade")
		}
		time.Sleep(5 * time.Millisecond)
	}

	r.stop(t)
	db, err := pebblestore.Open(pebblestore.Options{DataDir: filepath.Join(r.dataDir, "resolver")})
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer db.Close()
	saved, err := resolver.NewPebbleStore(db).LoadAll()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, s := range saved {
		if s.Id == "file-1" && s.Port == 10010 {
			found = true
		}
	}
	if !found {
		t.Fatalf("applied configuration not persisted: %+v", saved)
	}
}

func TestRunLoadsDocumentAndListsItself(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"Name":"globule","Domain":"example.com","Protocol":"https","Services":{"rbac-1":{"Id":"rbac-1","Name":"rbac.RbacService","Port":10020}}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	r := start(t, func(c *cfgpkg.Config) { c.Document = path })

	for _, q := range []struct{ name, want string }{
		{"rbac.RbacService", `"target":"example.com:10020"`},
		{"event.EventService", `"Id"`},
	} {
		url := r.httpURL + "/v1/services/resolve?name=" + q.name
		if q.name == "event.EventService" {
			url = r.httpURL + "/v1/services?name=" + q.name
		}
		resp, err := http.Get(url)
		if err != nil {
			t.Fatal(err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if !strings.Contains(string(body), q.want) {
			t.Fatalf("%s: %s", q.name, body)
		}
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := cfgpkg.Default()
	cfg.Server.KeepAliveIntervalMs = cfg.Hub.HeartbeatTimeoutMs
	if err := Run(context.Background(), Options{Config: cfg, Logger: logpkg.NewNopLogger()}); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestSelfConfig(t *testing.T) {
	cfg := cfgpkg.Default()
	s, err := selfConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if s.Name != cfgpkg.DefaultEventService || s.Port != 10000 || s.Address != "" {
		t.Fatalf("self %+v", s)
	}
	cfg.Server.GRPCAddr = "nohost"
	if _, err := selfConfig(cfg); err == nil {
		t.Fatalf("expected error for address without port")
	}
}

func mustAtoi(t *testing.T, s string) int {
	t.Helper()
	n, err := strconv.Atoi(s)
	if err != nil {
		t.Fatalf("bad port %q", s)
	}
	return n
}
