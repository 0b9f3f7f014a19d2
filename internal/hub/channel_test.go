package hub

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestStreamEventsDispatchInOrder(t *testing.T) {
	th := newTestHub(t, Options{})
	ctx := context.Background()
	c := newCollector()
	if _, err := th.Subscribe(ctx, "evt", c.handle, Remote()); err != nil {
		t.Fatal(err)
	}
	s := th.client.waitStream(t)

	s.event("evt", "one")
	s.event("other", "ignored")
	s.frames <- eventrpcFrame("evt", []byte{0xff, 'x'})
	c.wait(t)
	c.wait(t)
	if got, want := c.values(), []string{"one", "\uFFFDx"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
	if got := testutil.ToFloat64(th.metrics.frames.WithLabelValues("event")); got != 3 {
		t.Fatalf("event frames %v", got)
	}
}

func TestKeepAliveResetsWatchdog(t *testing.T) {
	th := newTestHub(t, Options{HeartbeatTimeout: 25 * time.Second})
	ctx := context.Background()
	if _, err := th.Subscribe(ctx, "evt", func(string) {}, Remote()); err != nil {
		t.Fatal(err)
	}
	s := th.client.waitStream(t)

	s.keepAlive()
	eventually(t, "connected", func() bool { return th.State() == Connected })

	th.clock.Add(20 * time.Second)
	s.keepAlive()
	eventually(t, "second keep-alive", func() bool {
		return testutil.ToFloat64(th.metrics.frames.WithLabelValues("keepalive")) == 2
	})

	th.clock.Add(20 * time.Second)
	time.Sleep(20 * time.Millisecond)
	if n := th.client.count("on_event"); n != 1 {
		t.Fatalf("reconnected despite keep-alive: %d opens", n)
	}

	th.clock.Add(5 * time.Second)
	if err := th.waitReconnect(t); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if n := th.client.count("on_event"); n != 2 {
		t.Fatalf("opens %d", n)
	}
}

func TestHeartbeatTimeoutReconnectsAndResubscribes(t *testing.T) {
	th := newTestHub(t, Options{})
	ctx := context.Background()

	c := newCollector()
	for _, name := range []string{"b", "a"} {
		if _, err := th.Subscribe(ctx, name, c.handle, Remote()); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := th.Subscribe(ctx, "local-only", c.handle); err != nil {
		t.Fatal(err)
	}
	first := th.client.waitStream(t)

	th.clock.Add(25 * time.Second)
	if err := th.waitReconnect(t); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if first.ctx.Err() == nil {
		t.Fatalf("stale stream was not cancelled")
	}
	second := th.client.waitStream(t)

	th.client.mu.Lock()
	calls := append([]string(nil), th.client.calls...)
	th.client.mu.Unlock()
	want := []string{"on_event", "subscribe:b", "subscribe:a", "on_event", "subscribe:a", "subscribe:b"}
	if !reflect.DeepEqual(calls, want) {
		t.Fatalf("calls %v, want %v", calls, want)
	}
	if th.State() != AwaitingHeartbeat {
		t.Fatalf("state %v", th.State())
	}
	if got := testutil.ToFloat64(th.metrics.reconnects); got != 1 {
		t.Fatalf("reconnects %v", got)
	}

	second.event("a", "after")
	c.wait(t)
	if got := c.values(); !reflect.DeepEqual(got, []string{"after"}) {
		t.Fatalf("got %v", got)
	}
}

func TestFailedReopenIsRetriedAfterTimeout(t *testing.T) {
	th := newTestHub(t, Options{})
	ctx := context.Background()
	if _, err := th.Subscribe(ctx, "evt", func(string) {}, Remote()); err != nil {
		t.Fatal(err)
	}
	th.client.waitStream(t)

	th.client.setOnEventErr(errors.New("connection refused"))
	th.clock.Add(25 * time.Second)
	if err := th.waitReconnect(t); err == nil {
		t.Fatalf("expected reconnect failure")
	}
	if th.State() != Disconnected {
		t.Fatalf("state %v", th.State())
	}

	th.client.setOnEventErr(nil)
	th.clock.Add(25 * time.Second)
	if err := th.waitReconnect(t); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if n := th.client.count("on_event"); n != 3 {
		t.Fatalf("opens %d", n)
	}
	if n := th.client.count("subscribe:evt"); n != 2 {
		t.Fatalf("resubscribes %d", n)
	}
}

func TestPartialResubscribeReportedToHook(t *testing.T) {
	th := newTestHub(t, Options{})
	ctx := context.Background()
	for _, name := range []string{"a", "b", "c"} {
		if _, err := th.Subscribe(ctx, name, func(string) {}, Remote()); err != nil {
			t.Fatal(err)
		}
	}
	th.client.waitStream(t)
	th.client.mu.Lock()
	th.client.subscribe = func(name string) error {
		if name == "b" {
			return errors.New("unavailable")
		}
		return nil
	}
	th.client.mu.Unlock()

	th.clock.Add(25 * time.Second)
	if err := th.waitReconnect(t); err == nil {
		t.Fatalf("expected partial resubscribe error")
	}
	if th.client.count("subscribe:c") != 1 {
		t.Fatalf("resubscribe continued past the first failure")
	}
	if th.client.count("subscribe:a") != 2 {
		t.Fatalf("names before the failure were not resubscribed")
	}
}

func TestCloseStopsWatchdog(t *testing.T) {
	th := newTestHub(t, Options{})
	ctx := context.Background()
	if _, err := th.Subscribe(ctx, "evt", func(string) {}, Remote()); err != nil {
		t.Fatal(err)
	}
	s := th.client.waitStream(t)
	if err := th.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if s.ctx.Err() == nil {
		t.Fatalf("stream not cancelled on close")
	}
	th.clock.Add(time.Minute)
	time.Sleep(20 * time.Millisecond)
	if n := th.client.count("on_event"); n != 1 {
		t.Fatalf("watchdog fired after close")
	}
	if th.State() != Disconnected {
		t.Fatalf("state %v", th.State())
	}
}

func TestChannelStateString(t *testing.T) {
	cases := map[ChannelState]string{
		Disconnected:      "disconnected",
		Connecting:        "connecting",
		AwaitingHeartbeat: "awaiting_heartbeat",
		Connected:         "connected",
		ChannelState(9):   "ChannelState(9)",
	}
	for s, want := range cases {
		if s.String() != want {
			t.Errorf("%d: got %q want %q", int(s), s.String(), want)
		}
	}
}

func TestCloseFromStreamListenerReturns(t *testing.T) {
	th := newTestHub(t, Options{})
	ctx := context.Background()
	closed := make(chan error, 1)
	handler := func(string) { closed <- th.Close(ctx) }
	if _, err := th.Subscribe(ctx, "shutdown", handler, Remote()); err != nil {
		t.Fatal(err)
	}
	s := th.client.waitStream(t)
	s.event("shutdown", "")

	select {
	case err := <-closed:
		if err != nil {
			t.Fatalf("close: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Close called from a listener did not return")
	}
	if n := th.client.count("quit"); n != 1 {
		t.Fatalf("quit sent %d times", n)
	}
	if _, err := th.Subscribe(ctx, "late", func(string) {}); !errors.Is(err, ErrClosed) {
		t.Fatalf("want ErrClosed, got %v", err)
	}
}
