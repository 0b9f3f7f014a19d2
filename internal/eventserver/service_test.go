package eventserver

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/globulario/services-sub005/internal/eventrpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeSink struct {
	ctx     context.Context
	mu      sync.Mutex
	frames  []*eventrpc.OnEventResponse
	failing bool
	got     chan struct{}
}

func newFakeSink(ctx context.Context) *fakeSink {
	return &fakeSink{ctx: ctx, got: make(chan struct{}, 64)}
}

func (f *fakeSink) Send(m *eventrpc.OnEventResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errors.New("broken pipe")
	}
	f.frames = append(f.frames, m)
	f.got <- struct{}{}
	return nil
}
func (f *fakeSink) Context() context.Context { return f.ctx }
func (f *fakeSink) Flush() error             { return nil }

func (f *fakeSink) wait(t *testing.T) {
	t.Helper()
	select {
	case <-f.got:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for frame")
	}
}

func (f *fakeSink) snapshot() []*eventrpc.OnEventResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*eventrpc.OnEventResponse(nil), f.frames...)
}

type harness struct {
	svc   *Service
	clock *clock.Mock
	reg   *prometheus.Registry
}

func newHarness(opts Options) *harness {
	mock := clock.NewMock()
	reg := prometheus.NewRegistry()
	opts.Clock = mock
	opts.Metrics = NewMetrics(reg)
	return &harness{svc: New(opts), clock: mock, reg: reg}
}

// attach runs Attach in the background and waits until it is registered.
func (h *harness) attach(t *testing.T, id string) (*fakeSink, context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	sink := newFakeSink(ctx)
	done := make(chan error, 1)
	go func() { done <- h.svc.Attach(id, sink) }()
	deadline := time.Now().Add(2 * time.Second)
	for !h.svc.Attached(id) {
		if time.Now().After(deadline) {
			t.Fatalf("attach %s never registered", id)
		}
		time.Sleep(time.Millisecond)
	}
	t.Cleanup(cancel)
	return sink, cancel, done
}

func TestKeepAliveOnInterval(t *testing.T) {
	h := newHarness(Options{KeepAliveInterval: 15 * time.Second})
	sink, _, _ := h.attach(t, "c1")

	h.clock.Add(15 * time.Second)
	sink.wait(t)
	frames := sink.snapshot()
	if len(frames) != 1 || frames[0].Ka == nil {
		t.Fatalf("expected one keep-alive, got %+v", frames)
	}
	if got := testutil.ToFloat64(h.svc.metrics.sent.WithLabelValues("keepalive")); got != 1 {
		t.Fatalf("keepalive metric %v", got)
	}
}

func TestPublishFanOut(t *testing.T) {
	h := newHarness(Options{})
	a, _, _ := h.attach(t, "a")
	b, _, _ := h.attach(t, "b")
	ctx := context.Background()
	for _, id := range []string{"a", "b", "a"} {
		if _, err := h.svc.Subscribe(ctx, &eventrpc.SubscribeRequest{Name: "evt", UUID: id}); err != nil {
			t.Fatalf("subscribe: %v", err)
		}
	}
	if h.svc.Subscribers("evt") != 2 {
		t.Fatalf("subscribe should be idempotent, got %d", h.svc.Subscribers("evt"))
	}
	if _, err := h.svc.Publish(ctx, &eventrpc.PublishRequest{Evt: &eventrpc.Event{Name: "evt", Data: []byte("x")}}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	a.wait(t)
	b.wait(t)
	for _, s := range []*fakeSink{a, b} {
		frames := s.snapshot()
		if len(frames) != 1 || frames[0].Evt == nil || string(frames[0].Evt.Data) != "x" {
			t.Fatalf("unexpected frames %+v", frames)
		}
	}

	if _, err := h.svc.UnSubscribe(ctx, &eventrpc.UnSubscribeRequest{Name: "evt", UUID: "b"}); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if n := h.svc.PublishEvent("evt", []byte("y")); n != 1 {
		t.Fatalf("expected 1 recipient after unsubscribe, got %d", n)
	}
}

func TestInvalidArguments(t *testing.T) {
	h := newHarness(Options{})
	ctx := context.Background()
	checks := []error{
		func() error { _, err := h.svc.Subscribe(ctx, &eventrpc.SubscribeRequest{Name: "n"}); return err }(),
		func() error { _, err := h.svc.Subscribe(ctx, &eventrpc.SubscribeRequest{UUID: "u"}); return err }(),
		func() error { _, err := h.svc.UnSubscribe(ctx, &eventrpc.UnSubscribeRequest{}); return err }(),
		func() error { _, err := h.svc.Publish(ctx, &eventrpc.PublishRequest{}); return err }(),
		func() error { _, err := h.svc.Quit(ctx, &eventrpc.QuitRequest{}); return err }(),
		h.svc.Attach("", newFakeSink(ctx)),
	}
	for i, err := range checks {
		if status.Code(err) != codes.InvalidArgument {
			t.Errorf("check %d: expected InvalidArgument, got %v", i, err)
		}
	}
}

func TestBufferFullDrops(t *testing.T) {
	h := newHarness(Options{SubscriberBuffer: 1})
	// registered but never attached through Attach: install a queue by hand
	// so nothing drains it
	a := &attachment{clientID: "slow", queue: make(chan *eventrpc.OnEventResponse, 1), done: make(chan struct{})}
	h.svc.mu.Lock()
	h.svc.attached["slow"] = a
	h.svc.mu.Unlock()
	h.svc.SubscribeClient("evt", "slow")

	if n := h.svc.PublishEvent("evt", []byte("1")); n != 1 {
		t.Fatalf("first publish should queue, got %d", n)
	}
	if n := h.svc.PublishEvent("evt", []byte("2")); n != 0 {
		t.Fatalf("second publish should drop, got %d", n)
	}
	if got := testutil.ToFloat64(h.svc.metrics.dropped.WithLabelValues("buffer_full")); got != 1 {
		t.Fatalf("dropped metric %v", got)
	}
}

func TestReplaceAttachmentKeepsSubscriptions(t *testing.T) {
	h := newHarness(Options{})
	_, _, firstDone := h.attach(t, "c")
	h.svc.SubscribeClient("evt", "c")

	// second attach for the same id replaces the first
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	second := newFakeSink(ctx)
	go func() { _ = h.svc.Attach("c", second) }()
	select {
	case err := <-firstDone:
		if err != nil {
			t.Fatalf("replaced attach returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("first attachment not closed")
	}
	deadline := time.Now().Add(2 * time.Second)
	for h.svc.PublishEvent("evt", []byte("z")) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("second attachment never registered")
		}
		time.Sleep(time.Millisecond)
	}
	second.wait(t)
	if h.svc.Subscribers("evt") != 1 {
		t.Fatalf("subscription should survive replacement")
	}
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestDetachedClientPurgedAfterRetention(t *testing.T) {
	h := newHarness(Options{DetachedRetention: time.Minute})
	_, cancel, done := h.attach(t, "gone")
	h.svc.SubscribeClient("evt", "gone")
	cancel()
	<-done

	if h.svc.Attached("gone") {
		t.Fatalf("should be detached")
	}
	h.clock.Add(30 * time.Second)
	if h.svc.Subscribers("evt") != 1 {
		t.Fatalf("registration should be retained within the window")
	}
	h.clock.Add(30 * time.Second)
	waitUntil(t, "purge", func() bool {
		return h.svc.Subscribers("evt") == 0 && h.svc.Stats().Detached == 0
	})
}

func TestReattachCancelsPurge(t *testing.T) {
	h := newHarness(Options{DetachedRetention: time.Minute, KeepAliveInterval: 2 * time.Hour})
	_, cancel, done := h.attach(t, "c")
	h.svc.SubscribeClient("evt", "c")
	cancel()
	<-done

	h.attach(t, "c")
	h.clock.Add(time.Hour)
	// give a wrongly fired purge time to run
	time.Sleep(20 * time.Millisecond)
	if h.svc.Subscribers("evt") != 1 || !h.svc.Attached("c") {
		t.Fatalf("re-attached client lost its registration")
	}
}

func TestQuietDetachedClientsDoNotAccumulate(t *testing.T) {
	h := newHarness(Options{DetachedRetention: time.Minute})
	for i := 0; i < 100; i++ {
		id := "c" + strconv.Itoa(i)
		h.svc.SubscribeClient("quiet", id)
		_, cancel, done := h.attach(t, id)
		cancel()
		<-done
	}
	// a client that never subscribed to anything
	_, cancel, done := h.attach(t, "idle")
	cancel()
	<-done

	if st := h.svc.Stats(); st.Detached != 101 {
		t.Fatalf("detached %d", st.Detached)
	}
	h.clock.Add(time.Hour)
	waitUntil(t, "detached clients purged", func() bool {
		st := h.svc.Stats()
		return st.Detached == 0 && st.Channels["quiet"] == 0
	})
}

func TestSendFailureEndsAttachment(t *testing.T) {
	h := newHarness(Options{KeepAliveInterval: time.Second})
	sink, _, done := h.attach(t, "c")
	sink.mu.Lock()
	sink.failing = true
	sink.mu.Unlock()
	h.clock.Add(time.Second)
	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected send error")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("attachment did not end")
	}
	if h.svc.Attached("c") {
		t.Fatalf("client should be detached")
	}
}

func TestQuitRemovesEverything(t *testing.T) {
	h := newHarness(Options{})
	_, _, done := h.attach(t, "c")
	h.svc.SubscribeClient("a", "c")
	h.svc.SubscribeClient("b", "c")
	if _, err := h.svc.Quit(context.Background(), &eventrpc.QuitRequest{UUID: "c"}); err != nil {
		t.Fatalf("quit: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("quit should end the attachment")
	}
	if h.svc.Subscribers("a") != 0 || h.svc.Subscribers("b") != 0 || h.svc.Attached("c") {
		t.Fatalf("quit left state behind")
	}
	if got := testutil.ToFloat64(h.svc.metrics.streams); got != 0 {
		t.Fatalf("attached gauge %v", got)
	}
}

func TestStats(t *testing.T) {
	h := newHarness(Options{})
	_, cancel, done := h.attach(t, "a")
	h.attach(t, "b")
	h.svc.SubscribeClient("orders", "a")
	h.svc.SubscribeClient("orders", "b")
	h.svc.SubscribeClient("users", "b")

	cancel()
	<-done
	st := h.svc.Stats()
	if st.Clients != 1 || st.Detached != 1 {
		t.Fatalf("clients %d detached %d", st.Clients, st.Detached)
	}
	if st.Channels["orders"] != 2 || st.Channels["users"] != 1 {
		t.Fatalf("channels %v", st.Channels)
	}
}

func TestPublishedCounterHasNoNameLabel(t *testing.T) {
	h := newHarness(Options{})
	for i := 0; i < 50; i++ {
		h.svc.PublishEvent("evt-"+strconv.Itoa(i), nil)
	}
	if got := testutil.ToFloat64(h.svc.metrics.published); got != 50 {
		t.Fatalf("published %v", got)
	}
	if n := testutil.CollectAndCount(h.svc.metrics.published); n != 1 {
		t.Fatalf("published series %d", n)
	}
}
