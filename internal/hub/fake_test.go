package hub

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/globulario/services-sub005/internal/eventrpc"
	"github.com/globulario/services-sub005/pkg/id"
	"github.com/prometheus/client_golang/prometheus"
)

type fakeStream struct {
	ctx    context.Context
	frames chan eventrpc.Frame
}

func (s *fakeStream) Recv() (eventrpc.Frame, error) {
	select {
	case f := <-s.frames:
		return f, nil
	case <-s.ctx.Done():
		return eventrpc.Frame{}, s.ctx.Err()
	}
}

func (s *fakeStream) keepAlive() { s.frames <- eventrpc.Frame{KeepAlive: true} }

func (s *fakeStream) event(name, data string) {
	s.frames <- eventrpc.Frame{Name: name, Data: []byte(data)}
}

// fakeClient records calls and lets tests script failures.
type fakeClient struct {
	mu          sync.Mutex
	calls       []string
	streams     []*fakeStream
	opened      chan *fakeStream
	onEventErr  error
	subscribe   func(name string) error
	unsubErr    error
	publishErr  error
	published   []string
	quitClients []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{opened: make(chan *fakeStream, 16)}
}

func (f *fakeClient) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeClient) OnEvent(ctx context.Context, clientID string) (eventrpc.FrameStream, error) {
	f.record("on_event")
	f.mu.Lock()
	err := f.onEventErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	s := &fakeStream{ctx: ctx, frames: make(chan eventrpc.Frame, 16)}
	f.mu.Lock()
	f.streams = append(f.streams, s)
	f.mu.Unlock()
	f.opened <- s
	return s, nil
}

func (f *fakeClient) Subscribe(_ context.Context, name, _ string) error {
	f.record("subscribe:" + name)
	f.mu.Lock()
	fn := f.subscribe
	f.mu.Unlock()
	if fn != nil {
		return fn(name)
	}
	return nil
}

func (f *fakeClient) UnSubscribe(_ context.Context, name, _ string) error {
	f.record("unsubscribe:" + name)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unsubErr
}

func (f *fakeClient) Publish(_ context.Context, name string, data []byte) error {
	f.record("publish:" + name)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, string(data))
	return nil
}

func (f *fakeClient) Quit(_ context.Context, clientID string) error {
	f.record("quit")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quitClients = append(f.quitClients, clientID)
	return nil
}

func (f *fakeClient) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeClient) setOnEventErr(err error) {
	f.mu.Lock()
	f.onEventErr = err
	f.mu.Unlock()
}

func (f *fakeClient) waitStream(t *testing.T) *fakeStream {
	t.Helper()
	select {
	case s := <-f.opened:
		return s
	case <-time.After(2 * time.Second):
		t.Fatalf("no stream opened")
		return nil
	}
}

type testHub struct {
	*Hub
	client     *fakeClient
	clock      *clock.Mock
	reg        *prometheus.Registry
	reconnects chan error
}

func newTestHub(t *testing.T, opts Options) *testHub {
	t.Helper()
	th := &testHub{
		client:     newFakeClient(),
		clock:      clock.NewMock(),
		reg:        prometheus.NewRegistry(),
		reconnects: make(chan error, 16),
	}
	opts.Clock = th.clock
	opts.Registerer = th.reg
	opts.IDs = id.NewSequence('a')
	opts.OnReconnect = func(err error) { th.reconnects <- err }
	th.Hub = New(th.client, opts)
	t.Cleanup(func() { _ = th.Hub.Close(context.Background()) })
	return th
}

func (th *testHub) waitReconnect(t *testing.T) error {
	t.Helper()
	select {
	case err := <-th.reconnects:
		return err
	case <-time.After(2 * time.Second):
		t.Fatalf("reconnect hook not called")
		return nil
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// collector is a thread-safe Handler sink.
type collector struct {
	mu   sync.Mutex
	got  []string
	seen chan struct{}
}

func newCollector() *collector { return &collector{seen: make(chan struct{}, 64)} }

func (c *collector) handle(data string) {
	c.mu.Lock()
	c.got = append(c.got, data)
	c.mu.Unlock()
	c.seen <- struct{}{}
}

func (c *collector) wait(t *testing.T) {
	t.Helper()
	select {
	case <-c.seen:
	case <-time.After(2 * time.Second):
		t.Fatalf("handler not invoked")
	}
}

func (c *collector) values() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.got...)
}

func eventrpcFrame(name string, data []byte) eventrpc.Frame {
	return eventrpc.Frame{Name: name, Data: data}
}
