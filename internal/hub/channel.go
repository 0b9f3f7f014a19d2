package hub

import (
	"context"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/globulario/services-sub005/internal/eventrpc"
	"github.com/globulario/services-sub005/pkg/log"
)

// ChannelState describes the hub's event stream.
type ChannelState int

const (
	// Disconnected: no stream is open.
	Disconnected ChannelState = iota
	// Connecting: OnEvent has been issued and has not returned yet.
	Connecting
	// AwaitingHeartbeat: the stream is open, no keep-alive seen on it yet.
	AwaitingHeartbeat
	// Connected: at least one keep-alive arrived within the timeout.
	Connected
)

func (s ChannelState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case AwaitingHeartbeat:
		return "awaiting_heartbeat"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("ChannelState(%d)", int(s))
	}
}

// channel owns the single OnEvent stream of a hub and its heartbeat timer.
type channel struct {
	h *Hub

	// openMu serializes stream opens and watchdog reconnects.
	openMu sync.Mutex

	mu       sync.Mutex
	state    ChannelState
	gen      uint64 // bumped whenever the current stream is abandoned
	cancel   context.CancelFunc
	timer    *clock.Timer
	timerSeq uint64
	closed   bool
	opened   bool
}

func newChannel(h *Hub) *channel {
	c := &channel{h: h}
	h.metrics.state.Set(float64(Disconnected))
	return c
}

// State returns the current channel state.
func (c *channel) State() ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *channel) setStateLocked(s ChannelState) {
	if c.state == s {
		return
	}
	c.state = s
	c.h.metrics.state.Set(float64(s))
}

// ensureOpen opens the stream unless one is already open or opening.
func (c *channel) ensureOpen(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.openMu.Lock()
	defer c.openMu.Unlock()

	c.mu.Lock()
	closed, state := c.closed, c.state
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if state != Disconnected {
		return nil
	}
	return c.open()
}

// open issues OnEvent and starts the receive loop. Callers hold openMu.
func (c *channel) open() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.gen++
	g := c.gen
	c.setStateLocked(Connecting)
	ctx, cancel := context.WithCancel(c.h.ctx)
	c.cancel = cancel
	c.mu.Unlock()

	stream, err := c.h.client.OnEvent(ctx, c.h.clientID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		cancel()
		if c.gen == g {
			c.cancel = nil
			c.setStateLocked(Disconnected)
		}
		c.h.metrics.rpcErrors.WithLabelValues("on_event").Inc()
		return fmt.Errorf("hub: open event stream: %w", err)
	}
	if c.closed || c.gen != g {
		cancel()
		return ErrClosed
	}
	c.opened = true
	c.setStateLocked(AwaitingHeartbeat)
	c.armLocked()
	c.h.wg.Add(1)
	go c.recv(ctx, g, stream)
	c.h.logger.Debug("event stream opened")
	return nil
}

func (c *channel) current(g uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.gen == g
}

func (c *channel) recv(ctx context.Context, g uint64, stream eventrpc.FrameStream) {
	defer c.h.wg.Done()
	for {
		f, err := stream.Recv()
		if err != nil {
			if ctx.Err() == nil && c.current(g) {
				c.h.logger.Warn("event stream ended", log.Err(err))
			}
			return
		}
		if !c.current(g) {
			return
		}
		if f.KeepAlive {
			c.keepAlive(g)
			c.h.metrics.frames.WithLabelValues("keepalive").Inc()
			continue
		}
		c.h.metrics.frames.WithLabelValues("event").Inc()
		c.h.callbacks.Add(1)
		c.h.Dispatch(f.Name, decodePayload(f.Data))
		c.h.callbacks.Add(-1)
	}
}

func (c *channel) keepAlive(g uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.gen != g {
		return
	}
	c.setStateLocked(Connected)
	c.armLocked()
}

// armLocked restarts the heartbeat timer.
func (c *channel) armLocked() {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timerSeq++
	seq := c.timerSeq
	c.timer = c.h.clock.AfterFunc(c.h.opts.HeartbeatTimeout, func() { c.expire(seq) })
}

func (c *channel) expire(seq uint64) {
	c.mu.Lock()
	if c.closed || seq != c.timerSeq {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
	c.setStateLocked(Disconnected)
	c.h.wg.Add(1)
	c.mu.Unlock()

	c.h.metrics.reconnects.Inc()
	c.h.logger.Warn("heartbeat timeout, reconnecting", log.Duration("timeout", c.h.opts.HeartbeatTimeout))
	c.reconnect()
}

// reconnect reopens the stream and re-registers remote interest. A failed
// open re-arms the timer so the next attempt follows one timeout later.
func (c *channel) reconnect() {
	defer c.h.wg.Done()
	c.openMu.Lock()
	defer c.openMu.Unlock()

	c.mu.Lock()
	closed, state := c.closed, c.state
	c.mu.Unlock()
	if closed {
		return
	}
	if state == Disconnected {
		if err := c.open(); err != nil {
			c.mu.Lock()
			if !c.closed {
				c.armLocked()
			}
			c.mu.Unlock()
			c.h.logger.Warn("reconnect failed", log.Err(err))
			c.h.notifyReconnect(err)
			return
		}
	}

	ctx, cancel := c.h.rpcContext()
	defer cancel()
	err := c.h.resubscribeAll(ctx)
	if err != nil {
		c.h.logger.Warn("resubscribe failed", log.Err(err))
	}
	c.h.notifyReconnect(err)
}

// close stops the timer and cancels the stream. It reports whether a stream
// was ever established.
func (c *channel) close() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return c.opened
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.timerSeq++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
	c.setStateLocked(Disconnected)
	return c.opened
}
