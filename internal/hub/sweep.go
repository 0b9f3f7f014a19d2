package hub

import "github.com/globulario/services-sub005/pkg/log"

func (h *Hub) sweepLoop() {
	defer h.wg.Done()
	for {
		select {
		case <-h.stop:
			return
		case <-h.sweep.C:
			h.sweepRefs()
		}
	}
}

// sweepRefs unsubscribes every subscription whose ref has been collected.
func (h *Hub) sweepRefs() {
	h.mu.Lock()
	var dead []*Subscription
	for _, s := range h.refs {
		if !s.ref.alive() {
			dead = append(dead, s)
		}
	}
	h.mu.Unlock()

	for _, s := range dead {
		ctx, cancel := h.rpcContext()
		err := h.Unsubscribe(ctx, s.name, s.id)
		cancel()
		h.logger.Debug("released collected listener",
			log.Str("name", s.name),
			log.Str("subscription_id", s.id),
			log.Err(err))
	}
}
