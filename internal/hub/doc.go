// Package hub implements the client-side event hub: a publish/subscribe bus
// whose remote subscriptions are multiplexed over a single OnEvent stream to
// event.EventService.
//
// Local subscriptions never touch the network. The first remote subscription
// for a name registers interest with the service under the hub's client id;
// the last subscription for a name revokes it. Frames from the stream are
// dispatched synchronously, in arrival order, to every listener of the event
// name in the order the listeners subscribed.
//
// The stream is watched by a heartbeat timer. If no keep-alive frame arrives
// within Options.HeartbeatTimeout of the previous one (or of the stream being
// established), the hub cancels the stream, opens a new one with the same
// client id and re-registers interest for every name that still has a remote
// listener. A failed re-open is retried after another timeout.
//
// Subscriptions may be tied to a caller object with WithRef. The hub keeps
// only a weak pointer to it; once the object is garbage collected the
// subscription is removed on the next sweep (Options.SweepInterval).
//
// Usage:
//
//	h := hub.New(client, hub.Options{Logger: logger})
//	defer h.Close(ctx)
//
//	sub, err := h.Subscribe(ctx, "user.created", func(data string) {
//	    fmt.Println(data)
//	}, hub.Remote())
//	if err != nil { /* registration failed */ }
//	defer sub.Unsubscribe(ctx)
//
//	_ = h.Publish(ctx, "user.created", `{"id":"42"}`, false)
package hub
