package hub

import (
	"context"
	"runtime"
	"testing"
	"time"
)

//go:noinline
func subscribeOwned(t *testing.T, h *Hub, name string) string {
	t.Helper()
	o := &owner{name: "transient"}
	sub, err := h.Subscribe(context.Background(), name, func(string) {}, Remote(), WithRef(o))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	return sub.ID()
}

func TestSweepRemovesCollectedListeners(t *testing.T) {
	th := newTestHub(t, Options{SweepInterval: 5 * time.Second})
	ctx := context.Background()

	kept := &owner{name: "kept"}
	if _, err := th.Subscribe(ctx, "kept", func(string) {}, Remote(), WithRef(kept)); err != nil {
		t.Fatal(err)
	}
	subscribeOwned(t, th.Hub, "gone")
	if th.Len("gone") != 1 {
		t.Fatalf("len %d", th.Len("gone"))
	}

	runtime.GC()
	runtime.GC()
	th.clock.Add(5 * time.Second)
	eventually(t, "collected listener removed", func() bool { return th.Len("gone") == 0 })
	eventually(t, "interest revoked", func() bool { return th.client.count("unsubscribe:gone") == 1 })

	if th.Len("kept") != 1 {
		t.Fatalf("live listener removed")
	}
	if th.client.count("unsubscribe:kept") != 0 {
		t.Fatalf("live listener revoked")
	}
	runtime.KeepAlive(kept)
}
