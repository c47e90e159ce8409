package hub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/teslashibe/go-arnav/pkg/navigation"
	"github.com/teslashibe/go-arnav/pkg/protocol"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := New("test")
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	return h, cancel
}

func testClient(h *Hub, buffer int) *Client {
	c := &Client{hub: h, send: make(chan Message, buffer)}
	if !h.join(c) {
		return nil
	}
	return c
}

func waitClients(h *Hub, n int) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if h.ClientCount() == n {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func receive(t *testing.T, c *Client) Update {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		if !ok {
			t.Fatal("client channel closed")
		}
		var u Update
		if err := json.Unmarshal(msg.Data, &u); err != nil {
			t.Fatalf("decode update: %v", err)
		}
		return u
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for update")
	}
	return Update{}
}

func TestBroadcastFanOut(t *testing.T) {
	h, cancel := startHub(t)
	defer cancel()

	a := testClient(h, 8)
	b := testClient(h, 8)
	if !waitClients(h, 2) {
		t.Fatalf("ClientCount = %d, want 2", h.ClientCount())
	}

	h.SessionConnected("dev-1")

	for _, c := range []*Client{a, b} {
		u := receive(t, c)
		if u.Type != UpdateSessionConnected || u.Session != "dev-1" {
			t.Errorf("update = %+v", u)
		}
		if u.At.IsZero() {
			t.Error("update should carry a timestamp")
		}
	}
}

func TestPublishEvent(t *testing.T) {
	h, cancel := startHub(t)
	defer cancel()
	c := testClient(h, 8)

	ev := navigation.Event{Kind: navigation.EventWaypointReached, Generation: 2, Index: 4, At: time.Now()}
	if err := h.PublishEvent("dev-2", ev); err != nil {
		t.Fatalf("PublishEvent: %v", err)
	}

	u := receive(t, c)
	if u.Type != UpdateEvent || u.Event == nil {
		t.Fatalf("update = %+v", u)
	}
	if u.Event.Type != protocol.TypeWaypointReached {
		t.Errorf("event type = %s, want waypoint_reached", u.Event.Type)
	}
	var data protocol.WaypointReachedData
	if err := u.Event.ParseData(&data); err != nil {
		t.Fatalf("ParseData: %v", err)
	}
	if data.Index != 4 || data.Generation != 2 {
		t.Errorf("data = %+v", data)
	}

	if err := h.PublishEvent("dev-2", navigation.Event{Kind: "bogus"}); err == nil {
		t.Error("unknown event kinds should fail to encode")
	}
}

func TestUnregister(t *testing.T) {
	h, cancel := startHub(t)
	defer cancel()
	c := testClient(h, 8)

	h.leave(c)
	if _, ok := <-c.send; ok {
		t.Error("send channel should be closed after leave")
	}
	if h.ClientCount() != 0 {
		t.Errorf("ClientCount = %d, want 0", h.ClientCount())
	}
}

func TestSlowClientDropped(t *testing.T) {
	h, cancel := startHub(t)
	defer cancel()
	slow := testClient(h, 0)

	h.SessionConnected("dev-3")

	if !waitClients(h, 0) {
		t.Fatal("slow client should be dropped")
	}
	if _, ok := <-slow.send; ok {
		t.Error("slow client's channel should be closed")
	}
}

func TestStop(t *testing.T) {
	h, cancel := startHub(t)
	c := testClient(h, 8)
	if !h.IsRunning() {
		t.Error("hub should be running")
	}

	cancel()
	<-h.done

	if h.IsRunning() {
		t.Error("hub should stop when its context ends")
	}
	if _, ok := <-c.send; ok {
		t.Error("clients should be closed when the hub stops")
	}
	if testClient(h, 1) != nil {
		t.Error("join should fail after the hub stopped")
	}
	h.leave(c) // must not block
}
