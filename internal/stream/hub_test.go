package stream

import (
	"errors"
	"testing"
	"time"

	"backend-groupride/internal/group"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func nextEvent(t *testing.T, hub *Hub) group.Event {
	t.Helper()
	select {
	case ev, ok := <-hub.Events():
		if !ok {
			t.Fatalf("events closed")
		}
		return ev
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("timeout waiting for event")
	}
	return group.Event{}
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub("session-1", nil)
	peer, err := hub.Register("r1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	defer hub.Unregister(peer)

	if err := hub.Broadcast([]byte("hello")); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	select {
	case msg := <-peer.Send:
		if string(msg) != "hello" {
			t.Fatalf("unexpected message")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("timeout waiting for message")
	}
}

func TestHubLifecycleEvents(t *testing.T) {
	hub := NewHub("session-1", nil)
	peer, _ := hub.Register("r1")

	if ev := nextEvent(t, hub); ev.Kind != group.EventConnected || ev.Peer != "r1" {
		t.Fatalf("unexpected event %+v", ev)
	}

	hub.Deliver(peer, []byte("frame"))
	if ev := nextEvent(t, hub); ev.Kind != group.EventMessage || string(ev.Data) != "frame" {
		t.Fatalf("unexpected event %+v", ev)
	}

	hub.Unregister(peer)
	hub.Unregister(peer)
	if ev := nextEvent(t, hub); ev.Kind != group.EventDisconnected {
		t.Fatalf("unexpected event %+v", ev)
	}
	if _, ok := <-peer.Send; ok {
		t.Fatalf("expected send queue closed")
	}
}

func TestHubSend(t *testing.T) {
	hub := NewHub("session-1", nil)
	peer, _ := hub.Register("r1")
	defer hub.Unregister(peer)

	if err := hub.Send("r1", []byte("direct")); err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg := <-peer.Send; string(msg) != "direct" {
		t.Fatalf("unexpected message %q", msg)
	}
	if err := hub.Send("nobody", []byte("x")); !errors.Is(err, ErrUnknownPeer) {
		t.Fatalf("expected ErrUnknownPeer, got %v", err)
	}

	for i := 0; i < sendBuffer; i++ {
		_ = hub.Send("r1", []byte("fill"))
	}
	if err := hub.Send("r1", []byte("overflow")); !errors.Is(err, ErrBacklogged) {
		t.Fatalf("expected ErrBacklogged, got %v", err)
	}
}

func TestHubReplaceKeepsNewPeer(t *testing.T) {
	hub := NewHub("session-1", nil)
	first, _ := hub.Register("r1")
	second, _ := hub.Register("r1")
	nextEvent(t, hub)
	nextEvent(t, hub)

	select {
	case <-first.Kicked():
	default:
		t.Fatalf("replaced peer was not kicked")
	}

	hub.Unregister(first)
	select {
	case ev := <-hub.Events():
		t.Fatalf("stale connection emitted %+v", ev)
	case <-time.After(20 * time.Millisecond):
	}
	if hub.PeerCount() != 1 {
		t.Fatalf("expected the new peer to stay registered")
	}
	hub.Unregister(second)
}

func TestHubDisconnectAndClose(t *testing.T) {
	hub := NewHub("session-1", nil)
	peer, _ := hub.Register("r1")

	if err := hub.Disconnect("r1"); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	select {
	case <-peer.Kicked():
	default:
		t.Fatalf("peer not kicked")
	}
	if err := hub.Disconnect("ghost"); !errors.Is(err, ErrUnknownPeer) {
		t.Fatalf("expected ErrUnknownPeer, got %v", err)
	}

	if err := hub.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	_ = hub.Close()
	hub.Unregister(peer)

	// drain the connected event; then the channel must be closed
	for range hub.Events() {
	}
	if _, err := hub.Register("r2"); !errors.Is(err, ErrHubClosed) {
		t.Fatalf("expected ErrHubClosed, got %v", err)
	}
}

func TestHubHelpers(t *testing.T) {
	if redisChannel("abc") != "group:abc:broadcast" {
		t.Fatalf("unexpected channel %q", redisChannel("abc"))
	}
}

func TestHubRedisRelayBetweenInstances(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	a := NewHub("session-redis", client)
	b := NewHub("session-redis", client)
	defer a.Close()
	defer b.Close()

	pa, _ := a.Register("on-a")
	pb, _ := b.Register("on-b")

	if err := a.Broadcast([]byte("ping")); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	select {
	case msg := <-pa.Send:
		if string(msg) != "ping" {
			t.Fatalf("unexpected local message")
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("timeout waiting for local broadcast")
	}

	select {
	case msg := <-pb.Send:
		if string(msg) != "ping" {
			t.Fatalf("unexpected relayed message")
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for relayed broadcast")
	}

	select {
	case msg := <-pa.Send:
		t.Fatalf("own relay frame delivered twice: %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubRedisPublishError(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	hub := NewHub("session-bad", client)
	defer hub.Close()
	server.Close()

	peer, _ := hub.Register("r1")
	defer hub.Unregister(peer)

	if err := hub.Broadcast([]byte("ping")); err != nil {
		t.Fatalf("publish failure should only be logged: %v", err)
	}
	if msg := <-peer.Send; string(msg) != "ping" {
		t.Fatalf("local delivery lost")
	}
}

func TestHubBroadcastOnlyReachesMembers(t *testing.T) {
	hub := NewHub("session-1", nil)
	member, _ := hub.Register("r1")
	stranger, _ := hub.Register("r9")
	defer hub.Unregister(member)
	defer hub.Unregister(stranger)

	hub.SetMembers([]group.PeerID{"host", "r1"})
	if err := hub.Broadcast([]byte("state")); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	select {
	case msg := <-member.Send:
		if string(msg) != "state" {
			t.Fatalf("unexpected message %q", msg)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("member did not receive the broadcast")
	}
	select {
	case msg := <-stranger.Send:
		t.Fatalf("non-member received %q", msg)
	default:
	}

	// direct sends still reach any connected peer, e.g. a join refusal
	if err := hub.Send("r9", []byte("refused")); err != nil {
		t.Fatalf("send to non-member: %v", err)
	}
}

func TestHubDisconnectMarksFlush(t *testing.T) {
	hub := NewHub("session-1", nil)
	kicked, _ := hub.Register("r1")
	dropped, _ := hub.Register("r2")

	if err := hub.Disconnect("r1"); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	_ = hub.Close()

	for _, p := range []*Peer{kicked, dropped} {
		select {
		case <-p.Kicked():
		default:
			t.Fatalf("%s not kicked", p.ID)
		}
	}
	if !kicked.Flush() {
		t.Fatalf("disconnect should flush queued frames")
	}
	if dropped.Flush() {
		t.Fatalf("close should drop queued frames")
	}
}
