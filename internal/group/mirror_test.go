package group

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

type groupFixture struct {
	net   *memNet
	coord *Coordinator
}

func newGroupFixture(t *testing.T) *groupFixture {
	t.Helper()
	net := newMemNet(hostID)
	coord := NewCoordinator(CoordinatorConfig{HostID: hostID}, net.host, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go coord.Run(ctx)
	return &groupFixture{net: net, coord: coord}
}

func (f *groupFixture) rider(t *testing.T, id PeerID) (*Mirror, error) {
	t.Helper()
	m := NewMirror(MirrorConfig{Self: id, HostID: hostID, JoinTimeout: time.Second}, f.net.connect(id))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go m.Run(ctx)
	return m, m.Join(ctx)
}

func TestMirrorJoinAndFollow(t *testing.T) {
	f := newGroupFixture(t)
	_ = f.coord.Play("intro")

	m, err := f.rider(t, "r1")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if m.Status() != StatusConnected {
		t.Fatalf("status = %s", m.Status())
	}
	if m.State().Playback.TrackID != "intro" {
		t.Fatalf("snapshot missing playback: %+v", m.State())
	}

	_ = f.coord.SetMute(true, true)
	_ = f.coord.Skip("next")

	waitFor(t, func() bool { return cmp.Equal(f.coord.State(), m.State()) })
}

func TestMirrorSongRequestRoundTrip(t *testing.T) {
	f := newGroupFixture(t)
	m, err := f.rider(t, "r1")
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	if err := m.SubmitSongRequest("Hill Climb", "The Pedals"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitFor(t, func() bool { return len(m.State().SongQueue) == 1 })

	id := m.State().SongQueue[0].ID
	if _, err := f.coord.Approve(id); err != nil {
		t.Fatalf("approve: %v", err)
	}
	waitFor(t, func() bool {
		d, ok := m.Decision(id)
		return ok && d.Status == RequestApproved && len(m.State().SongQueue) == 0
	})
}

func TestMirrorGroupFull(t *testing.T) {
	f := newGroupFixture(t)
	for _, id := range []PeerID{"r1", "r2", "r3"} {
		if _, err := f.rider(t, id); err != nil {
			t.Fatalf("join %s: %v", id, err)
		}
	}

	m, err := f.rider(t, "r4")
	if !errors.Is(err, ErrGroupFull) {
		t.Fatalf("expected ErrGroupFull, got %v", err)
	}
	if m.Status() != StatusRejected {
		t.Fatalf("status = %s, want rejected", m.Status())
	}
}

func TestMirrorJoinTimeout(t *testing.T) {
	ch := newRecordingChannel()
	m := NewMirror(MirrorConfig{Self: "r1", HostID: hostID, JoinTimeout: 20 * time.Millisecond}, ch)

	err := m.Join(context.Background())
	if !errors.Is(err, ErrJoinTimeout) {
		t.Fatalf("expected ErrJoinTimeout, got %v", err)
	}
	if m.Status() != StatusIdle {
		t.Fatalf("status = %s, want idle", m.Status())
	}
	if env := ch.lastSent(t, hostID); env.Type != MsgJoinRequest {
		t.Fatalf("expected join request to host, got %s", env.Type)
	}
}

func TestMirrorHostLoss(t *testing.T) {
	f := newGroupFixture(t)
	m, err := f.rider(t, "r1")
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	_ = f.coord.Close()
	waitFor(t, func() bool { return m.Status() == StatusDisconnected })

	if err := m.SubmitSongRequest("x", ""); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestMirrorHostLossDuringJoin(t *testing.T) {
	ch := newRecordingChannel()
	m := NewMirror(MirrorConfig{Self: "r1", HostID: hostID, JoinTimeout: 5 * time.Second}, ch)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	errCh := make(chan error, 1)
	start := time.Now()
	go func() { errCh <- m.Join(ctx) }()

	waitFor(t, func() bool {
		ch.mu.Lock()
		defer ch.mu.Unlock()
		return len(ch.sent[hostID]) == 1
	})
	ch.events <- Event{Kind: EventDisconnected, Peer: hostID}

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrNotConnected) {
			t.Fatalf("expected ErrNotConnected, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("join still waiting after the host went away")
	}
	if time.Since(start) >= 5*time.Second {
		t.Fatalf("join waited out its timeout")
	}
	if m.Status() != StatusDisconnected {
		t.Fatalf("status = %s, want disconnected", m.Status())
	}
}

func TestMirrorLeave(t *testing.T) {
	f := newGroupFixture(t)
	m, err := f.rider(t, "r1")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	waitFor(t, func() bool { return f.coord.State().HasMember("r1") })

	if err := m.Leave(); err != nil {
		t.Fatalf("leave: %v", err)
	}
	waitFor(t, func() bool { return !f.coord.State().HasMember("r1") })
	if m.Status() != StatusIdle {
		t.Fatalf("status = %s, want idle", m.Status())
	}
}

// The host produces a run of broadcasts; the rider sees them out of order and
// with an older one redelivered. Once the newest is applied it matches the host.
func TestMirrorEventualConsistency(t *testing.T) {
	c, ch := newTestCoordinator(CoordinatorConfig{})
	join(t, c, "r1")

	m := NewMirror(MirrorConfig{Self: "r1", HostID: hostID}, newRecordingChannel())
	m.handle(Event{Kind: EventMessage, Peer: hostID, Data: ch.sent["r1"][0]})
	if m.Status() != StatusConnected {
		t.Fatalf("status = %s", m.Status())
	}

	_ = c.Play("a")
	_ = c.SetMute(true, false)
	req, _ := c.SubmitSongRequest("Song", "")
	_ = c.Seek(12)
	_, _ = c.Approve(req.ID)

	frames := ch.broadcastFrames()
	n := len(frames)
	order := []int{n - 3, n - 1, n - 4, n - 2, n - 1, 0}
	for _, i := range order {
		m.handle(Event{Kind: EventMessage, Peer: hostID, Data: frames[i]})
	}

	if diff := cmp.Diff(c.State(), m.State()); diff != "" {
		t.Fatalf("mirror diverged from host (-host +mirror):\n%s", diff)
	}
}

func TestMirrorDropsStaleAndEarlyBroadcasts(t *testing.T) {
	c, ch := newTestCoordinator(CoordinatorConfig{})
	_ = c.Play("before-join")

	m := NewMirror(MirrorConfig{Self: "r1", HostID: hostID}, newRecordingChannel())
	early := ch.broadcastFrames()[0]
	m.handle(Event{Kind: EventMessage, Peer: hostID, Data: early})
	if m.State().Playback.TrackID != "" {
		t.Fatalf("broadcast applied before join")
	}

	join(t, c, "r1")
	m.handle(Event{Kind: EventMessage, Peer: hostID, Data: ch.sent["r1"][0]})
	m.handle(Event{Kind: EventMessage, Peer: hostID, Data: early})
	if m.State().Seq != c.State().Seq {
		t.Fatalf("stale broadcast moved the mirror: %d vs %d", m.State().Seq, c.State().Seq)
	}
}
