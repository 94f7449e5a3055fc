package group

import (
	"slices"
	"sync"
	"testing"
)

// recordingChannel captures everything the coordinator sends.
type recordingChannel struct {
	mu           sync.Mutex
	events       chan Event
	sent         map[PeerID][][]byte
	broadcasts   [][]byte
	disconnected []PeerID
	members      []PeerID
	closed       bool
}

func newRecordingChannel() *recordingChannel {
	return &recordingChannel{events: make(chan Event, 64), sent: map[PeerID][][]byte{}}
}

func (r *recordingChannel) Send(peer PeerID, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent[peer] = append(r.sent[peer], data)
	return nil
}

func (r *recordingChannel) Broadcast(data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcasts = append(r.broadcasts, data)
	return nil
}

func (r *recordingChannel) Events() <-chan Event { return r.events }

func (r *recordingChannel) Disconnect(peer PeerID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnected = append(r.disconnected, peer)
	return nil
}

func (r *recordingChannel) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		close(r.events)
	}
	return nil
}

func (r *recordingChannel) SetMembers(members []PeerID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members = members
}

func (r *recordingChannel) memberList() []PeerID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.members)
}

func (r *recordingChannel) lastSent(t *testing.T, peer PeerID) Envelope {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	frames := r.sent[peer]
	if len(frames) == 0 {
		t.Fatalf("nothing sent to %s", peer)
	}
	env, err := decode(frames[len(frames)-1])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return env
}

func (r *recordingChannel) broadcastFrames() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.broadcasts))
	copy(out, r.broadcasts)
	return out
}

// memNet is an in-process star network: one host end, many rider ends.
type memNet struct {
	mu     sync.Mutex
	host   *memEnd
	riders map[PeerID]*memEnd
}

type memEnd struct {
	net    *memNet
	self   PeerID
	isHost bool
	events chan Event
	closed bool
}

func newMemNet(hostID PeerID) *memNet {
	n := &memNet{riders: map[PeerID]*memEnd{}}
	n.host = &memEnd{net: n, self: hostID, isHost: true, events: make(chan Event, 64)}
	return n
}

func (n *memNet) connect(peer PeerID) *memEnd {
	n.mu.Lock()
	defer n.mu.Unlock()
	end := &memEnd{net: n, self: peer, events: make(chan Event, 64)}
	n.riders[peer] = end
	n.host.pushLocked(Event{Kind: EventConnected, Peer: peer})
	return end
}

func (e *memEnd) pushLocked(ev Event) {
	if e.closed {
		return
	}
	select {
	case e.events <- ev:
	default:
	}
}

func (e *memEnd) closeLocked() {
	if !e.closed {
		e.closed = true
		close(e.events)
	}
}

func (e *memEnd) Send(peer PeerID, data []byte) error {
	e.net.mu.Lock()
	defer e.net.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.isHost {
		if r, ok := e.net.riders[peer]; ok {
			r.pushLocked(Event{Kind: EventMessage, Peer: e.self, Data: data})
		}
		return nil
	}
	e.net.host.pushLocked(Event{Kind: EventMessage, Peer: e.self, Data: data})
	return nil
}

func (e *memEnd) Broadcast(data []byte) error {
	e.net.mu.Lock()
	defer e.net.mu.Unlock()
	if !e.isHost {
		e.net.host.pushLocked(Event{Kind: EventMessage, Peer: e.self, Data: data})
		return nil
	}
	for _, r := range e.net.riders {
		r.pushLocked(Event{Kind: EventMessage, Peer: e.self, Data: data})
	}
	return nil
}

func (e *memEnd) Events() <-chan Event { return e.events }

func (e *memEnd) Disconnect(peer PeerID) error {
	e.net.mu.Lock()
	defer e.net.mu.Unlock()
	r, ok := e.net.riders[peer]
	if !ok {
		return nil
	}
	delete(e.net.riders, peer)
	r.pushLocked(Event{Kind: EventDisconnected, Peer: e.net.host.self})
	r.closeLocked()
	e.net.host.pushLocked(Event{Kind: EventDisconnected, Peer: peer})
	return nil
}

func (e *memEnd) Close() error {
	e.net.mu.Lock()
	defer e.net.mu.Unlock()
	if e.isHost {
		for id, r := range e.net.riders {
			r.pushLocked(Event{Kind: EventDisconnected, Peer: e.self})
			r.closeLocked()
			delete(e.net.riders, id)
		}
		e.closeLocked()
		return nil
	}
	if _, ok := e.net.riders[e.self]; ok {
		delete(e.net.riders, e.self)
		e.net.host.pushLocked(Event{Kind: EventDisconnected, Peer: e.self})
	}
	e.closeLocked()
	return nil
}

var (
	_ Channel = (*recordingChannel)(nil)
	_ Channel = (*memEnd)(nil)
)
