package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"sync/atomic"

	"backend-groupride/internal/group"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	sendBuffer   = 64
	eventsBuffer = 256
)

var (
	ErrUnknownPeer = errors.New("peer not connected")
	ErrBacklogged  = errors.New("peer send queue full")
	ErrHubClosed   = errors.New("hub closed")
)

// Hub is the host side of the group transport. Each websocket peer gets a
// buffered send queue; enqueueing never blocks. Connection lifecycle and
// inbound frames surface on one events channel.
type Hub struct {
	redis      *redis.Client
	sessionID  string
	instanceID string

	mu     sync.RWMutex
	peers  map[group.PeerID]*Peer
	closed bool
	// members limits Broadcast once a coordinator has admitted anyone; nil
	// means every connected peer.
	members map[group.PeerID]struct{}

	evMu   sync.RWMutex
	events chan group.Event
	done   chan struct{}

	stopRelay context.CancelFunc
}

type Peer struct {
	ID   group.PeerID
	Send chan []byte

	kick     chan struct{}
	kickOnce sync.Once
	flush    atomic.Bool
	gone     bool
}

// Kicked is closed when the connection should go away.
func (p *Peer) Kicked() <-chan struct{} {
	return p.kick
}

// Flush reports whether frames queued before the kick must still be written.
// Disconnect flushes so a final answer reaches the peer; Close and
// replacement drop.
func (p *Peer) Flush() bool {
	return p.flush.Load()
}

func (p *Peer) stop() {
	p.kickOnce.Do(func() { close(p.kick) })
}

type relayFrame struct {
	Origin string `json:"origin"`
	Data   []byte `json:"data"`
}

// NewHub creates the hub for one group session. With a Redis client,
// broadcasts are mirrored to other hub instances serving the same session.
func NewHub(sessionID string, redisClient *redis.Client) *Hub {
	h := &Hub{
		redis:      redisClient,
		sessionID:  sessionID,
		instanceID: uuid.NewString(),
		peers:      map[group.PeerID]*Peer{},
		events:     make(chan group.Event, eventsBuffer),
		done:       make(chan struct{}),
		stopRelay:  func() {},
	}

	if redisClient != nil {
		ctx, cancel := context.WithCancel(context.Background())
		h.stopRelay = cancel
		pubsub := redisClient.Subscribe(ctx, redisChannel(sessionID))
		if _, err := pubsub.Receive(ctx); err != nil {
			log.Printf("redis subscribe error: %v", err)
		}
		go h.subscribeRedis(ctx, pubsub)
	}
	return h
}

// Register adds a peer. A second connection with the same id replaces the first.
func (h *Hub) Register(id group.PeerID) (*Peer, error) {
	p := &Peer{ID: id, Send: make(chan []byte, sendBuffer), kick: make(chan struct{})}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	if old, ok := h.peers[id]; ok {
		old.stop()
	}
	h.peers[id] = p
	h.mu.Unlock()

	h.emit(group.Event{Kind: group.EventConnected, Peer: id})
	return p, nil
}

// Unregister removes p and closes its send queue. It is safe to call twice.
func (h *Hub) Unregister(p *Peer) {
	h.mu.Lock()
	if p.gone {
		h.mu.Unlock()
		return
	}
	p.gone = true
	current := h.peers[p.ID] == p
	if current {
		delete(h.peers, p.ID)
	}
	close(p.Send)
	h.mu.Unlock()

	p.stop()
	if current {
		h.emit(group.Event{Kind: group.EventDisconnected, Peer: p.ID})
	}
}

// Deliver hands an inbound frame from p to the event stream.
func (h *Hub) Deliver(p *Peer, data []byte) {
	h.emit(group.Event{Kind: group.EventMessage, Peer: p.ID, Data: data})
}

func (h *Hub) emit(ev group.Event) {
	h.evMu.RLock()
	defer h.evMu.RUnlock()
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.events <- ev:
	case <-h.done:
	}
}

func (h *Hub) Events() <-chan group.Event {
	return h.events
}

func (h *Hub) Send(id group.PeerID, data []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	p, ok := h.peers[id]
	if !ok {
		return ErrUnknownPeer
	}
	select {
	case p.Send <- data:
		return nil
	default:
		return ErrBacklogged
	}
}

func (h *Hub) Broadcast(data []byte) error {
	h.fanOut(data)

	if h.redis != nil {
		frame, err := json.Marshal(relayFrame{Origin: h.instanceID, Data: data})
		if err != nil {
			return err
		}
		if err := h.redis.Publish(context.Background(), redisChannel(h.sessionID), frame).Err(); err != nil {
			log.Printf("redis publish error: %v", err)
		}
	}
	return nil
}

func (h *Hub) fanOut(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, p := range h.peers {
		if h.members != nil {
			if _, ok := h.members[id]; !ok {
				continue
			}
		}
		select {
		case p.Send <- data:
		default:
		}
	}
}

// Disconnect asks the peer's connection to close after writing what is
// already queued for it. The Disconnected event follows once the connection
// is gone.
func (h *Hub) Disconnect(id group.PeerID) error {
	h.mu.RLock()
	p, ok := h.peers[id]
	h.mu.RUnlock()
	if !ok {
		return ErrUnknownPeer
	}
	p.flush.Store(true)
	p.stop()
	return nil
}

// SetMembers restricts Broadcast to the given peers.
func (h *Hub) SetMembers(members []group.PeerID) {
	set := make(map[group.PeerID]struct{}, len(members))
	for _, id := range members {
		set[id] = struct{}{}
	}
	h.mu.Lock()
	h.members = set
	h.mu.Unlock()
}

// Close drops every peer without flushing queued frames and closes Events.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	for _, p := range h.peers {
		p.stop()
	}
	h.mu.Unlock()

	close(h.done)
	h.evMu.Lock()
	close(h.events)
	h.evMu.Unlock()

	h.stopRelay()
	return nil
}

func (h *Hub) PeerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

func (h *Hub) subscribeRedis(ctx context.Context, pubsub *redis.PubSub) {
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var frame relayFrame
			if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
				log.Printf("redis relay: bad frame: %v", err)
				continue
			}
			if frame.Origin == h.instanceID {
				continue
			}
			h.fanOut(frame.Data)
		}
	}
}

func redisChannel(sessionID string) string {
	return "group:" + sessionID + ":broadcast"
}

var (
	_ group.Channel      = (*Hub)(nil)
	_ group.MemberFilter = (*Hub)(nil)
)
