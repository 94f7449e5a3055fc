package group

import (
	"context"
	"log"
	"slices"
	"strings"
	"sync"

	"backend-groupride/internal/shared/clock"

	"github.com/google/uuid"
)

const (
	DefaultCapacity     = 4
	DefaultHistoryLimit = 50
)

type CoordinatorConfig struct {
	HostID PeerID
	// Capacity counts the host.
	Capacity     int
	HistoryLimit int
}

// Coordinator is the host's authoritative copy of the group session. Inbound
// messages and host actions are applied one at a time under mu; every change
// is broadcast with the next sequence number.
type Coordinator struct {
	mu      sync.Mutex
	cfg     CoordinatorConfig
	ch      Channel
	clock   clock.Clock
	state   State
	history []SongRequest
	subs    map[int]chan State
	nextSub int
	closed  bool
}

func NewCoordinator(cfg CoordinatorConfig, ch Channel, clk clock.Clock) *Coordinator {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if clk == nil {
		clk = clock.Real{}
	}
	c := &Coordinator{
		cfg:   cfg,
		ch:    ch,
		clock: clk,
		state: State{
			HostID:    cfg.HostID,
			Members:   []PeerID{cfg.HostID},
			SongQueue: []SongRequest{},
		},
		subs: map[int]chan State{},
	}
	c.syncMembersLocked()
	return c
}

// Run applies channel events until ctx is done or the channel closes.
func (c *Coordinator) Run(ctx context.Context) {
	events := c.ch.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.handle(ev)
		}
	}
}

func (c *Coordinator) handle(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	switch ev.Kind {
	case EventConnected:
		// membership starts with a join request, not with the socket
	case EventDisconnected:
		c.removeMemberLocked(ev.Peer)
	case EventMessage:
		env, err := decode(ev.Data)
		if err != nil {
			log.Printf("group: drop frame from %s: %v", ev.Peer, err)
			return
		}
		c.applyLocked(ev.Peer, env)
	}
}

func (c *Coordinator) applyLocked(from PeerID, env Envelope) {
	switch env.Type {
	case MsgJoinRequest:
		c.joinLocked(from)
	case MsgSongRequestSubmit:
		if !c.state.HasMember(from) {
			log.Printf("group: song request from non-member %s ignored", from)
			return
		}
		req, err := decodePayload[SongRequestSubmit](env)
		if err != nil {
			log.Printf("group: %v", err)
			return
		}
		if _, err := c.submitLocked(from, req.Title, req.Artist); err != nil {
			log.Printf("group: song request from %s: %v", from, err)
		}
	case MsgLeave:
		c.removeMemberLocked(from)
	default:
		log.Printf("group: unexpected %s from %s", env.Type, from)
	}
}

func (c *Coordinator) joinLocked(peer PeerID) {
	if peer == c.cfg.HostID {
		return
	}

	if !c.state.HasMember(peer) {
		if len(c.state.Members) >= c.cfg.Capacity {
			c.sendLocked(peer, MsgJoinResponse, JoinResponse{Accepted: false, Reason: reasonGroupFull})
			if err := c.ch.Disconnect(peer); err != nil {
				log.Printf("group: disconnect %s: %v", peer, err)
			}
			return
		}
		c.state.Members = append(c.state.Members, peer)
		c.syncMembersLocked()
		c.state.Seq++
		c.broadcastLocked(KindMembers)
	}

	// a rejoining member gets the same reconciliation snapshot
	snapshot := c.state.clone()
	c.sendLocked(peer, MsgJoinResponse, JoinResponse{Accepted: true, Snapshot: &snapshot})
}

func (c *Coordinator) removeMemberLocked(peer PeerID) {
	if peer == c.cfg.HostID || !c.state.HasMember(peer) {
		return
	}
	c.state.Members = slices.DeleteFunc(c.state.Members, func(p PeerID) bool { return p == peer })
	c.syncMembersLocked()
	c.state.Seq++
	c.broadcastLocked(KindMembers)
}

func (c *Coordinator) submitLocked(from PeerID, title, artist string) (SongRequest, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return SongRequest{}, ErrEmptyTitle
	}
	req := SongRequest{
		ID:          uuid.NewString(),
		Title:       title,
		Artist:      strings.TrimSpace(artist),
		RequestedBy: from,
		Timestamp:   c.clock.Now(),
		Status:      RequestPending,
	}
	c.state.SongQueue = append(c.state.SongQueue, req)
	c.state.Seq++
	c.broadcastLocked(KindQueue)
	return req, nil
}

func (c *Coordinator) syncMembersLocked() {
	if f, ok := c.ch.(MemberFilter); ok {
		f.SetMembers(slices.Clone(c.state.Members))
	}
}

// broadcastLocked sends the whole state tagged with the changed part. The
// caller has already bumped Seq.
func (c *Coordinator) broadcastLocked(kind StateKind) {
	snapshot := c.state.clone()
	data, err := encode(MsgStateBroadcast, snapshot.Seq, c.cfg.HostID, StateBroadcast{Kind: kind, State: snapshot})
	if err != nil {
		log.Printf("group: %v", err)
		return
	}
	if err := c.ch.Broadcast(data); err != nil {
		log.Printf("group: broadcast %s seq %d: %v", kind, snapshot.Seq, err)
	}
	c.notifyLocked(snapshot)
}

func (c *Coordinator) sendLocked(peer PeerID, t MessageType, payload any) {
	data, err := encode(t, c.state.Seq, c.cfg.HostID, payload)
	if err != nil {
		log.Printf("group: %v", err)
		return
	}
	if err := c.ch.Send(peer, data); err != nil {
		log.Printf("group: send %s to %s: %v", t, peer, err)
	}
}

func (c *Coordinator) notifyLocked(s State) {
	for _, ch := range c.subs {
		select {
		case ch <- s:
		default:
			// replace the oldest pending state so the newest always lands
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}

// mutate runs fn under the lock, then bumps Seq and broadcasts kind.
func (c *Coordinator) mutate(kind StateKind, fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if err := fn(); err != nil {
		return err
	}
	c.state.Seq++
	c.broadcastLocked(kind)
	return nil
}

// Play starts trackID from the beginning, or resumes the current track when
// trackID is empty or unchanged.
func (c *Coordinator) Play(trackID string) error {
	return c.mutate(KindPlayback, func() error {
		if trackID != "" && trackID != c.state.Playback.TrackID {
			c.state.Playback.TrackID = trackID
			c.state.Playback.PositionSeconds = 0
		}
		c.state.Playback.IsPlaying = true
		return nil
	})
}

func (c *Coordinator) Pause() error {
	return c.mutate(KindPlayback, func() error {
		c.state.Playback.IsPlaying = false
		return nil
	})
}

func (c *Coordinator) Skip(nextTrackID string) error {
	return c.mutate(KindPlayback, func() error {
		c.state.Playback.TrackID = nextTrackID
		c.state.Playback.PositionSeconds = 0
		return nil
	})
}

func (c *Coordinator) Seek(seconds float64) error {
	return c.mutate(KindPlayback, func() error {
		if seconds < 0 {
			return ErrInvalidSeek
		}
		c.state.Playback.PositionSeconds = seconds
		return nil
	})
}

func (c *Coordinator) SetMute(music, voice bool) error {
	return c.mutate(KindMute, func() error {
		c.state.Mute = Mute{Music: music, Voice: voice}
		return nil
	})
}

// SubmitSongRequest queues a request on behalf of the host.
func (c *Coordinator) SubmitSongRequest(title, artist string) (SongRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return SongRequest{}, ErrClosed
	}
	return c.submitLocked(c.cfg.HostID, title, artist)
}

func (c *Coordinator) Approve(id string) (SongRequest, error) {
	return c.decide(id, RequestApproved)
}

func (c *Coordinator) Reject(id string) (SongRequest, error) {
	return c.decide(id, RequestRejected)
}

func (c *Coordinator) MarkPlayed(id string) (SongRequest, error) {
	return c.decide(id, RequestPlayed)
}

func (c *Coordinator) decide(id string, next RequestStatus) (SongRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return SongRequest{}, ErrClosed
	}

	if i := slices.IndexFunc(c.state.SongQueue, func(r SongRequest) bool { return r.ID == id }); i >= 0 {
		req := c.state.SongQueue[i]
		req.Status = next
		c.state.SongQueue = slices.Delete(c.state.SongQueue, i, i+1)
		c.recordLocked(req)
		c.state.Seq++
		c.broadcastLocked(KindQueue)
		c.notifyRequesterLocked(req)
		return req, nil
	}

	i := slices.IndexFunc(c.history, func(r SongRequest) bool { return r.ID == id })
	if i < 0 {
		return SongRequest{}, ErrRequestNotFound
	}
	if !c.history[i].canMoveTo(next) {
		return c.history[i], ErrRequestDecided
	}
	c.history[i].Status = next
	req := c.history[i]
	c.state.Seq++
	c.broadcastLocked(KindQueue)
	c.notifyRequesterLocked(req)
	return req, nil
}

func (c *Coordinator) recordLocked(req SongRequest) {
	c.history = append(c.history, req)
	if over := len(c.history) - c.cfg.HistoryLimit; over > 0 {
		c.history = slices.Delete(c.history, 0, over)
	}
}

func (c *Coordinator) notifyRequesterLocked(req SongRequest) {
	if req.RequestedBy == c.cfg.HostID || !c.state.HasMember(req.RequestedBy) {
		return
	}
	c.sendLocked(req.RequestedBy, MsgSongRequestDecision, SongRequestDecision{Request: req})
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// History returns decided requests, oldest first.
func (c *Coordinator) History() []SongRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := slices.Clone(c.history)
	if out == nil {
		out = []SongRequest{}
	}
	return out
}

// Subscribe delivers a state copy after every broadcast. Slow subscribers
// miss intermediate states; the latest one always reflects host truth.
func (c *Coordinator) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan State, 8)
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if _, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(ch)
			}
		})
	}
}

// Close ends the session and drops anything still queued on the channel.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	return c.ch.Close()
}
