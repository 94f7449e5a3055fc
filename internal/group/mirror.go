package group

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

const DefaultJoinTimeout = 10 * time.Second

type Status string

const (
	StatusIdle         Status = "idle"
	StatusJoining      Status = "joining"
	StatusConnected    Status = "connected"
	StatusRejected     Status = "rejected"
	StatusDisconnected Status = "disconnected"
)

type MirrorConfig struct {
	Self        PeerID
	HostID      PeerID
	DisplayName string
	JoinTimeout time.Duration
}

// Mirror is a rider's copy of the host state. It applies broadcasts in
// sequence order and drops anything at or below the last applied sequence.
type Mirror struct {
	mu         sync.Mutex
	cfg        MirrorConfig
	ch         Channel
	status     Status
	state      State
	lastSeq    uint64
	decisions  map[string]SongRequest
	joinResult chan error
}

func NewMirror(cfg MirrorConfig, ch Channel) *Mirror {
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = DefaultJoinTimeout
	}
	return &Mirror{
		cfg:       cfg,
		ch:        ch,
		status:    StatusIdle,
		decisions: map[string]SongRequest{},
	}
}

// Join asks the host for membership and waits up to JoinTimeout for the
// answer. Run must be consuming the channel for the answer to arrive.
func (m *Mirror) Join(ctx context.Context) error {
	m.mu.Lock()
	result := make(chan error, 1)
	m.joinResult = result
	m.status = StatusJoining
	m.mu.Unlock()

	data, err := encode(MsgJoinRequest, 0, m.cfg.Self, JoinRequest{DisplayName: m.cfg.DisplayName})
	if err != nil {
		return err
	}
	if err := m.ch.Send(m.cfg.HostID, data); err != nil {
		m.setStatus(StatusDisconnected)
		return fmt.Errorf("send join request: %w", err)
	}

	timer := time.NewTimer(m.cfg.JoinTimeout)
	defer timer.Stop()

	select {
	case err := <-result:
		return err
	case <-timer.C:
		m.abandonJoin(result)
		return ErrJoinTimeout
	case <-ctx.Done():
		m.abandonJoin(result)
		return ctx.Err()
	}
}

func (m *Mirror) abandonJoin(result chan error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.joinResult == result {
		m.joinResult = nil
		if m.status == StatusJoining {
			m.status = StatusIdle
		}
	}
}

// Run applies inbound frames until ctx is done or the channel closes. A closed
// channel or a host disconnect leaves the mirror disconnected.
func (m *Mirror) Run(ctx context.Context) {
	events := m.ch.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				m.hostLost()
				return
			}
			m.handle(ev)
		}
	}
}

func (m *Mirror) handle(ev Event) {
	switch ev.Kind {
	case EventDisconnected:
		if ev.Peer == m.cfg.HostID {
			m.hostLost()
		}
	case EventMessage:
		env, err := decode(ev.Data)
		if err != nil {
			log.Printf("group mirror: drop frame: %v", err)
			return
		}
		m.apply(env)
	}
}

func (m *Mirror) apply(env Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch env.Type {
	case MsgJoinResponse:
		resp, err := decodePayload[JoinResponse](env)
		if err != nil {
			log.Printf("group mirror: %v", err)
			return
		}
		m.joinLocked(resp)
	case MsgStateBroadcast:
		if m.status != StatusConnected || env.Seq <= m.lastSeq {
			return
		}
		msg, err := decodePayload[StateBroadcast](env)
		if err != nil {
			log.Printf("group mirror: %v", err)
			return
		}
		m.state = msg.State.clone()
		m.state.Seq = env.Seq
		m.lastSeq = env.Seq
	case MsgSongRequestDecision:
		msg, err := decodePayload[SongRequestDecision](env)
		if err != nil {
			log.Printf("group mirror: %v", err)
			return
		}
		m.decisions[msg.Request.ID] = msg.Request
	}
}

func (m *Mirror) joinLocked(resp JoinResponse) {
	var result error
	switch {
	case resp.Accepted && resp.Snapshot != nil:
		m.status = StatusConnected
		// a snapshot is authoritative even when older than what we had before a rejoin
		m.state = resp.Snapshot.clone()
		m.lastSeq = resp.Snapshot.Seq
	case resp.Reason == reasonGroupFull:
		m.status = StatusRejected
		result = ErrGroupFull
	default:
		m.status = StatusRejected
		result = fmt.Errorf("%w: %s", ErrJoinRejected, resp.Reason)
	}

	if m.joinResult != nil {
		m.joinResult <- result
		m.joinResult = nil
	}
}

func (m *Mirror) hostLost() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == StatusConnected || m.status == StatusJoining {
		m.status = StatusDisconnected
	}
	if m.joinResult != nil {
		m.joinResult <- ErrNotConnected
		m.joinResult = nil
	}
}

func (m *Mirror) setStatus(s Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = s
}

// SubmitSongRequest sends a request to the host. The queue update arrives
// with the next broadcast.
func (m *Mirror) SubmitSongRequest(title, artist string) error {
	if m.Status() != StatusConnected {
		return ErrNotConnected
	}
	if title == "" {
		return ErrEmptyTitle
	}
	data, err := encode(MsgSongRequestSubmit, 0, m.cfg.Self, SongRequestSubmit{Title: title, Artist: artist})
	if err != nil {
		return err
	}
	return m.ch.Send(m.cfg.HostID, data)
}

// Leave tells the host we are going and closes the channel. Queued frames
// are dropped.
func (m *Mirror) Leave() error {
	if m.Status() == StatusConnected {
		if data, err := encode(MsgLeave, 0, m.cfg.Self, nil); err == nil {
			_ = m.ch.Send(m.cfg.HostID, data)
		}
	}
	m.setStatus(StatusIdle)
	return m.ch.Close()
}

func (m *Mirror) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Mirror) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// Decision returns the host's verdict on one of our requests, if seen.
func (m *Mirror) Decision(id string) (SongRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.decisions[id]
	return r, ok
}
