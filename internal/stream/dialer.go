package stream

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"backend-groupride/internal/group"

	"github.com/gorilla/websocket"
)

// RiderConn is the rider side of the group transport: one websocket to the
// host, exposed as a group.Channel whose only remote peer is the host.
type RiderConn struct {
	host   group.PeerID
	conn   *websocket.Conn
	send   chan []byte
	events chan group.Event

	closing   chan struct{}
	closeOnce sync.Once
}

// Dial connects self to the host's hub at baseURL (ws://host:port/group).
func Dial(ctx context.Context, baseURL string, self, host group.PeerID, invite string) (*RiderConn, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse hub url: %w", err)
	}
	u = u.JoinPath("ws", string(self))
	if invite != "" {
		q := u.Query()
		q.Set("invite", invite)
		u.RawQuery = q.Encode()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial hub: %w", err)
	}

	rc := &RiderConn{
		host:    host,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		events:  make(chan group.Event, sendBuffer),
		closing: make(chan struct{}),
	}
	rc.events <- group.Event{Kind: group.EventConnected, Peer: host}
	go rc.readLoop()
	go rc.writeLoop()
	return rc, nil
}

func (rc *RiderConn) readLoop() {
	defer close(rc.events)
	for {
		_, msg, err := rc.conn.ReadMessage()
		if err != nil {
			rc.emit(group.Event{Kind: group.EventDisconnected, Peer: rc.host})
			return
		}
		rc.emit(group.Event{Kind: group.EventMessage, Peer: rc.host, Data: msg})
	}
}

func (rc *RiderConn) emit(ev group.Event) {
	select {
	case rc.events <- ev:
	case <-rc.closing:
	}
}

func (rc *RiderConn) writeLoop() {
	for {
		select {
		case <-rc.closing:
			return
		case msg := <-rc.send:
			if err := rc.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				_ = rc.Close()
				return
			}
		}
	}
}

// Send queues data for the host. The peer argument is ignored; the host is
// the only reachable peer.
func (rc *RiderConn) Send(_ group.PeerID, data []byte) error {
	select {
	case <-rc.closing:
		return ErrHubClosed
	default:
	}
	select {
	case rc.send <- data:
		return nil
	default:
		return ErrBacklogged
	}
}

func (rc *RiderConn) Broadcast(data []byte) error {
	return rc.Send(rc.host, data)
}

func (rc *RiderConn) Events() <-chan group.Event {
	return rc.events
}

func (rc *RiderConn) Disconnect(group.PeerID) error {
	return rc.Close()
}

// Close tears the connection down. Frames still queued are dropped.
func (rc *RiderConn) Close() error {
	var err error
	rc.closeOnce.Do(func() {
		close(rc.closing)
		err = rc.conn.Close()
	})
	return err
}

var _ group.Channel = (*RiderConn)(nil)
