package group

// EventKind tells what happened on a Channel.
type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventMessage
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventMessage:
		return "message"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind EventKind
	Peer PeerID
	Data []byte
}

// Channel is the peer transport. Delivery is unreliable and ordered per peer
// only. Send and Broadcast must not block on slow peers.
type Channel interface {
	Send(peer PeerID, data []byte) error
	Broadcast(data []byte) error
	// Events is closed when the channel is closed.
	Events() <-chan Event
	Disconnect(peer PeerID) error
	// Close drops queued outbound frames without flushing them.
	Close() error
}

// MemberFilter is implemented by channels that can limit Broadcast to group
// members. The coordinator hands it the full member list after every change.
type MemberFilter interface {
	SetMembers(members []PeerID)
}
