package group

import (
	"slices"
	"time"
)

// PeerID identifies a device in the group.
type PeerID string

type Playback struct {
	TrackID         string  `json:"trackId,omitempty"`
	IsPlaying       bool    `json:"isPlaying"`
	PositionSeconds float64 `json:"positionSeconds"`
}

type Mute struct {
	Music bool `json:"music"`
	Voice bool `json:"voice"`
}

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
	RequestPlayed   RequestStatus = "played"
)

// SongRequest is a member's ask for a track. Once it leaves Pending it never
// returns; Approved may still become Played.
type SongRequest struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Artist      string        `json:"artist,omitempty"`
	RequestedBy PeerID        `json:"requestedBy"`
	Timestamp   time.Time     `json:"timestamp"`
	Status      RequestStatus `json:"status"`
}

func (r SongRequest) canMoveTo(next RequestStatus) bool {
	switch r.Status {
	case RequestPending:
		return next == RequestApproved || next == RequestRejected || next == RequestPlayed
	case RequestApproved:
		return next == RequestPlayed
	default:
		return false
	}
}

// State is the host-owned group session. Riders hold a lagging copy.
type State struct {
	HostID    PeerID        `json:"hostId"`
	Members   []PeerID      `json:"members"`
	Playback  Playback      `json:"playback"`
	Mute      Mute          `json:"mute"`
	SongQueue []SongRequest `json:"songQueue"`
	Seq       uint64        `json:"seq"`
}

func (s State) clone() State {
	out := s
	out.Members = slices.Clone(s.Members)
	out.SongQueue = slices.Clone(s.SongQueue)
	if out.Members == nil {
		out.Members = []PeerID{}
	}
	if out.SongQueue == nil {
		out.SongQueue = []SongRequest{}
	}
	return out
}

// HasMember reports whether p is in the member list.
func (s State) HasMember(p PeerID) bool {
	return slices.Contains(s.Members, p)
}
