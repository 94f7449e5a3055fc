package group

import (
	"encoding/json"
	"fmt"
)

type MessageType string

const (
	MsgJoinRequest         MessageType = "join_request"
	MsgJoinResponse        MessageType = "join_response"
	MsgStateBroadcast      MessageType = "state_broadcast"
	MsgSongRequestSubmit   MessageType = "song_request_submit"
	MsgSongRequestDecision MessageType = "song_request_decision"
	MsgLeave               MessageType = "leave"
)

// StateKind names the sub-state that changed in a broadcast.
type StateKind string

const (
	KindPlayback StateKind = "playback"
	KindMute     StateKind = "mute"
	KindQueue    StateKind = "queue"
	KindMembers  StateKind = "members"
)

const reasonGroupFull = "group_full"

// Envelope is the frame exchanged over a Channel.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Seq     uint64          `json:"seq,omitempty"`
	From    PeerID          `json:"from"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type JoinRequest struct {
	DisplayName string `json:"displayName,omitempty"`
}

type JoinResponse struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
	Snapshot *State `json:"snapshot,omitempty"`
}

// StateBroadcast carries the full host state; Kind says which part changed.
type StateBroadcast struct {
	Kind  StateKind `json:"kind"`
	State State     `json:"state"`
}

type SongRequestSubmit struct {
	Title  string `json:"title"`
	Artist string `json:"artist,omitempty"`
}

type SongRequestDecision struct {
	Request SongRequest `json:"request"`
}

func encode(t MessageType, seq uint64, from PeerID, payload any) ([]byte, error) {
	env := Envelope{Type: t, Seq: seq, From: from}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", t, err)
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

func decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing type")
	}
	return env, nil
}

func decodePayload[T any](env Envelope) (T, error) {
	var v T
	if len(env.Payload) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(env.Payload, &v); err != nil {
		return v, fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return v, nil
}
