package group

import "errors"

var (
	// ErrGroupFull is returned to a rider whose join was refused for capacity.
	ErrGroupFull = errors.New("group is full")

	ErrJoinTimeout     = errors.New("timed out waiting for join response")
	ErrJoinRejected    = errors.New("join rejected")
	ErrNotConnected    = errors.New("not connected to a group")
	ErrRequestNotFound = errors.New("song request not found")
	ErrRequestDecided  = errors.New("song request already decided")
	ErrInvalidSeek     = errors.New("seek position must not be negative")
	ErrEmptyTitle      = errors.New("song request needs a title")
	ErrClosed          = errors.New("group session closed")
	ErrInvalidInvite   = errors.New("invalid group invite")
)
