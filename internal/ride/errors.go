package ride

import "errors"

var (
	// ErrInvalidTransition is returned when a lifecycle call has no meaning in the current state.
	ErrInvalidTransition = errors.New("invalid ride state transition")

	// ErrNoActiveRide is returned when ending while nothing is active or paused.
	ErrNoActiveRide = errors.New("no active ride")

	// ErrDuplicateRecord is returned by history stores when a record id already exists.
	ErrDuplicateRecord = errors.New("duplicate ride record")
)
