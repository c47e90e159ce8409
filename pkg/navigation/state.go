package navigation

import "fmt"

// State is the engine's navigation state.
type State int

const (
	// StateUninitialized: no marker scanned yet; world transforms and
	// navigation requests are rejected.
	StateUninitialized State = iota
	// StateCalibrated: the frame is anchored but no route is active.
	StateCalibrated
	// StateNavigating: a route is active.
	StateNavigating
	// StateArrived: the walker reached the destination of the last route.
	StateArrived
)

// String returns the state name used on the wire.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateCalibrated:
		return "calibrated"
	case StateNavigating:
		return "navigating"
	case StateArrived:
		return "arrived"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CanNavigate reports whether a destination request is accepted in s.
func (s State) CanNavigate() bool {
	return s != StateUninitialized
}

// CanCancel reports whether Cancel is accepted in s.
func (s State) CanCancel() bool {
	return s == StateNavigating || s == StateArrived
}
