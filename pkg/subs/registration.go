package subs

import "time"

// ClientState is the lifecycle state of a client registration.
type ClientState uint8

const (
	// StateActive is a live registration with no removal in flight.
	StateActive ClientState = iota

	// StatePendingRelease means a delayed release timer is running.
	// A register call from the same client that supplies Permanent or
	// a delay returns the registration to StateActive.
	StatePendingRelease
)

// String returns a human-readable state name.
func (s ClientState) String() string {
	switch s {
	case StateActive:
		return "ACTIVE"
	case StatePendingRelease:
		return "PENDING_RELEASE"
	default:
		return "UNKNOWN"
	}
}

// registration is one client's interest in an entry.
// Removed registrations are discarded, never reused.
type registration struct {
	// opts are the stored options; nil when the client registered
	// without options.
	opts *Options

	// state tracks the registration lifecycle.
	state ClientState

	// release is the pending delayed-release timer. Non-nil iff a
	// delayed release is in flight and has neither fired nor been
	// cancelled.
	release *time.Timer
}

// cancelRelease stops a pending release timer, if any.
// Returns true if a timer was cancelled.
func (reg *registration) cancelRelease() bool {
	if reg.release == nil {
		return false
	}
	reg.release.Stop()
	reg.release = nil
	reg.state = StateActive
	return true
}
