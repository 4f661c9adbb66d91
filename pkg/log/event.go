package log

import (
	"time"
)

// Event represents one subscription registry lifecycle event.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// Kind classifies the event.
	Kind Kind `cbor:"2,keyasint"`

	// Key is the canonical subscription key, hex encoded.
	Key string `cbor:"3,keyasint,omitempty"`

	// Name is the subscription name.
	Name string `cbor:"4,keyasint,omitempty"`

	// ClientID identifies the client involved, when the event concerns
	// a single client.
	ClientID string `cbor:"5,keyasint,omitempty"`

	// Type-specific payload (at most one will be set).
	Register *RegisterEvent `cbor:"6,keyasint,omitempty"` // KindRegister
	Release  *ReleaseEvent  `cbor:"7,keyasint,omitempty"` // Release scheduling
	Teardown *TeardownEvent `cbor:"8,keyasint,omitempty"` // KindTeardown
}

// Kind classifies a registry event.
type Kind uint8

const (
	// KindRegister is a register call that created or reconciled a
	// client registration.
	KindRegister Kind = 0

	// KindUnregister is an immediate client removal.
	KindUnregister Kind = 1

	// KindReleaseScheduled is a delayed release being scheduled.
	KindReleaseScheduled Kind = 2

	// KindReleaseCancelled is a pending release cancelled by a
	// subsequent register from the same client.
	KindReleaseCancelled Kind = 3

	// KindReleaseFired is a delayed release timer firing and removing
	// its client.
	KindReleaseFired Kind = 4

	// KindReady is the provider reporting the resource ready.
	KindReady Kind = 5

	// KindTeardown is the last client leaving an entry and the
	// resource being stopped.
	KindTeardown Kind = 6
)

// String returns the event kind name.
func (k Kind) String() string {
	switch k {
	case KindRegister:
		return "REGISTER"
	case KindUnregister:
		return "UNREGISTER"
	case KindReleaseScheduled:
		return "RELEASE_SCHEDULED"
	case KindReleaseCancelled:
		return "RELEASE_CANCELLED"
	case KindReleaseFired:
		return "RELEASE_FIRED"
	case KindReady:
		return "READY"
	case KindTeardown:
		return "TEARDOWN"
	default:
		return "UNKNOWN"
	}
}

// RegisterEvent carries register-call detail.
type RegisterEvent struct {
	// NewEntry is true when this register created the registry entry
	// and acquired the resource.
	NewEntry bool `cbor:"1,keyasint,omitempty"`

	// NewClient is true when this register added the client to the
	// entry (false on reconciliation of an existing registration).
	NewClient bool `cbor:"2,keyasint,omitempty"`

	// Permanent reflects the stored options after the call.
	Permanent bool `cbor:"3,keyasint,omitempty"`

	// UnsubDelay reflects the stored options after the call.
	UnsubDelay time.Duration `cbor:"4,keyasint,omitempty"`
}

// ReleaseEvent carries delayed-release detail.
type ReleaseEvent struct {
	// Delay is the grace period of the scheduled release.
	Delay time.Duration `cbor:"1,keyasint,omitempty"`
}

// TeardownEvent carries teardown detail.
type TeardownEvent struct {
	// Stopped is true when a resource handle was stopped (false when
	// the provider returned no handle).
	Stopped bool `cbor:"1,keyasint,omitempty"`
}
