package subs

import (
	"errors"
	"time"
)

// Subscription manager errors.
var (
	// ErrInvalidClientID indicates a missing or empty client identifier.
	ErrInvalidClientID = errors.New("invalid client id")

	// ErrInvalidRequest indicates a request with a missing name or
	// arguments that cannot be canonicalized.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrEntriesExhausted indicates the configured entry limit is reached.
	ErrEntriesExhausted = errors.New("maximum entries reached")

	// ErrClientsExhausted indicates the configured per-entry client
	// limit is reached.
	ErrClientsExhausted = errors.New("maximum clients per entry reached")
)

// Request identifies a subscription: a name plus an ordered argument
// sequence. Requests with equal canonical keys are the same
// subscription regardless of how the Args slice was built.
type Request struct {
	// Name is the subscription name. Must be non-empty.
	Name string

	// Args is the ordered argument sequence. A nil slice is equivalent
	// to an empty one.
	Args []any
}

// NewRequest builds a Request. A single scalar argument becomes a
// one-element sequence; no arguments become an empty sequence.
func NewRequest(name string, args ...any) Request {
	return Request{Name: name, Args: args}
}

// Validate checks that the request is well-formed.
func (r Request) Validate() error {
	if r.Name == "" {
		return ErrInvalidRequest
	}
	return nil
}

// Options holds a client's registration options.
//
// Options are passed by pointer: a nil *Options means the client
// supplied no options at all, which unregister treats differently from
// options that are present but empty.
type Options struct {
	// Permanent makes the registration immune to unregister. Once set
	// it cannot be weakened or replaced by later register calls.
	Permanent bool

	// UnsubDelay, when positive, makes unregister schedule removal
	// after this grace period instead of removing immediately. Zero
	// means no delay was requested.
	UnsubDelay time.Duration
}

// requestsDelay reports whether the options ask for delayed release.
func (o *Options) requestsDelay() bool {
	return o != nil && o.UnsubDelay > 0
}

// permanent reports whether the options mark the client permanent.
func (o *Options) permanent() bool {
	return o != nil && o.Permanent
}

// delayOrZero returns the configured delay, or zero when absent.
func (o *Options) delayOrZero() time.Duration {
	if o == nil {
		return 0
	}
	return o.UnsubDelay
}
