package subs

import "sync/atomic"

// entry is the registry record for one canonical key, shared across all
// clients that requested it. It exclusively owns the resource handle.
type entry struct {
	key  Key
	name string
	args []any

	// handle is the provider's handle on the resource. May be nil if
	// the provider returned none; teardown then has nothing to stop.
	handle Handle

	// ready flips false to true exactly once, from the provider's
	// readiness callback. It is the only field mutated outside the
	// Manager lock.
	ready atomic.Bool

	// clients maps client id to registration. The entry exists in the
	// registry iff this map is non-empty.
	clients map[string]*registration
}

func newEntry(key Key, req Request) *entry {
	return &entry{
		key:     key,
		name:    req.Name,
		args:    req.Args,
		clients: make(map[string]*registration),
	}
}

// Readiness reports whether an entry's resource has become ready.
// It stays valid after the entry is torn down and keeps returning the
// last observed value.
type Readiness struct {
	e *entry
}

// Ready returns the current readiness of the underlying resource.
// Intended for polling by an external reactive host.
func (r *Readiness) Ready() bool {
	return r.e.ready.Load()
}
