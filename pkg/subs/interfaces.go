package subs

// Handle is the provider's handle on an acquired resource.
type Handle interface {
	// Stop releases the underlying resource. Called exactly once per
	// acquisition, when the last client of an entry is removed.
	Stop()
}

// Provider acquires the underlying resource for a subscription.
//
// Subscribe is called once per unique request, on the first register.
// The provider must invoke onReady exactly once, when the resource is
// ready; the callback is cheap and safe to call from any goroutine,
// including synchronously from Subscribe. Acquisition failures are the
// provider's concern - the Manager has no retry logic.
type Provider interface {
	Subscribe(name string, args []any, onReady func()) Handle
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(name string, args []any, onReady func()) Handle

// Subscribe calls f.
func (f ProviderFunc) Subscribe(name string, args []any, onReady func()) Handle {
	return f(name, args, onReady)
}

// HandleFunc adapts a function to the Handle interface.
type HandleFunc func()

// Stop calls f.
func (f HandleFunc) Stop() { f() }
