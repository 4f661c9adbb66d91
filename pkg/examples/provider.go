package examples

import (
	"sync"
	"time"

	"github.com/liris-tech/subs-manager/pkg/subs"
)

// DefaultReadyLatency is the simulated acquisition time when none is
// configured.
const DefaultReadyLatency = 100 * time.Millisecond

// SimProvider is a simulated resource provider. Every Subscribe
// returns a handle whose readiness callback fires after the configured
// latency, standing in for a real asynchronous acquisition.
// SimProvider is safe for concurrent use.
type SimProvider struct {
	mu sync.Mutex

	// latency between Subscribe and the readiness callback.
	latency time.Duration

	// counters for inspection and tests.
	subscribes int
	stops      int
	live       int
}

// NewSimProvider creates a provider with the given readiness latency.
// A zero latency fires the readiness callback synchronously from
// Subscribe.
func NewSimProvider(latency time.Duration) *SimProvider {
	return &SimProvider{latency: latency}
}

// Subscribe simulates acquiring a resource. The returned handle's Stop
// cancels a not-yet-fired readiness callback.
func (p *SimProvider) Subscribe(name string, args []any, onReady func()) subs.Handle {
	p.mu.Lock()
	p.subscribes++
	p.live++
	latency := p.latency
	p.mu.Unlock()

	h := &simHandle{provider: p}
	if latency <= 0 {
		onReady()
	} else {
		h.ready = time.AfterFunc(latency, onReady)
	}
	return h
}

// Subscribes returns the total number of acquisitions.
func (p *SimProvider) Subscribes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subscribes
}

// Stops returns the total number of released acquisitions.
func (p *SimProvider) Stops() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stops
}

// Live returns the number of currently held acquisitions.
func (p *SimProvider) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live
}

// simHandle is the handle SimProvider returns from Subscribe.
type simHandle struct {
	provider *SimProvider
	ready    *time.Timer

	once sync.Once
}

// Stop releases the simulated resource. Safe to call more than once;
// only the first call counts.
func (h *simHandle) Stop() {
	h.once.Do(func() {
		if h.ready != nil {
			h.ready.Stop()
		}
		h.provider.mu.Lock()
		h.provider.stops++
		h.provider.live--
		h.provider.mu.Unlock()
	})
}

// Compile-time interface satisfaction checks.
var (
	_ subs.Provider = (*SimProvider)(nil)
	_ subs.Handle   = (*simHandle)(nil)
)
