package subs

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/liris-tech/subs-manager/pkg/log"
)

// fakeProvider records acquisitions and lets tests fire readiness
// callbacks by hand.
type fakeProvider struct {
	mu         sync.Mutex
	subscribes int
	stops      int
	names      []string
	onReady    []func()
}

func (p *fakeProvider) Subscribe(name string, args []any, onReady func()) Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribes++
	p.names = append(p.names, name)
	p.onReady = append(p.onReady, onReady)
	return HandleFunc(func() {
		p.mu.Lock()
		p.stops++
		p.mu.Unlock()
	})
}

func (p *fakeProvider) fireReady(i int) {
	p.mu.Lock()
	fn := p.onReady[i]
	p.mu.Unlock()
	fn()
}

func (p *fakeProvider) subscribeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subscribes
}

func (p *fakeProvider) stopCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stops
}

func TestRegisterValidation(t *testing.T) {
	p := &fakeProvider{}
	m := NewManager(p)

	if _, err := m.Register(NewRequest("feed"), "", nil); !errors.Is(err, ErrInvalidClientID) {
		t.Errorf("Register with empty client: err = %v, want ErrInvalidClientID", err)
	}
	if _, err := m.Register(NewRequest(""), "c1", nil); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("Register with empty name: err = %v, want ErrInvalidRequest", err)
	}
	if _, err := m.Register(NewRequest("feed", make(chan int)), "c1", nil); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("Register with unencodable arg: err = %v, want ErrInvalidRequest", err)
	}

	// Validation failures must not mutate anything
	if m.Count() != 0 {
		t.Errorf("Count() = %d after failed registers, want 0", m.Count())
	}
	if p.subscribeCount() != 0 {
		t.Errorf("provider subscribes = %d after failed registers, want 0", p.subscribeCount())
	}
}

func TestUnregisterValidation(t *testing.T) {
	m := NewManager(&fakeProvider{})

	if err := m.Unregister(NewRequest("feed"), ""); !errors.Is(err, ErrInvalidClientID) {
		t.Errorf("Unregister with empty client: err = %v, want ErrInvalidClientID", err)
	}
	if err := m.Unregister(NewRequest(""), "c1"); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("Unregister with empty name: err = %v, want ErrInvalidRequest", err)
	}
}

func TestRegisterDeduplicatesEquivalentRequests(t *testing.T) {
	p := &fakeProvider{}
	m := NewManager(p)

	// Structurally equal requests built two different ways
	if _, err := m.Register(NewRequest("feed", 1, 2), "c1", nil); err != nil {
		t.Fatalf("Register c1: %v", err)
	}
	if _, err := m.Register(Request{Name: "feed", Args: []any{1, 2}}, "c2", nil); err != nil {
		t.Fatalf("Register c2: %v", err)
	}

	if got := p.subscribeCount(); got != 1 {
		t.Errorf("provider subscribes = %d, want 1", got)
	}
	if got := m.Count(); got != 1 {
		t.Errorf("Count() = %d, want 1", got)
	}
	if got := m.ClientCount(NewRequest("feed", 1, 2)); got != 2 {
		t.Errorf("ClientCount() = %d, want 2", got)
	}
}

func TestIdempotentRegistration(t *testing.T) {
	p := &fakeProvider{}
	m := NewManager(p)

	req := NewRequest("feed", "a")

	res1, err := m.Register(req, "c1", nil)
	if err != nil {
		t.Fatalf("first Register: %v", err)
	}
	res2, err := m.Register(req, "c1", nil)
	if err != nil {
		t.Fatalf("second Register: %v", err)
	}

	if m.Count() != 1 || m.ClientCount(req) != 1 {
		t.Errorf("Count() = %d, ClientCount() = %d, want 1 and 1", m.Count(), m.ClientCount(req))
	}
	if p.subscribeCount() != 1 {
		t.Errorf("provider subscribes = %d, want 1", p.subscribeCount())
	}
	if res1.Ready() != res2.Ready() {
		t.Error("readiness handles disagree for the same entry")
	}

	p.fireReady(0)
	if !res1.Ready() || !res2.Ready() {
		t.Error("both readiness handles should observe readiness")
	}
}

func TestReferenceCounting(t *testing.T) {
	p := &fakeProvider{}
	m := NewManager(p)

	req := NewRequest("feed")
	m.Register(req, "c1", nil)
	m.Register(req, "c2", nil)

	if err := m.Unregister(req, "c1"); err != nil {
		t.Fatalf("Unregister c1: %v", err)
	}
	if p.stopCount() != 0 {
		t.Errorf("resource stopped with a client still registered")
	}
	if m.ClientCount(req) != 1 {
		t.Errorf("ClientCount() = %d after removing c1, want 1", m.ClientCount(req))
	}

	if err := m.Unregister(req, "c2"); err != nil {
		t.Fatalf("Unregister c2: %v", err)
	}
	if p.stopCount() != 1 {
		t.Errorf("stop count = %d after last client left, want 1", p.stopCount())
	}
	if m.Count() != 0 {
		t.Errorf("Count() = %d after teardown, want 0", m.Count())
	}
}

func TestLastClientTeardown(t *testing.T) {
	p := &fakeProvider{}
	m := NewManager(p)

	req := NewRequest("feed", 42)
	m.Register(req, "c1", nil)

	if err := m.Unregister(req, "c1"); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if p.stopCount() != 1 {
		t.Fatalf("stop count = %d, want 1", p.stopCount())
	}
	if m.Count() != 0 {
		t.Errorf("Count() = %d, want 0 (no residual state)", m.Count())
	}

	// Repeat unregister of unknown key is a no-op
	if err := m.Unregister(req, "c1"); err != nil {
		t.Errorf("repeat Unregister: %v, want nil", err)
	}
	if p.stopCount() != 1 {
		t.Errorf("stop count = %d after repeat unregister, want 1", p.stopCount())
	}
}

func TestUnregisterUnknownClientNoop(t *testing.T) {
	p := &fakeProvider{}
	m := NewManager(p)

	req := NewRequest("feed")
	m.Register(req, "c1", nil)

	if err := m.Unregister(req, "c2"); err != nil {
		t.Fatalf("Unregister unknown client: %v", err)
	}
	if m.ClientCount(req) != 1 || p.stopCount() != 0 {
		t.Errorf("unknown-client unregister mutated state: clients=%d stops=%d",
			m.ClientCount(req), p.stopCount())
	}
}

func TestPermanentStickiness(t *testing.T) {
	p := &fakeProvider{}
	m := NewManager(p)

	req := NewRequest("feed")
	m.Register(req, "c1", &Options{Permanent: true})

	if err := m.Unregister(req, "c1"); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if m.ClientCount(req) != 1 {
		t.Error("permanent client was removed by unregister")
	}

	// Permanent cannot be weakened or replaced
	m.Register(req, "c1", &Options{UnsubDelay: 10 * time.Millisecond})
	m.Unregister(req, "c1")
	time.Sleep(50 * time.Millisecond)

	if m.ClientCount(req) != 1 || p.stopCount() != 0 {
		t.Errorf("permanent client removed after option downgrade attempt: clients=%d stops=%d",
			m.ClientCount(req), p.stopCount())
	}

	snap := m.Snapshot()
	if len(snap) != 1 || len(snap[0].Clients) != 1 || !snap[0].Clients[0].Permanent {
		t.Errorf("Snapshot() = %+v, want one permanent client", snap)
	}
}

func TestDelayedRelease(t *testing.T) {
	p := &fakeProvider{}
	m := NewManager(p)

	req := NewRequest("feed")
	m.Register(req, "c1", &Options{UnsubDelay: 60 * time.Millisecond})

	if err := m.Unregister(req, "c1"); err != nil {
		t.Fatalf("Unregister: %v", err)
	}

	// Before the grace period the client is still registered
	if m.ClientCount(req) != 1 {
		t.Fatal("client removed before the grace period elapsed")
	}
	snap := m.Snapshot()
	if len(snap) != 1 || snap[0].Clients[0].State != StatePendingRelease {
		t.Errorf("client state = %v, want PENDING_RELEASE", snap[0].Clients[0].State)
	}
	if p.stopCount() != 0 {
		t.Error("resource stopped before the grace period elapsed")
	}

	time.Sleep(120 * time.Millisecond)

	if m.Count() != 0 {
		t.Errorf("Count() = %d after release fired, want 0", m.Count())
	}
	if p.stopCount() != 1 {
		t.Errorf("stop count = %d after release fired, want 1", p.stopCount())
	}
}

func TestDelayedReleaseCancelledByRegister(t *testing.T) {
	p := &fakeProvider{}
	m := NewManager(p)

	req := NewRequest("feed")
	opts := &Options{UnsubDelay: 60 * time.Millisecond}
	m.Register(req, "c1", opts)
	m.Unregister(req, "c1")

	// Re-registering with delay options cancels the pending release
	if _, err := m.Register(req, "c1", opts); err != nil {
		t.Fatalf("re-Register: %v", err)
	}

	snap := m.Snapshot()
	if snap[0].Clients[0].State != StateActive {
		t.Errorf("client state = %v after cancel, want ACTIVE", snap[0].Clients[0].State)
	}

	time.Sleep(120 * time.Millisecond)

	if m.ClientCount(req) != 1 {
		t.Error("client removed although the pending release was cancelled")
	}
	if p.stopCount() != 0 {
		t.Errorf("stop count = %d, want 0", p.stopCount())
	}
}

func TestRepeatUnregisterDoesNotRestartRelease(t *testing.T) {
	p := &fakeProvider{}
	m := NewManager(p)

	req := NewRequest("feed")
	m.Register(req, "c1", &Options{UnsubDelay: 100 * time.Millisecond})
	m.Unregister(req, "c1")

	time.Sleep(50 * time.Millisecond)

	// In-flight release: repeat unregister must neither restart nor
	// shorten it
	if err := m.Unregister(req, "c1"); err != nil {
		t.Fatalf("repeat Unregister: %v", err)
	}
	if m.ClientCount(req) != 1 {
		t.Fatal("repeat unregister removed the client early")
	}

	time.Sleep(100 * time.Millisecond)

	if m.Count() != 0 || p.stopCount() != 1 {
		t.Errorf("release fired %d times (entries=%d), want exactly once",
			p.stopCount(), m.Count())
	}
}

func TestUnregisterQuirkEmptyOptions(t *testing.T) {
	p := &fakeProvider{}
	m := NewManager(p)

	// Options present but naming neither permanence nor a delay:
	// unregister takes no action at all
	req := NewRequest("feed")
	m.Register(req, "c1", &Options{})

	if err := m.Unregister(req, "c1"); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if m.ClientCount(req) != 1 || p.stopCount() != 0 {
		t.Errorf("quirk branch removed the client: clients=%d stops=%d",
			m.ClientCount(req), p.stopCount())
	}
}

func TestReRegisterWithoutOptionsKeepsDelay(t *testing.T) {
	p := &fakeProvider{}
	m := NewManager(p)

	req := NewRequest("feed")
	m.Register(req, "c1", &Options{UnsubDelay: 40 * time.Millisecond})

	// A bare re-register leaves delayed options untouched
	m.Register(req, "c1", nil)

	snap := m.Snapshot()
	if got := snap[0].Clients[0].UnsubDelay; got != 40*time.Millisecond {
		t.Errorf("stored delay = %v after bare re-register, want 40ms", got)
	}
}

func TestOptionReplacementWithoutDelay(t *testing.T) {
	p := &fakeProvider{}
	m := NewManager(p)

	req := NewRequest("feed")
	m.Register(req, "c1", nil)

	// No delay and not permanent: new options replace stored ones
	m.Register(req, "c1", &Options{UnsubDelay: 50 * time.Millisecond})

	m.Unregister(req, "c1")
	if m.ClientCount(req) != 1 {
		t.Fatal("adopted delay options were not honored by unregister")
	}

	time.Sleep(110 * time.Millisecond)
	if m.Count() != 0 || p.stopCount() != 1 {
		t.Errorf("delayed release did not complete: entries=%d stops=%d", m.Count(), p.stopCount())
	}
}

func TestDelayedClientUpgradesToPermanent(t *testing.T) {
	p := &fakeProvider{}
	m := NewManager(p)

	req := NewRequest("feed")
	m.Register(req, "c1", &Options{UnsubDelay: 60 * time.Millisecond})
	m.Unregister(req, "c1")

	// Upgrading to permanent cancels the pending release
	m.Register(req, "c1", &Options{Permanent: true})

	time.Sleep(120 * time.Millisecond)

	if m.ClientCount(req) != 1 || p.stopCount() != 0 {
		t.Fatalf("upgrade to permanent lost the client: clients=%d stops=%d",
			m.ClientCount(req), p.stopCount())
	}

	// And the new permanence is sticky
	m.Unregister(req, "c1")
	if m.ClientCount(req) != 1 {
		t.Error("permanent client removed by unregister")
	}
}

func TestReadiness(t *testing.T) {
	p := &fakeProvider{}
	m := NewManager(p)

	res, err := m.Register(NewRequest("feed"), "c1", nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if res.Ready() {
		t.Error("Ready() = true before the provider reported readiness")
	}

	p.fireReady(0)
	if !res.Ready() {
		t.Error("Ready() = false after the provider reported readiness")
	}

	// A second callback invocation is harmless
	p.fireReady(0)
	if !res.Ready() {
		t.Error("readiness regressed")
	}
}

func TestReadinessSurvivesTeardown(t *testing.T) {
	p := &fakeProvider{}
	m := NewManager(p)

	req := NewRequest("feed")
	res, _ := m.Register(req, "c1", nil)
	p.fireReady(0)
	m.Unregister(req, "c1")

	if !res.Ready() {
		t.Error("readiness handle lost its value after teardown")
	}
}

func TestProviderSynchronousReady(t *testing.T) {
	// A provider may fire onReady synchronously from Subscribe
	p := ProviderFunc(func(name string, args []any, onReady func()) Handle {
		onReady()
		return HandleFunc(func() {})
	})
	m := NewManager(p)

	res, err := m.Register(NewRequest("feed"), "c1", nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !res.Ready() {
		t.Error("Ready() = false for synchronously-ready resource")
	}
}

func TestNilHandleTeardown(t *testing.T) {
	// A provider returning no handle leaves nothing to stop
	p := ProviderFunc(func(name string, args []any, onReady func()) Handle {
		return nil
	})
	m := NewManager(p)

	req := NewRequest("feed")
	m.Register(req, "c1", nil)
	if err := m.Unregister(req, "c1"); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if m.Count() != 0 {
		t.Errorf("Count() = %d, want 0", m.Count())
	}
}

func TestCloseTearsDownEverything(t *testing.T) {
	p := &fakeProvider{}
	m := NewManager(p)

	m.Register(NewRequest("feed", 1), "c1", nil)
	m.Register(NewRequest("feed", 2), "c1", &Options{UnsubDelay: 50 * time.Millisecond})
	m.Register(NewRequest("feed", 2), "c2", &Options{Permanent: true})
	m.Unregister(NewRequest("feed", 2), "c1") // pending release in flight

	m.Close()

	if m.Count() != 0 {
		t.Errorf("Count() = %d after Close, want 0", m.Count())
	}
	if p.stopCount() != 2 {
		t.Errorf("stop count = %d after Close, want 2", p.stopCount())
	}

	// The cancelled release must not fire against the empty registry
	time.Sleep(100 * time.Millisecond)
	if p.stopCount() != 2 {
		t.Errorf("stop count = %d after pending-release deadline, want 2", p.stopCount())
	}
}

func TestEntryLimit(t *testing.T) {
	p := &fakeProvider{}
	m := NewManagerWithConfig(p, Config{MaxEntries: 1})

	if _, err := m.Register(NewRequest("a"), "c1", nil); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if _, err := m.Register(NewRequest("b"), "c1", nil); !errors.Is(err, ErrEntriesExhausted) {
		t.Errorf("Register beyond entry limit: err = %v, want ErrEntriesExhausted", err)
	}

	// Existing entries stay reachable
	if _, err := m.Register(NewRequest("a"), "c2", nil); err != nil {
		t.Errorf("Register on existing entry: %v", err)
	}
}

func TestClientLimit(t *testing.T) {
	p := &fakeProvider{}
	m := NewManagerWithConfig(p, Config{MaxClientsPerEntry: 1})

	req := NewRequest("a")
	if _, err := m.Register(req, "c1", nil); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if _, err := m.Register(req, "c2", nil); !errors.Is(err, ErrClientsExhausted) {
		t.Errorf("Register beyond client limit: err = %v, want ErrClientsExhausted", err)
	}

	// Re-registering the existing client is not limited
	if _, err := m.Register(req, "c1", nil); err != nil {
		t.Errorf("re-Register existing client: %v", err)
	}
}

// captureLogger records lifecycle events for assertions.
type captureLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (l *captureLogger) Log(event log.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *captureLogger) kinds() []log.Kind {
	l.mu.Lock()
	defer l.mu.Unlock()
	kinds := make([]log.Kind, len(l.events))
	for i, e := range l.events {
		kinds[i] = e.Kind
	}
	return kinds
}

func TestLifecycleEvents(t *testing.T) {
	p := &fakeProvider{}
	capture := &captureLogger{}
	m := NewManagerWithConfig(p, Config{Logger: capture})

	req := NewRequest("feed", 1)
	opts := &Options{UnsubDelay: 40 * time.Millisecond}

	m.Register(req, "c1", opts)
	p.fireReady(0)
	m.Unregister(req, "c1")
	m.Register(req, "c1", opts) // cancels the pending release
	m.Unregister(req, "c1")
	time.Sleep(90 * time.Millisecond)

	want := []log.Kind{
		log.KindRegister,
		log.KindReady,
		log.KindReleaseScheduled,
		log.KindReleaseCancelled,
		log.KindRegister,
		log.KindReleaseScheduled,
		log.KindReleaseFired,
		log.KindTeardown,
	}
	got := capture.kinds()
	if len(got) != len(want) {
		t.Fatalf("event kinds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event[%d] = %v, want %v (all: %v)", i, got[i], want[i], got)
		}
	}
}

func TestConcurrentRegisterUnregister(t *testing.T) {
	p := &fakeProvider{}
	m := NewManager(p)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			client := fmt.Sprintf("c%d", n)
			req := NewRequest("feed", "shared")
			for j := 0; j < 50; j++ {
				if _, err := m.Register(req, client, nil); err != nil {
					t.Errorf("Register: %v", err)
					return
				}
				if err := m.Unregister(req, client); err != nil {
					t.Errorf("Unregister: %v", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	if m.Count() != 0 {
		t.Errorf("Count() = %d after balanced register/unregister, want 0", m.Count())
	}
	if p.subscribeCount() != p.stopCount() {
		t.Errorf("subscribes = %d, stops = %d, want equal", p.subscribeCount(), p.stopCount())
	}
}
