package subs

import (
	"sort"
	"sync"
	"time"

	"github.com/liris-tech/subs-manager/pkg/log"
)

// Config holds subscription manager configuration.
type Config struct {
	// MaxEntries caps the number of live registry entries.
	// Zero means unlimited.
	MaxEntries int

	// MaxClientsPerEntry caps the registrations per entry.
	// Zero means unlimited.
	MaxClientsPerEntry int

	// Logger receives lifecycle events. Nil disables logging.
	Logger log.Logger
}

// DefaultConfig returns the default configuration: no limits, no logging.
func DefaultConfig() Config {
	return Config{}
}

// Manager is the subscription registry and lifecycle controller.
// It deduplicates structurally-equal requests to one entry each,
// reference-counts clients, and tears the underlying resource down
// exactly once when the last client leaves.
type Manager struct {
	mu sync.Mutex

	config   Config
	provider Provider
	logger   log.Logger

	// Live entries by canonical key. An entry is present iff at least
	// one client is registered on it.
	entries map[Key]*entry
}

// NewManager creates a manager with default configuration.
// The provider must be non-nil.
func NewManager(provider Provider) *Manager {
	return NewManagerWithConfig(provider, DefaultConfig())
}

// NewManagerWithConfig creates a manager with custom configuration.
// The provider must be non-nil.
func NewManagerWithConfig(provider Provider, config Config) *Manager {
	if provider == nil {
		panic("subs: provider must not be nil")
	}

	logger := config.Logger
	if logger == nil {
		logger = log.NoopLogger{}
	}

	return &Manager{
		config:   config,
		provider: provider,
		logger:   logger,
		entries:  make(map[Key]*entry),
	}
}

// Register registers a client's interest in the given request.
//
// The first register for an unseen key acquires the resource from the
// provider. Registering an already-registered client never
// double-counts; it only reconciles options:
//   - permanent registrations ignore new options entirely
//   - a client with delayed-release options adopts new options (and
//     cancels any pending release) only when the new options ask for
//     permanence or a delay
//   - otherwise non-nil options replace the stored ones
//
// The returned Readiness handle reports whether the resource has
// become ready. Validation failures return ErrInvalidClientID or
// ErrInvalidRequest before any state change.
func (m *Manager) Register(req Request, clientID string, opts *Options) (*Readiness, error) {
	if clientID == "" {
		return nil, ErrInvalidClientID
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	key, err := req.Key()
	if err != nil {
		return nil, err
	}

	var events []log.Event

	m.mu.Lock()

	e, exists := m.entries[key]
	if !exists {
		if m.config.MaxEntries > 0 && len(m.entries) >= m.config.MaxEntries {
			m.mu.Unlock()
			return nil, ErrEntriesExhausted
		}

		e = newEntry(key, req)
		m.entries[key] = e

		// Acquire the resource. The readiness callback only flips the
		// atomic flag, so the provider may fire it at any time,
		// including synchronously from Subscribe.
		e.handle = m.provider.Subscribe(req.Name, req.Args, m.readyFunc(e))
	}

	reg, registered := e.clients[clientID]
	if !registered {
		if m.config.MaxClientsPerEntry > 0 && len(e.clients) >= m.config.MaxClientsPerEntry {
			m.mu.Unlock()
			return nil, ErrClientsExhausted
		}

		reg = &registration{opts: opts}
		e.clients[clientID] = reg
	} else {
		switch {
		case reg.opts.permanent():
			// Permanent is sticky: new options are ignored outright.

		case reg.opts.requestsDelay() && (opts.permanent() || opts.requestsDelay()):
			// The client opted into delayed release and is restating
			// its intent: cancel any pending release and adopt the
			// new options.
			if reg.cancelRelease() {
				events = append(events, newEvent(log.KindReleaseCancelled, e, clientID))
			}
			reg.opts = opts

		case reg.opts.requestsDelay():
			// Compatibility quirk: a re-register that asks for neither
			// permanence nor a delay leaves the delayed options, and
			// any pending release, untouched.

		default:
			if opts != nil {
				reg.opts = opts
			}
		}
	}

	ev := newEvent(log.KindRegister, e, clientID)
	ev.Register = &log.RegisterEvent{
		NewEntry:  !exists,
		NewClient: !registered,
		Permanent: reg.opts.permanent(),
	}
	if reg.opts.requestsDelay() {
		ev.Register.UnsubDelay = reg.opts.UnsubDelay
	}
	events = append(events, ev)

	m.mu.Unlock()

	for _, ev := range events {
		m.logger.Log(ev)
	}
	return &Readiness{e: e}, nil
}

// Unregister withdraws a client's interest in the given request.
//
// Unknown keys, unknown clients, and clients with a release already in
// flight are no-ops. Clients without options are removed immediately;
// clients with delayed-release options get a one-shot release timer.
// When the last client is removed the resource handle is stopped and
// the entry discarded. Validation failures return ErrInvalidClientID
// or ErrInvalidRequest before any state change.
func (m *Manager) Unregister(req Request, clientID string) error {
	if clientID == "" {
		return ErrInvalidClientID
	}
	if err := req.Validate(); err != nil {
		return err
	}
	key, err := req.Key()
	if err != nil {
		return err
	}

	var events []log.Event
	var stopped Handle

	m.mu.Lock()

	e, exists := m.entries[key]
	if !exists {
		m.mu.Unlock()
		return nil
	}
	reg, registered := e.clients[clientID]
	if !registered {
		m.mu.Unlock()
		return nil
	}

	// An in-flight delayed release is never restarted or shortened by
	// a repeat unregister.
	if reg.release != nil {
		m.mu.Unlock()
		return nil
	}

	switch {
	case reg.opts == nil:
		stopped = m.removeClientLocked(e, clientID, log.KindUnregister, &events)

	case reg.opts.requestsDelay():
		delay := reg.opts.UnsubDelay
		// Scheduled while holding mu; the expiry callback reacquires
		// mu before reading the timer field, so it observes this
		// assignment.
		var t *time.Timer
		t = time.AfterFunc(delay, func() {
			m.fireRelease(key, clientID, t)
		})
		reg.release = t
		reg.state = StatePendingRelease

		ev := newEvent(log.KindReleaseScheduled, e, clientID)
		ev.Release = &log.ReleaseEvent{Delay: delay}
		events = append(events, ev)

	default:
		// Permanent clients are never removed by unregister. Options
		// naming neither permanence nor a delay land here too - a
		// compatibility quirk, kept as-is: such clients have no
		// removal path short of Close.
	}

	m.mu.Unlock()

	if stopped != nil {
		stopped.Stop()
	}
	for _, ev := range events {
		m.logger.Log(ev)
	}
	return nil
}

// fireRelease handles delayed-release timer expiry.
func (m *Manager) fireRelease(key Key, clientID string, t *time.Timer) {
	var events []log.Event
	var stopped Handle

	m.mu.Lock()

	e, exists := m.entries[key]
	if !exists {
		m.mu.Unlock()
		return
	}
	reg, registered := e.clients[clientID]
	// Act only if this timer is still the registration's pending
	// release; cancel-and-reschedule leaves stale fires behind.
	if !registered || reg.release != t {
		m.mu.Unlock()
		return
	}

	reg.release = nil
	stopped = m.removeClientLocked(e, clientID, log.KindReleaseFired, &events)

	m.mu.Unlock()

	if stopped != nil {
		stopped.Stop()
	}
	for _, ev := range events {
		m.logger.Log(ev)
	}
}

// removeClientLocked removes a client registration and, when it was
// the entry's last, removes the entry itself. It returns the resource
// handle to stop; the caller stops it after releasing the lock.
func (m *Manager) removeClientLocked(e *entry, clientID string, kind log.Kind, events *[]log.Event) Handle {
	delete(e.clients, clientID)
	*events = append(*events, newEvent(kind, e, clientID))

	if len(e.clients) > 0 {
		return nil
	}

	delete(m.entries, e.key)
	h := e.handle
	e.handle = nil

	ev := newEvent(log.KindTeardown, e, "")
	ev.Teardown = &log.TeardownEvent{Stopped: h != nil}
	*events = append(*events, ev)

	return h
}

// readyFunc returns the readiness callback handed to the provider.
func (m *Manager) readyFunc(e *entry) func() {
	return func() {
		// CompareAndSwap keeps the flag monotonic and the event
		// single-shot even if a provider calls back twice.
		if e.ready.CompareAndSwap(false, true) {
			m.logger.Log(newEvent(log.KindReady, e, ""))
		}
	}
}

// Count returns the number of live registry entries.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// ClientCount returns the number of clients registered on the entry
// for the given request, or zero if no such entry exists.
func (m *Manager) ClientCount(req Request) int {
	key, err := req.Key()
	if err != nil {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, exists := m.entries[key]
	if !exists {
		return 0
	}
	return len(e.clients)
}

// ClientInfo describes one client registration in a snapshot.
type ClientInfo struct {
	// ID is the client identifier.
	ID string

	// State is the registration lifecycle state.
	State ClientState

	// Permanent reflects the stored options.
	Permanent bool

	// UnsubDelay reflects the stored options (zero when none).
	UnsubDelay time.Duration
}

// EntryInfo describes one registry entry in a snapshot.
type EntryInfo struct {
	// Name is the subscription name.
	Name string

	// Args is the argument sequence of the request.
	Args []any

	// Key is the canonical key.
	Key Key

	// Ready is the entry's readiness at snapshot time.
	Ready bool

	// Clients lists the registered clients, ordered by id.
	Clients []ClientInfo
}

// Snapshot returns a point-in-time view of the registry, ordered by
// subscription name then key. Intended for inspection and tooling.
func (m *Manager) Snapshot() []EntryInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	infos := make([]EntryInfo, 0, len(m.entries))
	for _, e := range m.entries {
		info := EntryInfo{
			Name:    e.name,
			Args:    e.args,
			Key:     e.key,
			Ready:   e.ready.Load(),
			Clients: make([]ClientInfo, 0, len(e.clients)),
		}
		for id, reg := range e.clients {
			info.Clients = append(info.Clients, ClientInfo{
				ID:         id,
				State:      reg.state,
				Permanent:  reg.opts.permanent(),
				UnsubDelay: reg.opts.delayOrZero(),
			})
		}
		sort.Slice(info.Clients, func(i, j int) bool {
			return info.Clients[i].ID < info.Clients[j].ID
		})
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Name != infos[j].Name {
			return infos[i].Name < infos[j].Name
		}
		return infos[i].Key < infos[j].Key
	})
	return infos
}

// Close tears the whole registry down: pending release timers are
// cancelled, every resource handle is stopped, and all entries and
// registrations are discarded. The manager is empty but usable
// afterwards.
func (m *Manager) Close() {
	var events []log.Event
	var handles []Handle

	m.mu.Lock()

	for _, e := range m.entries {
		for _, reg := range e.clients {
			reg.cancelRelease()
		}
		e.clients = make(map[string]*registration)

		if e.handle != nil {
			handles = append(handles, e.handle)
		}
		ev := newEvent(log.KindTeardown, e, "")
		ev.Teardown = &log.TeardownEvent{Stopped: e.handle != nil}
		e.handle = nil
		events = append(events, ev)
	}
	m.entries = make(map[Key]*entry)

	m.mu.Unlock()

	for _, h := range handles {
		h.Stop()
	}
	for _, ev := range events {
		m.logger.Log(ev)
	}
}

// newEvent builds a lifecycle event for an entry.
func newEvent(kind log.Kind, e *entry, clientID string) log.Event {
	return log.Event{
		Timestamp: time.Now(),
		Kind:      kind,
		Key:       e.key.String(),
		Name:      e.name,
		ClientID:  clientID,
	}
}
