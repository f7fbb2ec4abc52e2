package device

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scheerer/homelights/internal/logging"
)

// MatchFunc decides whether a caller supplied name refers to a device name.
type MatchFunc func(query, name string) bool

// ExactMatch compares names case-sensitively.
func ExactMatch(query, name string) bool {
	return query == name
}

// FoldMatch compares names ignoring case.
func FoldMatch(query, name string) bool {
	return strings.EqualFold(query, name)
}

// Options configures a Manager.
type Options struct {
	// Kind names the device family in logs, e.g. "bulb".
	Kind string
	// Match defaults to ExactMatch.
	Match MatchFunc
	// UnknownReason builds the reason reported for a name that matches no
	// device. It receives every known name in spec order.
	UnknownReason func(names []string) string

	IdlePoll    time.Duration
	SettleDelay time.Duration
	Logger      *zap.SugaredLogger
}

// Entry is one device in a snapshot.
type Entry[S any] struct {
	Name  string `json:"name"`
	State S      `json:"state"`
}

// Change is delivered to watchers after a Set is accepted.
type Change[S any] struct {
	Name  string
	State S
}

type managed[S any] struct {
	worker *Worker[S]
	cached S
}

// Manager owns one worker per spec and a cache of their states. Spec order
// is preserved everywhere names or states are listed.
type Manager[S any] struct {
	opts   Options
	logger *zap.SugaredLogger

	mu      sync.RWMutex
	devices []*managed[S]

	watchMu  sync.RWMutex
	watchers []func(Change[S])

	shutdownOnce sync.Once
}

// NewManager builds a driver for each spec and starts its worker.
func NewManager[S any](specs []Spec, factory DriverFactory[S], opts Options) *Manager[S] {
	if opts.Match == nil {
		opts.Match = ExactMatch
	}
	if opts.Kind == "" {
		opts.Kind = "device"
	}
	if opts.UnknownReason == nil {
		opts.UnknownReason = func([]string) string { return opts.Kind + " name not found" }
	}
	if opts.Logger == nil {
		opts.Logger = logging.New(opts.Kind)
	}

	m := &Manager[S]{
		opts:    opts,
		logger:  opts.Logger,
		devices: make([]*managed[S], 0, len(specs)),
	}
	for _, spec := range specs {
		w := NewWorker(spec, factory(spec), WorkerConfig{
			IdlePoll:    opts.IdlePoll,
			SettleDelay: opts.SettleDelay,
			Logger:      opts.Logger,
		})
		m.devices = append(m.devices, &managed[S]{worker: w})
	}
	for _, d := range m.devices {
		d.worker.Start()
	}

	m.logger.With(zap.Int("count", len(specs))).Info("Started device workers")
	return m
}

// Names lists device names in spec order.
func (m *Manager[S]) Names() []string {
	names := make([]string, len(m.devices))
	for i, d := range m.devices {
		names[i] = d.worker.spec.Name
	}
	return names
}

func (m *Manager[S]) Len() int {
	return len(m.devices)
}

// Resolve maps a caller supplied name to the canonical device name.
func (m *Manager[S]) Resolve(name string) (string, bool) {
	i, ok := m.find(name)
	if !ok {
		return "", false
	}
	return m.devices[i].worker.spec.Name, true
}

func (m *Manager[S]) find(name string) (int, bool) {
	for i, d := range m.devices {
		if m.opts.Match(name, d.worker.spec.Name) {
			return i, true
		}
	}
	return -1, false
}

// UnknownResult is the error result for a name that matches no device.
func (m *Manager[S]) UnknownResult(name string) Result[S] {
	return Reject[S](name, m.opts.UnknownReason(m.Names()), ErrUnknownDevice)
}

// Set records v as the desired state of name and hands it to the device's
// worker. It never waits on the device.
func (m *Manager[S]) Set(name string, v S) Result[S] {
	i, ok := m.find(name)
	if !ok {
		return m.UnknownResult(name)
	}
	d := m.devices[i]

	m.mu.Lock()
	d.cached = v
	m.mu.Unlock()
	d.worker.RequestChange(v)

	m.notify(Change[S]{Name: d.worker.spec.Name, State: v})
	return Success(name, v)
}

// Get refreshes the cache for name from its worker and returns the value.
func (m *Manager[S]) Get(name string) (S, bool) {
	i, ok := m.find(name)
	if !ok {
		var zero S
		return zero, false
	}
	return m.refresh(i), true
}

// Lookup is Get shaped as a Result.
func (m *Manager[S]) Lookup(name string) Result[S] {
	v, ok := m.Get(name)
	if !ok {
		return m.UnknownResult(name)
	}
	return Success(name, v)
}

func (m *Manager[S]) refresh(i int) S {
	d := m.devices[i]
	v := d.worker.State()
	m.mu.Lock()
	d.cached = v
	m.mu.Unlock()
	return v
}

// Snapshot refreshes and returns every device state in spec order.
func (m *Manager[S]) Snapshot() []Entry[S] {
	entries := make([]Entry[S], len(m.devices))
	for i, d := range m.devices {
		entries[i] = Entry[S]{Name: d.worker.spec.Name, State: m.refresh(i)}
	}
	return entries
}

// Cached returns the cache without consulting the workers.
func (m *Manager[S]) Cached() []Entry[S] {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]Entry[S], len(m.devices))
	for i, d := range m.devices {
		entries[i] = Entry[S]{Name: d.worker.spec.Name, State: d.cached}
	}
	return entries
}

// WaitReady blocks until every worker has connected and then until every
// worker has reported its initial status, and then fills the cache. A ctx
// without a deadline waits for as long as the devices take.
func (m *Manager[S]) WaitReady(ctx context.Context) error {
	for _, d := range m.devices {
		if err := m.await(ctx, d.worker, d.worker.readiness.Connected()); err != nil {
			return err
		}
	}
	m.logger.Info("All devices connected")

	for _, d := range m.devices {
		if err := m.await(ctx, d.worker, d.worker.readiness.StatusKnown()); err != nil {
			return err
		}
	}
	m.Snapshot()
	m.logger.Info("All device states known")
	return nil
}

func (m *Manager[S]) await(ctx context.Context, w *Worker[S], signal <-chan struct{}) error {
	select {
	case <-signal:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: waiting on %s %q (%s): %w", ErrNotReady, m.opts.Kind, w.spec.Name, w.Status(), ctx.Err())
	}
}

// Ready reports whether every worker has reported its initial status.
func (m *Manager[S]) Ready() bool {
	for _, d := range m.devices {
		if !d.worker.readiness.IsStatusKnown() {
			return false
		}
	}
	return true
}

// Statuses reports each worker's lifecycle position in spec order.
func (m *Manager[S]) Statuses() []Entry[Status] {
	entries := make([]Entry[Status], len(m.devices))
	for i, d := range m.devices {
		entries[i] = Entry[Status]{Name: d.worker.spec.Name, State: d.worker.Status()}
	}
	return entries
}

// Watch registers fn to run after every accepted Set. fn runs on the
// caller's goroutine and must not block.
func (m *Manager[S]) Watch(fn func(Change[S])) {
	m.watchMu.Lock()
	defer m.watchMu.Unlock()
	m.watchers = append(m.watchers, fn)
}

func (m *Manager[S]) notify(c Change[S]) {
	m.watchMu.RLock()
	watchers := m.watchers
	m.watchMu.RUnlock()

	for _, fn := range watchers {
		fn(c)
	}
}

// Shutdown signals every worker and then joins them all.
func (m *Manager[S]) Shutdown() {
	m.shutdownOnce.Do(func() {
		m.logger.Info("Shutting down device workers")
		for _, d := range m.devices {
			d.worker.Shutdown()
		}
		for _, d := range m.devices {
			d.worker.Wait()
		}
		m.logger.Info("Device workers stopped")
	})
}
