package manager

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-slmp/logger"
	"github.com/arloliu/go-slmp/slmp"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"
)

const defaultBaseTick = 100 * time.Millisecond

// Manager is a table of managed connections. The zero value is not usable; use New.
//
// Manager methods are safe for concurrent use. Lifecycle calls for the same endpoint are
// serialised; calls for different endpoints run independently.
type Manager struct {
	ctx      context.Context
	baseTick time.Duration
	logger   logger.Logger

	mu      sync.Mutex
	workers map[slmp.Properties]*worker

	// per-endpoint locks held across dial and teardown
	keyLocks *xsync.MapOf[slmp.Properties, *endpointLock]
	nextID   atomic.Uint64
}

// Option configures a Manager.
type Option func(*Manager)

// WithContext sets the context that bounds every worker and session of the manager.
func WithContext(ctx context.Context) Option {
	return func(m *Manager) {
		if ctx != nil {
			m.ctx = ctx
		}
	}
}

// WithBaseTick sets the polling base period. The default is 100 ms.
func WithBaseTick(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.baseTick = d
		}
	}
}

// WithLogger sets the manager logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// ConnectOption configures one connection made by Connect.
type ConnectOption func(*connectOptions)

type connectOptions struct {
	targets []Target
}

// WithTargets sets the initial polling targets.
func WithTargets(targets ...Target) ConnectOption {
	return func(o *connectOptions) {
		o.targets = append(o.targets, targets...)
	}
}

// New creates an empty Manager.
func New(opts ...Option) *Manager {
	m := &Manager{
		ctx:      context.Background(),
		baseTick: defaultBaseTick,
		logger:   logger.GetLogger(),
		workers:  make(map[slmp.Properties]*worker),
		keyLocks: xsync.NewMapOf[slmp.Properties, *endpointLock](),
	}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

// endpointLock serialises Connect and Disconnect of one endpoint. refs counts the callers holding
// or waiting for it; the entry is removed when it drops to zero.
type endpointLock struct {
	sync.Mutex
	refs int
}

// lockEndpoint locks props and returns the unlock function.
func (m *Manager) lockEndpoint(props slmp.Properties) func() {
	l, _ := m.keyLocks.Compute(props, func(l *endpointLock, loaded bool) (*endpointLock, bool) {
		if !loaded {
			l = &endpointLock{}
		}
		l.refs++

		return l, false
	})
	l.Lock()

	return func() {
		l.Unlock()
		m.keyLocks.Compute(props, func(l *endpointLock, _ bool) (*endpointLock, bool) {
			l.refs--
			return l, l.refs == 0
		})
	}
}

func (m *Manager) lookup(h Handle) (*worker, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.workers[h.Props]
	if !ok || w.handle.ID != h.ID {
		return nil, false
	}

	return w, true
}

// Connect dials the endpoint of cfg and starts its polling worker. An existing connection to the
// same endpoint is disconnected first.
func (m *Manager) Connect(ctx context.Context, cfg *slmp.ConnectionConfig, t CyclicTask, opts ...ConnectOption) (Handle, error) {
	if cfg == nil {
		return Handle{}, slmp.ErrConnConfigNil
	}
	if t == nil {
		return Handle{}, ErrNilTask
	}

	var co connectOptions
	for _, opt := range opts {
		opt(&co)
	}
	space := cfg.Space()
	for _, target := range co.targets {
		if err := checkTarget(space, target); err != nil {
			return Handle{}, err
		}
	}

	props := cfg.Properties()
	unlock := m.lockEndpoint(props)
	defer unlock()

	m.mu.Lock()
	old := m.workers[props]
	delete(m.workers, props)
	m.mu.Unlock()

	if old != nil {
		m.logger.Info("replace connection", "handle", old.handle.ID, "endpoint", props.Address())
		_ = old.stop()
	}

	sess, err := slmp.NewSession(m.ctx, cfg)
	if err != nil {
		return Handle{}, err
	}
	if err := sess.Connect(ctx); err != nil {
		_ = sess.Close()
		return Handle{}, err
	}

	h := Handle{ID: m.nextID.Add(1), Props: props}
	w := newWorker(m.ctx, h, sess, t, m.baseTick, sess.Logger().With("handle", h.ID))
	w.setTargets(co.targets)

	// insert before starting so a failing first cycle is still visible through Status
	m.mu.Lock()
	m.workers[props] = w
	m.mu.Unlock()

	if err := w.start(); err != nil {
		m.mu.Lock()
		delete(m.workers, props)
		m.mu.Unlock()
		_ = w.stop()

		return Handle{}, err
	}

	return h, nil
}

// Disconnect stops the worker of h, waits for the cycle in progress and closes its session.
// Unknown and stale handles are ignored.
func (m *Manager) Disconnect(h Handle) error {
	unlock := m.lockEndpoint(h.Props)
	defer unlock()

	m.mu.Lock()
	w, ok := m.workers[h.Props]
	if !ok || w.handle.ID != h.ID {
		m.mu.Unlock()
		return nil
	}
	delete(m.workers, h.Props)
	m.mu.Unlock()

	return w.stop()
}

// DisconnectAll disconnects every connection concurrently. It returns early with ctx.Err() if ctx
// is done first; the remaining workers keep stopping in the background.
func (m *Manager) DisconnectAll(ctx context.Context) error {
	m.mu.Lock()
	workers := make([]*worker, 0, len(m.workers))
	for props, w := range m.workers {
		workers = append(workers, w)
		delete(m.workers, props)
	}
	m.mu.Unlock()

	var g errgroup.Group
	for _, w := range workers {
		g.Go(w.stop)
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RegisterTargets replaces the polling targets of h. It takes effect from the next tick.
func (m *Manager) RegisterTargets(h Handle, targets ...Target) error {
	w, ok := m.lookup(h)
	if !ok {
		return ErrNotFound
	}

	space := w.sess.Space()
	for _, t := range targets {
		if err := checkTarget(space, t); err != nil {
			return err
		}
	}
	w.setTargets(targets)
	w.logger.Debug("targets registered", "count", len(targets))

	return nil
}

// Status returns a snapshot of h.
func (m *Manager) Status(h Handle) (Status, error) {
	w, ok := m.lookup(h)
	if !ok {
		return Status{}, ErrNotFound
	}

	return w.status(), nil
}

// Wait blocks until the worker of h ends and returns its terminal error: a *TaskError when the
// cyclic task failed, nil when it was disconnected.
func (m *Manager) Wait(ctx context.Context, h Handle) error {
	w, ok := m.lookup(h)
	if !ok {
		return ErrNotFound
	}

	select {
	case <-w.done:
		return w.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connections returns the status of every connection ordered by handle ID.
func (m *Manager) Connections() []Status {
	m.mu.Lock()
	workers := make([]*worker, 0, len(m.workers))
	for _, w := range m.workers {
		workers = append(workers, w)
	}
	m.mu.Unlock()

	list := make([]Status, 0, len(workers))
	for _, w := range workers {
		list = append(list, w.status())
	}
	slices.SortFunc(list, func(a, b Status) int {
		switch {
		case a.Handle.ID < b.Handle.ID:
			return -1
		case a.Handle.ID > b.Handle.ID:
			return 1
		default:
			return 0
		}
	})

	return list
}

// Operate runs fn with the session of h. Requests from fn are serialised with the worker's polling.
func (m *Manager) Operate(ctx context.Context, h Handle, fn func(ctx context.Context, sess *slmp.Session) error) error {
	w, ok := m.lookup(h)
	if !ok {
		return ErrNotFound
	}

	return fn(ctx, w.sess)
}
