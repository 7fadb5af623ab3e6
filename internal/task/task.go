// Package task runs and supervises the goroutines of sessions and polling workers.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-slmp/logger"
)

// Func is the body of a looping task. It returns false to stop the task.
type Func func() bool

// ReadFunc is the body of a receiver task. buf is a scratch buffer owned by the task.
// It returns false to stop the task.
type ReadFunc func(buf []byte) bool

// CancelFunc is called once when a task exits.
type CancelFunc func()

var (
	// ErrStopped is returned when starting a task on a stopped Manager.
	ErrStopped = errors.New("task manager stopped")

	// ErrDuplicateInterval is returned when an interval task of the same name is running.
	ErrDuplicateInterval = errors.New("interval task already exists")
)

const startTimeout = 5 * time.Second

// Manager starts named goroutines bound to one context and waits for them.
//
// Stop cancels every task; Wait blocks until they have exited and re-arms the Manager so
// it can be reused for the next connection.
type Manager struct {
	pctx    context.Context
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  logger.Logger
	count   atomic.Int32
	tickers sync.Map // name -> *time.Ticker

	mu     sync.RWMutex // guards ctx and cancel
	taskMu sync.RWMutex // blocks new tasks during Wait
}

// NewManager returns a Manager whose tasks end when ctx is done or Stop is called.
func NewManager(ctx context.Context, l logger.Logger) *Manager {
	mgr := &Manager{pctx: ctx, logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

// Context returns the context shared by the running tasks.
func (mgr *Manager) Context() context.Context {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	return mgr.ctx
}

// Start runs fn in a loop until it returns false or the Manager is stopped.
func (mgr *Manager) Start(name string, fn Func) error {
	mgr.logger.Debug("start task", "name", name)

	starter, err := mgr.newStarter(name)
	if err != nil {
		return err
	}
	starter.run(func() {
		mgr.loop(name, fn)
	})

	return starter.wait()
}

// StartReceiver runs fn in a loop with a scratch buffer of bufSize bytes. onExit runs when the
// loop ends for any reason.
func (mgr *Manager) StartReceiver(name string, bufSize int, fn ReadFunc, onExit CancelFunc) error {
	mgr.logger.Debug("start receiver task", "name", name, "buf_size", bufSize)

	starter, err := mgr.newStarter(name)
	if err != nil {
		return err
	}
	starter.run(func() {
		if onExit != nil {
			defer onExit()
		}
		buf := make([]byte, bufSize)
		mgr.loop(name, func() bool {
			return fn(buf)
		})
	})

	return starter.wait()
}

// StartInterval runs fn every interval until it returns false or the Manager is stopped.
// When runNow is true fn also runs once before StartInterval returns; if that call returns false
// no goroutine is started.
func (mgr *Manager) StartInterval(name string, fn Func, interval time.Duration, runNow bool) error {
	mgr.logger.Debug("start interval task", "name", name, "interval", interval, "run_now", runNow)

	if interval <= 0 {
		return fmt.Errorf("invalid interval: %v", interval)
	}

	ticker := time.NewTicker(interval)
	if _, loaded := mgr.tickers.LoadOrStore(name, ticker); loaded {
		ticker.Stop()
		return fmt.Errorf("%w: %s", ErrDuplicateInterval, name)
	}
	cleanup := func() {
		ticker.Stop()
		mgr.tickers.CompareAndDelete(name, ticker)
	}

	if runNow && !mgr.call(name, fn) {
		cleanup()
		return nil
	}

	starter, err := mgr.newStarter(name)
	if err != nil {
		cleanup()
		return err
	}
	starter.run(func() {
		defer cleanup()

		ctx := mgr.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !mgr.call(name, fn) {
					return
				}
			}
		}
	})

	if err := starter.wait(); err != nil {
		cleanup()
		return err
	}

	return nil
}

// StopInterval stops the ticker of the named interval task. The task goroutine exits on the
// next Stop.
func (mgr *Manager) StopInterval(name string) error {
	val, ok := mgr.tickers.LoadAndDelete(name)
	if !ok {
		return fmt.Errorf("interval task %s not found", name)
	}
	val.(*time.Ticker).Stop()

	return nil
}

// Stop signals every task to exit.
func (mgr *Manager) Stop() {
	mgr.tickers.Range(func(_, value any) bool {
		value.(*time.Ticker).Stop()
		return true
	})

	mgr.mu.Lock()
	if mgr.cancel != nil {
		mgr.cancel()
	}
	mgr.mu.Unlock()
}

// Wait blocks until every task has exited, then re-arms the Manager with a fresh context.
func (mgr *Manager) Wait() {
	mgr.taskMu.Lock()
	defer mgr.taskMu.Unlock()

	mgr.wg.Wait()

	mgr.mu.Lock()
	mgr.ctx, mgr.cancel = context.WithCancel(mgr.pctx)
	mgr.mu.Unlock()
}

// Count returns the number of running tasks.
func (mgr *Manager) Count() int {
	return int(mgr.count.Load())
}

func (mgr *Manager) call(name string, fn Func) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task", "name", name, "panic", r)
			ok = false
		}
	}()

	return fn()
}

func (mgr *Manager) loop(name string, fn Func) {
	ctx := mgr.Context()
	for {
		select {
		case <-ctx.Done():
			return
		default:
			if !mgr.call(name, fn) {
				return
			}
		}
	}
}

type starter struct {
	mgr     *Manager
	name    string
	started chan struct{}
}

func (mgr *Manager) newStarter(name string) (*starter, error) {
	if mgr.Context().Err() != nil {
		return nil, fmt.Errorf("%w: cannot start %s", ErrStopped, name)
	}

	return &starter{mgr: mgr, name: name, started: make(chan struct{})}, nil
}

func (s *starter) run(body func()) {
	s.mgr.taskMu.RLock()
	defer s.mgr.taskMu.RUnlock()

	s.mgr.wg.Add(1)
	s.mgr.count.Add(1)

	go func() {
		defer s.mgr.wg.Done()
		defer func() {
			s.mgr.count.Add(-1)
			s.mgr.logger.Debug("task terminated", "name", s.name, "task_count", s.mgr.Count())
		}()

		close(s.started)
		body()
	}()
}

func (s *starter) wait() error {
	timer := time.NewTimer(startTimeout)
	defer timer.Stop()

	select {
	case <-s.started:
		return nil
	case <-timer.C:
		return fmt.Errorf("timeout waiting for %s to start", s.name)
	}
}
