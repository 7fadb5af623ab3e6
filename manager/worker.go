package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-slmp/device"
	"github.com/arloliu/go-slmp/internal/task"
	"github.com/arloliu/go-slmp/logger"
	"github.com/arloliu/go-slmp/plcdata"
	"github.com/arloliu/go-slmp/slmp"
)

// CyclicTask is the caller's per-cycle body. Returning an error stops the worker for good.
//
// ctx is cancelled when the connection is disconnected or replaced.
type CyclicTask func(ctx context.Context, cycle *Cycle) error

// Cycle is what a CyclicTask receives on each tick.
type Cycle struct {
	Handle Handle
	// Number counts cycles from 1.
	Number uint64
	// Tick is the position in the 50-tick round.
	Tick int
	// Points are the targets due on this tick, in the order of Values.
	Points []device.Point
	Values []plcdata.Value
	// ReadErr is the error of the target read; Values is nil when it is set.
	ReadErr error
	// Session is the managed session. It may be used for further requests from the task.
	Session *slmp.Session
}

type worker struct {
	handle      Handle
	sess        *slmp.Session
	task        CyclicTask
	logger      logger.Logger
	taskMgr     *task.Manager
	baseTick    time.Duration
	connectedAt time.Time
	readLimit   int

	state  atomicWorkerState
	cycles atomic.Uint64
	tick   int // owned by the poll task

	schedMu sync.RWMutex
	sched   schedule

	finishOnce sync.Once
	done       chan struct{}
	err        error // set before done is closed
}

func newWorker(ctx context.Context, h Handle, sess *slmp.Session, t CyclicTask, baseTick time.Duration, l logger.Logger) *worker {
	w := &worker{
		handle:      h,
		sess:        sess,
		task:        t,
		logger:      l,
		taskMgr:     task.NewManager(ctx, l),
		baseTick:    baseTick,
		connectedAt: time.Now(),
		readLimit:   sess.Space().Limits.RandomReadPoints,
		done:        make(chan struct{}),
	}
	w.state.Set(StartingState)

	return w
}

func (w *worker) start() error {
	// fail only accepts a running worker
	w.state.ToRunning()
	if err := w.taskMgr.StartInterval("poll", w.poll, w.baseTick, false); err != nil {
		return err
	}
	w.logger.Info("worker started", "base_tick", w.baseTick)

	return nil
}

func (w *worker) setTargets(targets []Target) {
	sched := newSchedule(targets)

	w.schedMu.Lock()
	w.sched = sched
	w.schedMu.Unlock()
}

func (w *worker) duePoints(tick int) []device.Point {
	w.schedMu.RLock()
	defer w.schedMu.RUnlock()

	return w.sched.points(tick)
}

func (w *worker) poll() bool {
	ctx := w.taskMgr.Context()

	tick := w.tick
	w.tick = nextTick(tick)

	cycle := &Cycle{
		Handle:  w.handle,
		Number:  w.cycles.Add(1),
		Tick:    tick,
		Points:  w.duePoints(tick),
		Session: w.sess,
	}
	if len(cycle.Points) > 0 {
		cycle.Values, cycle.ReadErr = w.read(ctx, cycle.Points)
	}

	if ctx.Err() != nil {
		return false
	}

	if err := w.runTask(ctx, cycle); err != nil {
		// cancellation during Disconnect is not a task failure
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return false
		}
		w.fail(&TaskError{Handle: w.handle, Cycle: cycle.Number, Err: err})

		return false
	}

	return true
}

// runTask calls the cyclic task and turns a panic into an error.
func (w *worker) runTask(ctx context.Context, cycle *Cycle) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanic, r)
		}
	}()

	return w.task(ctx, cycle)
}

// read fetches points with as few random reads as the limits allow.
func (w *worker) read(ctx context.Context, points []device.Point) ([]plcdata.Value, error) {
	values := make([]plcdata.Value, 0, len(points))
	for _, chunk := range chunkPoints(points, w.readLimit) {
		vals, err := w.sess.ReadRandom(ctx, chunk...)
		if err != nil {
			return nil, err
		}
		values = append(values, vals...)
	}

	return values, nil
}

// fail ends the worker from the poll task. The session is closed here because nothing else
// will use it.
func (w *worker) fail(err error) {
	if !w.state.ToFailed() {
		return
	}
	w.logger.Error("cyclic task failed, worker stopped", "error", err)
	_ = w.sess.Close()
	w.finish(err)
}

// stop cancels the poll task, waits for the cycle in progress and closes the session.
func (w *worker) stop() error {
	w.state.ToStopping()

	w.taskMgr.Stop()
	w.taskMgr.Wait()

	err := w.sess.Close()
	w.state.ToStopped()
	w.finish(nil)
	w.logger.Info("worker stopped", "cycles", w.cycles.Load())

	return err
}

func (w *worker) finish(err error) {
	w.finishOnce.Do(func() {
		w.err = err
		close(w.done)
	})
}

func (w *worker) status() Status {
	st := Status{
		Handle:       w.handle,
		State:        w.state.Get(),
		SessionState: w.sess.State(),
		ConnectedAt:  w.connectedAt,
		Cycles:       w.cycles.Load(),
	}
	select {
	case <-w.done:
		st.Err = w.err
	default:
	}

	return st
}
