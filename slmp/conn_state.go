package slmp

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-slmp/logger"
)

// ConnState is the lifecycle state of a Session.
type ConnState uint32

const (
	// DisconnectedState indicates that no transport is open.
	DisconnectedState ConnState = iota
	// ConnectingState indicates that the transport is being opened.
	ConnectingState
	// ConnectedState indicates that commands may be issued.
	ConnectedState
)

// IsDisconnected returns if the state is disconnected.
func (cs ConnState) IsDisconnected() bool { return cs == DisconnectedState }

// IsConnecting returns if the state is connecting.
func (cs ConnState) IsConnecting() bool { return cs == ConnectingState }

// IsConnected returns if the state is connected.
func (cs ConnState) IsConnected() bool { return cs == ConnectedState }

func (cs ConnState) String() string {
	switch cs {
	case DisconnectedState:
		return "disconnected"
	case ConnectingState:
		return "connecting"
	case ConnectedState:
		return "connected"
	default:
		return "unknown"
	}
}

// ConnStateChangeHandler is invoked synchronously on every state change.
// Take care with long-running implementations.
type ConnStateChangeHandler func(sess *Session, prevState ConnState, newState ConnState)

// ConnStateMgr holds the state of a session and notifies handlers and waiters of changes.
type ConnStateMgr struct {
	mu       sync.Mutex
	cond     *sync.Cond
	state    atomic.Uint32
	sess     *Session
	logger   logger.Logger
	handlers []ConnStateChangeHandler
}

// NewConnStateMgr returns a manager in DisconnectedState.
func NewConnStateMgr(sess *Session, l logger.Logger, handlers ...ConnStateChangeHandler) *ConnStateMgr {
	cs := &ConnStateMgr{sess: sess, logger: l}
	cs.cond = sync.NewCond(&cs.mu)
	cs.handlers = append(cs.handlers, handlers...)
	cs.state.Store(uint32(DisconnectedState))

	return cs
}

// State returns the current state.
func (cs *ConnStateMgr) State() ConnState {
	return ConnState(cs.state.Load())
}

// AddHandler registers handlers invoked on state changes.
func (cs *ConnStateMgr) AddHandler(handlers ...ConnStateChangeHandler) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.handlers = append(cs.handlers, handlers...)
}

// WaitState blocks until the state equals state or ctx is done.
func (cs *ConnStateMgr) WaitState(ctx context.Context, state ConnState) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.State() == state {
		return nil
	}

	stop := context.AfterFunc(ctx, func() {
		cs.mu.Lock()
		defer cs.mu.Unlock()
		cs.cond.Broadcast()
	})
	defer stop()

	for cs.State() != state {
		if err := ctx.Err(); err != nil {
			return err
		}
		cs.cond.Wait()
	}

	return nil
}

// ToConnecting moves Disconnected to Connecting.
func (cs *ConnStateMgr) ToConnecting() error {
	return cs.transition(ConnectingState, DisconnectedState)
}

// ToConnected moves Connecting to Connected.
func (cs *ConnStateMgr) ToConnected() error {
	return cs.transition(ConnectedState, ConnectingState)
}

// ToDisconnected moves any state to Disconnected. It reports whether the state changed.
func (cs *ConnStateMgr) ToDisconnected() bool {
	return cs.transition(DisconnectedState, ConnectingState, ConnectedState) == nil
}

func (cs *ConnStateMgr) transition(to ConnState, from ...ConnState) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cur := cs.State()
	allowed := false
	for _, f := range from {
		if cur == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return &StateError{Op: "to " + to.String(), State: cur, Err: ErrInvalidTransition}
	}

	cs.state.Store(uint32(to))
	cs.cond.Broadcast()
	cs.logger.Debug("session state changed", "from", cur, "to", to)

	for _, h := range cs.handlers {
		if h != nil {
			h(cs.sess, cur, to)
		}
	}

	return nil
}
