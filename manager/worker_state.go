package manager

import "sync/atomic"

// WorkerState is the lifecycle state of a polling worker.
type WorkerState uint32

const (
	StoppedState WorkerState = iota
	StoppingState
	StartingState
	RunningState
	FailedState
)

func (s WorkerState) String() string {
	switch s {
	case StoppedState:
		return "stopped"
	case StoppingState:
		return "stopping"
	case StartingState:
		return "starting"
	case RunningState:
		return "running"
	case FailedState:
		return "failed"
	default:
		return "unknown"
	}
}

type atomicWorkerState struct {
	state atomic.Uint32
}

func (st *atomicWorkerState) Get() WorkerState {
	return WorkerState(st.state.Load())
}

func (st *atomicWorkerState) Set(state WorkerState) {
	st.state.Store(uint32(state))
}

func (st *atomicWorkerState) IsRunning() bool {
	return st.Get() == RunningState
}

func (st *atomicWorkerState) ToRunning() bool {
	return st.state.CompareAndSwap(uint32(StartingState), uint32(RunningState))
}

// ToStopping accepts a starting, running or failed worker.
func (st *atomicWorkerState) ToStopping() bool {
	for _, from := range []WorkerState{RunningState, StartingState, FailedState} {
		if st.state.CompareAndSwap(uint32(from), uint32(StoppingState)) {
			return true
		}
	}

	return false
}

func (st *atomicWorkerState) ToStopped() bool {
	if st.Get() == StoppedState {
		return true
	}

	return st.state.CompareAndSwap(uint32(StoppingState), uint32(StoppedState))
}

func (st *atomicWorkerState) ToFailed() bool {
	return st.state.CompareAndSwap(uint32(RunningState), uint32(FailedState))
}
