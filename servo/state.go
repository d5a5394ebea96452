package servo

import (
	"context"
	"sync"
	"sync/atomic"
)

// State represents the lifecycle stage of a servo session.
type State uint32

const (
	// DisconnectedState indicates that no transport handle is held.
	DisconnectedState State = iota
	// ConnectingState indicates that device selection or open is running.
	ConnectingState
	// ConnectedState indicates that the handle is open and commands are accepted.
	ConnectedState
	// FaultedState indicates that the last connect or write failed. Like
	// DisconnectedState it accepts Connect.
	FaultedState
)

// IsConnected returns if the state accepts commands.
func (s State) IsConnected() bool { return s == ConnectedState }

// CanConnect returns if Connect is valid from this state without forcing a release.
func (s State) CanConnect() bool { return s == DisconnectedState || s == FaultedState }

// String returns string representation of the state.
func (s State) String() string {
	switch s {
	case DisconnectedState:
		return "disconnected"
	case ConnectingState:
		return "connecting"
	case ConnectedState:
		return "connected"
	case FaultedState:
		return "faulted"
	default:
		return "unknown"
	}
}

// StateChangeHandler is invoked after a session changes state.
//
// The handler runs synchronously on the goroutine that made the transition,
// after the session lock is released, so it may call back into the session.
type StateChangeHandler func(prevState State, newState State)

// stateMgr holds the session state and notifies listeners of transitions.
// Callers serialize transitions; reads are lock free.
type stateMgr struct {
	state    atomic.Uint32
	mu       sync.Mutex
	cond     *sync.Cond
	handlers []StateChangeHandler
}

func newStateMgr() *stateMgr {
	sm := &stateMgr{}
	sm.cond = sync.NewCond(&sm.mu)
	sm.state.Store(uint32(DisconnectedState))

	return sm
}

func (sm *stateMgr) State() State {
	return State(sm.state.Load())
}

func (sm *stateMgr) addHandler(handlers ...StateChangeHandler) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.handlers = append(sm.handlers, handlers...)
}

// swap moves to newState and wakes waiters. It returns the previous state.
// Handlers are not invoked; the caller passes the result to notify once it
// no longer holds its own locks.
func (sm *stateMgr) swap(newState State) State {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	prev := State(sm.state.Swap(uint32(newState)))
	sm.cond.Broadcast()

	return prev
}

// notify invokes the handlers for a transition returned by swap.
// Same-state transitions are skipped.
func (sm *stateMgr) notify(prev State, newState State) {
	if prev == newState {
		return
	}

	sm.mu.Lock()
	handlers := sm.handlers
	sm.mu.Unlock()

	for _, h := range handlers {
		if h != nil {
			h(prev, newState)
		}
	}
}

// waitState blocks until the state equals desired or ctx is done.
func (sm *stateMgr) waitState(ctx context.Context, desired State) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.State() == desired {
		return nil
	}

	stop := context.AfterFunc(ctx, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		sm.cond.Broadcast()
	})
	defer stop()

	for sm.State() != desired {
		if err := ctx.Err(); err != nil {
			return err
		}
		sm.cond.Wait()
	}

	return nil
}
