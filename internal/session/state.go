package session

import "fmt"

// State is the invocation state machine. Exactly one invocation may be in a
// non-idle state at a time.
type State int

const (
	StateIdle State = iota
	StateResolving
	StateRunning
	StateFinalizing
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateResolving:
		return "RESOLVING"
	case StateRunning:
		return "RUNNING"
	case StateFinalizing:
		return "FINALIZING"
	case StateFailed:
		return "FAILED"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// SessionBusyError rejects an operation because an invocation is already in
// flight. The attempt is never queued and session state is unchanged.
type SessionBusyError struct {
	State State
}

func (e *SessionBusyError) Error() string {
	return fmt.Sprintf("session is busy (state %s): only one invocation may run at a time", e.State)
}
