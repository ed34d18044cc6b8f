package source

import "sync/atomic"

// State is the adapter's position in its connect/stream/backoff cycle.
type State int32

const (
	Connecting State = iota
	Streaming
	BackingOff
	Stopped
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Streaming:
		return "streaming"
	case BackingOff:
		return "backing-off"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type stateVar struct {
	v atomic.Int32
}

func (s *stateVar) get() State     { return State(s.v.Load()) }
func (s *stateVar) set(next State) { s.v.Store(int32(next)) }
