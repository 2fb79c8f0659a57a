package decoder

import (
	"fmt"
)

type State int

const (
	StateClosed = State(iota)
	StateOpened
	StateConfiguring
	StateRunning
	StateFlushing
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpened:
		return "opened"
	case StateConfiguring:
		return "configuring"
	case StateRunning:
		return "running"
	case StateFlushing:
		return "flushing"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("unknown_%d", int(s))
	}
}

// CanProcessBuffers reports whether buffers may be exchanged with the codec.
func (s State) CanProcessBuffers() bool {
	return s == StateRunning
}
