package fake

import (
	"slices"
	"time"
)

type Stats struct {
	Configures     int
	Starts         int
	Stops          int
	Flushes        int
	Renders        int
	Drops          int
	DoubleReleases int
	Outstanding    int
	Released       bool
}

func (s *Session) Stats() Stats {
	s.locker.Lock()
	defer s.locker.Unlock()
	return Stats{
		Configures:     s.configureCount,
		Starts:         s.startCount,
		Stops:          s.stopCount,
		Flushes:        s.flushCount,
		Renders:        s.renderCount,
		Drops:          s.dropCount,
		DoubleReleases: s.doubleReleases,
		Outstanding:    len(s.outstanding),
		Released:       s.state == stateReleased,
	}
}

// QueuedInputs returns every input buffer queued since the session was
// created.
func (s *Session) QueuedInputs() []QueuedInput {
	s.locker.Lock()
	defer s.locker.Unlock()
	return slices.Clone(s.queuedInputs)
}

func (s *Session) InputTimeouts() []time.Duration {
	s.locker.Lock()
	defer s.locker.Unlock()
	return slices.Clone(s.inputTimeouts)
}

func (s *Session) OutputTimeouts() []time.Duration {
	s.locker.Lock()
	defer s.locker.Unlock()
	return slices.Clone(s.outputTimeouts)
}
