package frame

import (
	"fmt"
	"time"
)

// Identity is attached to a pending frame when its first chunk is queued
// to the codec.
type Identity struct {
	Timestamp time.Duration
	Sequence  uint64
	QueuedAt  time.Time
}

type Pending struct {
	SystemFrameNumber uint64
	PTS               time.Duration
	Duration          time.Duration
	IsSyncPoint       bool
	Deadline          time.Time
	Identity          *Identity
}

func (f *Pending) HasIdentity() bool {
	return f.Identity != nil
}

func (f *Pending) IsLate(now time.Time) bool {
	return !f.Deadline.IsZero() && now.After(f.Deadline)
}

func (f *Pending) String() string {
	if f.Identity == nil {
		return fmt.Sprintf("Pending(#%d; pts:%v; not queued)", f.SystemFrameNumber, f.PTS)
	}
	return fmt.Sprintf("Pending(#%d; pts:%v; id:%v/%d)",
		f.SystemFrameNumber, f.PTS, f.Identity.Timestamp, f.Identity.Sequence)
}
