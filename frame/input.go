package frame

import (
	"fmt"
	"time"
)

type Input struct {
	SystemFrameNumber uint64
	PTS               time.Duration
	Duration          time.Duration
	Payload           []byte

	IsSyncPoint   bool
	IsCodecConfig bool

	// Deadline is the moment after which the decoded picture is useless;
	// zero means no deadline.
	Deadline time.Time
}

func (f *Input) String() string {
	return fmt.Sprintf("Input(#%d; pts:%v dur:%v size:%d sync:%t config:%t)",
		f.SystemFrameNumber, f.PTS, f.Duration, len(f.Payload), f.IsSyncPoint, f.IsCodecConfig)
}

// Pending returns the pending-frame record of the input (without identity).
func (f *Input) Pending() *Pending {
	return &Pending{
		SystemFrameNumber: f.SystemFrameNumber,
		PTS:               f.PTS,
		Duration:          f.Duration,
		IsSyncPoint:       f.IsSyncPoint,
		Deadline:          f.Deadline,
	}
}
