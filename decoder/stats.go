package decoder

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/xaionaro-go/amcdecoder/types"
	"github.com/xaionaro-go/xsync"
)

type Counters struct {
	FramesSubmitted     types.CountersItem
	FramesQueued        types.CountersItem
	ChunksQueued        types.CountersItem
	BuffersDelivered    types.CountersItem
	UntaggedOutputs     atomic.Uint64
	EmptyOutputs        atomic.Uint64
	FramesDroppedLate   atomic.Uint64
	CodecConfigFrames   atomic.Uint64
	Releases            atomic.Uint64
	StaleReleases       atomic.Uint64
	OutputFormatChanges atomic.Uint64
	Flushes             atomic.Uint64
	Reconfigurations    atomic.Uint64
	SessionsOpened      atomic.Uint64
	FatalErrors         atomic.Uint64
}

type Stats struct {
	SessionID string

	FramesSubmitted  types.StatisticsItem
	FramesQueued     types.StatisticsItem
	ChunksQueued     types.StatisticsItem
	BuffersDelivered types.StatisticsItem

	UntaggedOutputs     uint64
	EmptyOutputs        uint64
	FramesDroppedLate   uint64
	FramesEvicted       uint64
	CodecConfigFrames   uint64
	Releases            uint64
	StaleReleases       uint64
	OutputFormatChanges uint64
	Flushes             uint64
	Reconfigurations    uint64
	SessionsOpened      uint64
	FatalErrors         uint64

	PendingFrames int

	// DecodeLatency is the smoothed time between queueing the first chunk
	// of a frame and dequeuing its output.
	DecodeLatency time.Duration
}

func (d *Decoder) Stats() Stats {
	ctx := xsync.WithNoLogging(context.TODO(), true)
	var (
		sessionID string
		evicted   uint64
		pending   int
	)
	d.locker.Do(ctx, func() {
		if d.session != nil {
			sessionID = d.sessionID.String()
		}
		evicted = d.correlator.EvictedCount()
		pending = d.correlator.Len()
	})
	c := &d.counters
	return Stats{
		SessionID:           sessionID,
		FramesSubmitted:     c.FramesSubmitted.ToStats(),
		FramesQueued:        c.FramesQueued.ToStats(),
		ChunksQueued:        c.ChunksQueued.ToStats(),
		BuffersDelivered:    c.BuffersDelivered.ToStats(),
		UntaggedOutputs:     c.UntaggedOutputs.Load(),
		EmptyOutputs:        c.EmptyOutputs.Load(),
		FramesDroppedLate:   c.FramesDroppedLate.Load(),
		FramesEvicted:       evicted,
		CodecConfigFrames:   c.CodecConfigFrames.Load(),
		Releases:            c.Releases.Load(),
		StaleReleases:       c.StaleReleases.Load(),
		OutputFormatChanges: c.OutputFormatChanges.Load(),
		Flushes:             c.Flushes.Load(),
		Reconfigurations:    c.Reconfigurations.Load(),
		SessionsOpened:      c.SessionsOpened.Load(),
		FatalErrors:         c.FatalErrors.Load(),
		PendingFrames:       pending,
		DecodeLatency:       d.latency.Value(),
	}
}
