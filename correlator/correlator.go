// Package correlator matches asynchronously returned decoder outputs to the
// upstream frames that produced them, by the nearest timestamp.
package correlator

import (
	"context"
	"slices"
	"time"

	"github.com/xaionaro-go/amcdecoder/frame"
	"github.com/xaionaro-go/amcdecoder/logger"
)

const (
	DefaultMaxAge = 5 * time.Second
	DefaultMaxLag = 100
)

// Correlator keeps the frames awaiting output in submission order.
//
// It is not safe for concurrent use; the owner serializes the access
// (the decoder does it under its stream lock).
type Correlator struct {
	MaxAge time.Duration
	MaxLag uint64

	frames       []*frame.Pending
	nextSequence uint64
	evictedCount uint64
}

func New(maxAge time.Duration, maxLag uint64) *Correlator {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if maxLag == 0 {
		maxLag = DefaultMaxLag
	}
	return &Correlator{
		MaxAge: maxAge,
		MaxLag: maxLag,
	}
}

// Add registers a frame awaiting output; it has no identity yet and is
// ignored by FindNearest until AttachIdentity is called.
func (c *Correlator) Add(f *frame.Pending) {
	c.frames = append(c.frames, f)
}

// AttachIdentity marks the frame as queued to the codec.
func (c *Correlator) AttachIdentity(
	f *frame.Pending,
	ts time.Duration,
	now time.Time,
) {
	c.nextSequence++
	f.Identity = &frame.Identity{
		Timestamp: ts,
		Sequence:  c.nextSequence,
		QueuedAt:  now,
	}
}

// Remove forgets the frame; it returns false if the frame was not tracked.
func (c *Correlator) Remove(f *frame.Pending) bool {
	idx := slices.Index(c.frames, f)
	if idx < 0 {
		return false
	}
	c.frames = slices.Delete(c.frames, idx, idx+1)
	return true
}

// Clear forgets all the frames and returns them.
func (c *Correlator) Clear() []*frame.Pending {
	frames := c.frames
	c.frames = nil
	return frames
}

func (c *Correlator) Len() int {
	return len(c.frames)
}

func (c *Correlator) EvictedCount() uint64 {
	return c.evictedCount
}

// FindNearest returns the queued frame whose identity timestamp is the
// closest to ts, or nil. The match stays tracked; frames queued before the
// match that are beyond MaxAge or MaxLag relative to it are evicted.
func (c *Correlator) FindNearest(
	ctx context.Context,
	ts time.Duration,
) *frame.Pending {
	var (
		best     *frame.Pending
		bestDist time.Duration
	)
	for _, f := range c.frames {
		if !f.HasIdentity() {
			continue
		}
		id := f.Identity.Timestamp
		dist := frame.Distance(id, ts)
		if best == nil || dist < bestDist {
			best, bestDist = f, dist
		}
		if dist == 0 || (id == 0 && ts == 0) {
			break
		}
	}
	if best == nil {
		logger.Tracef(ctx, "no pending frame for %v (of %d)", ts, len(c.frames))
		return nil
	}

	c.evictStale(ctx, best)
	return best
}

func (c *Correlator) evictStale(
	ctx context.Context,
	best *frame.Pending,
) {
	kept := c.frames[:0]
	for _, f := range c.frames {
		if f == best || !f.HasIdentity() || f.Identity.Sequence > best.Identity.Sequence {
			kept = append(kept, f)
			continue
		}

		age := best.Identity.Timestamp - f.Identity.Timestamp
		if best.Identity.Timestamp == frame.NoPTS || f.Identity.Timestamp == frame.NoPTS || age < 0 {
			age = 0
		}
		var lag uint64
		if best.SystemFrameNumber > f.SystemFrameNumber {
			lag = best.SystemFrameNumber - f.SystemFrameNumber
		}
		if age <= c.MaxAge && lag <= c.MaxLag {
			kept = append(kept, f)
			continue
		}

		logger.Errorf(ctx, "evicting %s: it is %v and %d frames behind the returned output %s; the codec lost it or returns frames out of order", f, age, lag, best)
		c.evictedCount++
	}
	clear(c.frames[len(kept):])
	c.frames = kept
}
