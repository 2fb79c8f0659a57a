package decoder

import (
	"context"
	"time"

	"github.com/xaionaro-go/amcdecoder/codec"
	"github.com/xaionaro-go/amcdecoder/flow"
	"github.com/xaionaro-go/amcdecoder/frame"
	"github.com/xaionaro-go/amcdecoder/logger"
	"github.com/xaionaro-go/xsync"
)

// Submit feeds one encoded frame into the codec, splitting it into as many
// input slots as needed. A non-OK result means the frame was dropped.
func (d *Decoder) Submit(
	ctx context.Context,
	in *frame.Input,
) (_ret flow.Result) {
	logger.Tracef(ctx, "Submit(%s)", in)
	defer func() { logger.Tracef(ctx, "/Submit(%s): %s", in, _ret) }()
	return xsync.DoA2R1(xsync.WithNoLogging(ctx, true), &d.locker, d.submitLocked, ctx, in)
}

func (d *Decoder) submitLocked(
	ctx context.Context,
	in *frame.Input,
) flow.Result {
	if !d.state.CanProcessBuffers() || !d.started {
		if d.state == StateFlushing {
			return flow.Flushing
		}
		logger.Errorf(ctx, "a frame is submitted while the codec is not configured (state: %s)", d.state)
		return flow.NotNegotiated
	}
	if d.fatal.get() != nil {
		return flow.Error
	}
	if d.eos {
		logger.Warnf(ctx, "got a frame after end-of-stream, dropping it")
		return flow.EOS
	}
	if d.flushing.Load() {
		return flow.Flushing
	}
	if d.downstreamFlow != flow.OK {
		return d.downstreamFlow
	}

	gen := d.generation.Load()
	payload := in.Payload
	d.counters.FramesSubmitted.Increment(uint64(len(payload)))
	pending := in.Pending()
	d.correlator.Add(pending)

	offset := 0
	for offset < len(payload) {
		idx, r := d.acquireInputSlotLocked(ctx, gen, d.Config.InputPollTimeout)
		if r != flow.OK {
			d.correlator.Remove(pending)
			return r
		}

		if d.downstreamFlow != flow.OK {
			logger.Debugf(ctx, "downstream returned %s, returning the input slot %d", d.downstreamFlow, idx)
			r := d.downstreamFlow
			if err := d.session.QueueInputBuffer(ctx, idx, codec.BufferInfo{}); err != nil {
				logger.Errorf(ctx, "unable to return the input slot %d: %v", idx, err)
			}
			d.correlator.Remove(pending)
			return r
		}

		slot, err := d.inputSlotLocked(idx)
		if err != nil {
			d.correlator.Remove(pending)
			d.fatalLocked(ctx, err)
			return flow.Error
		}

		info := codec.BufferInfo{
			Size: copy(slot.Data, payload[offset:]),
		}
		if in.PTS != frame.NoPTS {
			var tsOffset time.Duration
			if in.Duration > 0 {
				tsOffset = time.Duration(int64(in.Duration) * int64(offset) / int64(len(payload)))
			}
			info.PresentationTime = in.PTS + tsOffset
			d.lastUpstreamTS = info.PresentationTime
		}
		if offset == 0 {
			d.correlator.AttachIdentity(pending, info.PresentationTime, d.Config.Now())
			if in.IsSyncPoint {
				info.Flags |= codec.BufferFlagSyncFrame
			}
		}
		if in.IsCodecConfig {
			info.Flags |= codec.BufferFlagCodecConfig
		}
		offset += info.Size

		logger.Tracef(ctx, "queueing the input slot %d: %s", idx, info)
		if err := d.session.QueueInputBuffer(ctx, idx, info); err != nil {
			d.correlator.Remove(pending)
			d.fatalLocked(ctx, ErrQueueFailed{Index: idx, Err: err})
			return flow.Error
		}
		d.counters.ChunksQueued.Increment(uint64(info.Size))

		d.drainLocker.Lock()
		d.drained = false
		d.drainLocker.Unlock()
	}

	switch {
	case in.IsCodecConfig:
		d.counters.CodecConfigFrames.Add(1)
		d.correlator.Remove(pending)
	case len(payload) == 0:
		logger.Debugf(ctx, "an empty frame %s, nothing to decode", in)
		d.correlator.Remove(pending)
	default:
		d.counters.FramesQueued.Increment(uint64(len(payload)))
	}
	return flow.OK
}

// acquireInputSlotLocked polls the codec for a free input slot, retrying on
// TryAgainLater. The stream lock is released during each poll; afterwards
// a flush/stop (generation change) aborts the acquisition.
func (d *Decoder) acquireInputSlotLocked(
	ctx context.Context,
	gen uint64,
	timeout time.Duration,
) (int, flow.Result) {
	for {
		if !d.isCurrentLocked(gen) {
			return -1, flow.Flushing
		}
		if d.fatal.get() != nil {
			return -1, flow.Error
		}
		if d.downstreamFlow != flow.OK {
			return -1, d.downstreamFlow
		}
		if ctx.Err() != nil {
			logger.Debugf(ctx, "cancelled: %v", ctx.Err())
			return -1, flow.Flushing
		}

		session := d.session
		startedAt := time.Now()
		var (
			res codec.DequeueInputResult
			err error
		)
		d.locker.UDo(ctx, func() {
			res, err = session.DequeueInputBuffer(ctx, timeout)
		})
		if !d.isCurrentLocked(gen) {
			logger.Debugf(ctx, "flushing while waiting for an input slot")
			return -1, flow.Flushing
		}
		if err != nil {
			d.fatalLocked(ctx, ErrDequeueFailed{Err: err})
			return -1, flow.Error
		}

		switch r := res.(type) {
		case codec.SlotReady:
			return r.Index, flow.OK
		case codec.TryAgainLater:
			logger.Tracef(ctx, "no input slot available yet")
			d.sleepRestOfPollLocked(ctx, startedAt, timeout)
		default:
			d.fatalLocked(ctx, ErrDequeueFailed{Err: errUnexpectedResult{Result: res}})
			return -1, flow.Error
		}
	}
}
