package decoder

import (
	"context"
	"time"

	"github.com/xaionaro-go/amcdecoder/codec"
	"github.com/xaionaro-go/amcdecoder/flow"
	"github.com/xaionaro-go/amcdecoder/frame"
	"github.com/xaionaro-go/amcdecoder/helpers/closuresignaler"
	"github.com/xaionaro-go/amcdecoder/internal"
	"github.com/xaionaro-go/amcdecoder/logger"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/xcontext"
)

type outputPump struct {
	cancel context.CancelFunc
	done   *closuresignaler.ClosureSignaler
}

// startPumpLocked launches the output pump for the current generation.
func (d *Decoder) startPumpLocked(ctx context.Context) {
	internal.Assert(ctx, d.pump == nil || d.pump.done.IsClosed(), "the output pump is already running")
	gen := d.generation.Load()
	ctx, cancelFn := context.WithCancel(xcontext.DetachDone(ctx))
	p := &outputPump{
		cancel: cancelFn,
		done:   closuresignaler.New(),
	}
	d.pump = p
	observability.Go(ctx, func(ctx context.Context) {
		defer p.done.Close(ctx)
		d.outputLoop(ctx, gen)
	})
}

// stopPumpLocked waits (with the stream lock released) until the pump
// exits. The caller must have invalidated the generation before.
func (d *Decoder) stopPumpLocked(ctx context.Context) {
	p := d.pump
	if p == nil {
		return
	}
	d.pump = nil
	p.cancel()
	d.locker.UDo(ctx, func() {
		<-p.done.CloseChan()
	})
}

func (d *Decoder) outputLoop(
	ctx context.Context,
	gen uint64,
) {
	logger.Debugf(ctx, "outputLoop(gen:%d)", gen)
	defer func() { logger.Debugf(ctx, "/outputLoop(gen:%d)", gen) }()

	d.locker.ManualLock(ctx)
	defer d.locker.ManualUnlock(ctx)
	for d.outputIterationLocked(ctx, gen) {
	}
}

// outputIterationLocked handles one dequeue result; it returns false when
// the pump must exit.
func (d *Decoder) outputIterationLocked(
	ctx context.Context,
	gen uint64,
) bool {
	if !d.isCurrentLocked(gen) || d.downstreamFlow == flow.Flushing {
		return false
	}
	if d.fatal.get() != nil {
		d.downstreamFlow = flow.Error
		d.sendEndOfStreamLocked(ctx)
		return false
	}

	session := d.session
	startedAt := time.Now()
	var (
		res codec.DequeueOutputResult
		err error
	)
	d.locker.UDo(ctx, func() {
		res, err = session.DequeueOutputBuffer(ctx, d.Config.OutputPollTimeout)
	})
	if !d.isCurrentLocked(gen) || d.downstreamFlow == flow.Flushing {
		logger.Debugf(ctx, "flushing, dropping the dequeue result %v (err: %v)", res, err)
		if r, ok := res.(codec.OutputReady); ok && err == nil {
			d.releaseUndeliveredLocked(ctx, session, gen, r.Index)
		}
		return false
	}
	if err != nil {
		d.fatalLocked(ctx, ErrDequeueFailed{Output: true, Err: err})
		return false
	}

	switch r := res.(type) {
	case codec.TryAgainLater:
		logger.Tracef(ctx, "no output buffer yet")
		d.sleepRestOfPollLocked(ctx, startedAt, d.Config.OutputPollTimeout)
		return true
	case codec.OutputBuffersChanged:
		logger.Debugf(ctx, "the output buffers have changed")
		if err := d.fetchOutputSlotsLocked(ctx); err != nil {
			d.fatalLocked(ctx, err)
			return false
		}
		return true
	case codec.OutputFormatChanged:
		return d.onOutputFormatChangedLocked(ctx, session, gen)
	case codec.OutputReady:
		return d.onOutputReadyLocked(ctx, session, gen, r)
	default:
		d.fatalLocked(ctx, ErrDequeueFailed{Output: true, Err: errUnexpectedResult{Result: res}})
		return false
	}
}

func (d *Decoder) onOutputFormatChangedLocked(
	ctx context.Context,
	session codec.Session,
	gen uint64,
) bool {
	format, err := session.OutputFormat(ctx)
	if err != nil {
		d.fatalLocked(ctx, ErrOutputFormat{Err: err})
		return false
	}
	logger.Debugf(ctx, "the output format has changed: %s", format)
	d.outputFormat.Store(format)
	d.counters.OutputFormatChanges.Add(1)

	d.locker.UDo(ctx, func() {
		err = d.Sink.SetOutputFormat(ctx, format)
	})
	if !d.isCurrentLocked(gen) {
		return false
	}
	if err != nil {
		d.downstreamFlow = flow.NotNegotiated
		d.fatalLocked(ctx, ErrOutputFormat{Err: err})
		return false
	}
	return true
}

func (d *Decoder) onOutputReadyLocked(
	ctx context.Context,
	session codec.Session,
	gen uint64,
	r codec.OutputReady,
) bool {
	info := r.Info
	logger.Tracef(ctx, "got the output buffer %d: %s", r.Index, info)

	data, err := d.outputDataLocked(r.Index, info)
	if err != nil {
		d.fatalLocked(ctx, err)
		return false
	}

	f := d.correlator.FindNearest(ctx, info.PresentationTime)
	if f != nil {
		d.correlator.Remove(f)
		if !f.Identity.QueuedAt.IsZero() {
			d.latency.Update(d.Config.Now().Sub(f.Identity.QueuedAt))
		}
	}

	buf := codec.NewOutputBuffer(d, codec.ReleaseToken{
		Session:    session,
		Index:      r.Index,
		Generation: gen,
	}, info, data)

	result := flow.OK
	switch {
	case f != nil && !d.Config.DeliverLateFrames && f.IsLate(d.Config.Now()):
		logger.Debugf(ctx, "%s is late, dropping it", f)
		d.counters.FramesDroppedLate.Add(1)
		if !d.dropLocked(ctx, buf) {
			return false
		}
	case info.Size > 0:
		if f == nil {
			d.counters.UntaggedOutputs.Add(1)
		}
		out := &frame.Output{
			Frame:  f,
			PTS:    info.PresentationTime,
			Buffer: buf,
		}
		d.counters.BuffersDelivered.Increment(uint64(info.Size))
		d.locker.UDo(ctx, func() {
			result = d.Sink.PushOutput(ctx, out)
		})
		if !d.isCurrentLocked(gen) {
			return false
		}
	default:
		if f != nil {
			logger.Debugf(ctx, "an empty output for %s, dropping the frame", f)
			d.counters.EmptyOutputs.Add(1)
		}
		if !d.dropLocked(ctx, buf) {
			return false
		}
	}

	if info.IsEOS() || result == flow.EOS {
		var wasDraining bool
		d.locker.UDo(ctx, func() {
			wasDraining = d.onOutputEOS(ctx)
		})
		if !d.isCurrentLocked(gen) {
			return false
		}
		if !wasDraining && result == flow.OK {
			logger.Debugf(ctx, "the codec signalled end-of-stream")
			result = flow.EOS
		}
	}

	d.downstreamFlow = result
	switch result {
	case flow.OK:
		return true
	case flow.EOS:
		d.sendEndOfStreamLocked(ctx)
	case flow.Flushing:
		logger.Debugf(ctx, "downstream is flushing")
	default:
		d.fatalLocked(ctx, ErrDownstream{Flow: result})
		d.downstreamFlow = result
	}
	return false
}

// dropLocked returns a not delivered output slot to the codec.
func (d *Decoder) dropLocked(ctx context.Context, buf *codec.OutputBuffer) bool {
	var err error
	d.locker.UDo(ctx, func() {
		err = buf.Release(ctx, false)
	})
	if err != nil {
		d.downstreamFlow = flow.Error
		d.sendEndOfStreamLocked(ctx)
		return false
	}
	return true
}

// releaseUndeliveredLocked returns a slot dequeued concurrently with a
// flush; failures are expected then.
func (d *Decoder) releaseUndeliveredLocked(
	ctx context.Context,
	session codec.Session,
	gen uint64,
	idx int,
) {
	if d.generation.Load() != gen {
		return
	}
	if err := session.ReleaseOutputBuffer(ctx, idx, false); err != nil {
		logger.Debugf(ctx, "unable to release the output buffer %d while flushing: %v", idx, err)
	}
}

// ReleaseOutput consumes a release token of an output buffer. Tokens of an
// older generation are ignored: their slots were reclaimed by the flush or
// stop that ended the generation.
func (d *Decoder) ReleaseOutput(
	ctx context.Context,
	token codec.ReleaseToken,
	render bool,
) (_err error) {
	logger.Tracef(ctx, "ReleaseOutput(%s, render:%t)", token, render)
	defer func() { logger.Tracef(ctx, "/ReleaseOutput(%s, render:%t): %v", token, render, _err) }()

	if token.Generation != d.generation.Load() {
		logger.Debugf(ctx, "ignoring the stale release token %s", token)
		d.counters.StaleReleases.Add(1)
		return nil
	}
	if err := token.Session.ReleaseOutputBuffer(ctx, token.Index, render); err != nil {
		if d.flushing.Load() || token.Generation != d.generation.Load() {
			logger.Warnf(ctx, "unable to release the output buffer %d while flushing: %v", token.Index, err)
			return nil
		}
		err = ErrReleaseFailed{Index: token.Index, Err: err}
		d.reportFatal(ctx, err)
		return err
	}
	d.counters.Releases.Add(1)
	return nil
}
