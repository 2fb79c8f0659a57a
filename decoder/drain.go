package decoder

import (
	"context"

	"github.com/xaionaro-go/amcdecoder/codec"
	"github.com/xaionaro-go/amcdecoder/flow"
	"github.com/xaionaro-go/amcdecoder/logger"
	"github.com/xaionaro-go/xsync"
)

// Finish drains the codec (every submitted frame gets its output delivered)
// and signals end-of-stream downstream. Further submissions return
// flow.EOS until a Flush or a reconfiguration.
func (d *Decoder) Finish(ctx context.Context) (_ret flow.Result) {
	logger.Debugf(ctx, "Finish")
	defer func() { logger.Debugf(ctx, "/Finish: %s", _ret) }()
	return xsync.DoA1R1(ctx, &d.locker, d.finishLocked, ctx)
}

func (d *Decoder) finishLocked(ctx context.Context) flow.Result {
	r := d.drainLocked(ctx, true)
	if d.started && r == flow.OK {
		d.sendEndOfStreamLocked(ctx)
	}
	return r
}

func (d *Decoder) isDrained() bool {
	d.drainLocker.Lock()
	defer d.drainLocker.Unlock()
	return d.drained
}

// drainLocked queues an end-of-stream marker and waits until the output pump
// observes it on the output side, so all the frames queued before are
// delivered. It is a no-op if the codec was never started or is already
// drained.
func (d *Decoder) drainLocked(
	ctx context.Context,
	atEOS bool,
) (_ret flow.Result) {
	logger.Debugf(ctx, "drainLocked(atEOS:%t)", atEOS)
	defer func() { logger.Debugf(ctx, "/drainLocked(atEOS:%t): %s", atEOS, _ret) }()

	if !d.started {
		logger.Debugf(ctx, "the codec is not started, nothing to drain")
		return flow.OK
	}
	if d.fatal.get() != nil {
		return flow.Error
	}
	if d.isDrained() {
		logger.Debugf(ctx, "already drained")
		if atEOS {
			d.eos = true
		}
		return flow.OK
	}
	if d.pump == nil || d.pump.done.IsClosed() {
		logger.Debugf(ctx, "the output pump is not running (downstream: %s)", d.downstreamFlow)
		if d.downstreamFlow != flow.OK {
			return d.downstreamFlow
		}
		return flow.Error
	}

	gen := d.generation.Load()
	session := d.session
	var (
		res codec.DequeueInputResult
		err error
	)
	d.locker.UDo(ctx, func() {
		res, err = session.DequeueInputBuffer(ctx, d.Config.DrainInputTimeout)
	})
	if !d.isCurrentLocked(gen) {
		return flow.Flushing
	}
	if err != nil {
		logger.Errorf(ctx, "%v", ErrDrainFailed{Reason: "unable to dequeue an input buffer", Err: err})
		return flow.Error
	}
	ready, ok := res.(codec.SlotReady)
	if !ok {
		logger.Errorf(ctx, "%v", ErrDrainFailed{Reason: "no input buffer available, got " + res.String()})
		return flow.Error
	}
	if _, err := d.inputSlotLocked(ready.Index); err != nil {
		d.fatalLocked(ctx, ErrDrainFailed{Reason: "invalid input buffer", Err: err})
		return flow.Error
	}

	done := make(chan struct{})
	d.drainLocker.Lock()
	d.draining = true
	d.drainDone = done
	d.drainLocker.Unlock()

	info := codec.BufferInfo{
		Flags:            codec.BufferFlagEndOfStream,
		PresentationTime: d.lastUpstreamTS,
	}
	logger.Debugf(ctx, "queueing the end-of-stream marker into the slot %d: %s", ready.Index, info)
	if err := session.QueueInputBuffer(ctx, ready.Index, info); err != nil {
		d.drainLocker.Lock()
		d.draining = false
		d.drainDone = nil
		d.drainLocker.Unlock()
		logger.Errorf(ctx, "%v", ErrDrainFailed{Reason: "unable to queue the end-of-stream marker", Err: err})
		return flow.Error
	}
	if atEOS {
		d.eos = true
	}

	wake := d.wakeChanLoad()
	fatal := d.fatal.closeChan()
	pumpDone := d.pump.done.CloseChan()
	r := flow.OK
	d.locker.UDo(ctx, func() {
		select {
		case <-done:
		case <-fatal:
			r = flow.Error
		case <-pumpDone:
			select {
			case <-done:
			default:
				r = flow.Error
			}
		case <-wake:
			r = flow.Flushing
		case <-ctx.Done():
			logger.Debugf(ctx, "cancelled: %v", ctx.Err())
			r = flow.Flushing
		}
	})

	if r == flow.Error && d.downstreamFlow != flow.OK && d.downstreamFlow != flow.Error {
		r = d.downstreamFlow
	}

	d.drainLocker.Lock()
	defer d.drainLocker.Unlock()
	if d.drainDone == done {
		d.drainDone = nil
		if r == flow.OK {
			d.drained = true
		} else {
			d.draining = false
		}
	}
	return r
}

// onOutputEOS is called by the pump (without the stream lock) when the
// end-of-stream marker comes out of the codec; it returns true if a drain
// was waiting for it.
func (d *Decoder) onOutputEOS(ctx context.Context) bool {
	d.drainLocker.Lock()
	defer d.drainLocker.Unlock()
	if !d.draining {
		return false
	}
	logger.Debugf(ctx, "drained")
	d.draining = false
	if d.drainDone != nil {
		close(d.drainDone)
	}
	return true
}
