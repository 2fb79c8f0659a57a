package decoder

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/amcdecoder/logger"
)

// Flush discards everything inside the codec (e.g. on seek) and resumes.
//
// The feeder is told to abort first, then the output pump is joined, and
// only then the codec is flushed, so the pump never touches a slot array
// that is being invalidated.
func (d *Decoder) Flush(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Flush")
	defer func() { logger.Debugf(ctx, "/Flush: %v", _err) }()
	return d.lifecycleDo(ctx, d.flushLocked)
}

func (d *Decoder) flushLocked(ctx context.Context) error {
	if !d.started {
		logger.Debugf(ctx, "the codec is not started, nothing to flush")
		return nil
	}
	ctx = d.ctxWithSessionLocked(ctx)

	d.state = StateFlushing
	d.flushing.Store(true)
	d.bumpGenerationLocked()
	d.stopPumpLocked(ctx)
	if d.session == nil || !d.started {
		return ErrInvalidState{Operation: "flush", State: d.state}
	}

	if err := d.session.Flush(ctx); err != nil {
		err = fmt.Errorf("unable to flush %s: %w", d.session, err)
		d.locker.UDo(ctx, func() {
			d.reportFatal(ctx, err)
		})
		return err
	}
	if err := d.fetchSlotsLocked(ctx); err != nil {
		d.locker.UDo(ctx, func() {
			d.reportFatal(ctx, err)
		})
		return err
	}

	d.resetFlagsLocked()
	d.fatal.reset()
	if dropped := d.correlator.Clear(); len(dropped) > 0 {
		logger.Debugf(ctx, "dropped %d pending frames", len(dropped))
	}
	d.counters.Flushes.Add(1)
	d.state = StateRunning
	d.startPumpLocked(ctx)
	return nil
}
