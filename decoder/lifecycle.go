package decoder

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/xaionaro-go/amcdecoder/flow"
	"github.com/xaionaro-go/amcdecoder/logger"
	"github.com/xaionaro-go/xsync"
)

// Open prepares the decoder; if Config.MIMEType is set the codec session
// is opened right away, otherwise the first SetFormat opens it.
func (d *Decoder) Open(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Open")
	defer func() { logger.Debugf(ctx, "/Open: %v", _err) }()
	return d.lifecycleDo(ctx, d.openLocked)
}

// lifecycleDo runs fn with both the lifecycle lock and the stream lock
// held.
func (d *Decoder) lifecycleDo(
	ctx context.Context,
	fn func(context.Context) error,
) error {
	return xsync.DoR1(ctx, &d.lifecycleLocker, func() error {
		return xsync.DoA1R1(ctx, &d.locker, fn, ctx)
	})
}

func (d *Decoder) openLocked(ctx context.Context) error {
	if d.state != StateClosed {
		return ErrInvalidState{Operation: "open", State: d.state}
	}
	if d.Config.MIMEType != "" {
		if err := d.openSessionLocked(ctx, d.Config.MIMEType); err != nil {
			return err
		}
	}
	d.resetFlagsLocked()
	d.fatal.reset()
	d.state = StateOpened
	return nil
}

func (d *Decoder) openSessionLocked(ctx context.Context, mimeType string) error {
	session, err := d.Factory.NewDecoder(ctx, mimeType)
	if err != nil {
		return fmt.Errorf("unable to open a '%s' decoder using %s: %w", mimeType, d.Factory, err)
	}
	d.session = session
	d.sessionID = uuid.New()
	d.sessionMIME = mimeType
	d.counters.SessionsOpened.Add(1)
	logger.Debugf(d.ctxWithSessionLocked(ctx), "opened %s", session)
	return nil
}

func (d *Decoder) closeSessionLocked(ctx context.Context) error {
	if d.session == nil {
		return nil
	}
	session := d.session
	d.session = nil
	d.sessionMIME = ""
	if err := session.Release(ctx); err != nil {
		return fmt.Errorf("unable to release %s: %w", session, err)
	}
	return nil
}

func (d *Decoder) resetFlagsLocked() {
	d.flushing.Store(false)
	d.eos = false
	d.eosSent = false
	d.downstreamFlow = flow.OK
	d.lastUpstreamTS = 0

	d.drainLocker.Lock()
	defer d.drainLocker.Unlock()
	d.draining = false
	d.drained = true
	d.drainDone = nil
}

// Stop flushes and stops the codec; it may be started again by SetFormat.
func (d *Decoder) Stop(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Stop")
	defer func() { logger.Debugf(ctx, "/Stop: %v", _err) }()
	return d.lifecycleDo(ctx, d.stopLocked)
}

func (d *Decoder) stopLocked(ctx context.Context) error {
	if !d.started {
		if d.state == StateRunning || d.state == StateFlushing {
			d.state = StateStopped
		}
		return nil
	}
	ctx = d.ctxWithSessionLocked(ctx)

	d.flushing.Store(true)
	d.downstreamFlow = flow.Flushing
	d.bumpGenerationLocked()
	d.stopPumpLocked(ctx)
	if d.session == nil || !d.started {
		d.state = StateStopped
		return nil
	}

	var errs []error
	if err := d.session.Flush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("unable to flush: %w", err))
	}
	if err := d.session.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("unable to stop: %w", err))
	}
	d.started = false
	d.eos = false
	d.inputSlots, d.outputSlots = nil, nil

	d.drainLocker.Lock()
	d.draining = false
	d.drained = true
	d.drainLocker.Unlock()

	if dropped := d.correlator.Clear(); len(dropped) > 0 {
		logger.Debugf(ctx, "dropped %d pending frames", len(dropped))
	}
	d.state = StateStopped
	return errors.Join(errs...)
}

// Close stops the decoder (if needed) and releases the codec session.
func (d *Decoder) Close(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Close")
	defer func() { logger.Debugf(ctx, "/Close: %v", _err) }()
	return d.lifecycleDo(ctx, d.closeLocked)
}

func (d *Decoder) closeLocked(ctx context.Context) error {
	if d.state == StateClosed {
		return nil
	}
	var errs []error
	if err := d.stopLocked(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := d.closeSessionLocked(ctx); err != nil {
		errs = append(errs, err)
	}
	d.inputFormat = nil
	d.state = StateClosed
	return errors.Join(errs...)
}
