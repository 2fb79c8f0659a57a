package decoder

import (
	"bytes"
	"context"
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/xaionaro-go/amcdecoder/codec"
	"github.com/xaionaro-go/amcdecoder/flow"
	"github.com/xaionaro-go/amcdecoder/logger"
)

// SetFormat configures and starts the codec for the given input format.
//
// On a running decoder a format that differs only in irrelevant fields
// (like the frame rate) is just remembered; a real change (MIME type,
// resolution or codec data) drains the codec and reopens it, since a
// session cannot change its configured format in place.
func (d *Decoder) SetFormat(
	ctx context.Context,
	format codec.Format,
) (_err error) {
	logger.Debugf(ctx, "SetFormat(%s)", format)
	defer func() { logger.Debugf(ctx, "/SetFormat(%s): %v", format, _err) }()
	return d.lifecycleDo(ctx, func(ctx context.Context) error {
		return d.setFormatLocked(ctx, format)
	})
}

func isFormatChange(prev *codec.Format, next codec.Format) bool {
	if prev == nil {
		return true
	}
	if next.MIMEType != "" && prev.MIMEType != next.MIMEType {
		return true
	}
	return prev.Width != next.Width ||
		prev.Height != next.Height ||
		!bytes.Equal(prev.CodecData, next.CodecData)
}

func (d *Decoder) setFormatLocked(
	ctx context.Context,
	format codec.Format,
) error {
	switch d.state {
	case StateOpened, StateRunning, StateStopped:
	default:
		return ErrInvalidState{Operation: "set the format", State: d.state}
	}
	format = format.Clone()
	if format.MIMEType == "" {
		format.MIMEType = d.Config.MIMEType
	}
	if format.MIMEType == "" {
		return fmt.Errorf("the MIME type is not set")
	}
	if logger.IsTraceEnabled(ctx) {
		logger.Tracef(ctx, "new input format: %s", spew.Sdump(format))
	}

	if d.started {
		if !isFormatChange(d.inputFormat, format) {
			logger.Debugf(ctx, "no relevant changes in the format, keeping the codec running")
			d.inputFormat = &format
			return nil
		}

		logger.Infof(ctx, "the input format changed (%s -> %s), reopening the codec", d.inputFormat, format)
		d.counters.Reconfigurations.Add(1)
		if r := d.drainLocked(ctx, false); r != flow.OK {
			logger.Warnf(ctx, "unable to drain the codec before the reconfiguration: %s", r)
		}
		if err := d.stopLocked(ctx); err != nil {
			logger.Warnf(ctx, "unable to stop the codec cleanly: %v", err)
		}
		if err := d.closeSessionLocked(ctx); err != nil {
			logger.Warnf(ctx, "unable to close the codec cleanly: %v", err)
		}
	}

	if d.session != nil && d.sessionMIME != format.MIMEType {
		if err := d.closeSessionLocked(ctx); err != nil {
			logger.Warnf(ctx, "unable to close the codec cleanly: %v", err)
		}
	}
	if d.session == nil {
		if err := d.openSessionLocked(ctx, format.MIMEType); err != nil {
			d.state = StateOpened
			return err
		}
	}

	return d.configureLocked(ctx, format)
}

func (d *Decoder) configureLocked(
	ctx context.Context,
	format codec.Format,
) (_err error) {
	ctx = d.ctxWithSessionLocked(ctx)
	logger.Debugf(ctx, "configureLocked(%s)", format)
	defer func() { logger.Debugf(ctx, "/configureLocked(%s): %v", format, _err) }()

	d.state = StateConfiguring
	defer func() {
		if _err != nil {
			d.state = StateOpened
		}
	}()

	if err := d.session.Configure(ctx, format, d.Config.Surface); err != nil {
		return fmt.Errorf("unable to configure %s: %w", d.session, err)
	}
	if err := d.session.Start(ctx); err != nil {
		return fmt.Errorf("unable to start %s: %w", d.session, err)
	}
	d.started = true
	if err := d.fetchSlotsLocked(ctx); err != nil {
		if stopErr := d.session.Stop(ctx); stopErr != nil {
			logger.Errorf(ctx, "unable to stop %s: %v", d.session, stopErr)
		}
		d.started = false
		return err
	}

	d.inputFormat = &format
	d.resetFlagsLocked()
	d.fatal.reset()
	d.correlator.Clear()
	d.state = StateRunning
	d.startPumpLocked(ctx)
	return nil
}
