package decoder

import (
	"context"
	"sync"

	"github.com/xaionaro-go/amcdecoder/flow"
	"github.com/xaionaro-go/amcdecoder/helpers/closuresignaler"
	"github.com/xaionaro-go/amcdecoder/logger"
)

// fatalState remembers the first fatal error of the current configuration.
// It is reachable without the stream lock, since release tokens are
// consumed on arbitrary goroutines.
type fatalState struct {
	locker sync.Mutex
	err    error
	signal *closuresignaler.ClosureSignaler
}

func (f *fatalState) reset() {
	f.locker.Lock()
	defer f.locker.Unlock()
	f.err = nil
	f.signal = closuresignaler.New()
}

// set returns false if a fatal error was already recorded.
func (f *fatalState) set(ctx context.Context, err error) bool {
	f.locker.Lock()
	defer f.locker.Unlock()
	if f.err != nil {
		return false
	}
	f.err = err
	f.signal.Close(ctx)
	return true
}

func (f *fatalState) get() error {
	f.locker.Lock()
	defer f.locker.Unlock()
	return f.err
}

func (f *fatalState) closeChan() <-chan struct{} {
	f.locker.Lock()
	defer f.locker.Unlock()
	return f.signal.CloseChan()
}

// reportFatal records the error and reports it to the sink (once). It must
// be called without the stream lock.
func (d *Decoder) reportFatal(ctx context.Context, err error) {
	if !d.fatal.set(ctx, err) {
		logger.Debugf(ctx, "another fatal error after the first one: %v", err)
		return
	}
	logger.Errorf(ctx, "fatal error: %v", err)
	d.counters.FatalErrors.Add(1)
	d.Sink.Error(ctx, err)
}

// fatalLocked puts the engine into the error flow: the pump terminates,
// end-of-stream is sent downstream and further submissions are rejected.
func (d *Decoder) fatalLocked(ctx context.Context, err error) {
	d.locker.UDo(ctx, func() {
		d.reportFatal(ctx, err)
	})
	d.downstreamFlow = flow.Error
	d.sendEndOfStreamLocked(ctx)
}

// sendEndOfStreamLocked tells the sink there will be no more outputs in
// this generation; repeated calls are no-ops.
func (d *Decoder) sendEndOfStreamLocked(ctx context.Context) {
	if d.eosSent {
		return
	}
	d.eosSent = true
	d.locker.UDo(ctx, func() {
		d.Sink.EndOfStream(ctx)
	})
}
