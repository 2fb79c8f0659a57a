// Package decoder adapts a buffer-queue codec session (the MediaCodec model)
// into a streaming decoder: encoded frames are fed into indexed input slots,
// a dedicated output pump goroutine drains the output slots, correlates them
// with the submitted frames and hands them to a sink.
package decoder

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/go-ng/xatomic"
	"github.com/google/uuid"
	"github.com/xaionaro-go/amcdecoder/codec"
	"github.com/xaionaro-go/amcdecoder/correlator"
	"github.com/xaionaro-go/amcdecoder/flow"
	"github.com/xaionaro-go/amcdecoder/frame"
	"github.com/xaionaro-go/amcdecoder/indicator"
	"github.com/xaionaro-go/amcdecoder/sink"
	"github.com/xaionaro-go/amcdecoder/types"
	"github.com/xaionaro-go/xsync"
)

type Abstract interface {
	fmt.Stringer
	types.Closer

	Open(ctx context.Context) error
	SetFormat(ctx context.Context, format codec.Format) error
	Submit(ctx context.Context, in *frame.Input) flow.Result
	Finish(ctx context.Context) flow.Result
	Flush(ctx context.Context) error
	Stop(ctx context.Context) error

	State(ctx context.Context) State
	OutputFormat() codec.Format
	Stats() Stats
}

type Decoder struct {
	Factory codec.Factory
	Sink    sink.Sink
	Config  Config

	// lifecycleLocker serializes Open, SetFormat, Flush, Stop and Close;
	// it is taken before the stream lock and kept while the stream lock is
	// released to join the output pump.
	lifecycleLocker xsync.Mutex

	// locker is the stream lock: it serializes the caller goroutine
	// (Submit and lifecycle calls) with the output pump. Both release it
	// around every blocking codec call.
	locker         xsync.Mutex
	state          State
	session        codec.Session
	sessionID      uuid.UUID
	sessionMIME    string
	inputFormat    *codec.Format
	inputSlots     []codec.Slot
	outputSlots    []codec.Slot
	started        bool
	eos            bool
	eosSent        bool
	downstreamFlow flow.Result
	lastUpstreamTS time.Duration
	correlator     *correlator.Correlator
	pump           *outputPump

	// flushing and generation are also read without the stream lock (by
	// ReleaseOutput); generation is bumped on every flush/stop and wakeChan
	// is closed at the same moment.
	flushing   atomic.Bool
	generation atomic.Uint64
	wakeChan   *chan struct{}

	drainLocker sync.Mutex
	draining    bool
	drained     bool
	drainDone   chan struct{}

	fatal        fatalState
	outputFormat xatomic.Value[codec.Format]
	counters     Counters
	latency      indicator.MovingAverage[time.Duration]
}

var (
	_ Abstract       = (*Decoder)(nil)
	_ codec.Releaser = (*Decoder)(nil)
)

func New(
	factory codec.Factory,
	sink sink.Sink,
	opts ...Option,
) *Decoder {
	cfg := Options(opts).Config()
	d := &Decoder{
		Factory:    factory,
		Sink:       sink,
		Config:     cfg,
		state:      StateClosed,
		drained:    true,
		wakeChan:   ptr(make(chan struct{})),
		correlator: correlator.New(cfg.MaxFrameAge, cfg.MaxFrameLag),
		latency:    indicator.New[time.Duration](cfg.LatencyAverage, cfg.LatencyWindow),
	}
	d.fatal.reset()
	return d
}

func (d *Decoder) String() string {
	ctx := context.TODO()
	if !d.locker.ManualTryLock(ctx) {
		return "Decoder(<locked>)"
	}
	defer d.locker.ManualUnlock(ctx)
	if d.session == nil {
		return fmt.Sprintf("Decoder(%s)", d.state)
	}
	return fmt.Sprintf("Decoder(%s; %s)", d.session, d.state)
}

func (d *Decoder) State(ctx context.Context) State {
	return xsync.DoR1(xsync.WithNoLogging(ctx, true), &d.locker, func() State {
		return d.state
	})
}

// OutputFormat returns the last output format reported by the codec.
func (d *Decoder) OutputFormat() codec.Format {
	return d.outputFormat.Load()
}

// ctxWithSessionLocked attaches the fields of the current session to the
// logger of ctx.
func (d *Decoder) ctxWithSessionLocked(ctx context.Context) context.Context {
	if d.session == nil {
		return ctx
	}
	ctx = belt.WithField(ctx, "session_id", d.sessionID.String())
	ctx = belt.WithField(ctx, "mime_type", d.sessionMIME)
	return ctx
}

func (d *Decoder) wakeChanLoad() <-chan struct{} {
	return *xatomic.LoadPointer(&d.wakeChan)
}

// bumpGenerationLocked invalidates everything handed out by the current
// generation (release tokens, slot indexes) and wakes up every wait.
func (d *Decoder) bumpGenerationLocked() uint64 {
	gen := d.generation.Add(1)
	close(*xatomic.SwapPointer(&d.wakeChan, ptr(make(chan struct{}))))
	return gen
}

// isCurrentLocked reports whether nothing invalidated the generation gen
// while the stream lock was released.
func (d *Decoder) isCurrentLocked(gen uint64) bool {
	return !d.flushing.Load() && d.generation.Load() == gen
}

// sleepRestOfPollLocked makes a poll that returned TryAgainLater early last
// for the whole poll interval; it returns early on flush/stop.
func (d *Decoder) sleepRestOfPollLocked(
	ctx context.Context,
	startedAt time.Time,
	interval time.Duration,
) {
	remaining := interval - time.Since(startedAt)
	if remaining <= 0 {
		return
	}
	wake := d.wakeChanLoad()
	d.locker.UDo(ctx, func() {
		t := time.NewTimer(remaining)
		defer t.Stop()
		select {
		case <-t.C:
		case <-wake:
		case <-ctx.Done():
		}
	})
}

func ptr[T any](v T) *T {
	return &v
}
