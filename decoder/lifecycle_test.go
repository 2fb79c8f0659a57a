package decoder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/amcdecoder/codec/fake"
	"github.com/xaionaro-go/amcdecoder/flow"
	"github.com/xaionaro-go/amcdecoder/frame"
	"github.com/xaionaro-go/amcdecoder/sink"
)

// blockingSink holds every PushOutput until unblock is closed.
type blockingSink struct {
	*sink.Chan
	entered chan struct{}
	unblock chan struct{}
}

func newBlockingSink() *blockingSink {
	return &blockingSink{
		Chan:    sink.NewChan(64),
		entered: make(chan struct{}, 1),
		unblock: make(chan struct{}),
	}
}

func (s *blockingSink) PushOutput(ctx context.Context, out *frame.Output) flow.Result {
	select {
	case s.entered <- struct{}{}:
	default:
	}
	<-s.unblock
	return s.Chan.PushOutput(ctx, out)
}

func newBlockedDecoder(
	t *testing.T,
	ctx context.Context,
) (*Decoder, *fake.Factory, *blockingSink) {
	factory := fake.NewFactory(fake.Config{})
	s := newBlockingSink()
	d := New(factory, s,
		OptionInputPollTimeout(testPollTimeout),
		OptionOutputPollTimeout(testPollTimeout),
	)
	require.NoError(t, d.Open(ctx))
	require.NoError(t, d.SetFormat(ctx, testFormat))
	require.Equal(t, flow.OK, d.Submit(ctx, testInput(0, 0)))
	select {
	case <-s.entered:
	case <-time.After(testEventTimeout):
		t.Fatalf("the output was not pushed within %v", testEventTimeout)
	}
	return d, factory, s
}

func goErr(fn func() error) <-chan error {
	ch := make(chan error, 1)
	go func() { ch <- fn() }()
	return ch
}

func recvErr(t *testing.T, ch <-chan error) error {
	select {
	case err := <-ch:
		return err
	case <-time.After(testEventTimeout):
		t.Fatalf("no result within %v", testEventTimeout)
		return nil
	}
}

func requireNotDone(t *testing.T, ch <-chan error) {
	select {
	case err := <-ch:
		t.Fatalf("returned while another lifecycle call was in progress: %v", err)
	case <-time.After(5 * testPollTimeout):
	}
}

func requireNoErrorEvents(t *testing.T, s *sink.Chan) {
	for {
		select {
		case ev := <-s.C:
			require.NotEqual(t, sink.EventError, ev.Kind, "%v", ev.Err)
		case <-time.After(5 * testPollTimeout):
			return
		}
	}
}

func TestCloseWaitsForFlush(t *testing.T) {
	ctx := testCtx(t)
	d, factory, s := newBlockedDecoder(t, ctx)

	flushDone := goErr(func() error { return d.Flush(ctx) })
	require.Eventually(t, func() bool {
		return d.State(ctx) == StateFlushing
	}, testEventTimeout, testPollTimeout)

	closeDone := goErr(func() error { return d.Close(ctx) })
	requireNotDone(t, closeDone)
	requireNotDone(t, flushDone)

	close(s.unblock)
	require.NoError(t, recvErr(t, flushDone))
	require.NoError(t, recvErr(t, closeDone))
	require.Equal(t, StateClosed, d.State(ctx))

	requireNoErrorEvents(t, s.Chan)
	require.Zero(t, d.Stats().FatalErrors)
	sessStats := factory.Last().Stats()
	require.True(t, sessStats.Released)
	require.Equal(t, 1, sessStats.Stops)
	require.Equal(t, 2, sessStats.Flushes)
}

func TestFlushWaitsForStop(t *testing.T) {
	ctx := testCtx(t)
	d, factory, s := newBlockedDecoder(t, ctx)
	defer func() { require.NoError(t, d.Close(ctx)) }()

	stopDone := goErr(func() error { return d.Stop(ctx) })
	require.Eventually(t, d.flushing.Load, testEventTimeout, testPollTimeout)

	flushDone := goErr(func() error { return d.Flush(ctx) })
	requireNotDone(t, flushDone)
	requireNotDone(t, stopDone)

	close(s.unblock)
	require.NoError(t, recvErr(t, stopDone))
	require.NoError(t, recvErr(t, flushDone))
	require.Equal(t, StateStopped, d.State(ctx))
	require.Equal(t, flow.NotNegotiated, d.Submit(ctx, testInput(1, 33*time.Millisecond)))

	requireNoErrorEvents(t, s.Chan)
	require.Zero(t, d.Stats().FatalErrors)
	sessStats := factory.Last().Stats()
	require.Equal(t, 1, sessStats.Stops)
	require.Equal(t, 1, sessStats.Flushes)
}
