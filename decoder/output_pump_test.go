package decoder

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/amcdecoder/codec"
	"github.com/xaionaro-go/amcdecoder/codec/fake"
	"github.com/xaionaro-go/amcdecoder/flow"
	"github.com/xaionaro-go/amcdecoder/sink"
)

func (env *testEnv) RequireFatal(t *testing.T) error {
	ev := env.NextEvent(t)
	require.Equal(t, sink.EventError, ev.Kind)
	require.Equal(t, sink.EventEndOfStream, env.NextEvent(t).Kind)
	return ev.Err
}

func TestOutputLateFrameDropped(t *testing.T) {
	ctx := testCtx(t)
	now := time.Unix(1700000000, 0)
	env := newTestEnv(t, ctx, fake.Config{}, OptionClock(func() time.Time { return now }))
	d := env.Decoder

	late := testInput(0, 0)
	late.Deadline = now.Add(-time.Millisecond)
	require.Equal(t, flow.OK, d.Submit(ctx, late))

	onTime := testInput(1, 33*time.Millisecond)
	onTime.Deadline = now.Add(time.Hour)
	require.Equal(t, flow.OK, d.Submit(ctx, onTime))

	out := env.NextOutput(t)
	require.Equal(t, uint64(1), out.Frame.SystemFrameNumber)
	require.NoError(t, out.Render(ctx))

	stats := d.Stats()
	require.Equal(t, uint64(1), stats.FramesDroppedLate)
	require.Equal(t, uint64(1), stats.BuffersDelivered.Count)
	require.Zero(t, stats.DecodeLatency)
	sessStats := env.Session().Stats()
	require.Equal(t, 1, sessStats.Drops)
	require.Equal(t, 1, sessStats.Renders)
}

func TestOutputLateFrameDelivered(t *testing.T) {
	ctx := testCtx(t)
	now := time.Unix(1700000000, 0)
	env := newTestEnv(t, ctx, fake.Config{},
		OptionClock(func() time.Time { return now }),
		OptionDeliverLateFrames(true),
	)

	late := testInput(0, 0)
	late.Deadline = now.Add(-time.Millisecond)
	require.Equal(t, flow.OK, env.Decoder.Submit(ctx, late))
	out := env.NextOutput(t)
	require.True(t, out.Frame.IsLate(now))
	require.NoError(t, out.Drop(ctx))
	require.Zero(t, env.Decoder.Stats().FramesDroppedLate)
}

func TestOutputEmptyBufferDropsFrame(t *testing.T) {
	ctx := testCtx(t)
	env := newTestEnv(t, ctx, fake.Config{
		Decode: func(in codec.BufferInfo, data []byte) (codec.BufferInfo, bool) {
			out, ok := fake.DefaultDecode(in, data)
			if ok && len(data) > 0 && data[0] == 0xff {
				out.Size = 0
			}
			return out, ok
		},
	})
	d := env.Decoder

	require.Equal(t, flow.OK, d.Submit(ctx, testInput(0, 0, 0xff, 0xff)))
	require.Equal(t, flow.OK, d.Submit(ctx, testInput(1, 33*time.Millisecond)))

	out := env.NextOutput(t)
	require.Equal(t, uint64(1), out.Frame.SystemFrameNumber)
	require.NoError(t, out.Render(ctx))

	stats := d.Stats()
	require.Equal(t, uint64(1), stats.EmptyOutputs)
	require.Zero(t, stats.PendingFrames)
	require.Equal(t, 1, env.Session().Stats().Drops)
}

func TestOutputDequeueErrorIsFatal(t *testing.T) {
	ctx := testCtx(t)
	env := newTestEnv(t, ctx, fake.Config{})
	d := env.Decoder

	errBoom := errors.New("boom")
	env.Session().InjectOutputError(errBoom)
	err := env.RequireFatal(t)
	require.ErrorIs(t, err, errBoom)
	require.ErrorAs(t, err, &ErrDequeueFailed{})

	require.Equal(t, flow.Error, d.Submit(ctx, testInput(0, 0)))
	require.Equal(t, flow.Error, d.Finish(ctx))
	require.Equal(t, uint64(1), d.Stats().FatalErrors)

	require.NoError(t, d.Flush(ctx))
	require.Equal(t, flow.OK, d.Submit(ctx, testInput(0, 0)))
	require.NoError(t, env.NextOutput(t).Render(ctx))
}

func TestOutputInvalidIndexIsFatal(t *testing.T) {
	ctx := testCtx(t)
	env := newTestEnv(t, ctx, fake.Config{})

	env.Session().InjectOutput(codec.OutputReady{
		Index: 99,
		Info:  codec.BufferInfo{Size: 4},
	})
	err := env.RequireFatal(t)
	var errIdx ErrInvalidSlotIndex
	require.ErrorAs(t, err, &errIdx)
	require.Equal(t, 99, errIdx.Index)
	require.Equal(t, 4, errIdx.Count)
}

func TestOutputInvalidRangeIsFatal(t *testing.T) {
	ctx := testCtx(t)
	env := newTestEnv(t, ctx, fake.Config{OutputSlotSize: 16})

	env.Session().InjectOutput(codec.OutputReady{
		Index: 0,
		Info:  codec.BufferInfo{Offset: 8, Size: 16},
	})
	require.ErrorAs(t, env.RequireFatal(t), &ErrInvalidRange{})
}

func TestOutputDownstreamEOS(t *testing.T) {
	ctx := testCtx(t)
	env := newTestEnv(t, ctx, fake.Config{})
	d := env.Decoder

	env.Sink.SetFlow(flow.EOS)
	require.Equal(t, flow.OK, d.Submit(ctx, testInput(0, 0)))
	require.Equal(t, sink.EventEndOfStream, env.NextEvent(t).Kind)

	require.Equal(t, flow.EOS, d.Submit(ctx, testInput(1, 33*time.Millisecond)))
	require.Equal(t, 1, env.Session().Stats().Drops)
	require.Zero(t, d.Stats().FatalErrors)
}

func TestOutputDownstreamNotNegotiatedIsFatal(t *testing.T) {
	ctx := testCtx(t)
	env := newTestEnv(t, ctx, fake.Config{})
	d := env.Decoder

	env.Sink.SetFlow(flow.NotNegotiated)
	require.Equal(t, flow.OK, d.Submit(ctx, testInput(0, 0)))
	var errDownstream ErrDownstream
	require.ErrorAs(t, env.RequireFatal(t), &errDownstream)
	require.Equal(t, flow.NotNegotiated, errDownstream.Flow)
	require.Equal(t, flow.Error, d.Submit(ctx, testInput(1, 33*time.Millisecond)))
}

func TestOutputFormatChanged(t *testing.T) {
	ctx := testCtx(t)
	env := newTestEnv(t, ctx, fake.Config{})
	d := env.Decoder

	format := codec.Format{
		MIMEType: codec.MIMETypeVideoRaw,
		Width:    320,
		Height:   240,
	}.WithParam(codec.KeyColorFormat, 21)
	env.Session().InjectOutputFormatChange(format)

	ev := env.NextEvent(t)
	require.Equal(t, sink.EventFormat, ev.Kind)
	require.Equal(t, format, ev.Format)
	require.Equal(t, format, d.OutputFormat())
	require.Equal(t, uint64(1), d.Stats().OutputFormatChanges)

	require.Equal(t, flow.OK, d.Submit(ctx, testInput(0, 0)))
	require.NoError(t, env.NextOutput(t).Render(ctx))
}

func TestOutputBuffersChanged(t *testing.T) {
	ctx := testCtx(t)
	env := newTestEnv(t, ctx, fake.Config{})
	d := env.Decoder

	env.Session().InjectOutput(
		codec.OutputBuffersChanged{},
		codec.TryAgainLater{},
		codec.OutputBuffersChanged{},
	)
	require.Equal(t, flow.OK, d.Submit(ctx, testInput(0, 0)))
	out := env.NextOutput(t)
	require.Equal(t, testInput(0, 0).Payload, out.Buffer.Data)
	require.NoError(t, out.Render(ctx))
	require.Zero(t, d.Stats().FatalErrors)
}

func TestReleaseOutputFailure(t *testing.T) {
	ctx := testCtx(t)
	env := newTestEnv(t, ctx, fake.Config{})
	d := env.Decoder

	require.Equal(t, flow.OK, d.Submit(ctx, testInput(0, 0)))
	out := env.NextOutput(t)

	token := out.Buffer.Token()
	require.NoError(t, d.ReleaseOutput(ctx, token, true))
	err := d.ReleaseOutput(ctx, token, true)
	require.ErrorAs(t, err, &ErrReleaseFailed{})
	require.Equal(t, 1, env.Session().Stats().DoubleReleases)

	ev := env.NextEvent(t)
	require.Equal(t, sink.EventError, ev.Kind)
	require.Equal(t, flow.Error, d.Submit(ctx, testInput(1, 33*time.Millisecond)))
}

func TestOutputRetriesTryAgainLater(t *testing.T) {
	ctx := testCtx(t)
	env := newTestEnv(t, ctx, fake.Config{})
	d := env.Decoder

	const tryAgainCount = 50
	tryAgain := make([]codec.DequeueOutputResult, tryAgainCount)
	for i := range tryAgain {
		tryAgain[i] = codec.TryAgainLater{}
	}
	env.Session().InjectOutput(tryAgain...)
	startedAt := time.Now()
	require.Equal(t, flow.OK, d.Submit(ctx, testInput(0, 0)))
	out := env.NextOutput(t)
	// the first one may be returned by a poll started before startedAt
	require.GreaterOrEqual(t, time.Since(startedAt), (tryAgainCount-1)*testPollTimeout)
	require.NoError(t, out.Render(ctx))

	timeouts := env.Session().OutputTimeouts()
	require.Greater(t, len(timeouts), tryAgainCount)
	for _, timeout := range timeouts {
		require.Equal(t, testPollTimeout, timeout)
	}
	require.Zero(t, d.Stats().FatalErrors)
	env.RequireNoEvent(t, 5*testPollTimeout)
}
