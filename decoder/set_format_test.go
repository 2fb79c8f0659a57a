package decoder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/amcdecoder/codec"
	"github.com/xaionaro-go/amcdecoder/codec/fake"
	"github.com/xaionaro-go/amcdecoder/flow"
	"github.com/xaionaro-go/amcdecoder/sink"
)

func TestIsFormatChange(t *testing.T) {
	prev := testFormat.WithParam(codec.KeyLowLatency, 1)
	prev.CodecData = []byte{1, 2, 3}

	for _, tc := range []struct {
		name   string
		modify func(f *codec.Format)
		change bool
	}{
		{"same", func(f *codec.Format) {}, false},
		{"frame_rate", func(f *codec.Format) { f.FrameRate = 60 }, false},
		{"params", func(f *codec.Format) { f.Params = nil }, false},
		{"unset_mime", func(f *codec.Format) { f.MIMEType = "" }, false},
		{"mime", func(f *codec.Format) { f.MIMEType = codec.MIMETypeVideoHEVC }, true},
		{"width", func(f *codec.Format) { f.Width = 640 }, true},
		{"height", func(f *codec.Format) { f.Height = 480 }, true},
		{"codec_data", func(f *codec.Format) { f.CodecData = []byte{1, 2, 4} }, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			next := prev.Clone()
			tc.modify(&next)
			require.Equal(t, tc.change, isFormatChange(&prev, next))
		})
	}
	require.True(t, isFormatChange(nil, prev))
}

func TestSetFormatKeepsSessionOnIrrelevantChange(t *testing.T) {
	ctx := testCtx(t)
	env := newTestEnv(t, ctx, fake.Config{})
	d := env.Decoder

	format := testFormat
	format.FrameRate = 60
	require.NoError(t, d.SetFormat(ctx, format))

	require.Len(t, env.Factory.Sessions(), 1)
	require.Equal(t, 1, env.Session().Stats().Configures)
	require.Zero(t, d.Stats().Reconfigurations)

	require.Equal(t, flow.OK, d.Submit(ctx, testInput(0, 0)))
	require.NoError(t, env.NextOutput(t).Render(ctx))
}

func TestSetFormatReconfigures(t *testing.T) {
	ctx := testCtx(t)
	env := newTestEnv(t, ctx, fake.Config{})
	d := env.Decoder

	require.Equal(t, flow.OK, d.Submit(ctx, testInput(0, 0)))
	require.NoError(t, env.NextOutput(t).Render(ctx))
	old := env.Session()

	format := testFormat
	format.Width, format.Height = 640, 480
	require.NoError(t, d.SetFormat(ctx, format))
	require.Equal(t, StateRunning, d.State(ctx))

	sessions := env.Factory.Sessions()
	require.Len(t, sessions, 2)
	oldStats := old.Stats()
	require.Equal(t, 1, oldStats.Stops)
	require.True(t, oldStats.Released)

	// the old codec was drained before it was closed
	queued := old.QueuedInputs()
	require.Len(t, queued, 2)
	require.True(t, queued[1].Info.IsEOS())
	env.RequireNoEvent(t, 5*testPollTimeout)

	require.Equal(t, flow.OK, d.Submit(ctx, testInput(1, 33*time.Millisecond)))
	out := env.NextOutput(t)
	require.Equal(t, uint64(1), out.Frame.SystemFrameNumber)
	require.NoError(t, out.Render(ctx))
	require.Equal(t, 1, env.Session().Stats().Configures)

	format.CodecData = []byte{0, 0, 0, 1}
	require.NoError(t, d.SetFormat(ctx, format))
	require.Len(t, env.Factory.Sessions(), 3)

	format.MIMEType = codec.MIMETypeVideoHEVC
	require.NoError(t, d.SetFormat(ctx, format))
	require.Equal(t, []string{
		codec.MIMETypeVideoAVC,
		codec.MIMETypeVideoAVC,
		codec.MIMETypeVideoAVC,
		codec.MIMETypeVideoHEVC,
	}, env.Factory.MIMETypes())

	stats := d.Stats()
	require.Equal(t, uint64(3), stats.Reconfigurations)
	require.Equal(t, uint64(4), stats.SessionsOpened)
	require.Zero(t, stats.FatalErrors)
}

func TestSetFormatAfterStop(t *testing.T) {
	ctx := testCtx(t)
	env := newTestEnv(t, ctx, fake.Config{})
	d := env.Decoder

	require.NoError(t, d.Stop(ctx))
	require.Equal(t, StateStopped, d.State(ctx))
	require.NoError(t, d.SetFormat(ctx, testFormat))
	require.Equal(t, StateRunning, d.State(ctx))

	require.Len(t, env.Factory.Sessions(), 1)
	stats := env.Session().Stats()
	require.Equal(t, 2, stats.Configures)
	require.Equal(t, 2, stats.Starts)

	require.Equal(t, flow.OK, d.Submit(ctx, testInput(0, 0)))
	require.NoError(t, env.NextOutput(t).Render(ctx))
}

func TestSetFormatErrors(t *testing.T) {
	ctx := testCtx(t)
	factory := fake.NewFactory(fake.Config{})
	d := New(factory, sink.NewChan(1))

	require.ErrorAs(t, d.SetFormat(ctx, testFormat), &ErrInvalidState{})

	require.NoError(t, d.Open(ctx))
	require.Error(t, d.SetFormat(ctx, codec.Format{Width: 16, Height: 16}))
	require.Empty(t, factory.Sessions())

	factory.SetOpenError(codec.ErrSessionReleased)
	require.ErrorIs(t, d.SetFormat(ctx, testFormat), codec.ErrSessionReleased)
	require.Equal(t, StateOpened, d.State(ctx))

	factory.SetOpenError(nil)
	require.NoError(t, d.SetFormat(ctx, testFormat))
	require.Equal(t, StateRunning, d.State(ctx))
	require.NoError(t, d.Close(ctx))
}
