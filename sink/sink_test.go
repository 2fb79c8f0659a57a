package sink

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/amcdecoder/codec"
	"github.com/xaionaro-go/amcdecoder/flow"
	"github.com/xaionaro-go/amcdecoder/frame"
)

type recordingReleaser struct {
	renders []bool
}

func (r *recordingReleaser) ReleaseOutput(ctx context.Context, token codec.ReleaseToken, render bool) error {
	r.renders = append(r.renders, render)
	return nil
}

func newOutput(r codec.Releaser, idx int) *frame.Output {
	return &frame.Output{
		PTS:    time.Duration(idx) * time.Millisecond,
		Buffer: codec.NewOutputBuffer(r, codec.ReleaseToken{Index: idx}, codec.BufferInfo{Size: 1}, []byte{0}),
	}
}

func TestRenderer(t *testing.T) {
	ctx := context.Background()
	rel := &recordingReleaser{}
	r := NewRenderer()
	require.NoError(t, r.SetOutputFormat(ctx, codec.Format{Width: 2, Height: 2}))
	out := newOutput(rel, 0)
	require.Equal(t, flow.OK, r.PushOutput(ctx, out))
	require.Equal(t, []bool{true}, rel.renders)
	require.True(t, out.Buffer.IsReleased())

	require.Equal(t, flow.OK, r.PushOutput(ctx, out))
	r.EndOfStream(ctx)
	r.Error(ctx, errors.New("boom"))

	stats := r.Stats()
	require.Equal(t, uint64(1), stats.Rendered)
	require.Equal(t, uint64(1), stats.RenderFailed)
	require.True(t, stats.EndOfStream)
	require.EqualError(t, stats.Err, "boom")
	require.Equal(t, 2, stats.Format.Width)
}

func TestChan(t *testing.T) {
	ctx := context.Background()
	rel := &recordingReleaser{}
	s := NewChan(1)

	out := newOutput(rel, 1)
	require.Equal(t, flow.OK, s.PushOutput(ctx, out))
	ev := <-s.C
	require.Equal(t, EventOutput, ev.Kind)
	require.Same(t, out, ev.Output)
	require.False(t, out.Buffer.IsReleased())

	s.SetFlow(flow.EOS)
	rejected := newOutput(rel, 2)
	require.Equal(t, flow.EOS, s.PushOutput(ctx, rejected))
	require.True(t, rejected.Buffer.IsReleased())
	require.Equal(t, []bool{false}, rel.renders)

	s.SetFlow(flow.OK)
	require.Equal(t, flow.OK, s.PushOutput(ctx, newOutput(rel, 3)))
	cancelledCtx, cancel := context.WithCancel(ctx)
	cancel()
	blocked := newOutput(rel, 4)
	require.Equal(t, flow.Flushing, s.PushOutput(cancelledCtx, blocked))
	require.True(t, blocked.Buffer.IsReleased())
	require.ErrorIs(t, s.SetOutputFormat(cancelledCtx, codec.Format{}), context.Canceled)
}
