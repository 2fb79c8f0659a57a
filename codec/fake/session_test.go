package fake

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/amcdecoder/codec"
)

func startedSession(t *testing.T, ctx context.Context, cfg Config, surface codec.Surface) *Session {
	s := NewSession(cfg)
	require.NoError(t, s.Configure(ctx, codec.Format{MIMEType: codec.MIMETypeVideoAVC, Width: 4, Height: 2}, surface))
	require.NoError(t, s.Start(ctx))
	return s
}

func queue(t *testing.T, ctx context.Context, s *Session, payload []byte, info codec.BufferInfo) int {
	r, err := s.DequeueInputBuffer(ctx, time.Millisecond)
	require.NoError(t, err)
	ready, ok := r.(codec.SlotReady)
	require.True(t, ok, "%s", r)
	slots, err := s.InputSlots(ctx)
	require.NoError(t, err)
	info.Size = copy(slots[ready.Index].Data, payload)
	require.NoError(t, s.QueueInputBuffer(ctx, ready.Index, info))
	return ready.Index
}

func TestSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := startedSession(t, ctx, Config{}, nil)

	queue(t, ctx, s, []byte("abc"), codec.BufferInfo{PresentationTime: time.Second})
	queue(t, ctx, s, nil, codec.BufferInfo{Flags: codec.BufferFlagEndOfStream})

	r, err := s.DequeueOutputBuffer(ctx, time.Millisecond)
	require.NoError(t, err)
	out := r.(codec.OutputReady)
	require.Equal(t, 3, out.Info.Size)
	require.Equal(t, time.Second, out.Info.PresentationTime)
	slots, err := s.OutputSlots(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), slots[out.Index].Data[:3])

	r, err = s.DequeueOutputBuffer(ctx, time.Millisecond)
	require.NoError(t, err)
	eos := r.(codec.OutputReady)
	require.True(t, eos.Info.IsEOS())

	r, err = s.DequeueOutputBuffer(ctx, time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, codec.TryAgainLater{}, r)

	require.Equal(t, 2, s.Stats().Outstanding)
	require.NoError(t, s.ReleaseOutputBuffer(ctx, out.Index, true))
	require.NoError(t, s.ReleaseOutputBuffer(ctx, eos.Index, false))
	require.Error(t, s.ReleaseOutputBuffer(ctx, out.Index, true))
	stats := s.Stats()
	require.Equal(t, 1, stats.DoubleReleases)
	require.Equal(t, 1, stats.Renders)
	require.Equal(t, 1, stats.Drops)
	require.Zero(t, stats.Outstanding)
}

func TestSessionScript(t *testing.T) {
	ctx := context.Background()
	s := startedSession(t, ctx, Config{}, struct{}{})

	s.InjectInput(codec.TryAgainLater{}, codec.TryAgainLater{})
	for range 2 {
		r, err := s.DequeueInputBuffer(ctx, time.Hour)
		require.NoError(t, err)
		require.Equal(t, codec.TryAgainLater{}, r)
	}
	fatal := errors.New("dead")
	s.InjectInputError(fatal)
	_, err := s.DequeueInputBuffer(ctx, time.Hour)
	require.ErrorIs(t, err, fatal)

	s.InjectOutputFormatChange(codec.Format{MIMEType: codec.MIMETypeVideoRaw, Width: 8, Height: 8})
	r, err := s.DequeueOutputBuffer(ctx, time.Hour)
	require.NoError(t, err)
	require.Equal(t, codec.OutputFormatChanged{}, r)
	f, err := s.OutputFormat(ctx)
	require.NoError(t, err)
	require.Equal(t, 8, f.Width)

	outSlots, err := s.OutputSlots(ctx)
	require.NoError(t, err)
	require.Nil(t, outSlots)
}

func TestSessionFlushInvalidatesIndices(t *testing.T) {
	ctx := context.Background()
	s := startedSession(t, ctx, Config{InputSlots: 1}, nil)

	idx := queue(t, ctx, s, []byte{1}, codec.BufferInfo{})
	r, err := s.DequeueOutputBuffer(ctx, time.Millisecond)
	require.NoError(t, err)
	out := r.(codec.OutputReady)
	require.Equal(t, 1, s.Stats().Outstanding)

	r2, err := s.DequeueInputBuffer(ctx, time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, codec.SlotReady{Index: idx}, r2)

	require.NoError(t, s.Flush(ctx))
	require.Zero(t, s.Stats().Outstanding)
	require.Error(t, s.ReleaseOutputBuffer(ctx, out.Index, false))
	require.Zero(t, s.Stats().DoubleReleases)
	require.Error(t, s.QueueInputBuffer(ctx, idx, codec.BufferInfo{}))
}

func TestSessionInputUnavailable(t *testing.T) {
	ctx := context.Background()
	s := startedSession(t, ctx, Config{}, nil)
	s.SetInputAvailable(false)

	start := time.Now()
	r, err := s.DequeueInputBuffer(ctx, 20*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, codec.TryAgainLater{}, r)
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	require.Equal(t, []time.Duration{20 * time.Millisecond}, s.InputTimeouts())

	go func() {
		time.Sleep(10 * time.Millisecond)
		s.SetInputAvailable(true)
	}()
	r, err = s.DequeueInputBuffer(ctx, time.Second)
	require.NoError(t, err)
	require.IsType(t, codec.SlotReady{}, r)
}

func TestFactory(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(Config{})
	s0, err := f.NewDecoder(ctx, codec.MIMETypeVideoAVC)
	require.NoError(t, err)
	s1, err := f.NewDecoder(ctx, codec.MIMETypeVideoHEVC)
	require.NoError(t, err)
	require.Same(t, s1, f.Last())
	require.Len(t, f.Sessions(), 2)
	require.Equal(t, []string{codec.MIMETypeVideoAVC, codec.MIMETypeVideoHEVC}, f.MIMETypes())
	require.NotEqual(t, s0.String(), s1.String())

	f.SetOpenError(errors.New("no codec"))
	_, err = f.NewDecoder(ctx, codec.MIMETypeVideoAVC)
	require.Error(t, err)
}
