package codec

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type countingReleaser struct {
	Locker  sync.Mutex
	Renders map[int]bool
	Calls   int
}

func (r *countingReleaser) ReleaseOutput(
	ctx context.Context,
	token ReleaseToken,
	render bool,
) error {
	r.Locker.Lock()
	defer r.Locker.Unlock()
	if r.Renders == nil {
		r.Renders = map[int]bool{}
	}
	r.Renders[token.Index] = render
	r.Calls++
	return nil
}

func TestOutputBufferReleaseExactlyOnce(t *testing.T) {
	ctx := context.Background()
	r := &countingReleaser{}
	buf := NewOutputBuffer(r, ReleaseToken{Index: 3, Generation: 1}, BufferInfo{Size: 10}, make([]byte, 10))
	require.False(t, buf.IsReleased())

	var wg sync.WaitGroup
	errCh := make(chan error, 10)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errCh <- buf.Release(ctx, true)
		}()
	}
	wg.Wait()
	close(errCh)

	var okCount, alreadyCount int
	for err := range errCh {
		switch err {
		case nil:
			okCount++
		case ErrAlreadyReleased:
			alreadyCount++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, okCount)
	require.Equal(t, 9, alreadyCount)
	require.Equal(t, 1, r.Calls)
	require.True(t, r.Renders[3])
	require.True(t, buf.IsReleased())
}

func TestBufferFlagsString(t *testing.T) {
	for _, tc := range []struct {
		Flags    BufferFlags
		Expected string
	}{
		{0, "0"},
		{BufferFlagSyncFrame, "SYNC"},
		{BufferFlagCodecConfig | BufferFlagEndOfStream, "CODEC_CONFIG|EOS"},
		{BufferFlagEndOfStream | 0x100, "EOS|0x100"},
	} {
		t.Run(tc.Expected, func(t *testing.T) {
			require.Equal(t, tc.Expected, tc.Flags.String())
		})
	}
}

func TestFormatCloneIsDeep(t *testing.T) {
	f := Format{
		MIMEType:  MIMETypeVideoAVC,
		Width:     1280,
		Height:    720,
		CodecData: []byte{1, 2, 3},
		Params:    map[string]int32{KeyLowLatency: 1},
	}
	c := f.WithParam(KeyPriority, 0)
	c.CodecData[0] = 9
	require.Equal(t, byte(1), f.CodecData[0])
	_, ok := f.Param(KeyPriority)
	require.False(t, ok)
	v, ok := c.Param(KeyPriority)
	require.True(t, ok)
	require.Zero(t, v)
	require.Equal(t, "video/avc 1280x720 csd:3B low-latency:1", f.String())
}
