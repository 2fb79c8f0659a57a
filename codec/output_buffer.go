package codec

import (
	"context"
	"fmt"
	"sync/atomic"
)

// ReleaseToken identifies a dequeued output slot. Generation is bumped by the
// owner of the session on every flush/stop, so a token outliving its
// generation can be recognized as stale.
type ReleaseToken struct {
	Session    Session
	Index      int
	Generation uint64
}

func (t ReleaseToken) String() string {
	return fmt.Sprintf("%d@gen%d", t.Index, t.Generation)
}

// Releaser consumes release tokens.
type Releaser interface {
	ReleaseOutput(ctx context.Context, token ReleaseToken, render bool) error
}

// OutputBuffer is a dequeued output slot handed downstream. Whoever holds it
// owns the slot and must call Release exactly once.
type OutputBuffer struct {
	Info BufferInfo

	// Data is nil when the session renders to a surface.
	Data []byte

	token    ReleaseToken
	releaser Releaser
	released atomic.Bool
}

func NewOutputBuffer(
	releaser Releaser,
	token ReleaseToken,
	info BufferInfo,
	data []byte,
) *OutputBuffer {
	return &OutputBuffer{
		Info:     info,
		Data:     data,
		token:    token,
		releaser: releaser,
	}
}

func (b *OutputBuffer) Token() ReleaseToken {
	return b.token
}

// Release returns the slot to the session; render=true asks the session to
// present it on its surface. The second and further calls return
// ErrAlreadyReleased without touching the session.
func (b *OutputBuffer) Release(ctx context.Context, render bool) error {
	if !b.released.CompareAndSwap(false, true) {
		return ErrAlreadyReleased
	}
	return b.releaser.ReleaseOutput(ctx, b.token, render)
}

func (b *OutputBuffer) IsReleased() bool {
	return b.released.Load()
}

func (b *OutputBuffer) String() string {
	return fmt.Sprintf("OutputBuffer(%s; %s)", b.token, b.Info)
}
