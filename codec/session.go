// Package codec defines the contract of a buffer-queue codec session (the
// MediaCodec model): a codec exposing indexed input and output buffer slots,
// dequeue/queue operations and discrete lifecycle states.
//
// The decoder engine depends only on these interfaces; concrete sessions live
// in sub-packages (codec/libav, codec/fake).
package codec

import (
	"context"
	"fmt"
	"time"
)

// Surface is an opaque handle of an output window; when a session is
// configured with a non-nil surface, output buffers are rendered to it and
// carry no CPU-accessible data.
type Surface any

// Session is one configured instance of a buffer-queue codec.
//
// The Dequeue* methods must never block longer than the given timeout.
type Session interface {
	fmt.Stringer

	Configure(ctx context.Context, format Format, surface Surface) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Flush(ctx context.Context) error
	Release(ctx context.Context) error

	// InputSlots returns the input slot array; it is invalidated by Stop,
	// Flush and reconfiguration.
	InputSlots(ctx context.Context) ([]Slot, error)

	// OutputSlots returns the output slot array; it is nil for a session
	// configured with a surface.
	OutputSlots(ctx context.Context) ([]Slot, error)

	DequeueInputBuffer(ctx context.Context, timeout time.Duration) (DequeueInputResult, error)
	QueueInputBuffer(ctx context.Context, index int, info BufferInfo) error
	DequeueOutputBuffer(ctx context.Context, timeout time.Duration) (DequeueOutputResult, error)
	ReleaseOutputBuffer(ctx context.Context, index int, render bool) error

	OutputFormat(ctx context.Context) (Format, error)
}

// Factory opens sessions. It is constructed once at startup and passed
// explicitly to the components that need to (re)open sessions.
type Factory interface {
	fmt.Stringer
	NewDecoder(ctx context.Context, mimeType string) (Session, error)
}
