// Package sink defines the downstream consumer of decoded pictures and a few
// ready-made implementations.
package sink

import (
	"context"

	"github.com/xaionaro-go/amcdecoder/codec"
	"github.com/xaionaro-go/amcdecoder/flow"
	"github.com/xaionaro-go/amcdecoder/frame"
)

// Sink receives everything the output pump produces, always from the pump
// goroutine (SetOutputFormat may also be called from the caller goroutine
// during configuration).
type Sink interface {
	// SetOutputFormat is called on every output format change before the
	// first output of the new format.
	SetOutputFormat(ctx context.Context, format codec.Format) error

	// PushOutput transfers the ownership of out.Buffer to the sink.
	PushOutput(ctx context.Context, out *frame.Output) flow.Result

	EndOfStream(ctx context.Context)

	// Error reports a fatal decoding error.
	Error(ctx context.Context, err error)
}
