package frame

import (
	"context"
	"fmt"
	"time"

	"github.com/xaionaro-go/amcdecoder/codec"
)

// Output is a decoded picture handed downstream. The receiver owns Buffer
// and must release it exactly once.
type Output struct {
	// Frame is the upstream frame the picture was correlated with; nil for
	// untagged outputs.
	Frame  *Pending
	PTS    time.Duration
	Buffer *codec.OutputBuffer
}

func (o *Output) Render(ctx context.Context) error {
	return o.Buffer.Release(ctx, true)
}

func (o *Output) Drop(ctx context.Context) error {
	return o.Buffer.Release(ctx, false)
}

func (o *Output) String() string {
	return fmt.Sprintf("Output(pts:%v; frame:%v; %s)", o.PTS, o.Frame, o.Buffer)
}
