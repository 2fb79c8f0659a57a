package sink

import (
	"context"
	"sync"

	"github.com/xaionaro-go/amcdecoder/codec"
	"github.com/xaionaro-go/amcdecoder/flow"
	"github.com/xaionaro-go/amcdecoder/frame"
	"github.com/xaionaro-go/amcdecoder/logger"
)

// Renderer immediately releases every output with render=true, which
// presents it on the codec surface (or just recycles the slot).
type Renderer struct {
	locker       sync.Mutex
	format       codec.Format
	err          error
	rendered     uint64
	endOfStream  bool
	renderFailed uint64
}

var _ Sink = (*Renderer)(nil)

func NewRenderer() *Renderer {
	return &Renderer{}
}

func (r *Renderer) SetOutputFormat(ctx context.Context, format codec.Format) error {
	r.locker.Lock()
	defer r.locker.Unlock()
	r.format = format
	return nil
}

func (r *Renderer) PushOutput(ctx context.Context, out *frame.Output) flow.Result {
	err := out.Render(ctx)
	r.locker.Lock()
	defer r.locker.Unlock()
	if err != nil {
		logger.Warnf(ctx, "unable to render %s: %v", out, err)
		r.renderFailed++
		return flow.OK
	}
	r.rendered++
	return flow.OK
}

func (r *Renderer) EndOfStream(ctx context.Context) {
	r.locker.Lock()
	defer r.locker.Unlock()
	r.endOfStream = true
}

func (r *Renderer) Error(ctx context.Context, err error) {
	logger.Errorf(ctx, "decoding failed: %v", err)
	r.locker.Lock()
	defer r.locker.Unlock()
	r.err = err
}

type RendererStats struct {
	Format       codec.Format
	Rendered     uint64
	RenderFailed uint64
	EndOfStream  bool
	Err          error
}

func (r *Renderer) Stats() RendererStats {
	r.locker.Lock()
	defer r.locker.Unlock()
	return RendererStats{
		Format:       r.format,
		Rendered:     r.rendered,
		RenderFailed: r.renderFailed,
		EndOfStream:  r.endOfStream,
		Err:          r.err,
	}
}
