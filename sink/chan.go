package sink

import (
	"context"
	"sync"

	"github.com/xaionaro-go/amcdecoder/codec"
	"github.com/xaionaro-go/amcdecoder/flow"
	"github.com/xaionaro-go/amcdecoder/frame"
)

type EventKind int

const (
	EventOutput EventKind = iota
	EventFormat
	EventEndOfStream
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventOutput:
		return "output"
	case EventFormat:
		return "format"
	case EventEndOfStream:
		return "eos"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind   EventKind
	Output *frame.Output
	Format codec.Format
	Err    error
}

// Chan forwards everything into a channel. PushOutput blocks while the
// channel is full unless the context is cancelled or the sink is
// switched to a non-OK flow by SetFlow.
type Chan struct {
	C chan Event

	locker sync.Mutex
	flow   flow.Result
}

var _ Sink = (*Chan)(nil)

func NewChan(size int) *Chan {
	return &Chan{
		C: make(chan Event, size),
	}
}

// SetFlow sets the result returned by further PushOutput calls; a non-OK
// value makes the sink reject (and drop) the outputs.
func (s *Chan) SetFlow(r flow.Result) {
	s.locker.Lock()
	defer s.locker.Unlock()
	s.flow = r
}

func (s *Chan) getFlow() flow.Result {
	s.locker.Lock()
	defer s.locker.Unlock()
	return s.flow
}

func (s *Chan) send(ctx context.Context, ev Event) bool {
	select {
	case s.C <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Chan) SetOutputFormat(ctx context.Context, format codec.Format) error {
	if !s.send(ctx, Event{Kind: EventFormat, Format: format}) {
		return ctx.Err()
	}
	return nil
}

func (s *Chan) PushOutput(ctx context.Context, out *frame.Output) flow.Result {
	if r := s.getFlow(); r != flow.OK {
		_ = out.Drop(ctx)
		return r
	}
	if !s.send(ctx, Event{Kind: EventOutput, Output: out}) {
		_ = out.Drop(ctx)
		return flow.Flushing
	}
	return flow.OK
}

func (s *Chan) EndOfStream(ctx context.Context) {
	s.send(ctx, Event{Kind: EventEndOfStream})
}

func (s *Chan) Error(ctx context.Context, err error) {
	s.send(ctx, Event{Kind: EventError, Err: err})
}
