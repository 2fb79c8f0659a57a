package decoder

import (
	"fmt"

	"github.com/xaionaro-go/amcdecoder/flow"
)

type ErrInvalidState struct {
	Operation string
	State     State
}

func (e ErrInvalidState) Error() string {
	return fmt.Sprintf("cannot %s in state %s", e.Operation, e.State)
}

type ErrInvalidSlotIndex struct {
	Index int
	Count int
}

func (e ErrInvalidSlotIndex) Error() string {
	return fmt.Sprintf("invalid slot index %d (have %d slots)", e.Index, e.Count)
}

type ErrInvalidRange struct {
	Index  int
	Offset int
	Size   int
	Cap    int
}

func (e ErrInvalidRange) Error() string {
	return fmt.Sprintf("the range [%d:%d] does not fit into slot %d of capacity %d", e.Offset, e.Offset+e.Size, e.Index, e.Cap)
}

type ErrDequeueFailed struct {
	Output bool
	Err    error
}

func (e ErrDequeueFailed) Error() string {
	kind := "an input"
	if e.Output {
		kind = "an output"
	}
	return fmt.Sprintf("unable to dequeue %s buffer: %v", kind, e.Err)
}

func (e ErrDequeueFailed) Unwrap() error {
	return e.Err
}

type ErrQueueFailed struct {
	Index int
	Err   error
}

func (e ErrQueueFailed) Error() string {
	return fmt.Sprintf("unable to queue the input buffer %d: %v", e.Index, e.Err)
}

func (e ErrQueueFailed) Unwrap() error {
	return e.Err
}

type ErrReleaseFailed struct {
	Index int
	Err   error
}

func (e ErrReleaseFailed) Error() string {
	return fmt.Sprintf("unable to release the output buffer %d: %v", e.Index, e.Err)
}

func (e ErrReleaseFailed) Unwrap() error {
	return e.Err
}

type ErrOutputFormat struct {
	Err error
}

func (e ErrOutputFormat) Error() string {
	return fmt.Sprintf("unable to handle the output format change: %v", e.Err)
}

func (e ErrOutputFormat) Unwrap() error {
	return e.Err
}

// ErrDownstream is reported when the sink refuses the outputs with a
// fatal flow result.
type ErrDownstream struct {
	Flow flow.Result
}

func (e ErrDownstream) Error() string {
	return fmt.Sprintf("downstream returned %s", e.Flow)
}

type ErrDrainFailed struct {
	Reason string
	Err    error
}

func (e ErrDrainFailed) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("unable to drain: %s", e.Reason)
	}
	return fmt.Sprintf("unable to drain: %s: %v", e.Reason, e.Err)
}

func (e ErrDrainFailed) Unwrap() error {
	return e.Err
}

type errUnexpectedResult struct {
	Result fmt.Stringer
}

func (e errUnexpectedResult) Error() string {
	return fmt.Sprintf("unexpected result %v", e.Result)
}
