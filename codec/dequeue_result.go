package codec

import (
	"fmt"
)

// DequeueInputResult is one of: SlotReady, TryAgainLater.
type DequeueInputResult interface {
	fmt.Stringer
	isDequeueInputResult()
}

// DequeueOutputResult is one of: OutputReady, TryAgainLater,
// OutputFormatChanged, OutputBuffersChanged.
type DequeueOutputResult interface {
	fmt.Stringer
	isDequeueOutputResult()
}

type SlotReady struct {
	Index int
}

func (SlotReady) isDequeueInputResult() {}

func (r SlotReady) String() string {
	return fmt.Sprintf("SlotReady(%d)", r.Index)
}

type OutputReady struct {
	Index int
	Info  BufferInfo
}

func (OutputReady) isDequeueOutputResult() {}

func (r OutputReady) String() string {
	return fmt.Sprintf("OutputReady(%d; %s)", r.Index, r.Info)
}

// TryAgainLater means nothing became available within the timeout.
type TryAgainLater struct{}

func (TryAgainLater) isDequeueInputResult()  {}
func (TryAgainLater) isDequeueOutputResult() {}

func (TryAgainLater) String() string {
	return "TryAgainLater"
}

// OutputFormatChanged means Session.OutputFormat returns a new value.
type OutputFormatChanged struct{}

func (OutputFormatChanged) isDequeueOutputResult() {}

func (OutputFormatChanged) String() string {
	return "OutputFormatChanged"
}

// OutputBuffersChanged means the output slot array must be fetched again.
// Sessions rendering to a surface never reissue the array.
type OutputBuffersChanged struct{}

func (OutputBuffersChanged) isDequeueOutputResult() {}

func (OutputBuffersChanged) String() string {
	return "OutputBuffersChanged"
}
