package codec

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyReleased = errors.New("the output buffer is already released")
	ErrSessionReleased = errors.New("the session is released")
)

type ErrInvalidIndex struct {
	Index int
	Count int
}

func (e ErrInvalidIndex) Error() string {
	return fmt.Sprintf("invalid buffer index %d of %d", e.Index, e.Count)
}

type ErrInvalidState struct {
	Operation string
	State     string
}

func (e ErrInvalidState) Error() string {
	return fmt.Sprintf("cannot %s in state %s", e.Operation, e.State)
}
