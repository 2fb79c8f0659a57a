// Package indicator provides smoothing indicators for runtime measurements
// (such as the decode latency of a codec session).
package indicator

import (
	"golang.org/x/exp/constraints"
)

type Number interface {
	constraints.Integer | constraints.Float
}

type MovingAverage[T Number] interface {
	// Update accounts the sample and returns the new smoothed value.
	Update(v T) T

	// Value returns the last smoothed value without updating it.
	Value() T

	InitPeriod() int64
	Valid() bool
	Reset()
}

// Kind selects a MovingAverage implementation.
type Kind string

const (
	KindEMA  = Kind("ema")
	KindMAMA = Kind("mama")
)

// New returns a moving average of the given kind over a window of n samples;
// an unknown kind falls back to EMA.
func New[T Number](kind Kind, n int) MovingAverage[T] {
	switch kind {
	case KindMAMA:
		return NewMAMADefault[T](n)
	default:
		return NewEMA[T](n)
	}
}
