// frame.go defines the common timestamp conventions of frames.

// Package frame provides the units of work flowing through the decoder: the
// encoded Input submitted upstream, the Pending frame awaiting its decoded
// output, and the decoded Output handed downstream.
package frame

import (
	"math"
	"time"
)

// NoPTS marks an unknown presentation timestamp.
const NoPTS = time.Duration(math.MinInt64)

// Distance returns |a-b|; when exactly one of the timestamps is NoPTS the
// distance is the maximal one.
func Distance(a, b time.Duration) time.Duration {
	switch {
	case a == NoPTS && b == NoPTS:
		return 0
	case a == NoPTS || b == NoPTS:
		return time.Duration(math.MaxInt64)
	case a > b:
		return a - b
	default:
		return b - a
	}
}
