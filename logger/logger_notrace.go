//go:build !debug_trace
// +build !debug_trace

package logger

import (
	"context"
)

const traceCompiledIn = false

// Tracef is a no-op without the debug_trace build tag.
func Tracef(ctx context.Context, format string, args ...any) {}
