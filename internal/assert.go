// Package internal holds helpers shared by the amcdecoder packages.
package internal

import (
	"context"

	"github.com/xaionaro-go/amcdecoder/logger"
)

// Assert panics (through the context logger, so the message is flushed
// with all the fields) if mustBeTrue is false.
func Assert(
	ctx context.Context,
	mustBeTrue bool,
	extraArgs ...any,
) {
	if mustBeTrue {
		return
	}

	logger.Panic(ctx, "assertion failed", extraArgs)
}
