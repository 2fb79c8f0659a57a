package logger

import (
	"context"

	"github.com/facebookincubator/go-belt/tool/logger"
)

func CtxWithLogger(ctx context.Context, l logger.Logger) context.Context {
	return logger.CtxWithLogger(ctx, l)
}

// IsTraceEnabled reports whether the context logger would emit trace
// messages; used to skip building expensive dumps.
func IsTraceEnabled(ctx context.Context) bool {
	return traceCompiledIn && logger.FromCtx(ctx).Level() >= logger.LevelTrace
}
