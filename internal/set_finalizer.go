package internal

import (
	"context"
	"runtime"

	"github.com/xaionaro-go/amcdecoder/logger"
)

// SetFinalizerRelease makes sure a resource that was never released
// explicitly gets released when garbage collected; it is a leak, so it
// is logged as an error.
func SetFinalizerRelease[T interface {
	Release(context.Context) error
}](
	ctx context.Context,
	obj T,
) {
	runtime.SetFinalizer(obj, func(obj T) {
		logger.Errorf(ctx, "%T was not released explicitly, releasing it in the finalizer", obj)
		if err := obj.Release(ctx); err != nil {
			logger.Errorf(ctx, "unable to release %T: %v", obj, err)
		}
	})
}

// ClearFinalizer cancels SetFinalizerRelease.
func ClearFinalizer[T any](obj T) {
	runtime.SetFinalizer(obj, nil)
}
