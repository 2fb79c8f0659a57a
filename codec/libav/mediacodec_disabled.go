//go:build !mediacodec
// +build !mediacodec

package libav

import (
	"context"
	"fmt"

	"github.com/asticode/go-astiav"
)

func setMediaCodecInt32(
	ctx context.Context,
	cc *astiav.CodecContext,
	key string,
	value int32,
) error {
	return fmt.Errorf("compiled without mediacodec support")
}
