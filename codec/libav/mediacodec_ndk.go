//go:build mediacodec && !patched_libav
// +build mediacodec,!patched_libav

package libav

import (
	"context"

	"github.com/xaionaro-go/avmediacodec"
	"github.com/xaionaro-go/amcdecoder/logger"
)

func mediaCodecSetParameters(
	ctx context.Context,
	mediaCodec *avmediacodec.FFAMediaCodec,
	mediaCodecFmt *avmediacodec.FFAMediaFormat,
) error {
	logger.Tracef(ctx, "setting the parameters through the NDK")
	return mediaCodec.SetParametersNDK(mediaCodecFmt)
}
