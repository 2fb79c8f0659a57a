//go:build mediacodec
// +build mediacodec

package libav

import (
	"context"
	"fmt"

	"github.com/asticode/go-astiav"
	xastiav "github.com/xaionaro-go/avcommon/astiav"
	"github.com/xaionaro-go/avmediacodec"
	"github.com/xaionaro-go/amcdecoder/logger"
)

// setMediaCodecInt32 sets a parameter of the MediaCodec instance behind an
// opened "*_mediacodec" codec context.
func setMediaCodecInt32(
	ctx context.Context,
	cc *astiav.CodecContext,
	key string,
	value int32,
) (_err error) {
	logger.Debugf(ctx, "setMediaCodecInt32('%s', %d)", key, value)
	defer func() { logger.Debugf(ctx, "/setMediaCodecInt32('%s', %d): %v", key, value, _err) }()

	mediaCodec := avmediacodec.WrapAVCodecContext(
		xastiav.CFromAVCodecContext(cc),
	).PrivData().Codec()

	mediaCodecFmt := mediaCodec.Format()
	mediaCodecFmt.SetInt32(key, value)
	result, err := mediaCodecFmt.GetInt32(key)
	if err != nil {
		return fmt.Errorf("unable to read back '%s': %w", key, err)
	}
	if result != value {
		return fmt.Errorf("'%s' is %d instead of %d", key, result, value)
	}
	if err := mediaCodecSetParameters(ctx, mediaCodec, mediaCodecFmt); err != nil {
		return fmt.Errorf("unable to set the parameters: %w", err)
	}
	return nil
}
