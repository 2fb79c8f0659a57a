//go:build android
// +build android

package libav

import (
	"context"
	"encoding/json"

	"github.com/xaionaro-go/androidetc"
	"github.com/xaionaro-go/amcdecoder/logger"
	"github.com/xaionaro-go/xsync"
)

var (
	mediaCodecsLocker xsync.Mutex
	mediaCodecs       androidetc.MediaCodecsDescriptors
)

// hwSanityChecks warns if the device declares no hardware decoder for the
// MIME type while a MediaCodec-backed libav decoder is requested.
func hwSanityChecks(
	ctx context.Context,
	mimeType string,
	decoderName string,
) {
	logger.Tracef(ctx, "hwSanityChecks(%s, %s)", mimeType, decoderName)
	defer func() { logger.Tracef(ctx, "/hwSanityChecks(%s, %s)", mimeType, decoderName) }()

	mediaCodecsLocker.Do(ctx, func() {
		if mediaCodecs == nil {
			var err error
			mediaCodecs, err = androidetc.ParseMediaCodecs()
			if err != nil {
				logger.Warnf(ctx, "unable to parse the media codecs info: %v", err)
				return
			}
		}
		for _, desc := range mediaCodecs {
			for _, decoder := range desc.Decoders {
				if !decoder.IsHardware() {
					continue
				}
				isFitting := decoder.Type == mimeType
				for _, typ := range decoder.Types {
					if typ.Name == mimeType {
						isFitting = true
						break
					}
				}
				if !isFitting {
					continue
				}
				b, _ := json.Marshal(decoder)
				logger.Debugf(ctx, "found a hardware decoder for %s: %s", mimeType, b)
				return
			}
		}
		logger.Warnf(ctx, "no hardware decoder found for %s; '%s' may be slow", mimeType, decoderName)
	})
}
