// Package libav implements the buffer-queue codec session on top of the
// libav send/receive decoding API, so the decoder runs on any platform
// (and on Android through the "*_mediacodec" libav decoders).
package libav

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/amcdecoder/codec"
	"github.com/xaionaro-go/amcdecoder/internal"
	"github.com/xaionaro-go/amcdecoder/logger"
)

type ErrUnsupportedMIMEType struct {
	MIMEType string
}

func (e ErrUnsupportedMIMEType) Error() string {
	return fmt.Sprintf("MIME type '%s' is not supported", e.MIMEType)
}

type Factory struct {
	Config Config

	sessionCount atomic.Uint64
}

var _ codec.Factory = (*Factory)(nil)

func NewFactory(opts ...Option) *Factory {
	return &Factory{
		Config: Options(opts).Config(),
	}
}

func (f *Factory) String() string {
	if f.Config.DecoderName != "" {
		return fmt.Sprintf("libav(%s)", f.Config.DecoderName)
	}
	return "libav"
}

func findDecoder(
	ctx context.Context,
	codecID astiav.CodecID,
	name string,
) *astiav.Codec {
	if name != "" {
		if c := astiav.FindDecoderByName(name); c != nil {
			return c
		}
		logger.Warnf(ctx, "decoder '%s' is not found, falling back to the default decoder of %s", name, codecID)
	}
	return astiav.FindDecoder(codecID)
}

func (f *Factory) NewDecoder(
	ctx context.Context,
	mimeType string,
) (_ret codec.Session, _err error) {
	logger.Debugf(ctx, "NewDecoder(%s)", mimeType)
	defer func() { logger.Debugf(ctx, "/NewDecoder(%s): %v %v", mimeType, _ret, _err) }()

	codecID, ok := CodecIDFromMIMEType(mimeType)
	if !ok {
		return nil, ErrUnsupportedMIMEType{MIMEType: mimeType}
	}
	c := findDecoder(ctx, codecID, f.Config.DecoderName)
	if c == nil {
		return nil, fmt.Errorf("unable to find a decoder for %s", codecID)
	}
	hwSanityChecks(ctx, mimeType, c.Name())
	s := newSession(f.sessionCount.Add(1), f.Config, mimeType, c)
	internal.SetFinalizerRelease(ctx, s)
	return s, nil
}
