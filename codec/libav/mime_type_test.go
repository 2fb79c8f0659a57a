package libav

import (
	"testing"

	"github.com/asticode/go-astiav"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/amcdecoder/codec"
)

func TestMIMETypes(t *testing.T) {
	for mimeType, id := range map[string]astiav.CodecID{
		codec.MIMETypeVideoAVC:  astiav.CodecIDH264,
		codec.MIMETypeVideoHEVC: astiav.CodecIDHevc,
		codec.MIMETypeVideoVP9:  astiav.CodecIDVp9,
		codec.MIMETypeVideoAV1:  astiav.CodecIDAv1,
	} {
		got, ok := CodecIDFromMIMEType(mimeType)
		require.True(t, ok, mimeType)
		require.Equal(t, id, got)
		require.Equal(t, mimeType, MIMETypeFromCodecID(id))
	}

	_, ok := CodecIDFromMIMEType("video/unknown")
	require.False(t, ok)
	require.Empty(t, MIMETypeFromCodecID(astiav.CodecIDNone))
}
