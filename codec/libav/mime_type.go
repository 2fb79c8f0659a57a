package libav

import (
	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/amcdecoder/codec"
)

var mimeTypes = map[string]astiav.CodecID{
	codec.MIMETypeVideoAVC:  astiav.CodecIDH264,
	codec.MIMETypeVideoHEVC: astiav.CodecIDHevc,
	codec.MIMETypeVideoVP8:  astiav.CodecIDVp8,
	codec.MIMETypeVideoVP9:  astiav.CodecIDVp9,
	codec.MIMETypeVideoAV1:  astiav.CodecIDAv1,
	"video/mp4v-es":         astiav.CodecIDMpeg4,
	"video/mpeg2":           astiav.CodecIDMpeg2Video,
	"video/3gpp":            astiav.CodecIDH263,
}

// CodecIDFromMIMEType maps an Android-style MIME type to the libav codec.
func CodecIDFromMIMEType(mimeType string) (astiav.CodecID, bool) {
	id, ok := mimeTypes[mimeType]
	return id, ok
}

func MIMETypeFromCodecID(id astiav.CodecID) string {
	for mimeType, candidate := range mimeTypes {
		if candidate == id {
			return mimeType
		}
	}
	return ""
}
