package codec

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Well-known integer keys of Format.Params.
const (
	KeyLowLatency   = "low-latency"
	KeyPriority     = "priority"
	KeyColorFormat  = "color-format"
	KeyStride       = "stride"
	KeySliceHeight  = "slice-height"
	KeyMaxInputSize = "max-input-size"
)

const (
	MIMETypeVideoAVC  = "video/avc"
	MIMETypeVideoHEVC = "video/hevc"
	MIMETypeVideoVP8  = "video/x-vnd.on2.vp8"
	MIMETypeVideoVP9  = "video/x-vnd.on2.vp9"
	MIMETypeVideoAV1  = "video/av01"
	MIMETypeVideoRaw  = "video/raw"
)

// Format describes either the input stream fed to a decoder or the decoded
// output produced by it.
type Format struct {
	MIMEType  string
	Width     int
	Height    int
	FrameRate float64

	// CodecData is the out-of-band codec configuration ("csd-0"), e.g.
	// SPS/PPS for H.264.
	CodecData []byte

	Params map[string]int32
}

func (f Format) Clone() Format {
	f.CodecData = bytes.Clone(f.CodecData)
	f.Params = maps.Clone(f.Params)
	return f
}

func (f Format) Param(key string) (int32, bool) {
	v, ok := f.Params[key]
	return v, ok
}

// WithParam returns a copy of the format with the key set.
func (f Format) WithParam(key string, value int32) Format {
	f = f.Clone()
	if f.Params == nil {
		f.Params = map[string]int32{}
	}
	f.Params[key] = value
	return f
}

func (f Format) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %dx%d", f.MIMEType, f.Width, f.Height)
	if f.FrameRate > 0 {
		fmt.Fprintf(&sb, "@%g", f.FrameRate)
	}
	if len(f.CodecData) > 0 {
		fmt.Fprintf(&sb, " csd:%dB", len(f.CodecData))
	}
	for _, k := range slices.Sorted(maps.Keys(f.Params)) {
		fmt.Fprintf(&sb, " %s:%d", k, f.Params[k])
	}
	return sb.String()
}
