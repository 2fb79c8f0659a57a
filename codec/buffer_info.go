package codec

import (
	"fmt"
	"strings"
	"time"
)

type BufferFlags uint32

const (
	BufferFlagSyncFrame BufferFlags = 1 << iota
	BufferFlagCodecConfig
	BufferFlagEndOfStream
)

func (f BufferFlags) Has(flag BufferFlags) bool {
	return f&flag == flag
}

func (f BufferFlags) String() string {
	if f == 0 {
		return "0"
	}
	var words []string
	if f.Has(BufferFlagSyncFrame) {
		words = append(words, "SYNC")
	}
	if f.Has(BufferFlagCodecConfig) {
		words = append(words, "CODEC_CONFIG")
	}
	if f.Has(BufferFlagEndOfStream) {
		words = append(words, "EOS")
	}
	if rest := f &^ (BufferFlagSyncFrame | BufferFlagCodecConfig | BufferFlagEndOfStream); rest != 0 {
		words = append(words, fmt.Sprintf("0x%X", uint32(rest)))
	}
	return strings.Join(words, "|")
}

// BufferInfo is the metadata accompanying a queued or dequeued slot.
type BufferInfo struct {
	Flags            BufferFlags
	Offset           int
	Size             int
	PresentationTime time.Duration
}

func (i BufferInfo) IsEOS() bool {
	return i.Flags.Has(BufferFlagEndOfStream)
}

func (i BufferInfo) String() string {
	return fmt.Sprintf("size:%d offset:%d time:%v flags:%s", i.Size, i.Offset, i.PresentationTime, i.Flags)
}
