package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/xaionaro-go/amcdecoder/codec"
	"github.com/xaionaro-go/amcdecoder/codec/libav"
	"github.com/xaionaro-go/amcdecoder/frame"
	"github.com/xaionaro-go/amcdecoder/logger"
)

type demuxer struct {
	closer        *astikit.Closer
	formatContext *astiav.FormatContext
	stream        *astiav.Stream
	packet        *astiav.Packet
}

func openDemuxer(ctx context.Context, url string) (_ret *demuxer, _err error) {
	logger.Debugf(ctx, "openDemuxer('%s')", url)
	defer func() { logger.Debugf(ctx, "/openDemuxer('%s'): %v", url, _err) }()

	d := &demuxer{closer: astikit.NewCloser()}
	defer func() {
		if _err != nil {
			_ = d.Close()
		}
	}()

	d.formatContext = astiav.AllocFormatContext()
	if d.formatContext == nil {
		return nil, fmt.Errorf("unable to allocate a format context")
	}
	d.closer.Add(d.formatContext.Free)
	if err := d.formatContext.OpenInput(url, nil, nil); err != nil {
		return nil, fmt.Errorf("unable to open '%s': %w", url, err)
	}
	d.closer.Add(d.formatContext.CloseInput)
	if err := d.formatContext.FindStreamInfo(nil); err != nil {
		return nil, fmt.Errorf("unable to find the stream info: %w", err)
	}
	for _, s := range d.formatContext.Streams() {
		if s.CodecParameters().MediaType() == astiav.MediaTypeVideo {
			d.stream = s
			break
		}
	}
	if d.stream == nil {
		return nil, fmt.Errorf("no video stream in '%s'", url)
	}
	d.packet = astiav.AllocPacket()
	d.closer.Add(d.packet.Free)
	return d, nil
}

func (d *demuxer) Close() error {
	return d.closer.Close()
}

func (d *demuxer) Format() (codec.Format, error) {
	cp := d.stream.CodecParameters()
	mimeType := libav.MIMETypeFromCodecID(cp.CodecID())
	if mimeType == "" {
		return codec.Format{}, fmt.Errorf("codec %s is not supported", cp.CodecID())
	}
	return codec.Format{
		MIMEType:  mimeType,
		Width:     cp.Width(),
		Height:    cp.Height(),
		FrameRate: d.stream.AvgFrameRate().Float64(),
		CodecData: cp.ExtraData(),
	}, nil
}

func toDuration(ts int64, timeBase astiav.Rational) time.Duration {
	if ts == astiav.NoPtsValue {
		return frame.NoPTS
	}
	return time.Duration(float64(ts) * timeBase.Float64() * float64(time.Second))
}

// Next returns the next frame of the video stream, or astiav.ErrEof
// at the end.
func (d *demuxer) Next(number uint64) (*frame.Input, error) {
	for {
		d.packet.Unref()
		if err := d.formatContext.ReadFrame(d.packet); err != nil {
			return nil, err
		}
		if d.packet.StreamIndex() != d.stream.Index() {
			continue
		}
		tb := d.stream.TimeBase()
		return &frame.Input{
			SystemFrameNumber: number,
			PTS:               toDuration(d.packet.Pts(), tb),
			Duration:          toDuration(d.packet.Duration(), tb),
			Payload:           append([]byte(nil), d.packet.Data()...),
			IsSyncPoint:       d.packet.Flags().Has(astiav.PacketFlagKey),
		}, nil
	}
}

func isEOF(err error) bool {
	return errors.Is(err, astiav.ErrEof)
}
