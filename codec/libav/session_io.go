package libav

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/amcdecoder/codec"
	"github.com/xaionaro-go/amcdecoder/logger"
	"github.com/xaionaro-go/xsync"
)

func (s *Session) DequeueInputBuffer(
	ctx context.Context,
	timeout time.Duration,
) (codec.DequeueInputResult, error) {
	deadline := time.Now().Add(timeout)
	for {
		wake := s.wakeChanLoad()
		idx, err := xsync.DoR2(ctx, &s.locker, func() (int, error) {
			if err := s.checkStateLocked("dequeue an input buffer", stateStarted); err != nil {
				return -1, err
			}
			if len(s.freeInputs) == 0 {
				return -1, nil
			}
			idx := s.freeInputs[0]
			s.freeInputs = s.freeInputs[1:]
			s.leasedInputs[idx] = struct{}{}
			return idx, nil
		})
		if err != nil {
			return nil, err
		}
		if idx >= 0 {
			return codec.SlotReady{Index: idx}, nil
		}
		if !wait(ctx, wake, deadline) {
			return codec.TryAgainLater{}, nil
		}
	}
}

func (s *Session) QueueInputBuffer(
	ctx context.Context,
	index int,
	info codec.BufferInfo,
) (_err error) {
	logger.Tracef(ctx, "QueueInputBuffer(%d, %s)", index, info)
	defer func() { logger.Tracef(ctx, "/QueueInputBuffer(%d, %s): %v", index, info, _err) }()
	return xsync.DoA3R1(ctx, &s.locker, s.queueInputBufferLocked, ctx, index, info)
}

func (s *Session) queueInputBufferLocked(
	ctx context.Context,
	index int,
	info codec.BufferInfo,
) error {
	if err := s.checkStateLocked("queue an input buffer", stateStarted); err != nil {
		return err
	}
	if _, ok := s.leasedInputs[index]; !ok {
		return codec.ErrInvalidIndex{Index: index, Count: len(s.inputSlots)}
	}
	slot := s.inputSlots[index]
	if info.Offset < 0 || info.Size < 0 || info.Offset+info.Size > slot.Capacity() {
		return fmt.Errorf("range [%d:%d] is out of the slot %s", info.Offset, info.Offset+info.Size, slot)
	}
	delete(s.leasedInputs, index)
	s.freeInputs = append(s.freeInputs, index)
	defer s.notifyLocked()

	if s.eosQueued {
		return codec.ErrInvalidState{Operation: "queue an input buffer", State: "end-of-stream"}
	}

	if info.Size > 0 {
		if err := s.sendLocked(ctx, slot.Data[info.Offset:info.Offset+info.Size], info); err != nil {
			if !info.Flags.Has(codec.BufferFlagCodecConfig) {
				return err
			}
			logger.Warnf(ctx, "the decoder rejected the codec config: %v", err)
		}
	}
	if info.IsEOS() {
		logger.Debugf(ctx, "sending the end-of-stream pseudo-packet")
		if err := s.codecContext.SendPacket(nil); err != nil && !errors.Is(err, astiav.ErrEof) {
			return fmt.Errorf("unable to send the end-of-stream pseudo-packet: %w", err)
		}
		s.eosQueued = true
	}
	return s.receiveLocked(ctx)
}

func (s *Session) sendLocked(
	ctx context.Context,
	data []byte,
	info codec.BufferInfo,
) error {
	pkt := s.packet
	pkt.Unref()
	if err := pkt.FromData(data); err != nil {
		return fmt.Errorf("unable to fill the packet: %w", err)
	}
	pkt.SetPts(int64(info.PresentationTime / time.Microsecond))
	pkt.SetDts(astiav.NoPtsValue)
	if info.Flags.Has(codec.BufferFlagSyncFrame) {
		pkt.SetFlags(pkt.Flags().Add(astiav.PacketFlagKey))
	}

	err := s.codecContext.SendPacket(pkt)
	if errors.Is(err, astiav.ErrEagain) {
		// the decoder wants the pending pictures to be received first
		if err := s.receiveLocked(ctx); err != nil {
			return err
		}
		err = s.codecContext.SendPacket(pkt)
	}
	if err != nil {
		return fmt.Errorf("unable to send the packet: %w", err)
	}
	return nil
}

// receiveLocked moves everything libav has decoded so far to the queue of
// outputs.
func (s *Session) receiveLocked(ctx context.Context) error {
	for {
		f := s.frame
		err := s.codecContext.ReceiveFrame(f)
		switch {
		case err == nil:
		case errors.Is(err, astiav.ErrEagain):
			return nil
		case errors.Is(err, astiav.ErrEof):
			logger.Debugf(ctx, "the decoder is drained")
			s.decoded = append(s.decoded, decoded{
				Info: codec.BufferInfo{Flags: codec.BufferFlagEndOfStream},
			})
			return nil
		default:
			return fmt.Errorf("unable to receive a frame from the decoder: %w", err)
		}

		picFmt := pictureFormat{
			Width:       f.Width(),
			Height:      f.Height(),
			PixelFormat: f.PixelFormat(),
		}
		if s.reportedFormat == nil || *s.reportedFormat != picFmt {
			logger.Debugf(ctx, "the picture format has changed: %#+v", picFmt)
			s.reportedFormat = &picFmt
			s.decoded = append(s.decoded, decoded{Format: ptr(picFmt.toFormat())})
		}

		data, err := f.Data().Bytes(1)
		if err != nil {
			f.Unref()
			return fmt.Errorf("unable to copy the picture: %w", err)
		}
		var pts time.Duration
		if v := f.Pts(); v != astiav.NoPtsValue {
			pts = time.Duration(v) * time.Microsecond
		}
		f.Unref()
		s.decoded = append(s.decoded, decoded{
			Info: codec.BufferInfo{
				Size:             len(data),
				PresentationTime: pts,
			},
			Data: data,
		})
	}
}

func (f pictureFormat) toFormat() codec.Format {
	return codec.Format{
		MIMEType: codec.MIMETypeVideoRaw,
		Width:    f.Width,
		Height:   f.Height,
		Params: map[string]int32{
			codec.KeyColorFormat: int32(f.PixelFormat),
			codec.KeyStride:      int32(f.Width),
			codec.KeySliceHeight: int32(f.Height),
		},
	}
}

func (s *Session) DequeueOutputBuffer(
	ctx context.Context,
	timeout time.Duration,
) (codec.DequeueOutputResult, error) {
	deadline := time.Now().Add(timeout)
	for {
		wake := s.wakeChanLoad()
		res, err := xsync.DoA1R2(ctx, &s.locker, s.dequeueOutputLocked, ctx)
		if err != nil || res != nil {
			return res, err
		}
		if !wait(ctx, wake, deadline) {
			return codec.TryAgainLater{}, nil
		}
	}
}

// dequeueOutputLocked returns nil if there is nothing to return yet.
func (s *Session) dequeueOutputLocked(ctx context.Context) (codec.DequeueOutputResult, error) {
	if err := s.checkStateLocked("dequeue an output buffer", stateStarted); err != nil {
		return nil, err
	}
	if len(s.decoded) == 0 {
		return nil, nil
	}
	next := s.decoded[0]
	if next.Format != nil {
		s.decoded = s.decoded[1:]
		s.outputFormat = *next.Format
		return codec.OutputFormatChanged{}, nil
	}
	if len(s.freeOutputs) == 0 {
		return nil, nil
	}
	idx := s.freeOutputs[0]
	if next.Info.Size > s.outputSlots[idx].Capacity() {
		logger.Debugf(ctx, "growing the output slots to %d bytes", next.Info.Size)
		// outstanding buffers keep their previous memory until released
		for i := range s.outputSlots {
			s.outputSlots[i].Data = make([]byte, next.Info.Size)
		}
		return codec.OutputBuffersChanged{}, nil
	}
	s.decoded = s.decoded[1:]
	s.freeOutputs = s.freeOutputs[1:]
	s.outstanding[idx] = struct{}{}
	copy(s.outputSlots[idx].Data, next.Data)
	return codec.OutputReady{Index: idx, Info: next.Info}, nil
}

func (s *Session) ReleaseOutputBuffer(
	ctx context.Context,
	index int,
	render bool,
) error {
	logger.Tracef(ctx, "ReleaseOutputBuffer(%d, render:%t)", index, render)
	return xsync.DoR1(ctx, &s.locker, func() error {
		if err := s.checkStateLocked("release an output buffer", stateStarted); err != nil {
			return err
		}
		if _, ok := s.outstanding[index]; !ok {
			return codec.ErrInvalidIndex{Index: index, Count: len(s.outputSlots)}
		}
		delete(s.outstanding, index)
		s.freeOutputs = append(s.freeOutputs, index)
		s.notifyLocked()
		return nil
	})
}
