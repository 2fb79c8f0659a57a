package libav

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/go-ng/xatomic"
	"github.com/xaionaro-go/amcdecoder/codec"
	"github.com/xaionaro-go/amcdecoder/internal"
	"github.com/xaionaro-go/amcdecoder/logger"
	"github.com/xaionaro-go/xsync"
)

// timestamps are passed through libav in microseconds
var timeBase = astiav.NewRational(1, int(time.Second/time.Microsecond))

var ErrSurfaceNotSupported = errors.New("rendering to a surface is not supported by libav decoders")

type state int

const (
	stateUninitialized = state(iota)
	stateConfigured
	stateStarted
	stateReleased
)

func (s state) String() string {
	switch s {
	case stateUninitialized:
		return "uninitialized"
	case stateConfigured:
		return "configured"
	case stateStarted:
		return "started"
	case stateReleased:
		return "released"
	default:
		return fmt.Sprintf("unknown_%d", int(s))
	}
}

type pictureFormat struct {
	Width       int
	Height      int
	PixelFormat astiav.PixelFormat
}

// decoded is a picture (or an end-of-stream marker, or an output format
// change) received from libav and not yet dequeued.
type decoded struct {
	Info   codec.BufferInfo
	Data   []byte
	Format *codec.Format
}

type Session struct {
	Config   Config
	ID       uint64
	MIMEType string

	codec    *astiav.Codec
	locker   xsync.Mutex
	wakeChan *chan struct{}

	state          state
	closer         *astikit.Closer
	codecContext   *astiav.CodecContext
	packet         *astiav.Packet
	frame          *astiav.Frame
	format         codec.Format
	outputFormat   codec.Format
	reportedFormat *pictureFormat

	inputSlots   []codec.Slot
	freeInputs   []int
	leasedInputs map[int]struct{}
	outputSlots  []codec.Slot
	freeOutputs  []int
	outstanding  map[int]struct{}
	decoded      []decoded
	eosQueued    bool
}

var _ codec.Session = (*Session)(nil)

func newSession(
	id uint64,
	cfg Config,
	mimeType string,
	c *astiav.Codec,
) *Session {
	return &Session{
		Config:   cfg,
		ID:       id,
		MIMEType: mimeType,
		codec:    c,
		wakeChan: ptr(make(chan struct{})),
	}
}

func ptr[T any](v T) *T {
	return &v
}

func (s *Session) String() string {
	return fmt.Sprintf("libav#%d(%s)", s.ID, s.codec.Name())
}

func (s *Session) isMediaCodec() bool {
	return strings.HasSuffix(s.codec.Name(), "_mediacodec")
}

func (s *Session) wakeChanLoad() <-chan struct{} {
	return *xatomic.LoadPointer(&s.wakeChan)
}

// notifyLocked wakes up everybody waiting for a slot.
func (s *Session) notifyLocked() {
	close(*xatomic.SwapPointer(&s.wakeChan, ptr(make(chan struct{}))))
}

func (s *Session) checkStateLocked(op string, allowed ...state) error {
	if s.state == stateReleased {
		return codec.ErrSessionReleased
	}
	for _, st := range allowed {
		if s.state == st {
			return nil
		}
	}
	return codec.ErrInvalidState{Operation: op, State: s.state.String()}
}

func (s *Session) Configure(
	ctx context.Context,
	format codec.Format,
	surface codec.Surface,
) (_err error) {
	logger.Debugf(ctx, "Configure(%s)", format)
	defer func() { logger.Debugf(ctx, "/Configure(%s): %v", format, _err) }()
	if surface != nil {
		return ErrSurfaceNotSupported
	}
	return xsync.DoA2R1(ctx, &s.locker, s.configureLocked, ctx, format)
}

func (s *Session) configureLocked(
	ctx context.Context,
	format codec.Format,
) (_err error) {
	if err := s.checkStateLocked("configure", stateUninitialized); err != nil {
		return err
	}

	closer := astikit.NewCloser()
	defer func() {
		if _err != nil {
			if err := closer.Close(); err != nil {
				logger.Errorf(ctx, "unable to free the codec context: %v", err)
			}
		}
	}()

	cc := astiav.AllocCodecContext(s.codec)
	if cc == nil {
		return fmt.Errorf("unable to allocate a codec context")
	}
	closer.Add(cc.Free)

	cc.SetWidth(format.Width)
	cc.SetHeight(format.Height)
	if v := format.FrameRate; v > 0 {
		cc.SetFramerate(astiav.NewRational(int(v*1000), 1000))
	}
	if len(format.CodecData) > 0 {
		cc.SetExtraData(format.CodecData)
	}
	cc.SetTimeBase(timeBase)
	cc.SetPktTimeBase(timeBase)
	lowLatency, _ := format.Param(codec.KeyLowLatency)
	if lowLatency != 0 {
		cc.SetFlags(cc.Flags() | astiav.CodecContextFlags(astiav.CodecContextFlagLowDelay))
	}

	options := astiav.NewDictionary()
	closer.Add(options.Free)
	for k, v := range s.Config.PrivateOptions {
		if err := options.Set(k, v, 0); err != nil {
			return fmt.Errorf("unable to set option '%s' to '%s': %w", k, v, err)
		}
	}
	if s.isMediaCodec() && options.Get("pixel_format", nil, 0) == nil {
		logger.Debugf(ctx, "is MediaCodec, but pixel format is not set; forcing %s", astiav.PixelFormatNv12)
		if err := options.Set("pixel_format", astiav.PixelFormatNv12.String(), 0); err != nil {
			return fmt.Errorf("unable to set the pixel format: %w", err)
		}
	}

	if err := cc.Open(s.codec, options); err != nil {
		return fmt.Errorf("unable to open the codec context: %w", err)
	}

	if s.isMediaCodec() {
		if lowLatency != 0 {
			if err := setMediaCodecInt32(ctx, cc, codec.KeyLowLatency, lowLatency); err != nil {
				logger.Warnf(ctx, "unable to enable the low latency mode: %v", err)
			}
		}
		if priority, ok := format.Param(codec.KeyPriority); ok {
			if err := setMediaCodecInt32(ctx, cc, codec.KeyPriority, priority); err != nil {
				logger.Warnf(ctx, "unable to set the priority: %v", err)
			}
		}
	}

	s.packet = astiav.AllocPacket()
	closer.Add(s.packet.Free)
	s.frame = astiav.AllocFrame()
	closer.Add(s.frame.Free)

	s.closer = closer
	s.codecContext = cc
	s.format = format.Clone()
	s.outputFormat = codec.Format{
		MIMEType: codec.MIMETypeVideoRaw,
		Width:    format.Width,
		Height:   format.Height,
	}
	s.state = stateConfigured
	return nil
}

func (s *Session) Start(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Start")
	defer func() { logger.Debugf(ctx, "/Start: %v", _err) }()
	return xsync.DoA1R1(ctx, &s.locker, s.startLocked, ctx)
}

func (s *Session) startLocked(ctx context.Context) error {
	if err := s.checkStateLocked("start", stateConfigured); err != nil {
		return err
	}

	slotSize := s.Config.InputSlotSize
	if v, ok := s.format.Param(codec.KeyMaxInputSize); ok && int(v) > slotSize {
		slotSize = int(v)
	}
	s.inputSlots = make([]codec.Slot, s.Config.InputSlots)
	for idx := range s.inputSlots {
		s.inputSlots[idx] = codec.Slot{Index: idx, Data: make([]byte, slotSize)}
	}
	// NV12/I420 sized; grows on the first bigger picture
	outputSize := s.format.Width * s.format.Height * 3 / 2
	s.outputSlots = make([]codec.Slot, s.Config.OutputSlots)
	for idx := range s.outputSlots {
		s.outputSlots[idx] = codec.Slot{Index: idx, Data: make([]byte, outputSize)}
	}
	s.reportedFormat = nil
	s.resetQueuesLocked()
	s.state = stateStarted
	s.notifyLocked()
	return nil
}

func (s *Session) resetQueuesLocked() {
	s.freeInputs = s.freeInputs[:0]
	for idx := range s.inputSlots {
		s.freeInputs = append(s.freeInputs, idx)
	}
	s.freeOutputs = s.freeOutputs[:0]
	for idx := range s.outputSlots {
		s.freeOutputs = append(s.freeOutputs, idx)
	}
	s.leasedInputs = map[int]struct{}{}
	s.outstanding = map[int]struct{}{}
	s.decoded = nil
	s.eosQueued = false
}

func (s *Session) Flush(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Flush")
	defer func() { logger.Debugf(ctx, "/Flush: %v", _err) }()
	return xsync.DoR1(ctx, &s.locker, func() error {
		if err := s.checkStateLocked("flush", stateStarted); err != nil {
			return err
		}
		s.codecContext.FlushBuffers()
		s.resetQueuesLocked()
		s.notifyLocked()
		return nil
	})
}

func (s *Session) Stop(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Stop")
	defer func() { logger.Debugf(ctx, "/Stop: %v", _err) }()
	return xsync.DoR1(ctx, &s.locker, func() error {
		if s.state == stateReleased {
			return codec.ErrSessionReleased
		}
		err := s.freeLocked()
		s.state = stateUninitialized
		return err
	})
}

func (s *Session) Release(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Release")
	defer func() { logger.Debugf(ctx, "/Release: %v", _err) }()
	return xsync.DoR1(ctx, &s.locker, func() error {
		if s.state == stateReleased {
			return codec.ErrSessionReleased
		}
		err := s.freeLocked()
		s.state = stateReleased
		internal.ClearFinalizer(s)
		return err
	})
}

func (s *Session) freeLocked() error {
	s.inputSlots, s.outputSlots = nil, nil
	s.resetQueuesLocked()
	s.notifyLocked()
	if s.closer == nil {
		return nil
	}
	closer := s.closer
	s.closer, s.codecContext, s.packet, s.frame = nil, nil, nil, nil
	if err := closer.Close(); err != nil {
		return fmt.Errorf("unable to free the codec context: %w", err)
	}
	return nil
}

func (s *Session) InputSlots(ctx context.Context) ([]codec.Slot, error) {
	return xsync.DoR2(ctx, &s.locker, func() ([]codec.Slot, error) {
		if err := s.checkStateLocked("get input slots", stateStarted); err != nil {
			return nil, err
		}
		return append([]codec.Slot(nil), s.inputSlots...), nil
	})
}

func (s *Session) OutputSlots(ctx context.Context) ([]codec.Slot, error) {
	return xsync.DoR2(ctx, &s.locker, func() ([]codec.Slot, error) {
		if err := s.checkStateLocked("get output slots", stateStarted); err != nil {
			return nil, err
		}
		return append([]codec.Slot(nil), s.outputSlots...), nil
	})
}

func (s *Session) OutputFormat(ctx context.Context) (codec.Format, error) {
	return xsync.DoR2(ctx, &s.locker, func() (codec.Format, error) {
		if err := s.checkStateLocked("get the output format", stateConfigured, stateStarted); err != nil {
			return codec.Format{}, err
		}
		return s.outputFormat.Clone(), nil
	})
}

// wait blocks until wake is closed, the deadline passes or ctx is
// cancelled; it returns false in the latter two cases.
func wait(
	ctx context.Context,
	wake <-chan struct{},
	deadline time.Time,
) bool {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return false
	}
	t := time.NewTimer(remaining)
	defer t.Stop()
	select {
	case <-wake:
		return true
	case <-t.C:
		return false
	case <-ctx.Done():
		return false
	}
}
