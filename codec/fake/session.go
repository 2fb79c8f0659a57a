// Package fake provides an in-memory buffer-queue codec session with
// scriptable dequeue results and release accounting.
package fake

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/xaionaro-go/amcdecoder/codec"
	"github.com/xaionaro-go/amcdecoder/logger"
)

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

// DecodeFunc converts a queued input buffer into the descriptor of the
// output it produces; produce=false means the input yields no output.
type DecodeFunc func(in codec.BufferInfo, data []byte) (out codec.BufferInfo, produce bool)

// DefaultDecode produces one output per non-empty input (with the input
// payload as the "decoded" picture) and one empty EOS output per EOS input;
// codec config inputs produce nothing.
func DefaultDecode(in codec.BufferInfo, data []byte) (codec.BufferInfo, bool) {
	switch {
	case in.Flags.Has(codec.BufferFlagEndOfStream):
		return codec.BufferInfo{
			Flags:            codec.BufferFlagEndOfStream,
			PresentationTime: in.PresentationTime,
		}, true
	case in.Flags.Has(codec.BufferFlagCodecConfig), in.Size == 0:
		return codec.BufferInfo{}, false
	default:
		return codec.BufferInfo{
			Flags:            in.Flags & codec.BufferFlagSyncFrame,
			Size:             in.Size,
			PresentationTime: in.PresentationTime,
		}, true
	}
}

type Config struct {
	InputSlots     int
	InputSlotSize  int
	OutputSlots    int
	OutputSlotSize int
	Decode         DecodeFunc
}

func (cfg Config) withDefaults() Config {
	if cfg.InputSlots <= 0 {
		cfg.InputSlots = 4
	}
	if cfg.InputSlotSize <= 0 {
		cfg.InputSlotSize = 1024
	}
	if cfg.OutputSlots <= 0 {
		cfg.OutputSlots = 4
	}
	if cfg.OutputSlotSize <= 0 {
		cfg.OutputSlotSize = 4096
	}
	if cfg.Decode == nil {
		cfg.Decode = DefaultDecode
	}
	return cfg
}

type QueuedInput struct {
	Info codec.BufferInfo
	Data []byte
}

type scriptStep struct {
	input  codec.DequeueInputResult
	output codec.DequeueOutputResult
	format *codec.Format
	err    error
}

type producedOutput struct {
	info codec.BufferInfo
	data []byte
}

type Session struct {
	Config Config
	ID     int

	locker  sync.Mutex
	changed chan struct{}

	state        state
	format       codec.Format
	surface      codec.Surface
	outputFormat codec.Format

	inputSlots  []codec.Slot
	outputSlots []codec.Slot
	freeInputs  []int
	leasedInput map[int]struct{}
	freeOutputs []int
	outstanding map[int]struct{}
	released    map[int]struct{}
	produced    []producedOutput

	inputScript  []scriptStep
	outputScript []scriptStep

	inputUnavailable bool
	outputPaused     bool
	queueErr         error

	queuedInputs   []QueuedInput
	inputTimeouts  []time.Duration
	outputTimeouts []time.Duration
	doubleReleases int
	renderCount    int
	dropCount      int
	flushCount     int
	startCount     int
	stopCount      int
	configureCount int
}

var _ codec.Session = (*Session)(nil)

func NewSession(cfg Config) *Session {
	return &Session{
		Config:  cfg.withDefaults(),
		changed: make(chan struct{}),
	}
}

func (s *Session) String() string {
	return fmt.Sprintf("fake#%d", s.ID)
}

func (s *Session) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *Session) checkStateLocked(op string, allowed ...state) error {
	if s.state == stateReleased {
		return codec.ErrSessionReleased
	}
	if !slices.Contains(allowed, s.state) {
		return codec.ErrInvalidState{Operation: op, State: s.state.String()}
	}
	return nil
}

func (s *Session) Configure(ctx context.Context, format codec.Format, surface codec.Surface) error {
	logger.Debugf(ctx, "Configure(%s)", format)
	s.locker.Lock()
	defer s.locker.Unlock()
	if err := s.checkStateLocked("configure", stateUninitialized); err != nil {
		return err
	}
	s.configureCount++
	s.format = format.Clone()
	s.surface = surface
	s.outputFormat = codec.Format{
		MIMEType: codec.MIMETypeVideoRaw,
		Width:    format.Width,
		Height:   format.Height,
		Params: map[string]int32{
			codec.KeyStride:      int32(format.Width),
			codec.KeySliceHeight: int32(format.Height),
		},
	}
	s.state = stateConfigured
	return nil
}

func (s *Session) Start(ctx context.Context) error {
	logger.Debugf(ctx, "Start")
	s.locker.Lock()
	defer s.locker.Unlock()
	if err := s.checkStateLocked("start", stateConfigured); err != nil {
		return err
	}
	s.startCount++
	s.inputSlots = make([]codec.Slot, s.Config.InputSlots)
	for idx := range s.inputSlots {
		s.inputSlots[idx] = codec.Slot{Index: idx, Data: make([]byte, s.Config.InputSlotSize)}
	}
	s.outputSlots = make([]codec.Slot, s.Config.OutputSlots)
	for idx := range s.outputSlots {
		s.outputSlots[idx] = codec.Slot{Index: idx, Data: make([]byte, s.Config.OutputSlotSize)}
	}
	s.resetQueuesLocked()
	s.state = stateStarted
	s.notifyLocked()
	return nil
}

// resetQueuesLocked returns all the slots to the codec, as Flush does.
func (s *Session) resetQueuesLocked() {
	s.freeInputs = s.freeInputs[:0]
	for idx := range s.inputSlots {
		s.freeInputs = append(s.freeInputs, idx)
	}
	s.freeOutputs = s.freeOutputs[:0]
	for idx := range s.outputSlots {
		s.freeOutputs = append(s.freeOutputs, idx)
	}
	s.leasedInput = map[int]struct{}{}
	s.outstanding = map[int]struct{}{}
	s.released = map[int]struct{}{}
	s.produced = nil
}

func (s *Session) Stop(ctx context.Context) error {
	logger.Debugf(ctx, "Stop")
	s.locker.Lock()
	defer s.locker.Unlock()
	if s.state == stateReleased {
		return codec.ErrSessionReleased
	}
	s.stopCount++
	s.resetQueuesLocked()
	s.inputSlots, s.outputSlots = nil, nil
	s.state = stateUninitialized
	s.notifyLocked()
	return nil
}

func (s *Session) Flush(ctx context.Context) error {
	logger.Debugf(ctx, "Flush")
	s.locker.Lock()
	defer s.locker.Unlock()
	if err := s.checkStateLocked("flush", stateStarted); err != nil {
		return err
	}
	s.flushCount++
	s.resetQueuesLocked()
	s.notifyLocked()
	return nil
}

func (s *Session) Release(ctx context.Context) error {
	logger.Debugf(ctx, "Release")
	s.locker.Lock()
	defer s.locker.Unlock()
	if s.state == stateReleased {
		return codec.ErrSessionReleased
	}
	s.resetQueuesLocked()
	s.inputSlots, s.outputSlots = nil, nil
	s.state = stateReleased
	s.notifyLocked()
	return nil
}

func (s *Session) InputSlots(ctx context.Context) ([]codec.Slot, error) {
	s.locker.Lock()
	defer s.locker.Unlock()
	if err := s.checkStateLocked("get input slots", stateStarted); err != nil {
		return nil, err
	}
	return slices.Clone(s.inputSlots), nil
}

func (s *Session) OutputSlots(ctx context.Context) ([]codec.Slot, error) {
	s.locker.Lock()
	defer s.locker.Unlock()
	if err := s.checkStateLocked("get output slots", stateStarted); err != nil {
		return nil, err
	}
	if s.surface != nil {
		return nil, nil
	}
	return slices.Clone(s.outputSlots), nil
}

func (s *Session) OutputFormat(ctx context.Context) (codec.Format, error) {
	s.locker.Lock()
	defer s.locker.Unlock()
	if err := s.checkStateLocked("get output format", stateConfigured, stateStarted); err != nil {
		return codec.Format{}, err
	}
	return s.outputFormat.Clone(), nil
}

// wait blocks until the session state changes, the timeout expires or ctx
// is cancelled; it must be called with the lock held and returns with it
// held.
func (s *Session) waitLocked(ctx context.Context, deadline time.Time) bool {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return false
	}
	changed := s.changed
	s.locker.Unlock()
	defer s.locker.Lock()
	t := time.NewTimer(remaining)
	defer t.Stop()
	select {
	case <-changed:
		return true
	case <-t.C:
		return false
	case <-ctx.Done():
		return false
	}
}

func (s *Session) DequeueInputBuffer(ctx context.Context, timeout time.Duration) (codec.DequeueInputResult, error) {
	deadline := time.Now().Add(timeout)
	s.locker.Lock()
	defer s.locker.Unlock()
	s.inputTimeouts = append(s.inputTimeouts, timeout)
	for {
		if err := s.checkStateLocked("dequeue an input buffer", stateStarted); err != nil {
			return nil, err
		}
		if len(s.inputScript) > 0 {
			step := s.inputScript[0]
			s.inputScript = s.inputScript[1:]
			return step.input, step.err
		}
		if !s.inputUnavailable && len(s.freeInputs) > 0 {
			idx := s.freeInputs[0]
			s.freeInputs = s.freeInputs[1:]
			s.leasedInput[idx] = struct{}{}
			return codec.SlotReady{Index: idx}, nil
		}
		if !s.waitLocked(ctx, deadline) {
			return codec.TryAgainLater{}, nil
		}
	}
}

func (s *Session) QueueInputBuffer(ctx context.Context, index int, info codec.BufferInfo) error {
	s.locker.Lock()
	defer s.locker.Unlock()
	if err := s.checkStateLocked("queue an input buffer", stateStarted); err != nil {
		return err
	}
	if _, ok := s.leasedInput[index]; !ok {
		return codec.ErrInvalidIndex{Index: index, Count: len(s.inputSlots)}
	}
	if s.queueErr != nil {
		return s.queueErr
	}
	if info.Offset < 0 || info.Size < 0 || info.Offset+info.Size > len(s.inputSlots[index].Data) {
		return fmt.Errorf("invalid range [%d:%d] of slot %d", info.Offset, info.Offset+info.Size, index)
	}
	delete(s.leasedInput, index)
	data := bytes.Clone(s.inputSlots[index].Data[info.Offset : info.Offset+info.Size])
	s.queuedInputs = append(s.queuedInputs, QueuedInput{Info: info, Data: data})
	s.freeInputs = append(s.freeInputs, index)

	if out, ok := s.Config.Decode(info, data); ok {
		s.produced = append(s.produced, producedOutput{info: out, data: data})
	}
	s.notifyLocked()
	return nil
}

func (s *Session) DequeueOutputBuffer(ctx context.Context, timeout time.Duration) (codec.DequeueOutputResult, error) {
	deadline := time.Now().Add(timeout)
	s.locker.Lock()
	defer s.locker.Unlock()
	s.outputTimeouts = append(s.outputTimeouts, timeout)
	for {
		if err := s.checkStateLocked("dequeue an output buffer", stateStarted); err != nil {
			return nil, err
		}
		if len(s.outputScript) > 0 {
			step := s.outputScript[0]
			s.outputScript = s.outputScript[1:]
			if step.format != nil {
				s.outputFormat = step.format.Clone()
			}
			return step.output, step.err
		}
		if !s.outputPaused && len(s.produced) > 0 && len(s.freeOutputs) > 0 {
			out := s.produced[0]
			s.produced = s.produced[1:]
			idx := s.freeOutputs[0]
			s.freeOutputs = s.freeOutputs[1:]
			s.outstanding[idx] = struct{}{}
			delete(s.released, idx)
			info := out.info
			if s.surface == nil {
				info.Size = copy(s.outputSlots[idx].Data, out.data[:min(info.Size, len(out.data))])
			}
			return codec.OutputReady{Index: idx, Info: info}, nil
		}
		if !s.waitLocked(ctx, deadline) {
			return codec.TryAgainLater{}, nil
		}
	}
}

func (s *Session) ReleaseOutputBuffer(ctx context.Context, index int, render bool) error {
	s.locker.Lock()
	defer s.locker.Unlock()
	if err := s.checkStateLocked("release an output buffer", stateStarted); err != nil {
		return err
	}
	if _, ok := s.outstanding[index]; !ok {
		if _, ok := s.released[index]; ok {
			s.doubleReleases++
		}
		return codec.ErrInvalidIndex{Index: index, Count: len(s.outputSlots)}
	}
	delete(s.outstanding, index)
	s.released[index] = struct{}{}
	s.freeOutputs = append(s.freeOutputs, index)
	if render {
		s.renderCount++
	} else {
		s.dropCount++
	}
	s.notifyLocked()
	return nil
}
