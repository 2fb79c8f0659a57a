package decoder

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/xaionaro-go/amcdecoder/codec"
	"github.com/xaionaro-go/amcdecoder/logger"
)

// fetchSlotsLocked (re)acquires the slot arrays of the session; the
// previous arrays are invalid after any start, flush or reconfiguration.
func (d *Decoder) fetchSlotsLocked(ctx context.Context) (_err error) {
	logger.Tracef(ctx, "fetchSlotsLocked")
	defer func() { logger.Tracef(ctx, "/fetchSlotsLocked: %v", _err) }()

	d.inputSlots, d.outputSlots = nil, nil
	inputSlots, err := d.session.InputSlots(ctx)
	if err != nil {
		return fmt.Errorf("unable to get the input buffers: %w", err)
	}
	if len(inputSlots) == 0 {
		return fmt.Errorf("the codec has no input buffers")
	}
	d.inputSlots = inputSlots
	if err := d.fetchOutputSlotsLocked(ctx); err != nil {
		return err
	}
	logger.Debugf(ctx, "got %d input slots (%s) and %d output slots (%s)",
		len(d.inputSlots), humanize.Bytes(totalCapacity(d.inputSlots)),
		len(d.outputSlots), humanize.Bytes(totalCapacity(d.outputSlots)),
	)
	return nil
}

func (d *Decoder) fetchOutputSlotsLocked(ctx context.Context) error {
	d.outputSlots = nil
	if d.Config.Surface != nil {
		return nil
	}
	outputSlots, err := d.session.OutputSlots(ctx)
	if err != nil {
		return fmt.Errorf("unable to get the output buffers: %w", err)
	}
	d.outputSlots = outputSlots
	return nil
}

func (d *Decoder) inputSlotLocked(idx int) (codec.Slot, error) {
	if idx < 0 || idx >= len(d.inputSlots) {
		return codec.Slot{}, ErrInvalidSlotIndex{Index: idx, Count: len(d.inputSlots)}
	}
	slot := d.inputSlots[idx]
	if slot.Capacity() == 0 {
		return codec.Slot{}, ErrInvalidRange{Index: idx, Size: 1}
	}
	return slot, nil
}

// outputDataLocked returns the payload of a dequeued output slot; nil when
// rendering to a surface.
func (d *Decoder) outputDataLocked(idx int, info codec.BufferInfo) ([]byte, error) {
	if d.Config.Surface != nil {
		return nil, nil
	}
	if idx < 0 || idx >= len(d.outputSlots) {
		return nil, ErrInvalidSlotIndex{Index: idx, Count: len(d.outputSlots)}
	}
	slot := d.outputSlots[idx]
	if info.Offset < 0 || info.Size < 0 || info.Offset+info.Size > slot.Capacity() {
		return nil, ErrInvalidRange{Index: idx, Offset: info.Offset, Size: info.Size, Cap: slot.Capacity()}
	}
	return slot.Data[info.Offset : info.Offset+info.Size], nil
}

func totalCapacity(slots []codec.Slot) uint64 {
	var total uint64
	for _, s := range slots {
		total += uint64(s.Capacity())
	}
	return total
}
