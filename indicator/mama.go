package indicator

import (
	"sync"

	indicators "github.com/lmpizarro/go_ehlers_indicators"
)

// MAMA is the MESA Adaptive Moving Average over a ring of the last n samples.
// It reacts fast to latency steps (e.g. a codec switching to a slower
// decoding path) while ignoring single-frame spikes.
type MAMA[T Number] struct {
	FastLimit           float64
	SlowLimit           float64
	values              []float64
	orderedValuesBuffer []float64
	curIdx              int
	measurementsCount   int
	last                T
	locker              sync.Mutex
}

var _ MovingAverage[int64] = (*MAMA[int64])(nil)

func NewMAMADefault[T Number](
	n int,
) *MAMA[T] {
	return NewMAMA[T](n, 0.5, 0.05)
}

func NewMAMA[T Number](
	n int,
	fastLimit float64,
	slowLimit float64,
) *MAMA[T] {
	if n < 1 {
		n = 1
	}
	return &MAMA[T]{
		FastLimit:           fastLimit,
		SlowLimit:           slowLimit,
		values:              make([]float64, n),
		orderedValuesBuffer: make([]float64, n),
	}
}

func (m *MAMA[T]) Update(v T) T {
	m.locker.Lock()
	defer m.locker.Unlock()

	m.values[m.curIdx] = float64(v)
	m.curIdx = (m.curIdx + 1) % len(m.values)
	m.measurementsCount++
	if m.measurementsCount < len(m.values) {
		m.last = v
		return v
	}

	// the ring starts at curIdx, the indicator wants the oldest sample first
	copy(m.orderedValuesBuffer, m.values[m.curIdx:])
	copy(m.orderedValuesBuffer[len(m.values)-m.curIdx:], m.values)

	result := indicators.MAMA(m.orderedValuesBuffer, m.FastLimit, m.SlowLimit)
	m.last = T(result[len(result)-1])
	return m.last
}

func (m *MAMA[T]) Value() T {
	m.locker.Lock()
	defer m.locker.Unlock()
	return m.last
}

func (m *MAMA[T]) InitPeriod() int64 {
	return int64(len(m.values))
}

func (m *MAMA[T]) Valid() bool {
	m.locker.Lock()
	defer m.locker.Unlock()
	return m.measurementsCount >= len(m.values)
}

func (m *MAMA[T]) Reset() {
	m.locker.Lock()
	defer m.locker.Unlock()
	clear(m.values)
	m.curIdx = 0
	m.measurementsCount = 0
	var zero T
	m.last = zero
}
