package indicator

import (
	"sync"
)

// EMA is an exponential moving average with alpha = 2/(n+1); until n samples
// are seen it is the plain arithmetic mean.
type EMA[T Number] struct {
	locker            sync.Mutex
	period            int
	alpha             float64
	value             float64
	measurementsCount int
}

var _ MovingAverage[int64] = (*EMA[int64])(nil)

func NewEMA[T Number](n int) *EMA[T] {
	if n < 1 {
		n = 1
	}
	return &EMA[T]{
		period: n,
		alpha:  2 / float64(n+1),
	}
}

func (m *EMA[T]) Update(v T) T {
	m.locker.Lock()
	defer m.locker.Unlock()
	m.measurementsCount++
	if m.measurementsCount <= m.period {
		m.value += (float64(v) - m.value) / float64(m.measurementsCount)
		return T(m.value)
	}
	m.value += m.alpha * (float64(v) - m.value)
	return T(m.value)
}

func (m *EMA[T]) Value() T {
	m.locker.Lock()
	defer m.locker.Unlock()
	return T(m.value)
}

func (m *EMA[T]) InitPeriod() int64 {
	return int64(m.period)
}

func (m *EMA[T]) Valid() bool {
	m.locker.Lock()
	defer m.locker.Unlock()
	return m.measurementsCount >= m.period
}

func (m *EMA[T]) Reset() {
	m.locker.Lock()
	defer m.locker.Unlock()
	m.value = 0
	m.measurementsCount = 0
}
