package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEMA(t *testing.T) {
	t.Run("warm-up-is-mean", func(t *testing.T) {
		m := NewEMA[float64](4)
		require.Equal(t, 2.0, m.Update(2))
		require.Equal(t, 3.0, m.Update(4))
		require.Equal(t, 4.0, m.Update(6))
		require.False(t, m.Valid())
		require.Equal(t, 5.0, m.Update(8))
		require.True(t, m.Valid())
	})

	t.Run("converges", func(t *testing.T) {
		m := New[time.Duration](KindEMA, 8)
		for range 8 {
			m.Update(0)
		}
		var v time.Duration
		for range 200 {
			v = m.Update(time.Second)
		}
		require.InDelta(t, float64(time.Second), float64(v), float64(time.Millisecond))
	})

	t.Run("kind", func(t *testing.T) {
		require.IsType(t, &MAMA[int64]{}, New[int64](KindMAMA, 3))
		require.IsType(t, &EMA[int64]{}, New[int64]("unknown", 3))
	})
}
