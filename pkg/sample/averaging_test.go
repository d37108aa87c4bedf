package sample

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWindow_InvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		w, err := NewWindow(size)
		assert.ErrorIs(t, err, ErrInvalidSize)
		assert.Nil(t, w)
	}
}

func TestWindow_PushUntilFull(t *testing.T) {
	w, err := NewWindow(3)
	require.NoError(t, err)

	assert.Equal(t, 3, w.Cap())
	assert.Equal(t, 0, w.Len())
	assert.False(t, w.IsFull())

	for i := 0; i < 3; i++ {
		require.NoError(t, w.Push(Reading{Temperature: 20, Humidity: 50}))
		assert.Equal(t, i+1, w.Len())
	}
	assert.True(t, w.IsFull())

	err = w.Push(Reading{Temperature: 20, Humidity: 50})
	assert.ErrorIs(t, err, ErrWindowFull)
	assert.Equal(t, 3, w.Len())
}

func TestWindow_DrainAverage(t *testing.T) {
	w, err := NewWindow(4)
	require.NoError(t, err)

	readings := []Reading{
		{Temperature: 20.0, Humidity: 40.0},
		{Temperature: 21.0, Humidity: 42.0},
		{Temperature: 22.5, Humidity: 44.0},
		{Temperature: 24.5, Humidity: 46.0},
	}
	for _, r := range readings {
		require.NoError(t, w.Push(r))
	}

	agg, err := w.DrainAverage()
	require.NoError(t, err)
	assert.Equal(t, Aggregate{Temperature: 22.0, Humidity: 43.0}, agg)
	assert.Equal(t, 0, w.Len())
	assert.False(t, w.IsFull())
}

func TestWindow_DrainAverage_TenReadings(t *testing.T) {
	w, err := NewWindow(10)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NoError(t, w.Push(Reading{Temperature: float32(20 + i), Humidity: 50.0}))
	}

	agg, err := w.DrainAverage()
	require.NoError(t, err)
	assert.Equal(t, float32(24.5), agg.Temperature)
	assert.Equal(t, float32(50.0), agg.Humidity)
	assert.Equal(t, 0, w.Len())
}

func TestWindow_DrainAverage_NotFull(t *testing.T) {
	w, err := NewWindow(2)
	require.NoError(t, err)

	_, err = w.DrainAverage()
	assert.ErrorIs(t, err, ErrWindowNotFull)

	require.NoError(t, w.Push(Reading{Temperature: 1, Humidity: 1}))
	_, err = w.DrainAverage()
	assert.ErrorIs(t, err, ErrWindowNotFull)
	assert.Equal(t, 1, w.Len(), "failed drain must not clear the window")
}

func TestWindow_SizeOne(t *testing.T) {
	w, err := NewWindow(1)
	require.NoError(t, err)

	require.NoError(t, w.Push(Reading{Temperature: 18.5, Humidity: 61.2}))
	require.True(t, w.IsFull())

	agg, err := w.DrainAverage()
	require.NoError(t, err)
	assert.Equal(t, Aggregate{Temperature: 18.5, Humidity: 61.2}, agg)
}

func TestWindow_ReusedAcrossCycles(t *testing.T) {
	w, err := NewWindow(2)
	require.NoError(t, err)

	require.NoError(t, w.Push(Reading{Temperature: 10, Humidity: 30}))
	require.NoError(t, w.Push(Reading{Temperature: 12, Humidity: 32}))
	first, err := w.DrainAverage()
	require.NoError(t, err)

	require.NoError(t, w.Push(Reading{Temperature: 30, Humidity: 70}))
	require.NoError(t, w.Push(Reading{Temperature: 32, Humidity: 72}))
	second, err := w.DrainAverage()
	require.NoError(t, err)

	assert.Equal(t, Aggregate{Temperature: 11, Humidity: 31}, first)
	assert.Equal(t, Aggregate{Temperature: 31, Humidity: 71}, second)
}

func TestWindow_PushNonFinite(t *testing.T) {
	w, err := NewWindow(2)
	require.NoError(t, err)

	nan := float32(math.NaN())
	inf := float32(math.Inf(-1))

	assert.ErrorIs(t, w.Push(Reading{Temperature: nan, Humidity: 50}), ErrNonFinite)
	assert.ErrorIs(t, w.Push(Reading{Temperature: 20, Humidity: inf}), ErrNonFinite)
	assert.Equal(t, 0, w.Len())
}

func TestWindow_Reset(t *testing.T) {
	w, err := NewWindow(3)
	require.NoError(t, err)

	require.NoError(t, w.Push(Reading{Temperature: 1, Humidity: 2}))
	w.Reset()
	assert.Equal(t, 0, w.Len())
	assert.Equal(t, 3, w.Cap())
}

// TestWindow_CapacityInvariant drives random push/drain sequences and checks
// that both sequences stay the same length and never exceed the capacity.
func TestWindow_CapacityInvariant(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))

	for _, size := range []int{1, 2, 5, 10} {
		w, err := NewWindow(size)
		require.NoError(t, err)

		for step := 0; step < 500; step++ {
			if rnd.Intn(4) == 0 {
				_, err := w.DrainAverage()
				if err != nil {
					assert.ErrorIs(t, err, ErrWindowNotFull)
				}
			} else {
				err := w.Push(Reading{Temperature: rnd.Float32() * 40, Humidity: rnd.Float32() * 100})
				if err != nil {
					assert.ErrorIs(t, err, ErrWindowFull)
				}
			}

			require.Equal(t, len(w.temperatures), len(w.humidities))
			require.LessOrEqual(t, w.Len(), size)
			require.GreaterOrEqual(t, w.Len(), 0)
		}
	}
}
