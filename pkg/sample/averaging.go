package sample

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSize is returned by NewWindow for a capacity below one.
	ErrInvalidSize = errors.New("window size must be at least 1")
	// ErrWindowFull is returned by Push when the window already holds N readings.
	ErrWindowFull = errors.New("window is full")
	// ErrWindowNotFull is returned by DrainAverage before the window holds N readings.
	ErrWindowNotFull = errors.New("window is not full")
	// ErrNonFinite is returned by Push for NaN or infinite values.
	ErrNonFinite = errors.New("reading is not finite")
)

// Aggregate is the arithmetic mean of one full window.
type Aggregate struct {
	Temperature float32
	Humidity    float32
}

// Window accumulates a fixed number of readings and averages them.
// Temperature and humidity are kept in parallel slices that always have the
// same length, between 0 and the capacity. A Window is not safe for
// concurrent use; the reporter loop owns it.
type Window struct {
	size         int
	temperatures []float32
	humidities   []float32
}

// NewWindow creates a window that completes after size readings.
func NewWindow(size int) (*Window, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidSize, size)
	}
	return &Window{
		size:         size,
		temperatures: make([]float32, 0, size),
		humidities:   make([]float32, 0, size),
	}, nil
}

// Push appends one reading. It fails without touching the window if the
// window is full or the reading is not finite.
func (w *Window) Push(r Reading) error {
	if w.IsFull() {
		return ErrWindowFull
	}
	if !finite(r.Temperature) || !finite(r.Humidity) {
		return ErrNonFinite
	}
	w.temperatures = append(w.temperatures, r.Temperature)
	w.humidities = append(w.humidities, r.Humidity)
	return nil
}

// IsFull reports whether the window holds exactly Cap readings.
func (w *Window) IsFull() bool {
	return len(w.temperatures) == w.size
}

// Len returns the number of readings currently held.
func (w *Window) Len() int {
	return len(w.temperatures)
}

// Cap returns the number of readings that complete the window.
func (w *Window) Cap() int {
	return w.size
}

// DrainAverage returns the mean of a full window and empties it.
func (w *Window) DrainAverage() (Aggregate, error) {
	if !w.IsFull() {
		return Aggregate{}, fmt.Errorf("%w: %d of %d", ErrWindowNotFull, w.Len(), w.size)
	}

	agg := Aggregate{
		Temperature: mean(w.temperatures),
		Humidity:    mean(w.humidities),
	}
	w.Reset()
	return agg, nil
}

// Reset empties the window, keeping its storage.
func (w *Window) Reset() {
	w.temperatures = w.temperatures[:0]
	w.humidities = w.humidities[:0]
}

func mean(values []float32) float32 {
	var sum float32
	for _, v := range values {
		sum += v
	}
	return sum / float32(len(values))
}
