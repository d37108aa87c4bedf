package sensor

import "context"

// RawReading is one unprocessed sample in native sensor units.
type RawReading struct {
	Temperature int16
	Humidity    uint16
}

// Source defines the interface for temperature/humidity sensors (real or mocked).
type Source interface {
	Measure(ctx context.Context) (RawReading, error)
	Close() error
}

// Ensure Serial implements Source.
var _ Source = (*Serial)(nil)

// Ensure Mock implements Source.
var _ Source = (*Mock)(nil)
