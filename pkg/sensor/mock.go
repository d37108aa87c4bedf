package sensor

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/itohio/goclimate/pkg/config"
)

// Mock simulates a DHT11 behind the bridge for testing and development.
type Mock struct {
	cfg *config.MockConfig

	temperatureDivisor float64
	humidityDivisor    float64

	mu        sync.Mutex
	rnd       *rand.Rand
	startTime time.Time
	count     int
	closed    bool
}

// NewMock creates a new simulated sensor. The divisors are the ones the
// reporter uses to convert raw units, so that the mock produces values that
// convert back to cfg.Temperature and cfg.Humidity.
func NewMock(cfg *config.MockConfig, temperatureDivisor, humidityDivisor float64) *Mock {
	if cfg == nil {
		cfg = &config.MockConfig{
			Temperature: 22.0,
			Humidity:    45.0,
			Amplitude:   1.5,
			NoiseLevel:  0.2,
			FailureRate: 0.1,
			Period:      10 * time.Minute,
		}
	}
	if temperatureDivisor == 0 {
		temperatureDivisor = 2
	}
	if humidityDivisor == 0 {
		humidityDivisor = 10
	}

	return &Mock{
		cfg:                cfg,
		temperatureDivisor: temperatureDivisor,
		humidityDivisor:    humidityDivisor,
		rnd:                rand.New(rand.NewSource(time.Now().UnixNano())),
		startTime:          time.Now(),
	}
}

// Measure generates a single simulated reading, or a simulated failure.
func (m *Mock) Measure(ctx context.Context) (RawReading, error) {
	if m.cfg.Latency > 0 {
		select {
		case <-time.After(m.cfg.Latency):
		case <-ctx.Done():
			return RawReading{}, wrapErr("simulated protocol", ctx.Err())
		}
	}
	if err := ctx.Err(); err != nil {
		return RawReading{}, wrapErr("simulated protocol", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return RawReading{}, &Error{Kind: KindProtocol, Msg: "closed"}
	}
	m.count++

	if m.cfg.FailureRate > 0 && m.rnd.Float64() < m.cfg.FailureRate {
		// Alternate failure kinds the way a flaky wire does.
		if m.count%2 == 0 {
			return RawReading{}, &Error{Kind: KindChecksum, Msg: "simulated checksum mismatch"}
		}
		return RawReading{}, &Error{Kind: KindTimeout, Msg: "simulated missing response"}
	}

	temperature, humidity := m.generate(time.Since(m.startTime))
	return m.toRaw(temperature, humidity), nil
}

// Close stops the simulated sensor.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// generate returns the simulated temperature (C) and humidity (%) at elapsed.
// Humidity moves against temperature, as it does indoors.
func (m *Mock) generate(elapsed time.Duration) (float64, float64) {
	phase := 0.0
	if m.cfg.Period > 0 {
		phase = 2 * math.Pi * elapsed.Seconds() / m.cfg.Period.Seconds()
	}
	swing := math.Sin(phase)

	temperature := m.cfg.Temperature + m.cfg.Amplitude*swing + m.noise()
	humidity := m.cfg.Humidity - 2*m.cfg.Amplitude*swing + m.noise()
	return temperature, clamp(humidity, 0, 100)
}

func (m *Mock) noise() float64 {
	if m.cfg.NoiseLevel == 0 {
		return 0
	}
	return (m.rnd.Float64()*2 - 1) * m.cfg.NoiseLevel
}

func (m *Mock) toRaw(temperature, humidity float64) RawReading {
	t := math.Round(temperature * m.temperatureDivisor)
	h := math.Round(humidity * m.humidityDivisor)
	return RawReading{
		Temperature: int16(clamp(t, math.MinInt16, math.MaxInt16)),
		Humidity:    uint16(clamp(h, 0, math.MaxUint16)),
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
