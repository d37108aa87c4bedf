package sample

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/itohio/goclimate/pkg/sensor"
)

// Reading is one converted measurement in real units.
type Reading struct {
	Temperature float32 // Degrees Celsius
	Humidity    float32 // Relative humidity, percent
}

// Converter turns raw sensor units into Celsius and percent.
type Converter struct {
	temperatureDivisor float32
	humidityDivisor    float32
}

// NewConverter creates a converter dividing raw temperature and humidity by the given divisors.
// The DHT11 bridge reports temperature in half degrees and humidity in tenths of a percent (2, 10).
func NewConverter(temperatureDivisor, humidityDivisor float64) (Converter, error) {
	t, h := float32(temperatureDivisor), float32(humidityDivisor)
	if !finite(t) || t <= 0 {
		return Converter{}, fmt.Errorf("invalid temperature divisor %v", temperatureDivisor)
	}
	if !finite(h) || h <= 0 {
		return Converter{}, fmt.Errorf("invalid humidity divisor %v", humidityDivisor)
	}
	return Converter{temperatureDivisor: t, humidityDivisor: h}, nil
}

// Convert converts a RawReading to a Reading.
func (c Converter) Convert(raw sensor.RawReading) Reading {
	return Reading{
		Temperature: float32(raw.Temperature) / c.temperatureDivisor,
		Humidity:    float32(raw.Humidity) / c.humidityDivisor,
	}
}

func finite(v float32) bool {
	return !math32.IsNaN(v) && !math32.IsInf(v, 0)
}
