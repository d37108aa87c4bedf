// Package payload serializes aggregates into the wire form sent to the sink.
package payload

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/itohio/goclimate/pkg/sample"
)

// ContentType is the media type of an encoded SensorPayload.
const ContentType = "application/json"

// SensorPayload is the wire representation of one aggregate.
type SensorPayload struct {
	Humidity    float32 `json:"humidity"`
	Temperature float32 `json:"temperature"`
}

// FromAggregate maps an aggregate to its payload without unit conversion.
func FromAggregate(agg sample.Aggregate) SensorPayload {
	return SensorPayload{
		Humidity:    agg.Humidity,
		Temperature: agg.Temperature,
	}
}

// Encode serializes an aggregate as a JSON object with exactly the keys
// "humidity" and "temperature".
func Encode(agg sample.Aggregate) ([]byte, error) {
	data, err := json.Marshal(FromAggregate(agg))
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return data, nil
}

// Decode parses a payload, rejecting unknown keys.
func Decode(data []byte) (SensorPayload, error) {
	var p SensorPayload
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return SensorPayload{}, fmt.Errorf("unmarshal payload: %w", err)
	}
	return p, nil
}
