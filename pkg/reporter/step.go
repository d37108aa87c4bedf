package reporter

import (
	"context"
	"fmt"

	"github.com/itohio/goclimate/pkg/metrics"
	"github.com/itohio/goclimate/pkg/payload"
	"github.com/itohio/goclimate/pkg/sample"
	"github.com/itohio/goclimate/pkg/sensor"
	"github.com/itohio/goclimate/pkg/sink"
)

// Outcome is what a single Step did.
type Outcome int

const (
	// SensorFailed means the read failed and the window is unchanged.
	SensorFailed Outcome = iota
	// Accumulated means the reading was added and the window is not yet full.
	Accumulated
	// Reported means a full window was averaged and delivered.
	Reported
	// ReportFailed means a full window was averaged but delivery failed.
	// The aggregate is dropped.
	ReportFailed
)

func (o Outcome) String() string {
	switch o {
	case SensorFailed:
		return "sensor_failed"
	case Accumulated:
		return "accumulated"
	case Reported:
		return "reported"
	case ReportFailed:
		return "report_failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// StepResult describes one iteration of the polling loop.
type StepResult struct {
	Outcome   Outcome
	Reading   sample.Reading
	Aggregate sample.Aggregate
	Payload   []byte
	Status    sink.Status
	Err       error
}

// Step performs one sensor attempt and, when the window fills, one report.
// Failures are logged and returned in the result; none of them are fatal.
func (r *Reporter) Step(ctx context.Context) StepResult {
	raw, err := r.measure(ctx)
	if err != nil {
		kind := sensor.KindOf(err)
		r.logger.Warn("sensor read failed", "kind", kind.String(), "error", err, "pending", r.window.Len())
		r.metrics.ObserveRead(kind.String())
		return StepResult{Outcome: SensorFailed, Err: err}
	}

	reading := r.converter.Convert(raw)
	if err := r.window.Push(reading); err != nil {
		r.logger.Warn("reading rejected", "error", err, "temperature", reading.Temperature, "humidity", reading.Humidity)
		r.metrics.ObserveRead("rejected")
		return StepResult{Outcome: SensorFailed, Reading: reading, Err: err}
	}

	r.metrics.ObserveRead(metrics.ResultOK)
	r.metrics.SetWindowFill(r.window.Len())
	r.logger.Debug("sensor read",
		"temperature", reading.Temperature,
		"humidity", reading.Humidity,
		"pending", r.window.Len(),
		"window", r.window.Cap(),
	)

	// ErrWindowNotFull is the only drain error; the window keeps accumulating.
	agg, err := r.window.DrainAverage()
	if err != nil {
		return StepResult{Outcome: Accumulated, Reading: reading}
	}
	r.metrics.SetWindowFill(r.window.Len())

	return r.report(ctx, reading, agg)
}

func (r *Reporter) measure(ctx context.Context) (sensor.RawReading, error) {
	ctx, cancel := context.WithTimeout(ctx, r.sensorTimeout)
	defer cancel()

	raw, err := r.source.Measure(ctx)
	if err != nil && !sensor.IsSensorError(err) {
		kind := sensor.KindProtocol
		if ctx.Err() != nil {
			kind = sensor.KindTimeout
		}
		err = &sensor.Error{Kind: kind, Err: err}
	}
	return raw, err
}

func (r *Reporter) report(ctx context.Context, reading sample.Reading, agg sample.Aggregate) StepResult {
	res := StepResult{Reading: reading, Aggregate: agg}

	body, err := payload.Encode(agg)
	if err != nil {
		r.logger.Error("encode failed", "error", err, "temperature", agg.Temperature, "humidity", agg.Humidity)
		r.metrics.ObserveReport("encode_failed")
		res.Outcome, res.Err = ReportFailed, err
		return res
	}
	res.Payload = body

	ctx, cancel := context.WithTimeout(ctx, r.sinkTimeout)
	defer cancel()

	res.Status, err = r.sink.Post(ctx, body)
	if err != nil {
		kind := sink.KindOf(err)
		r.logger.Error("report failed",
			"kind", kind.String(),
			"error", err,
			"code", res.Status.Code,
			"request_id", res.Status.RequestID,
		)
		r.metrics.ObserveReport(kind.String())
		res.Outcome, res.Err = ReportFailed, err
		return res
	}

	r.metrics.ObserveReport(metrics.ResultOK)
	r.metrics.SetAggregate(agg.Temperature, agg.Humidity)
	r.logger.Info("report sent",
		"temperature", agg.Temperature,
		"humidity", agg.Humidity,
		"code", res.Status.Code,
		"bytes_read", res.Status.BytesRead,
		"request_id", res.Status.RequestID,
	)
	if res.Status.Body != "" {
		r.logger.Debug("response body", "body", res.Status.Body)
	}

	res.Outcome = Reported
	return res
}
