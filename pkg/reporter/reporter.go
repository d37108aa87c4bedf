package reporter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/itohio/goclimate/pkg/metrics"
	"github.com/itohio/goclimate/pkg/sample"
	"github.com/itohio/goclimate/pkg/sensor"
	"github.com/itohio/goclimate/pkg/sink"
	"github.com/itohio/goclimate/pkg/wifi"
)

const (
	defaultSensorTimeout = 3 * time.Second
	defaultSinkTimeout   = 10 * time.Second

	defaultTemperatureDivisor = 2
	defaultHumidityDivisor    = 10
)

// Options configure a Reporter. Source and Sink are required.
type Options struct {
	Source    sensor.Source
	Sink      sink.Sink
	Converter sample.Converter

	Station      wifi.Station // nil skips bring-up
	Credentials  wifi.Credentials
	WiFiTimeouts wifi.Timeouts
	// OnNetworkUp runs once after bring-up succeeds and before the first
	// sensor read. Sinks that hold a connection start it here.
	OnNetworkUp  func(ctx context.Context)

	WindowSize    int
	PollInterval  time.Duration
	SensorTimeout time.Duration // Per Measure call
	SinkTimeout   time.Duration // Per Post call

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Reporter samples the sensor, averages full windows and reports them.
// It exclusively owns the source, window and sink for its lifetime.
type Reporter struct {
	source    sensor.Source
	sink      sink.Sink
	converter sample.Converter
	window    *sample.Window

	station      wifi.Station
	creds        wifi.Credentials
	wifiTimeouts wifi.Timeouts
	onNetworkUp  func(ctx context.Context)

	interval      time.Duration
	sensorTimeout time.Duration
	sinkTimeout   time.Duration

	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New validates opts and creates a Reporter.
func New(opts Options) (*Reporter, error) {
	if opts.Source == nil {
		return nil, errors.New("reporter: sensor source is required")
	}
	if opts.Sink == nil {
		return nil, errors.New("reporter: sink is required")
	}
	if opts.PollInterval <= 0 {
		return nil, fmt.Errorf("reporter: poll interval must be positive, got %v", opts.PollInterval)
	}

	window, err := sample.NewWindow(opts.WindowSize)
	if err != nil {
		return nil, fmt.Errorf("reporter: %w", err)
	}

	converter := opts.Converter
	if converter == (sample.Converter{}) {
		converter, err = sample.NewConverter(defaultTemperatureDivisor, defaultHumidityDivisor)
		if err != nil {
			return nil, fmt.Errorf("reporter: %w", err)
		}
	}
	if opts.Station == nil {
		opts.Station = wifi.Skip{}
	}
	if opts.SensorTimeout <= 0 {
		opts.SensorTimeout = defaultSensorTimeout
	}
	if opts.SinkTimeout <= 0 {
		opts.SinkTimeout = defaultSinkTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Reporter{
		source:        opts.Source,
		sink:          opts.Sink,
		converter:     converter,
		window:        window,
		station:       opts.Station,
		creds:         opts.Credentials,
		wifiTimeouts:  opts.WiFiTimeouts,
		onNetworkUp:   opts.OnNetworkUp,
		interval:      opts.PollInterval,
		sensorTimeout: opts.SensorTimeout,
		sinkTimeout:   opts.SinkTimeout,
		metrics:       opts.Metrics,
		logger:        opts.Logger,
	}, nil
}

// Run brings the network up and then polls forever. A bring-up failure is
// returned before the sensor, the sink or OnNetworkUp is touched. Otherwise Run returns
// ctx.Err() once ctx is done.
func (r *Reporter) Run(ctx context.Context) error {
	if err := wifi.BringUp(ctx, r.station, r.creds, r.wifiTimeouts, r.logger); err != nil {
		return fmt.Errorf("network bring-up: %w", err)
	}
	if r.onNetworkUp != nil {
		r.onNetworkUp(ctx)
	}

	r.logger.Info("reporter started",
		"window", r.window.Cap(),
		"interval", r.interval,
	)

	for {
		r.Step(ctx)

		if err := sleep(ctx, r.interval); err != nil {
			r.logger.Info("reporter stopped", "pending", r.window.Len())
			return err
		}
	}
}

// WindowLen returns the number of readings waiting for the next report.
func (r *Reporter) WindowLen() int {
	return r.window.Len()
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
