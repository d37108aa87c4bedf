package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/itohio/goclimate/pkg/config"
	"github.com/itohio/goclimate/pkg/logging"
	"github.com/itohio/goclimate/pkg/metrics"
	"github.com/itohio/goclimate/pkg/reporter"
	"github.com/itohio/goclimate/pkg/sample"
	"github.com/itohio/goclimate/pkg/sensor"
	"github.com/itohio/goclimate/pkg/sink"
	"github.com/itohio/goclimate/pkg/wifi"
)

var version = "dev"

const appName = "goclimate"

func main() {
	var (
		configFlag      = flag.String("config", "config.yaml", "Configuration file path")
		portFlag        = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		mockFlag        = flag.Bool("mock", false, "Use simulated sensor instead of the serial bridge")
		windowFlag      = flag.Int("window", -1, "Successful readings per report (overrides config)")
		intervalFlag    = flag.Duration("interval", 0, "Time between sensor attempts (overrides config)")
		listPortsFlag   = flag.Bool("list-ports", false, "List serial ports and exit")
		writeConfigFlag = flag.Bool("write-config", false, "Write the effective configuration to -config and exit")
	)
	flag.Parse()

	if *listPortsFlag {
		if err := listPorts(); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	if *portFlag != "" {
		cfg.Sensor.Port = *portFlag
	}
	if *mockFlag {
		cfg.Sensor.Kind = "mock"
	}
	if *windowFlag >= 0 {
		cfg.Sampling.WindowSize = *windowFlag
	}
	if *intervalFlag != 0 {
		cfg.Sampling.PollInterval = *intervalFlag
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	if *writeConfigFlag {
		if err := cfg.Save(*configFlag); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		return
	}

	logger := logging.New(cfg.Log, version, appName)
	slog.SetDefault(logger)

	logger.Info("starting",
		"version", version,
		"sensor", cfg.Sensor.Kind,
		"sink", cfg.Sink.Kind,
		"window", cfg.Sampling.WindowSize,
		"interval", cfg.Sampling.PollInterval,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("run failed", "error", err)
		stop()
		os.Exit(1)
	}

	logger.Info("shutting down")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	source, err := newSource(cfg)
	if err != nil {
		return err
	}
	defer source.Close()

	snk, sinkTimeout, err := newSink(cfg, logger)
	if err != nil {
		return err
	}
	defer snk.Close()

	converter, err := sample.NewConverter(cfg.Sensor.TemperatureDivisor, cfg.Sensor.HumidityDivisor)
	if err != nil {
		return err
	}

	var m *metrics.Metrics
	if cfg.Metrics.Addr != "" {
		m = metrics.New()
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Addr, logger); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	r, err := reporter.New(reporter.Options{
		Source:    source,
		Sink:      snk,
		Converter: converter,

		Station:     newStation(cfg, logger),
		Credentials: wifi.Credentials{SSID: cfg.WiFi.SSID, Password: cfg.WiFi.Password},
		WiFiTimeouts: wifi.Timeouts{
			Connect: cfg.WiFi.ConnectTimeout,
			Up:      cfg.WiFi.UpTimeout,
		},
		OnNetworkUp: sinkConnector(snk, logger),

		WindowSize:    cfg.Sampling.WindowSize,
		PollInterval:  cfg.Sampling.PollInterval,
		SensorTimeout: cfg.Sensor.Timeout,
		SinkTimeout:   sinkTimeout,

		Metrics: m,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	return r.Run(ctx)
}

func newSource(cfg *config.Config) (sensor.Source, error) {
	if cfg.Sensor.Kind == "mock" {
		return sensor.NewMock(&cfg.Mock, cfg.Sensor.TemperatureDivisor, cfg.Sensor.HumidityDivisor), nil
	}

	s := sensor.NewSerial(cfg.Sensor.Port, cfg.Sensor.BaudRate, cfg.Sensor.Timeout)
	if err := s.Connect(); err != nil {
		return nil, err
	}
	return s, nil
}

func newSink(cfg *config.Config, logger *slog.Logger) (sink.Sink, time.Duration, error) {
	switch cfg.Sink.Kind {
	case "http":
		return sink.NewHTTP(cfg.HTTP, logger), cfg.HTTP.Timeout, nil
	case "mqtt":
		return sink.NewMQTT(cfg.MQTT, logger), cfg.MQTT.Timeout, nil
	default:
		return nil, 0, fmt.Errorf("unknown sink kind %q", cfg.Sink.Kind)
	}
}

// sinkConnector returns the hook that dials the broker once the network is up.
// HTTP sinks connect per request and need none.
func sinkConnector(snk sink.Sink, logger *slog.Logger) func(ctx context.Context) {
	m, ok := snk.(*sink.MQTT)
	if !ok {
		return nil
	}
	return func(ctx context.Context) {
		go func() {
			// Reports fail with ConnectFailed until this succeeds.
			if err := m.Connect(ctx); err != nil && !errors.Is(err, sink.ErrStopped) {
				logger.Warn("mqtt connect failed", "error", err)
			}
		}()
	}
}

func newStation(cfg *config.Config, logger *slog.Logger) wifi.Station {
	if cfg.WiFi.SSID == "" {
		logger.Info("wifi ssid not set, skipping bring-up")
		return wifi.Skip{}
	}
	return wifi.NewNMCLI(cfg.WiFi.Interface)
}

func listPorts() error {
	ports, err := sensor.Ports()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("no serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Println(p.Name)
	}
	return nil
}
