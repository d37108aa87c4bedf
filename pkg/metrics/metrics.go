package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "climate"

// ResultOK labels a successful read or report.
const ResultOK = "ok"

// Metrics holds the reporter's collectors. A nil *Metrics discards observations.
type Metrics struct {
	registry *prometheus.Registry

	reads       *prometheus.CounterVec
	reports     *prometheus.CounterVec
	windowFill  prometheus.Gauge
	temperature prometheus.Gauge
	humidity    prometheus.Gauge
}

// New creates a Metrics with its own registry, including Go runtime collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_reads_total",
			Help:      "Sensor read attempts by result.",
		}, []string{"result"}),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_total",
			Help:      "Report attempts by result.",
		}, []string{"result"}),
		windowFill: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "window_fill",
			Help:      "Readings currently held in the sampling window.",
		}),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "temperature_celsius",
			Help:      "Last reported mean temperature.",
		}),
		humidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "humidity_percent",
			Help:      "Last reported mean relative humidity.",
		}),
	}

	m.registry.MustRegister(
		m.reads,
		m.reports,
		m.windowFill,
		m.temperature,
		m.humidity,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRead counts a sensor read with the given result label.
func (m *Metrics) ObserveRead(result string) {
	if m == nil {
		return
	}
	m.reads.WithLabelValues(result).Inc()
}

// ObserveReport counts a report attempt with the given result label.
func (m *Metrics) ObserveReport(result string) {
	if m == nil {
		return
	}
	m.reports.WithLabelValues(result).Inc()
}

// SetWindowFill records the current window length.
func (m *Metrics) SetWindowFill(n int) {
	if m == nil {
		return
	}
	m.windowFill.Set(float64(n))
}

// SetAggregate records the last reported means.
func (m *Metrics) SetAggregate(temperature, humidity float32) {
	if m == nil {
		return
	}
	m.temperature.Set(float64(temperature))
	m.humidity.Set(float64(humidity))
}

// Handler returns the /metrics handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listen %s: %w", addr, err)
	}
	return m.serve(ctx, ln, logger)
}

func (m *Metrics) serve(ctx context.Context, ln net.Listener, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(shCtx)
	return nil
}
