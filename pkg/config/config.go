package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MinPollInterval is the shortest allowed time between two sensor attempts.
// The DHT11 needs at least one second between measurements.
const MinPollInterval = time.Second

// Config represents the application configuration.
type Config struct {
	WiFi     WiFiConfig     `yaml:"wifi"`
	Sensor   SensorConfig   `yaml:"sensor"`
	Sampling SamplingConfig `yaml:"sampling"`
	Sink     SinkConfig     `yaml:"sink"`
	HTTP     HTTPConfig     `yaml:"http"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Mock     MockConfig     `yaml:"mock"`
}

// WiFiConfig contains the station credentials. An empty SSID skips bring-up.
type WiFiConfig struct {
	SSID           string        `yaml:"ssid"`
	Password       string        `yaml:"password"`
	Interface      string        `yaml:"interface"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	UpTimeout      time.Duration `yaml:"up_timeout"`
}

// SensorConfig contains sensor bridge configuration.
type SensorConfig struct {
	Kind               string        `yaml:"kind"` // "serial" or "mock"
	Port               string        `yaml:"port"`
	BaudRate           int           `yaml:"baud_rate"`
	Timeout            time.Duration `yaml:"timeout"`             // Per measurement round trip
	TemperatureDivisor float64       `yaml:"temperature_divisor"` // Raw units per degree C
	HumidityDivisor    float64       `yaml:"humidity_divisor"`    // Raw units per percent
}

// SamplingConfig contains the aggregation parameters.
type SamplingConfig struct {
	WindowSize   int           `yaml:"window_size"`   // Successful reads per report
	PollInterval time.Duration `yaml:"poll_interval"` // Time between sensor attempts
}

// SinkConfig selects the network sink.
type SinkConfig struct {
	Kind string `yaml:"kind"` // "http" or "mqtt"
}

// HTTPConfig contains the HTTP endpoint configuration.
type HTTPConfig struct {
	Endpoint    string        `yaml:"endpoint"`
	ContentType string        `yaml:"content_type"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxBodyLog  int           `yaml:"max_body_log"` // Response bytes read and logged
}

// MQTTConfig contains the MQTT sink configuration.
type MQTTConfig struct {
	Broker   string        `yaml:"broker"`
	Port     int           `yaml:"port"`
	ClientID string        `yaml:"client_id"` // Empty generates one
	Topic    string        `yaml:"topic"`
	QoS      byte          `yaml:"qos"`
	Timeout  time.Duration `yaml:"timeout"` // Publish acknowledgement
}

// LogConfig contains logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// MetricsConfig contains the Prometheus listener configuration.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // Empty disables the listener
}

// MockConfig contains mock sensor configuration.
type MockConfig struct {
	Temperature float64       `yaml:"temperature"`  // Mean temperature (C)
	Humidity    float64       `yaml:"humidity"`     // Mean humidity (%)
	Amplitude   float64       `yaml:"amplitude"`    // Temperature swing (C)
	NoiseLevel  float64       `yaml:"noise_level"`  // Uniform noise (C / %)
	FailureRate float64       `yaml:"failure_rate"` // Fraction of failed reads, 0..1
	Period      time.Duration `yaml:"period"`       // Swing period
	Latency     time.Duration `yaml:"latency"`      // Simulated protocol time
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		WiFi: WiFiConfig{
			Interface:      "wlan0",
			ConnectTimeout: 30 * time.Second,
			UpTimeout:      30 * time.Second,
		},
		Sensor: SensorConfig{
			Kind:               "serial",
			Port:               "/dev/ttyACM0",
			BaudRate:           115200,
			Timeout:            3 * time.Second,
			TemperatureDivisor: 2,
			HumidityDivisor:    10,
		},
		Sampling: SamplingConfig{
			WindowSize:   10,
			PollInterval: 2 * time.Second,
		},
		Sink: SinkConfig{
			Kind: "http",
		},
		HTTP: HTTPConfig{
			Endpoint:    "http://httpbin.org/post",
			ContentType: "application/json",
			Timeout:     10 * time.Second,
			MaxBodyLog:  1024,
		},
		MQTT: MQTTConfig{
			Broker:  "localhost",
			Port:    1883,
			Topic:   "climate/telemetry",
			QoS:     1,
			Timeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Mock: MockConfig{
			Temperature: 22.0,
			Humidity:    45.0,
			Amplitude:   1.5,
			NoiseLevel:  0.2,
			FailureRate: 0.1,
			Period:      10 * time.Minute,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values. LOG_LEVEL overrides log.level.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.ensureDefaults()

	if level := strings.TrimSpace(os.Getenv("LOG_LEVEL")); level != "" {
		cfg.Log.Level = level
	}

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate rejects configurations the reporter cannot run with.
func (c *Config) Validate() error {
	if c.Sampling.WindowSize < 1 {
		return fmt.Errorf("sampling.window_size must be at least 1, got %d", c.Sampling.WindowSize)
	}
	if c.Sampling.PollInterval < MinPollInterval {
		return fmt.Errorf("sampling.poll_interval must be at least %v, got %v", MinPollInterval, c.Sampling.PollInterval)
	}

	switch c.Sensor.Kind {
	case "serial":
		if c.Sensor.Port == "" {
			return fmt.Errorf("sensor.port is required for serial sensor")
		}
	case "mock":
	default:
		return fmt.Errorf("invalid sensor.kind %q (allowed: serial, mock)", c.Sensor.Kind)
	}
	if c.Sensor.TemperatureDivisor <= 0 || c.Sensor.HumidityDivisor <= 0 {
		return fmt.Errorf("sensor divisors must be positive, got %v and %v",
			c.Sensor.TemperatureDivisor, c.Sensor.HumidityDivisor)
	}
	if c.Mock.FailureRate < 0 || c.Mock.FailureRate > 1 {
		return fmt.Errorf("mock.failure_rate must be within 0..1, got %v", c.Mock.FailureRate)
	}

	switch c.Sink.Kind {
	case "http":
		u, err := url.Parse(c.HTTP.Endpoint)
		if err != nil {
			return fmt.Errorf("invalid http.endpoint %q: %w", c.HTTP.Endpoint, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
			return fmt.Errorf("invalid http.endpoint %q: want http(s)://host/path", c.HTTP.Endpoint)
		}
	case "mqtt":
		if c.MQTT.Broker == "" || c.MQTT.Topic == "" {
			return fmt.Errorf("mqtt.broker and mqtt.topic are required for mqtt sink")
		}
		if c.MQTT.QoS > 2 {
			return fmt.Errorf("invalid mqtt.qos %d (allowed: 0, 1, 2)", c.MQTT.QoS)
		}
	default:
		return fmt.Errorf("invalid sink.kind %q (allowed: http, mqtt)", c.Sink.Kind)
	}

	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log.format %q (allowed: text, json)", c.Log.Format)
	}

	return nil
}

// ParseLogLevel maps a level name to a slog.Level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

// ensureDefaults ensures that all required fields have default values if missing.
// WindowSize is left alone so that an explicit 0 fails Validate instead of
// silently becoming 10.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.WiFi.Interface == "" {
		c.WiFi.Interface = def.WiFi.Interface
	}
	if c.WiFi.ConnectTimeout == 0 {
		c.WiFi.ConnectTimeout = def.WiFi.ConnectTimeout
	}
	if c.WiFi.UpTimeout == 0 {
		c.WiFi.UpTimeout = def.WiFi.UpTimeout
	}

	if c.Sensor.Kind == "" {
		c.Sensor.Kind = def.Sensor.Kind
	}
	if c.Sensor.BaudRate == 0 {
		c.Sensor.BaudRate = def.Sensor.BaudRate
	}
	if c.Sensor.Timeout == 0 {
		c.Sensor.Timeout = def.Sensor.Timeout
	}
	if c.Sensor.TemperatureDivisor == 0 {
		c.Sensor.TemperatureDivisor = def.Sensor.TemperatureDivisor
	}
	if c.Sensor.HumidityDivisor == 0 {
		c.Sensor.HumidityDivisor = def.Sensor.HumidityDivisor
	}

	if c.Sampling.PollInterval == 0 {
		c.Sampling.PollInterval = def.Sampling.PollInterval
	}

	if c.Sink.Kind == "" {
		c.Sink.Kind = def.Sink.Kind
	}
	if c.HTTP.ContentType == "" {
		c.HTTP.ContentType = def.HTTP.ContentType
	}
	if c.HTTP.Timeout == 0 {
		c.HTTP.Timeout = def.HTTP.Timeout
	}
	if c.HTTP.MaxBodyLog == 0 {
		c.HTTP.MaxBodyLog = def.HTTP.MaxBodyLog
	}

	if c.MQTT.Port == 0 {
		c.MQTT.Port = def.MQTT.Port
	}
	if c.MQTT.Timeout == 0 {
		c.MQTT.Timeout = def.MQTT.Timeout
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}

	if c.Mock.Period == 0 {
		c.Mock.Period = def.Mock.Period
	}
}
