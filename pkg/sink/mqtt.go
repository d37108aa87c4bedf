package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/itohio/goclimate/pkg/config"
)

// ErrStopped is returned by MQTT.Connect after Close.
var ErrStopped = errors.New("mqtt sink stopped")

// MQTT publishes payloads to a broker topic.
type MQTT struct {
	client    mqtt.Client
	cfg       config.MQTTConfig
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewMQTT creates an MQTT sink. The connection is not established until Connect.
func NewMQTT(cfg config.MQTTConfig, logger *slog.Logger) *MQTT {
	if cfg.ClientID == "" {
		cfg.ClientID = "goclimate-" + uuid.NewString()[:8]
	}

	m := &MQTT{
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port))
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		m.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.Broker, "port", cfg.Port, "client_id", cfg.ClientID)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		m.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	m.client = mqtt.NewClient(opts)
	return m
}

// newMQTTWithClient wires an existing client, used by tests.
func newMQTTWithClient(client mqtt.Client, cfg config.MQTTConfig, logger *slog.Logger) *MQTT {
	return &MQTT{
		client: client,
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Connect waits for the initial connection, respecting ctx and Close.
// The client keeps retrying in the background after a failed attempt.
func (m *MQTT) Connect(ctx context.Context) error {
	select {
	case <-m.stopCh:
		return ErrStopped
	default:
	}

	if m.IsConnected() {
		return nil
	}

	token := m.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return &TransportError{Kind: ConnectFailed, Err: fmt.Errorf("mqtt connect: %w", err)}
			}
			m.setConnected(true)
			return nil
		}

		select {
		case <-ctx.Done():
			return &TransportError{Kind: ConnectFailed, Err: ctx.Err()}
		case <-m.stopCh:
			return ErrStopped
		default:
		}
	}
}

// Post publishes payload to the configured topic and waits for the broker
// acknowledgement required by the QoS level, bounded by ctx.
func (m *MQTT) Post(ctx context.Context, payload []byte) (Status, error) {
	status := Status{RequestID: uuid.NewString()}

	if !m.IsConnected() {
		return status, &TransportError{Kind: ConnectFailed, Err: errors.New("mqtt client not connected")}
	}

	token := m.client.Publish(m.cfg.Topic, m.cfg.QoS, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return status, &TransportError{
			Kind: WriteFailed,
			Err:  fmt.Errorf("publish to %s: %w", m.cfg.Topic, ctx.Err()),
		}
	}
	if err := token.Error(); err != nil {
		return status, &TransportError{Kind: WriteFailed, Err: fmt.Errorf("publish to %s: %w", m.cfg.Topic, err)}
	}

	m.logger.Debug("published payload", "topic", m.cfg.Topic, "bytes", len(payload), "request_id", status.RequestID)
	return status, nil
}

// IsConnected returns whether the client is connected.
func (m *MQTT) IsConnected() bool {
	m.mu.RLock()
	connected := m.connected
	m.mu.RUnlock()
	return connected && m.client.IsConnected()
}

// Close stops the sink and disconnects from the broker. Safe to call twice.
func (m *MQTT) Close() error {
	m.stopOnce.Do(func() { close(m.stopCh) })

	if m.client != nil {
		m.client.Disconnect(250)
	}

	m.setConnected(false)
	m.logger.Info("mqtt disconnected")
	return nil
}

func (m *MQTT) setConnected(v bool) {
	m.mu.Lock()
	m.connected = v
	m.mu.Unlock()
}
