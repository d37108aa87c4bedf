package sensor

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the baud rate the bridge firmware configures its UART with.
	DefaultBaudRate = 115200
	// DefaultTimeout bounds a single measure command round trip.
	DefaultTimeout = 3 * time.Second

	// readPoll is the longest single blocking read so ctx cancellation is noticed.
	readPoll   = 100 * time.Millisecond
	maxLineLen = 64
)

// measureCommand asks the bridge to perform exactly one measurement.
var measureCommand = []byte("M\n")

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// port is the subset of serial.Port used by Serial.
type port interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// Serial talks to the DHT11 bridge firmware over a serial line.
//
// Protocol, one line per message:
//
//	host -> bridge: M
//	bridge -> host: R,<temperature>,<humidity>   (raw sensor units)
//	bridge -> host: E,<checksum|timeout|protocol>[,<detail>]
type Serial struct {
	port     string
	baudRate int
	timeout  time.Duration

	mu        sync.Mutex
	conn      port
	connected bool
}

// NewSerial creates a new bridge connection for the given port.
// Zero values select DefaultBaudRate and DefaultTimeout.
func NewSerial(portName string, baudRate int, timeout time.Duration) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Serial{
		port:     portName,
		baudRate: baudRate,
		timeout:  timeout,
	}
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{
			Name:        name,
			Description: name,
		})
	}

	return result, nil
}

// Connect opens the serial port. Failing here is fatal for the caller.
func (s *Serial) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return fmt.Errorf("already connected")
	}

	conn, err := serial.Open(s.port, &serial.Mode{BaudRate: s.baudRate})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.port, err)
	}

	s.conn = conn
	s.connected = true
	return nil
}

// Close closes the serial port.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil
	}

	s.connected = false
	err := s.conn.Close()
	s.conn = nil
	if err != nil {
		return fmt.Errorf("failed to close serial port %s: %w", s.port, err)
	}
	return nil
}

// IsConnected returns whether the port is open.
func (s *Serial) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Measure sends one measure command and waits for the reply.
// Every call gets its own deadline: the earlier of ctx's deadline and now+timeout.
func (s *Serial) Measure(ctx context.Context) (RawReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return RawReading{}, &Error{Kind: KindProtocol, Msg: "not connected"}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// Drop anything left over from a previous, timed out exchange.
	if err := s.conn.ResetInputBuffer(); err != nil {
		return RawReading{}, wrapErr("reset input", err)
	}
	if _, err := s.conn.Write(measureCommand); err != nil {
		return RawReading{}, wrapErr("write command", err)
	}

	line, err := s.readLine(ctx)
	if err != nil {
		return RawReading{}, wrapErr("read reply", err)
	}

	return parseLine(line)
}

// readLine reads bytes until a newline, polling in short slices so that
// ctx expiry interrupts a silent bridge.
func (s *Serial) readLine(ctx context.Context) (string, error) {
	var (
		line []byte
		buf  [maxLineLen]byte
	)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		wait := readPoll
		if deadline, ok := ctx.Deadline(); ok {
			if remaining := time.Until(deadline); remaining < wait {
				wait = remaining
			}
		}
		if wait <= 0 {
			return "", context.DeadlineExceeded
		}
		if err := s.conn.SetReadTimeout(wait); err != nil {
			return "", err
		}

		n, err := s.conn.Read(buf[:])
		if err != nil {
			return "", err
		}
		for _, b := range buf[:n] {
			if b == '\n' {
				return strings.TrimSpace(string(line)), nil
			}
			line = append(line, b)
			if len(line) > maxLineLen {
				return "", &Error{Kind: KindProtocol, Msg: "reply line too long"}
			}
		}
	}
}

// parseLine parses a bridge reply into a RawReading.
// Format: R,<temperature>,<humidity> or E,<kind>[,<detail>]
// Example: R,250,450
func parseLine(line string) (RawReading, error) {
	parts := strings.Split(line, ",")
	switch parts[0] {
	case "R":
		if len(parts) != 3 {
			return RawReading{}, &Error{
				Kind: KindProtocol,
				Msg:  fmt.Sprintf("invalid reading: expected 3 comma-separated values, got %d", len(parts)),
			}
		}
		temperature, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 16)
		if err != nil {
			return RawReading{}, &Error{Kind: KindProtocol, Msg: "invalid temperature", Err: err}
		}
		humidity, err := strconv.ParseUint(strings.TrimSpace(parts[2]), 10, 16)
		if err != nil {
			return RawReading{}, &Error{Kind: KindProtocol, Msg: "invalid humidity", Err: err}
		}
		return RawReading{
			Temperature: int16(temperature),
			Humidity:    uint16(humidity),
		}, nil

	case "E":
		kind := KindProtocol
		if len(parts) > 1 {
			switch strings.ToLower(strings.TrimSpace(parts[1])) {
			case "checksum":
				kind = KindChecksum
			case "timeout":
				kind = KindTimeout
			}
		}
		msg := "reported by bridge"
		if len(parts) > 2 {
			msg = strings.Join(parts[2:], ",")
		}
		return RawReading{}, &Error{Kind: kind, Msg: msg}

	default:
		return RawReading{}, &Error{Kind: KindProtocol, Msg: fmt.Sprintf("unexpected reply %q", line)}
	}
}
