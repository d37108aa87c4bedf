package sink

import (
	"context"
	"errors"
	"fmt"
)

// Status is what the sink observed from the remote side.
type Status struct {
	Code      int    // HTTP status code, 0 for brokers
	Body      string // Response body, truncated
	BytesRead int
	RequestID string
}

// Sink delivers serialized payloads to a remote endpoint.
type Sink interface {
	Post(ctx context.Context, payload []byte) (Status, error)
	Close() error
}

// Ensure HTTP implements Sink.
var _ Sink = (*HTTP)(nil)

// Ensure MQTT implements Sink.
var _ Sink = (*MQTT)(nil)

// TransportKind tags a TransportError.
type TransportKind int

const (
	ConnectFailed TransportKind = iota + 1
	WriteFailed
	DecodeFailed
	NonSuccessStatus
)

func (k TransportKind) String() string {
	switch k {
	case ConnectFailed:
		return "connect_failed"
	case WriteFailed:
		return "write_failed"
	case DecodeFailed:
		return "decode_failed"
	case NonSuccessStatus:
		return "non_success_status"
	default:
		return "unknown"
	}
}

// TransportError describes a failed delivery. Code is set for NonSuccessStatus.
type TransportError struct {
	Kind TransportKind
	Code int
	Err  error
}

func (e *TransportError) Error() string {
	if e.Kind == NonSuccessStatus {
		return fmt.Sprintf("transport %s: status %d", e.Kind, e.Code)
	}
	if e.Err == nil {
		return fmt.Sprintf("transport %s", e.Kind)
	}
	return fmt.Sprintf("transport %s: %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// KindOf returns the transport kind carried by err, or 0 if err is not a TransportError.
func KindOf(err error) TransportKind {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Kind
	}
	return 0
}
