package sensor

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a failed measurement.
type ErrorKind int

const (
	KindProtocol ErrorKind = iota
	KindChecksum
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindChecksum:
		return "checksum"
	case KindTimeout:
		return "timeout"
	default:
		return "protocol"
	}
}

// Error is returned by Measure when no reading could be taken.
// The sample is lost; callers skip it and try again on the next tick.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("sensor %s error: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("sensor %s error: %v", e.Kind, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("sensor %s error: %s", e.Kind, e.Msg)
	default:
		return fmt.Sprintf("sensor %s error", e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsSensorError reports whether err carries a *Error.
func IsSensorError(err error) bool {
	var se *Error
	return errors.As(err, &se)
}

// KindOf returns the kind of a sensor error, or KindProtocol for foreign errors.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindProtocol
}

// wrapErr converts transport level failures into sensor errors.
// Deadline expiry always becomes KindTimeout.
func wrapErr(msg string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Msg: msg, Err: err}
	}
	return &Error{Kind: KindProtocol, Msg: msg, Err: err}
}
