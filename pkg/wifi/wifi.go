package wifi

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Step names reported by StepError.
const (
	StepConfigure = "configure"
	StepStart     = "start"
	StepConnect   = "connect"
	StepWaitUp    = "wait_up"
)

// Credentials identify the access point to join.
type Credentials struct {
	SSID     string
	Password string
}

// Timeouts bound the bring-up steps. Connect applies to configure, start and
// connect each; Up applies to waiting for the link.
type Timeouts struct {
	Connect time.Duration
	Up      time.Duration
}

// Station is a network interface that can be brought up in station mode.
type Station interface {
	Configure(ctx context.Context, creds Credentials) error
	Start(ctx context.Context) error
	Connect(ctx context.Context) error
	WaitUp(ctx context.Context) error
}

// StepError reports which bring-up step failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("wifi %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// BringUp runs configure, start, connect and wait-up in order and stops at
// the first failure. The caller treats any error as fatal.
func BringUp(ctx context.Context, st Station, creds Credentials, t Timeouts, logger *slog.Logger) error {
	steps := []struct {
		name    string
		timeout time.Duration
		run     func(ctx context.Context) error
	}{
		{StepConfigure, t.Connect, func(ctx context.Context) error { return st.Configure(ctx, creds) }},
		{StepStart, t.Connect, st.Start},
		{StepConnect, t.Connect, st.Connect},
		{StepWaitUp, t.Up, st.WaitUp},
	}

	for _, step := range steps {
		logger.Info("wifi "+step.name, "ssid", creds.SSID)
		start := time.Now()

		if err := runStep(ctx, step.timeout, step.run); err != nil {
			logger.Error("wifi "+step.name+" failed", "error", err, "elapsed", time.Since(start))
			return &StepError{Step: step.name, Err: err}
		}
		logger.Debug("wifi "+step.name+" done", "elapsed", time.Since(start))
	}

	logger.Info("wifi up", "ssid", creds.SSID)
	return nil
}

func runStep(ctx context.Context, timeout time.Duration, run func(ctx context.Context) error) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return run(ctx)
}

// Skip is a Station for hosts whose network is managed elsewhere.
type Skip struct{}

func (Skip) Configure(context.Context, Credentials) error { return nil }
func (Skip) Start(context.Context) error                  { return nil }
func (Skip) Connect(context.Context) error                { return nil }
func (Skip) WaitUp(context.Context) error                 { return nil }

// Ensure implementations satisfy Station.
var (
	_ Station = Skip{}
	_ Station = (*NMCLI)(nil)
)
