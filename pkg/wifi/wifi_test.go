package wifi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeStation struct {
	calls  []string
	failAt string
	block  string
	creds  Credentials
}

func (f *fakeStation) step(ctx context.Context, name string) error {
	f.calls = append(f.calls, name)
	if f.block == name {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.failAt == name {
		return errors.New(name + " failed")
	}
	return nil
}

func (f *fakeStation) Configure(ctx context.Context, creds Credentials) error {
	f.creds = creds
	return f.step(ctx, StepConfigure)
}
func (f *fakeStation) Start(ctx context.Context) error   { return f.step(ctx, StepStart) }
func (f *fakeStation) Connect(ctx context.Context) error { return f.step(ctx, StepConnect) }
func (f *fakeStation) WaitUp(ctx context.Context) error  { return f.step(ctx, StepWaitUp) }

func TestBringUp_Success(t *testing.T) {
	st := &fakeStation{}
	creds := Credentials{SSID: "home", Password: "secret"}

	err := BringUp(context.Background(), st, creds, Timeouts{Connect: time.Second, Up: time.Second}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{StepConfigure, StepStart, StepConnect, StepWaitUp}, st.calls)
	assert.Equal(t, creds, st.creds)
}

func TestBringUp_StopsAtFirstFailure(t *testing.T) {
	all := []string{StepConfigure, StepStart, StepConnect, StepWaitUp}

	for i, failing := range all {
		t.Run(failing, func(t *testing.T) {
			st := &fakeStation{failAt: failing}

			err := BringUp(context.Background(), st, Credentials{SSID: "home"}, Timeouts{}, testLogger())
			require.Error(t, err)

			var se *StepError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, failing, se.Step)
			assert.Equal(t, all[:i+1], st.calls)
		})
	}
}

func TestBringUp_StepTimeout(t *testing.T) {
	st := &fakeStation{block: StepWaitUp}

	start := time.Now()
	err := BringUp(context.Background(), st, Credentials{SSID: "home"},
		Timeouts{Connect: time.Second, Up: 50 * time.Millisecond}, testLogger())
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "wifi wait_up")
}

func TestBringUp_Skip(t *testing.T) {
	assert.NoError(t, BringUp(context.Background(), Skip{}, Credentials{}, Timeouts{}, testLogger()))
}
