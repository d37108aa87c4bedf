package sink

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/goclimate/pkg/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHTTP(endpoint string, mutate func(c *config.HTTPConfig)) *HTTP {
	cfg := config.Default().HTTP
	cfg.Endpoint = endpoint
	if mutate != nil {
		mutate(&cfg)
	}
	return NewHTTP(cfg, testLogger())
}

func TestHTTP_PostSuccess(t *testing.T) {
	payload := []byte(`{"humidity":55.3,"temperature":21.5}`)

	var gotHeaders http.Header
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		gotHeaders = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	s := newTestHTTP(srv.URL+"/post", nil)
	defer s.Close()

	status, err := s.Post(context.Background(), payload)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, status.Code)
	assert.Equal(t, "ok", status.Body)
	assert.Equal(t, 2, status.BytesRead)
	assert.Equal(t, payload, gotBody)
	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))
	assert.Equal(t, "36", gotHeaders.Get("Content-Length"))
	assert.Equal(t, status.RequestID, gotHeaders.Get("X-Request-Id"))
	_, err = uuid.Parse(status.RequestID)
	assert.NoError(t, err)
}

func TestHTTP_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("busy"))
	}))
	defer srv.Close()

	status, err := newTestHTTP(srv.URL, nil).Post(context.Background(), []byte("{}"))
	require.Error(t, err)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, NonSuccessStatus, te.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, te.Code)
	assert.Equal(t, http.StatusServiceUnavailable, status.Code)
	assert.Equal(t, "busy", status.Body)
	assert.Contains(t, err.Error(), "503")
}

func TestHTTP_NonUTF8Body(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte{'o', 'k', 0xff, 0xfe})
	}))
	defer srv.Close()

	status, err := newTestHTTP(srv.URL, nil).Post(context.Background(), []byte("{}"))
	require.Error(t, err)
	assert.Equal(t, DecodeFailed, KindOf(err))
	assert.Equal(t, http.StatusOK, status.Code)
	assert.Equal(t, 4, status.BytesRead)
}

func TestHTTP_BodyTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("a", 100)))
	}))
	defer srv.Close()

	s := newTestHTTP(srv.URL, func(c *config.HTTPConfig) { c.MaxBodyLog = 8 })
	status, err := s.Post(context.Background(), []byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, 8, status.BytesRead)
	assert.Equal(t, "aaaaaaaa", status.Body)
}

func TestHTTP_TruncationInsideRuneIsNotDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("aaaaaaa€uro"))
	}))
	defer srv.Close()

	s := newTestHTTP(srv.URL, func(c *config.HTTPConfig) { c.MaxBodyLog = 8 })
	status, err := s.Post(context.Background(), []byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, 8, status.BytesRead)
}

func TestHTTP_ConnectFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	_, err := newTestHTTP(endpoint, nil).Post(context.Background(), []byte("{}"))
	require.Error(t, err)
	assert.Equal(t, ConnectFailed, KindOf(err))
}

func TestHTTP_HungEndpointTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	s := newTestHTTP(srv.URL, func(c *config.HTTPConfig) { c.Timeout = 50 * time.Millisecond })

	start := time.Now()
	_, err := s.Post(context.Background(), []byte("{}"))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, WriteFailed, KindOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewHTTP_Defaults(t *testing.T) {
	s := NewHTTP(config.HTTPConfig{Endpoint: "http://localhost"}, testLogger())
	assert.Equal(t, 10*time.Second, s.timeout)
	assert.Equal(t, 1024, s.maxBody)
	assert.Equal(t, "application/json", s.contentType)
}

func TestValidUTF8Prefix(t *testing.T) {
	euro := []byte("€")
	tests := []struct {
		name      string
		buf       []byte
		truncated bool
		want      bool
	}{
		{name: "ascii", buf: []byte("hello"), want: true},
		{name: "empty", buf: nil, want: true},
		{name: "invalid byte", buf: []byte{'a', 0xff}, want: false},
		{name: "cut rune not truncated", buf: append([]byte("a"), euro[:2]...), want: false},
		{name: "cut rune truncated", buf: append([]byte("a"), euro[:2]...), truncated: true, want: true},
		{name: "invalid before cut rune", buf: append([]byte{0xff}, euro[:1]...), truncated: true, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, validUTF8Prefix(tt.buf, tt.truncated))
		})
	}
}

func TestTransportError(t *testing.T) {
	inner := errors.New("boom")
	err := &TransportError{Kind: WriteFailed, Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "transport write_failed: boom", err.Error())
	assert.Equal(t, TransportKind(0), KindOf(inner))
	assert.Equal(t, "unknown", TransportKind(42).String())
}
