package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/itohio/goclimate/pkg/config"
)

// HTTP posts payloads to a single endpoint, one blocking request per report.
type HTTP struct {
	endpoint    string
	contentType string
	timeout     time.Duration
	maxBody     int
	client      *http.Client
	logger      *slog.Logger
}

// NewHTTP creates an HTTP sink from configuration.
func NewHTTP(cfg config.HTTPConfig, logger *slog.Logger) *HTTP {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxBodyLog <= 0 {
		cfg.MaxBodyLog = 1024
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "application/json"
	}

	return &HTTP{
		endpoint:    cfg.Endpoint,
		contentType: cfg.ContentType,
		timeout:     cfg.Timeout,
		maxBody:     cfg.MaxBodyLog,
		client:      &http.Client{},
		logger:      logger,
	}
}

// Post sends payload and reads at most maxBody bytes of the response.
// The exchange is bounded by the sink timeout even if ctx has no deadline.
func (h *HTTP) Post(ctx context.Context, payload []byte) (Status, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	status := Status{RequestID: uuid.NewString()}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(payload))
	if err != nil {
		return status, &TransportError{Kind: ConnectFailed, Err: err}
	}
	req.Header.Set("Content-Type", h.contentType)
	req.ContentLength = int64(len(payload))
	req.Header.Set("X-Request-Id", status.RequestID)

	h.logger.Debug("-> POST", "url", h.endpoint, "bytes", len(payload), "request_id", status.RequestID)

	resp, err := h.client.Do(req)
	if err != nil {
		return status, &TransportError{Kind: classifyDoErr(err), Err: err}
	}
	defer resp.Body.Close()

	status.Code = resp.StatusCode
	h.logger.Debug("<- status", "code", resp.StatusCode, "request_id", status.RequestID)

	buf, truncated, readErr := readPrefix(resp.Body, h.maxBody)
	status.BytesRead = len(buf)
	if readErr == nil {
		// Drain the remaining response bytes so the exchange completes.
		_, readErr = io.Copy(io.Discard, resp.Body)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		status.Body = string(buf)
		return status, &TransportError{Kind: NonSuccessStatus, Code: resp.StatusCode}
	}
	if readErr != nil {
		return status, &TransportError{Kind: DecodeFailed, Err: fmt.Errorf("read response body: %w", readErr)}
	}
	if !validUTF8Prefix(buf, truncated) {
		return status, &TransportError{Kind: DecodeFailed, Err: errors.New("response body is not valid UTF-8")}
	}

	status.Body = string(buf)
	h.logger.Debug("response body", "bytes", status.BytesRead, "truncated", truncated, "body", status.Body)
	return status, nil
}

// Close releases idle connections.
func (h *HTTP) Close() error {
	h.client.CloseIdleConnections()
	return nil
}

// readPrefix reads up to limit bytes and reports whether more were available.
func readPrefix(r io.Reader, limit int) ([]byte, bool, error) {
	buf, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if len(buf) > limit {
		return buf[:limit], true, err
	}
	return buf, false, err
}

// validUTF8Prefix checks buf, tolerating a rune cut in half by truncation.
func validUTF8Prefix(buf []byte, truncated bool) bool {
	if utf8.Valid(buf) {
		return true
	}
	if !truncated {
		return false
	}
	for cut := 1; cut < utf8.UTFMax && cut <= len(buf); cut++ {
		tail := buf[len(buf)-cut:]
		if utf8.RuneStart(tail[0]) && !utf8.FullRune(tail) {
			return utf8.Valid(buf[:len(buf)-cut])
		}
	}
	return false
}

// classifyDoErr separates failures to reach the endpoint from failures
// during the exchange.
func classifyDoErr(err error) TransportKind {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ConnectFailed
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return ConnectFailed
	}
	return WriteFailed
}
