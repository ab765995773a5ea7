// Package httpclient configures the HTTP client used to call upstream services.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// NewOutbound creates a new outbound http client; timeout <= 0 keeps 30s.
func NewOutbound(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

const maxErrorBody = 8 << 10

// StatusError is returned when an upstream answers outside 2xx.
type StatusError struct {
	Upstream string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: upstream status %d", e.Upstream, e.Code)
	}
	return fmt.Sprintf("%s: upstream status %d: %s", e.Upstream, e.Code, e.Body)
}

// DecodeError wraps a 2xx body that could not be parsed.
type DecodeError struct {
	Upstream string
	Err      error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("%s: decode body: %v", e.Upstream, e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// CheckStatus turns a non-2xx response into a *StatusError carrying a
// truncated body. The body is not closed.
func CheckStatus(upstream string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Upstream: upstream, Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
}

// Kind classifies an upstream error for the upstream_errors_total metric.
func Kind(err error) string {
	var se *StatusError
	var de *DecodeError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &se):
		return "status"
	case errors.As(err, &de):
		return "decode"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	default:
		return "transport"
	}
}
