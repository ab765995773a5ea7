// Package directory reads the campus building list from the facilities
// directory.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mohammed-shakir/campus-buildings/internal/core/httpclient"
	"github.com/mohammed-shakir/campus-buildings/internal/core/model"
	"github.com/mohammed-shakir/campus-buildings/internal/core/observability"
)

const upstreamName = "directory"

type Fetcher struct {
	logger   *slog.Logger
	client   *http.Client
	endpoint string
	user     string
	key      string
	startNow func() time.Time // for tests
}

func New(logger *slog.Logger, client *http.Client, baseURL, user, key string) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = httpclient.NewOutbound(0)
	}
	return &Fetcher{
		logger:   logger,
		client:   client,
		endpoint: Endpoint(baseURL),
		user:     user,
		key:      key,
		startNow: time.Now,
	}
}

// Endpoint returns the building list URL under baseURL.
func Endpoint(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/facilities/buildinglist/"
}

// Fetch returns the directory listing, or an empty list when the directory is
// unreachable or answers with something unusable.
func (f *Fetcher) Fetch(ctx context.Context) []model.Building {
	buildings, err := f.List(ctx)
	if err != nil {
		kind := httpclient.Kind(err)
		observability.IncUpstreamError(upstreamName, kind)
		f.logger.ErrorContext(ctx, "directory fetch failed, returning empty list",
			"kind", kind, "err", err)
		return []model.Building{}
	}
	return buildings
}

// List performs one GET against the directory. An empty or null body yields
// an empty, non-nil list.
func (f *Fetcher) List(ctx context.Context) ([]model.Building, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if f.user != "" && f.key != "" {
		req.SetBasicAuth(f.user, f.key)
	}

	start := f.startNow()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	observability.ObserveUpstreamLatency(upstreamName, time.Since(start).Seconds())

	if err := httpclient.CheckStatus(upstreamName, resp); err != nil {
		return nil, err
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return []model.Building{}, nil
	}

	var out []model.Building
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, &httpclient.DecodeError{Upstream: upstreamName, Err: err}
	}
	if out == nil {
		out = []model.Building{}
	}

	f.logger.DebugContext(ctx, "directory listed",
		"buildings", len(out), "duration", time.Since(start).String())
	return out, nil
}
