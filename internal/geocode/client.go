// Package geocode queries the place geocoding provider for buildings.
//
// Successful responses are memoized per process by exact query. Responses
// handed out from the memo are shared and must be treated as read-only.
package geocode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mohammed-shakir/campus-buildings/internal/core/httpclient"
	"github.com/mohammed-shakir/campus-buildings/internal/core/model"
	"github.com/mohammed-shakir/campus-buildings/internal/core/observability"
)

const (
	upstreamName = "geocode"

	headerAPIKey    = "X-Goog-Api-Key"
	headerFieldMask = "X-Goog-FieldMask"
)

type Client struct {
	logger   *slog.Logger
	client   *http.Client
	url      string
	apiKey   string
	memo     memo
	group    singleflight.Group
	startNow func() time.Time // for tests
}

type Option func(*Client)

// WithMemoSize bounds the memo; 0 keeps every response for the process lifetime.
func WithMemoSize(n int) Option {
	return func(c *Client) { c.memo = newMemo(n) }
}

func New(logger *slog.Logger, client *http.Client, url, apiKey string, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = httpclient.NewOutbound(0)
	}
	c := &Client{
		logger:   logger,
		client:   client,
		url:      url,
		apiKey:   apiKey,
		memo:     newMemo(0),
		startNow: time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type locationQuery struct {
	LocationQuery struct {
		Location latLng `json:"location"`
	} `json:"locationQuery"`
}

type addressQuery struct {
	AddressQuery struct {
		AddressQuery string `json:"addressQuery"`
	} `json:"addressQuery"`
}

// ByCoordinates reverse-geocodes a point. It returns (nil, nil) without a
// network call when either coordinate is missing.
func (c *Client) ByCoordinates(ctx context.Context, lat, lon *float64) (*model.GeocodeResponse, error) {
	if lat == nil || lon == nil {
		return nil, nil
	}
	var body locationQuery
	body.LocationQuery.Location = latLng{Latitude: *lat, Longitude: *lon}
	return c.lookup(ctx, coordKey(*lat, *lon), body)
}

// ByAddress geocodes a free-text address. A blank address returns (nil, nil)
// without a network call.
func (c *Client) ByAddress(ctx context.Context, address string) (*model.GeocodeResponse, error) {
	if strings.TrimSpace(address) == "" {
		return nil, nil
	}
	var body addressQuery
	body.AddressQuery.AddressQuery = address
	return c.lookup(ctx, "addr:"+address, body)
}

func coordKey(lat, lon float64) string {
	return "coord:" + strconv.FormatFloat(lat, 'g', -1, 64) + "," + strconv.FormatFloat(lon, 'g', -1, 64)
}

func (c *Client) lookup(ctx context.Context, key string, body any) (*model.GeocodeResponse, error) {
	if resp, ok := c.memo.Get(key); ok {
		observability.IncGeocodeMemo("hit")
		return resp, nil
	}
	observability.IncGeocodeMemo("miss")

	v, err, shared := c.group.Do(key, func() (any, error) {
		// a concurrent flight may have filled the memo while we waited
		if resp, ok := c.memo.Get(key); ok {
			return resp, nil
		}
		// the flight is shared, so it must not die with the caller that started it
		resp, err := c.post(context.WithoutCancel(ctx), body)
		if err != nil {
			return nil, err
		}
		c.memo.Add(key, resp)
		return resp, nil
	})
	if err != nil {
		kind := httpclient.Kind(err)
		observability.IncUpstreamError(upstreamName, kind)
		c.logger.WarnContext(ctx, "geocode lookup failed", "key", key, "kind", kind, "shared", shared, "err", err)
		return nil, err
	}
	return v.(*model.GeocodeResponse), nil
}

func (c *Client) post(ctx context.Context, body any) (*model.GeocodeResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerAPIKey, c.apiKey)
	req.Header.Set(headerFieldMask, "*")

	start := c.startNow()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	dur := time.Since(start)
	observability.ObserveUpstreamLatency(upstreamName, dur.Seconds())

	if err := httpclient.CheckStatus(upstreamName, resp); err != nil {
		return nil, err
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	var out model.GeocodeResponse
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, &httpclient.DecodeError{Upstream: upstreamName, Err: err}
	}

	c.logger.DebugContext(ctx, "geocode done",
		"destinations", len(out.Destinations), "duration", dur.String())
	return &out, nil
}
