package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/mohammed-shakir/campus-buildings/internal/core/httpclient"
)

const hallResponse = `{
  "destinations": [
    {"primary": {"place": "places/ChIJ_unrelated", "displayName": {"text": "Unrelated", "languageCode": "en"}}},
    {"primary": {
      "place": "places/ChIJ_hall",
      "displayName": {"text": "Henry F. Hall Building", "languageCode": "en"},
      "primaryType": "university",
      "types": ["university", "point_of_interest"],
      "formattedAddress": "1455 Blvd. De Maisonneuve Ouest, Montréal, QC H3G 1M8, Canada",
      "structureType": "BUILDING",
      "location": {"latitude": 45.4972, "longitude": -73.5789},
      "displayPolygon": {"type": "Polygon", "coordinates": [[[-73.579,45.497],[-73.578,45.497],[-73.578,45.498],[-73.579,45.497]]]},
      "entrances": [{"location": {"latitude": 45.4971, "longitude": -73.5788}, "tags": ["PREFERRED"], "place": "places/ChIJ_hall"}],
      "somethingNew": {"ignored": true}
    }}
  ],
  "unknownTopLevel": 1
}`

type provider struct {
	mu      sync.Mutex
	calls   atomic.Int64
	headers http.Header
	bodies  []map[string]any

	status int
	body   string
}

func (p *provider) handler(w http.ResponseWriter, r *http.Request) {
	p.calls.Add(1)
	raw, _ := io.ReadAll(r.Body)
	var m map[string]any
	_ = json.Unmarshal(raw, &m)

	p.mu.Lock()
	p.headers = r.Header.Clone()
	p.bodies = append(p.bodies, m)
	status, body := p.status, p.body
	p.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (p *provider) set(status int, body string) {
	p.mu.Lock()
	p.status, p.body = status, body
	p.mu.Unlock()
}

func (p *provider) lastBody() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.bodies) == 0 {
		return nil
	}
	return p.bodies[len(p.bodies)-1]
}

func newClient(t *testing.T, p *provider, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(p.handler))
	t.Cleanup(srv.Close)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(logger, srv.Client(), srv.URL+"/v4alpha/geocode/destinations", "test-key", opts...)
}

func f64p(f float64) *float64 { return &f }

func TestByCoordinates_RequestShapeAndDecoding(t *testing.T) {
	p := &provider{body: hallResponse}
	c := newClient(t, p)

	resp, err := c.ByCoordinates(context.Background(), f64p(45.497256), f64p(-73.578915))
	if err != nil {
		t.Fatalf("ByCoordinates: %v", err)
	}

	p.mu.Lock()
	h := p.headers
	p.mu.Unlock()
	if h.Get("X-Goog-Api-Key") != "test-key" || h.Get("X-Goog-FieldMask") != "*" {
		t.Fatalf("auth headers missing: %v", h)
	}
	if h.Get("Content-Type") != "application/json" {
		t.Fatalf("content-type=%q", h.Get("Content-Type"))
	}

	lq, ok := p.lastBody()["locationQuery"].(map[string]any)
	if !ok {
		t.Fatalf("body=%v want locationQuery envelope", p.lastBody())
	}
	loc := lq["location"].(map[string]any)
	if loc["latitude"] != 45.497256 || loc["longitude"] != -73.578915 {
		t.Fatalf("location=%v", loc)
	}

	cands := resp.Candidates()
	if len(cands) != 2 {
		t.Fatalf("candidates=%d want 2", len(cands))
	}
	hall := cands[1]
	if *hall.PlaceID != "places/ChIJ_hall" || *hall.Name() != "Henry F. Hall Building" {
		t.Fatalf("hall=%+v", hall)
	}
	if hall.DisplayPolygon == nil || hall.DisplayPolygon.Type != "Polygon" || len(hall.DisplayPolygon.Coordinates) == 0 {
		t.Fatalf("polygon not passed through: %+v", hall.DisplayPolygon)
	}
	if len(hall.Entrances) != 1 || hall.Entrances[0].Tags[0] != "PREFERRED" {
		t.Fatalf("entrances=%+v", hall.Entrances)
	}
}

func TestByCoordinates_MissingCoordinateMakesNoCall(t *testing.T) {
	p := &provider{body: hallResponse}
	c := newClient(t, p)

	for _, pair := range [][2]*float64{{nil, f64p(1)}, {f64p(1), nil}, {nil, nil}} {
		resp, err := c.ByCoordinates(context.Background(), pair[0], pair[1])
		if resp != nil || err != nil {
			t.Fatalf("got %v,%v want nil,nil", resp, err)
		}
	}
	if n := p.calls.Load(); n != 0 {
		t.Fatalf("calls=%d want 0", n)
	}
}

func TestByAddress_EnvelopeAndBlank(t *testing.T) {
	p := &provider{body: `{"destinations":[]}`}
	c := newClient(t, p)

	if resp, err := c.ByAddress(context.Background(), "   "); resp != nil || err != nil {
		t.Fatalf("blank address: %v,%v", resp, err)
	}
	if n := p.calls.Load(); n != 0 {
		t.Fatalf("calls=%d want 0 for blank address", n)
	}

	resp, err := c.ByAddress(context.Background(), "7141 Sherbrooke St W")
	if err != nil {
		t.Fatalf("ByAddress: %v", err)
	}
	if len(resp.Destinations) != 0 {
		t.Fatalf("destinations=%d want 0", len(resp.Destinations))
	}
	aq, ok := p.lastBody()["addressQuery"].(map[string]any)
	if !ok || aq["addressQuery"] != "7141 Sherbrooke St W" {
		t.Fatalf("body=%v want addressQuery envelope", p.lastBody())
	}
}

func TestMemo_ServesRepeatsWithoutCalls(t *testing.T) {
	for _, size := range []int{0, 16} {
		p := &provider{body: hallResponse}
		c := newClient(t, p, WithMemoSize(size))
		ctx := context.Background()

		first, err := c.ByCoordinates(ctx, f64p(45.5), f64p(-73.5))
		if err != nil {
			t.Fatalf("size=%d: %v", size, err)
		}
		second, _ := c.ByCoordinates(ctx, f64p(45.5), f64p(-73.5))
		if first != second {
			t.Fatalf("size=%d: memoized response should be reused", size)
		}
		_, _ = c.ByAddress(ctx, "1455 De Maisonneuve")
		_, _ = c.ByAddress(ctx, "1455 De Maisonneuve")
		_, _ = c.ByCoordinates(ctx, f64p(45.5), f64p(-73.6))

		if n := p.calls.Load(); n != 3 {
			t.Fatalf("size=%d: calls=%d want 3", size, n)
		}
	}
}

func TestMemo_BoundedEvicts(t *testing.T) {
	p := &provider{body: `{"destinations":[]}`}
	c := newClient(t, p, WithMemoSize(2))
	ctx := context.Background()

	for _, lat := range []float64{1, 2, 3} {
		_, _ = c.ByCoordinates(ctx, f64p(lat), f64p(0))
	}
	if got := c.memo.Len(); got != 2 {
		t.Fatalf("memo len=%d want 2", got)
	}
	_, _ = c.ByCoordinates(ctx, f64p(1), f64p(0))
	if n := p.calls.Load(); n != 4 {
		t.Fatalf("calls=%d want 4 (oldest entry evicted)", n)
	}
}

func TestFailuresAreNotMemoized(t *testing.T) {
	p := &provider{status: http.StatusTooManyRequests, body: `{"error":{"status":"RESOURCE_EXHAUSTED"}}`}
	c := newClient(t, p)
	ctx := context.Background()

	_, err := c.ByCoordinates(ctx, f64p(45.5), f64p(-73.5))
	var se *httpclient.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusTooManyRequests {
		t.Fatalf("err=%v want 429 status error", err)
	}

	p.set(http.StatusOK, hallResponse)
	resp, err := c.ByCoordinates(ctx, f64p(45.5), f64p(-73.5))
	if err != nil || resp == nil {
		t.Fatalf("retry after failure: %v,%v", resp, err)
	}
	if n := p.calls.Load(); n != 2 {
		t.Fatalf("calls=%d want 2", n)
	}
}

func TestDecodeErrorIsReturned(t *testing.T) {
	p := &provider{body: `<html>oops</html>`}
	c := newClient(t, p)

	_, err := c.ByCoordinates(context.Background(), f64p(1), f64p(2))
	var de *httpclient.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("err=%v want *httpclient.DecodeError", err)
	}
}

func TestMemo_ConcurrentFirstUse(t *testing.T) {
	p := &provider{body: hallResponse}
	c := newClient(t, p)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.ByCoordinates(context.Background(), f64p(45.5), f64p(-73.5)); err != nil {
				t.Errorf("ByCoordinates: %v", err)
			}
		}()
	}
	wg.Wait()

	// collapsing is best effort; the memo must still hold exactly one entry
	if n := p.calls.Load(); n < 1 || n > 16 {
		t.Fatalf("calls=%d", n)
	}
	if got := c.memo.Len(); got != 1 {
		t.Fatalf("memo len=%d want 1", got)
	}
}

func TestCoordKey_ExactInput(t *testing.T) {
	if got := coordKey(45.497256, -73.578915); got != "coord:45.497256,-73.578915" {
		t.Fatalf("coordKey=%q", got)
	}
	if coordKey(45.5, -73.5) == coordKey(45.50000001, -73.5) {
		t.Fatalf("distinct inputs must not share a key")
	}
}

func TestLookup_OutlivesCallerCancellation(t *testing.T) {
	p := &provider{body: hallResponse}
	c := newClient(t, p)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := c.ByCoordinates(ctx, f64p(45.497256), f64p(-73.578915))
	if err != nil || resp == nil {
		t.Fatalf("ByCoordinates with canceled caller: %v,%v", resp, err)
	}
	if got := c.memo.Len(); got != 1 {
		t.Fatalf("memo len=%d want 1", got)
	}
}
