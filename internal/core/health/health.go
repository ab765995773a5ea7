// Package health serves the liveness and readiness probes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Liveness answers as long as the process can serve HTTP; it never touches
// the cache or upstreams.
func Liveness(version string, started time.Time) http.HandlerFunc {
	type resp struct {
		Status  string  `json:"status"`
		Version string  `json:"version"`
		UptimeS float64 `json:"uptime_s"`
	}
	return func(w http.ResponseWriter, _ *http.Request) {
		writeProbe(w, http.StatusOK, resp{
			Status:  "ok",
			Version: version,
			UptimeS: time.Since(started).Truncate(time.Second).Seconds(),
		})
	}
}

// ReadinessProbe is satisfied by the cache gateway.
type ReadinessProbe interface {
	Ready(ctx context.Context) error
	Backend() string
}

// Readiness reports 503 while the cache backend cannot be reached, so a load
// balancer stops routing to an instance that would rebuild on every request.
func Readiness(p ReadinessProbe, timeout time.Duration) http.HandlerFunc {
	type resp struct {
		Status       string `json:"status"`
		CacheBackend string `json:"cache_backend"`
		Error        string `json:"error,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		out := resp{Status: "ready", CacheBackend: p.Backend()}
		code := http.StatusOK
		if err := p.Ready(ctx); err != nil {
			out.Status, out.Error = "not_ready", err.Error()
			code = http.StatusServiceUnavailable
		}
		writeProbe(w, code, out)
	}
}

func writeProbe(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
