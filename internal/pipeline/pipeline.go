// Package pipeline answers "all buildings, enriched" from the cache or, on a
// miss, from the directory and the geocoder.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/mohammed-shakir/campus-buildings/internal/core/model"
	"github.com/mohammed-shakir/campus-buildings/internal/enrich"
)

// Cache holds the enriched snapshot. Load reports false for any unusable
// document; Save errors are informational.
type Cache interface {
	Load(ctx context.Context) ([]model.Building, bool)
	Save(ctx context.Context, buildings []model.Building) error
}

// Fetcher lists the directory, returning an empty slice on any failure.
type Fetcher interface {
	Fetch(ctx context.Context) []model.Building
}

// Enricher annotates buildings in place and reports one outcome per building.
type Enricher interface {
	Enrich(ctx context.Context, buildings []model.Building) []enrich.Outcome
}

// Source says where a Result came from; it drives the X-Cache header.
type Source string

const (
	SourceCache    Source = "cache"
	SourceUpstream Source = "upstream"
	SourceEmpty    Source = "empty" // directory returned nothing, not cached
)

// Result is the answer to one Buildings call. Buildings is never nil.
type Result struct {
	Buildings []model.Building
	Source    Source
}

// Hit reports whether the result came from the cache.
func (r Result) Hit() bool { return r.Source == SourceCache }

// Service runs the cache-or-rebuild flow for the building list.
type Service struct {
	cache    Cache
	fetcher  Fetcher
	enricher Enricher
	logger   *slog.Logger
}

// New wires a Service; a nil logger falls back to slog.Default.
func New(cache Cache, fetcher Fetcher, enricher Enricher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{cache: cache, fetcher: fetcher, enricher: enricher, logger: logger}
}

// Buildings never fails: upstream problems shrink the answer instead.
// The returned slice is never nil. Once the cache misses, the rebuild runs
// detached from ctx cancellation: the snapshot it persists has no expiry, so
// a caller going away must not leave a half-enriched list behind.
func (s *Service) Buildings(ctx context.Context) Result {
	if cached, ok := s.cache.Load(ctx); ok {
		s.logger.DebugContext(ctx, "serving cached buildings", "buildings", len(cached))
		return Result{Buildings: nonNil(cached), Source: SourceCache}
	}

	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	buildings := s.fetcher.Fetch(ctx)
	if len(buildings) == 0 {
		s.logger.WarnContext(ctx, "directory returned no buildings, skipping cache write")
		return Result{Buildings: []model.Building{}, Source: SourceEmpty}
	}

	outcomes := s.enricher.Enrich(ctx, buildings)
	counts := enrich.Count(outcomes)

	// save errors are already logged by the cache
	_ = s.cache.Save(ctx, buildings)

	s.logger.InfoContext(ctx, "buildings refreshed",
		"buildings", len(buildings),
		"enriched", counts[enrich.StatusEnriched],
		"failed", counts[enrich.StatusFailed],
		"no_result", counts[enrich.StatusNoResult],
		"skipped", counts[enrich.StatusSkipped],
		"duration", time.Since(start).String())
	return Result{Buildings: buildings, Source: SourceUpstream}
}

func nonNil(b []model.Building) []model.Building {
	if b == nil {
		return []model.Building{}
	}
	return b
}
