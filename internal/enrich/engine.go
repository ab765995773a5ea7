// Package enrich attaches geocoding metadata to directory buildings.
package enrich

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mohammed-shakir/campus-buildings/internal/core/model"
	"github.com/mohammed-shakir/campus-buildings/internal/core/observability"
)

// Geocoder is the subset of the geocode client the engine needs.
type Geocoder interface {
	ByCoordinates(ctx context.Context, lat, lon *float64) (*model.GeocodeResponse, error)
}

// Status is the per-building enrichment result, also used as the
// enrichment_outcomes_total label.
type Status string

const (
	StatusSkipped  Status = "skipped"   // no address, no call made
	StatusFailed   Status = "failed"    // geocode error or panic
	StatusNoResult Status = "no_result" // provider returned nothing usable
	StatusEnriched Status = "enriched"
)

// Outcome records what happened to one building.
type Outcome struct {
	Index  int
	Code   string
	Status Status
	Err    error
}

// Engine enriches buildings sequentially through a Geocoder.
type Engine struct {
	geocoder Geocoder
	logger   *slog.Logger
}

// NewEngine returns an Engine; a nil logger falls back to slog.Default.
func NewEngine(g Geocoder, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{geocoder: g, logger: logger}
}

// Enrich annotates buildings in place, one at a time and in order. A failure
// on one building never stops the others; every building yields exactly one
// Outcome.
func (e *Engine) Enrich(ctx context.Context, buildings []model.Building) []Outcome {
	out := make([]Outcome, 0, len(buildings))
	for i := range buildings {
		b := &buildings[i]
		st, err := e.enrichOne(ctx, b)
		observability.IncEnrichment(string(st))
		if err != nil {
			e.logger.WarnContext(ctx, "building enrichment failed",
				"building", b.Code, "index", i, "err", err)
		}
		out = append(out, Outcome{Index: i, Code: b.Code, Status: st, Err: err})
	}
	return out
}

func (e *Engine) enrichOne(ctx context.Context, b *model.Building) (st Status, err error) {
	defer func() {
		if r := recover(); r != nil {
			st, err = StatusFailed, fmt.Errorf("panic enriching %q: %v", b.Code, r)
		}
	}()

	if b.Address == nil {
		return StatusSkipped, nil
	}

	resp, err := e.geocoder.ByCoordinates(ctx, b.Latitude, b.Longitude)
	if err != nil {
		return StatusFailed, fmt.Errorf("geocode %q: %w", b.Code, err)
	}
	candidates := resp.Candidates()
	if len(candidates) == 0 {
		return StatusNoResult, nil
	}

	idx, winner := BestMatch(b.TargetName(), candidates)
	if winner == nil {
		return StatusNoResult, nil
	}
	if winner.PlaceID != nil && winner.Name() != nil {
		e.logger.InfoContext(ctx, "match selected",
			"building", b.Code, "candidate", idx, "place", *winner.PlaceID, "name", *winner.Name())
	}
	b.GeocodeInfo = winner
	return StatusEnriched, nil
}

// Count tallies outcomes by status.
func Count(outcomes []Outcome) map[Status]int {
	m := make(map[Status]int, 4)
	for _, o := range outcomes {
		m[o.Status]++
	}
	return m
}
