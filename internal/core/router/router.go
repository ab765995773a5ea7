package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mohammed-shakir/campus-buildings/internal/core/config"
	"github.com/mohammed-shakir/campus-buildings/internal/core/model"
	"github.com/mohammed-shakir/campus-buildings/internal/core/observability"
	"github.com/mohammed-shakir/campus-buildings/internal/locate"
	mylog "github.com/mohammed-shakir/campus-buildings/internal/logger"
	"github.com/mohammed-shakir/campus-buildings/internal/pipeline"
)

const (
	RouteBuildingList = "/api/facilities/buildinglist"
	RouteLocate       = "/api/facilities/buildinglist/locate"
)

// BuildingSource produces the enriched building list.
type BuildingSource interface {
	Buildings(ctx context.Context) pipeline.Result
}

// HandleBuildingList always answers 200 with a JSON array; X-Cache tells
// whether the list came from the cache.
func HandleBuildingList(logger *slog.Logger, src BuildingSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}

		res := src.Buildings(r.Context())
		ctx := mylog.WithCacheStatus(r.Context(), cacheStatus(res))

		body, err := json.Marshal(res.Buildings)
		if err != nil {
			logger.ErrorContext(ctx, "encode building list", "err", err)
			body = []byte("[]")
		}

		sw.Header().Set("Content-Type", "application/json")
		sw.Header().Set("X-Cache", xCache(res))
		sw.WriteHeader(http.StatusOK)
		_, _ = sw.Write(body)

		logger.DebugContext(ctx, "building list served",
			"buildings", len(res.Buildings), "source", string(res.Source))
		observability.ObserveHTTP(r.Method, RouteBuildingList, sw.code, time.Since(start).Seconds())
	}
}

type locateResponse struct {
	Building  *model.Building `json:"building"`
	DistanceM *float64        `json:"distance_m,omitempty"`
}

// HandleLocate returns the building nearest to ?lat&lon within ?radius
// metres (cfg.RadiusM by default).
func HandleLocate(logger *slog.Logger, cfg config.LocateCfg, src BuildingSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			observability.ObserveHTTP(r.Method, RouteLocate, sw.code, time.Since(start).Seconds())
		}()

		q, err := ParseLocateRequest(r, cfg.RadiusM)
		if err != nil {
			writeJSONError(sw, http.StatusBadRequest, err)
			return
		}

		res := src.Buildings(r.Context())
		ctx := mylog.WithCacheStatus(r.Context(), cacheStatus(res))
		sw.Header().Set("X-Cache", xCache(res))

		ix, err := locate.NewIndex(res.Buildings, cfg.H3Res)
		if err != nil {
			logger.ErrorContext(ctx, "build locate index", "err", err)
			writeJSONError(sw, http.StatusInternalServerError, errors.New("locate index unavailable"))
			return
		}
		m, ok, err := ix.Nearest(q.Lat, q.Lon, q.RadiusM)
		if err != nil {
			writeJSONError(sw, http.StatusBadRequest, err)
			return
		}
		if !ok {
			writeJSON(sw, http.StatusNotFound, locateResponse{})
			return
		}
		d := math.Round(m.DistanceM*10) / 10
		logger.DebugContext(ctx, "building located",
			"building", m.Building.Code, "distance_m", d, "indexed", ix.Len())
		writeJSON(sw, http.StatusOK, locateResponse{Building: &m.Building, DistanceM: &d})
	}
}

type LocateRequest struct {
	Lat, Lon float64
	RadiusM  float64
}

func ParseLocateRequest(r *http.Request, defaultRadius float64) (LocateRequest, error) {
	qs := r.URL.Query()
	rawLat := strings.TrimSpace(qs.Get("lat"))
	rawLon := strings.TrimSpace(qs.Get("lon"))
	if rawLat == "" || rawLon == "" {
		return LocateRequest{}, errors.New("missing required parameters: lat, lon")
	}
	lat, err := parseFloat(rawLat)
	if err != nil {
		return LocateRequest{}, fmt.Errorf("lat: %w", err)
	}
	lon, err := parseFloat(rawLon)
	if err != nil {
		return LocateRequest{}, fmt.Errorf("lon: %w", err)
	}
	if err := locate.ValidPoint(lat, lon); err != nil {
		return LocateRequest{}, err
	}

	radius := defaultRadius
	if raw := strings.TrimSpace(qs.Get("radius")); raw != "" {
		radius, err = parseFloat(raw)
		if err != nil {
			return LocateRequest{}, fmt.Errorf("radius: %w", err)
		}
	}
	if radius <= 0 || math.IsInf(radius, 0) || math.IsNaN(radius) {
		return LocateRequest{}, errors.New("radius must be a positive number of metres")
	}
	return LocateRequest{Lat: lat, Lon: lon, RadiusM: radius}, nil
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func cacheStatus(res pipeline.Result) string {
	if res.Hit() {
		return "hit"
	}
	return "miss"
}

func xCache(res pipeline.Result) string {
	if res.Hit() {
		return "HIT"
	}
	return "MISS"
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func parseFloat(v string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("parse float: %w", err)
	}
	return f, nil
}
