// Package cache persists the fully enriched building list as one JSON
// document. The gateway never fails its caller: unreadable documents are a
// miss and failed writes are logged and counted.
package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mohammed-shakir/campus-buildings/internal/core/model"
	"github.com/mohammed-shakir/campus-buildings/internal/core/observability"
)

var ErrNotFound = errors.New("cache document not found")

// Store is a backend holding a single opaque document.
type Store interface {
	// Read returns ErrNotFound when no document exists.
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, doc []byte) error
	// Delete is a no-op when no document exists.
	Delete(ctx context.Context) error
	Ping(ctx context.Context) error
	Name() string
}

type Gateway struct {
	store     Store
	logger    *slog.Logger
	opTimeout time.Duration
}

func New(store Store, logger *slog.Logger, opTimeout time.Duration) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{store: store, logger: logger, opTimeout: opTimeout}
}

// returns context with timeout if set
func (g *Gateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.opTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.opTimeout)
}

// Load returns the cached list and true, or false when the document is
// missing or unusable for any reason.
func (g *Gateway) Load(ctx context.Context) ([]model.Building, bool) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	doc, err := g.store.Read(ctx)
	if err != nil && !errors.Is(err, ErrNotFound) {
		observability.ObserveCacheOp("read", err, time.Since(start).Seconds())
		observability.IncCacheCorrupt()
		g.logger.ErrorContext(ctx, "cache read failed, treating as miss",
			"backend", g.store.Name(), "err", err)
		return nil, false
	}
	observability.ObserveCacheOp("read", nil, time.Since(start).Seconds())
	if errors.Is(err, ErrNotFound) {
		observability.IncCacheMiss()
		g.logger.DebugContext(ctx, "cache document absent", "backend", g.store.Name())
		return nil, false
	}

	buildings, err := decode(doc)
	if err != nil {
		observability.IncCacheCorrupt()
		g.logger.ErrorContext(ctx, "cache decode failed, treating as miss",
			"backend", g.store.Name(), "bytes", len(doc), "err", err)
		return nil, false
	}

	observability.IncCacheHit()
	return buildings, true
}

// Save overwrites the document. The returned error has already been logged.
func (g *Gateway) Save(ctx context.Context, buildings []model.Building) error {
	// the response is already computed; a client going away must not abort the write
	ctx, cancel := g.withTimeout(context.WithoutCancel(ctx))
	defer cancel()

	if buildings == nil {
		buildings = []model.Building{}
	}
	doc, err := json.Marshal(buildings)
	if err != nil {
		err = fmt.Errorf("encode %d buildings: %w", len(buildings), err)
		g.logger.ErrorContext(ctx, "cache write failed", "backend", g.store.Name(), "err", err)
		return err
	}

	start := time.Now()
	err = g.store.Write(ctx, doc)
	observability.ObserveCacheOp("write", err, time.Since(start).Seconds())
	if err != nil {
		g.logger.ErrorContext(ctx, "cache write failed", "backend", g.store.Name(), "err", err)
		return fmt.Errorf("cache write: %w", err)
	}
	g.logger.DebugContext(ctx, "cache written", "backend", g.store.Name(), "buildings", len(buildings), "bytes", len(doc))
	return nil
}

// Purge drops the document so the next request goes upstream.
func (g *Gateway) Purge(ctx context.Context) error {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	err := g.store.Delete(ctx)
	observability.ObserveCacheOp("delete", err, time.Since(start).Seconds())
	if err != nil {
		g.logger.ErrorContext(ctx, "cache purge failed", "backend", g.store.Name(), "err", err)
		return fmt.Errorf("cache purge: %w", err)
	}
	g.logger.InfoContext(ctx, "cache purged", "backend", g.store.Name())
	return nil
}

// Ready probes the backend.
func (g *Gateway) Ready(ctx context.Context) error {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()
	if err := g.store.Ping(ctx); err != nil {
		return fmt.Errorf("%s backend: %w", g.store.Name(), err)
	}
	return nil
}

func (g *Gateway) Backend() string { return g.store.Name() }

func decode(doc []byte) ([]model.Building, error) {
	trimmed := bytes.TrimSpace(doc)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errors.New("document is not a JSON array")
	}
	var out []model.Building
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, fmt.Errorf("decode buildings: %w", err)
	}
	if out == nil {
		out = []model.Building{}
	}
	return out, nil
}
