package redisstore

import (
	"context"

	"github.com/mohammed-shakir/campus-buildings/internal/cache"
)

// Store adapts Client to cache.Store using one key and no expiry.
type Store struct {
	cli *Client
	key string
}

var _ cache.Store = (*Store)(nil)

func NewStore(cli *Client, key string) *Store {
	return &Store{cli: cli, key: key}
}

func (s *Store) Name() string { return "redis" }

func (s *Store) Key() string { return s.key }

func (s *Store) Read(ctx context.Context) ([]byte, error) {
	return s.cli.Get(ctx, s.key)
}

func (s *Store) Write(ctx context.Context, doc []byte) error {
	return s.cli.Set(ctx, s.key, doc, 0)
}

func (s *Store) Delete(ctx context.Context) error {
	return s.cli.Del(ctx, s.key)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.cli.Ping(ctx)
}
