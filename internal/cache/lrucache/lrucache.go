// Package lrucache is an in-process result store with per-entry expiry.
package lrucache

import (
	"context"
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/geopin/internal/core/observability"
)

// Tier labels hit and miss metrics reported by this store.
const Tier = "lru"

type entry struct {
	val     []byte
	expires time.Time
}

type Store struct {
	c   *lru.Cache[string, entry]
	now func() time.Time
}

// New returns a store holding at most size entries.
func New(size int) (*Store, error) {
	if size <= 0 {
		return nil, errors.New("lrucache: size must be positive")
	}
	c, err := lru.New[string, entry](size)
	if err != nil {
		return nil, err
	}
	return &Store{c: c, now: time.Now}, nil
}

func (s *Store) MGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := s.now()
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		e, ok := s.c.Get(k)
		if !ok {
			continue
		}
		if !e.expires.IsZero() && !now.Before(e.expires) {
			s.c.Remove(k)
			continue
		}
		out[k] = e.val
	}
	observability.AddCacheHits(Tier, len(out))
	observability.AddCacheMisses(Tier, len(keys)-len(out))
	return out, nil
}

// Set stores val under key. A non-positive ttl never expires.
func (s *Store) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.c.Add(key, s.entry(val, ttl))
	return nil
}

func (s *Store) MSetWithTTL(ctx context.Context, kv map[string][]byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for k, v := range kv {
		s.c.Add(k, s.entry(v, ttl))
	}
	return nil
}

func (s *Store) Len() int { return s.c.Len() }

func (s *Store) Close() error {
	s.c.Purge()
	return nil
}

func (s *Store) entry(val []byte, ttl time.Duration) entry {
	e := entry{val: val}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	return e
}
