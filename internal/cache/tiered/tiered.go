// Package tiered layers an in-process store in front of a shared one.
package tiered

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mohammed-shakir/geopin/internal/cache"
)

// Store reads through L1 to L2 and writes to both. Entries found only in L2
// are copied into L1 for at most L1TTL.
type Store struct {
	L1    cache.Interface
	L2    cache.Interface
	L1TTL time.Duration
}

func New(l1, l2 cache.Interface, l1TTL time.Duration) *Store {
	return &Store{L1: l1, L2: l2, L1TTL: l1TTL}
}

// MGet may return L1 hits together with a non-nil error when L2 fails.
func (s *Store) MGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	out, err := s.L1.MGet(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("l1 mget: %w", err)
	}
	if len(out) == len(keys) {
		return out, nil
	}

	missing := make([]string, 0, len(keys)-len(out))
	for _, k := range keys {
		if _, ok := out[k]; !ok {
			missing = append(missing, k)
		}
	}

	found, err := s.L2.MGet(ctx, missing)
	if err != nil {
		return out, fmt.Errorf("l2 mget: %w", err)
	}
	if len(found) == 0 {
		return out, nil
	}
	// backfill is best effort
	_ = s.L1.MSetWithTTL(ctx, found, s.L1TTL)
	for k, v := range found {
		out[k] = v
	}
	return out, nil
}

func (s *Store) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	err := s.L2.Set(ctx, key, val, ttl)
	_ = s.L1.Set(ctx, key, val, s.l1TTL(ttl))
	if err != nil {
		return fmt.Errorf("l2 set: %w", err)
	}
	return nil
}

func (s *Store) MSetWithTTL(ctx context.Context, kv map[string][]byte, ttl time.Duration) error {
	err := s.L2.MSetWithTTL(ctx, kv, ttl)
	_ = s.L1.MSetWithTTL(ctx, kv, s.l1TTL(ttl))
	if err != nil {
		return fmt.Errorf("l2 mset: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return errors.Join(s.L1.Close(), s.L2.Close())
}

func (s *Store) l1TTL(ttl time.Duration) time.Duration {
	if s.L1TTL > 0 && (ttl <= 0 || ttl > s.L1TTL) {
		return s.L1TTL
	}
	return ttl
}
