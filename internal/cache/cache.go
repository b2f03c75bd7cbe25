// Package cache defines the store used to memoize encode results.
package cache

import (
	"context"
	"time"
)

// Interface is implemented by every result store. MGet omits missing keys
// from the returned map.
type Interface interface {
	MGet(ctx context.Context, keys []string) (map[string][]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	MSetWithTTL(ctx context.Context, kv map[string][]byte, ttl time.Duration) error
	Close() error
}

// Mode selects the backing store.
type Mode string

const (
	ModeNone   Mode = "none"
	ModeLRU    Mode = "lru"
	ModeRedis  Mode = "redis"
	ModeTiered Mode = "tiered"
)

// ParseMode returns the mode named by s, or false if s is not a known mode.
func ParseMode(s string) (Mode, bool) {
	switch m := Mode(s); m {
	case ModeNone, ModeLRU, ModeRedis, ModeTiered:
		return m, true
	case "":
		return ModeNone, true
	}
	return "", false
}
