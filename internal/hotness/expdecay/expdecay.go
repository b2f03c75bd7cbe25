// Package expdecay scores cache keys by lookup count with exponential decay,
// so a key that stops being requested cools off over a few half-lives.
package expdecay

import (
	"math"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/geopin/internal/hotness"
)

const numShards = 64

// Tracker is safe for concurrent use. Keys are spread over shards by hash.
type Tracker struct {
	HalfLife time.Duration

	now    func() time.Time
	shards [numShards]shard
}

type shard struct {
	mu sync.RWMutex
	m  map[string]entry
}

// entry is a score as of last.
type entry struct {
	score float64
	last  time.Time
}

func (e entry) at(now time.Time, halfLife float64) float64 {
	return decay(e.score, now.Sub(e.last).Seconds(), halfLife)
}

var _ hotness.Interface = (*Tracker)(nil)

// New returns a tracker; a non-positive halfLife means one minute.
func New(halfLife time.Duration) *Tracker {
	if halfLife <= 0 {
		halfLife = time.Minute
	}
	t := &Tracker{HalfLife: halfLife, now: time.Now}
	for i := range t.shards {
		t.shards[i].m = make(map[string]entry)
	}
	return t
}

// Inc decays the key's score to now and adds one.
func (t *Tracker) Inc(key string) {
	if key == "" {
		return
	}
	now := t.now()
	s := t.shardFor(key)

	s.mu.Lock()
	e := s.m[key]
	s.m[key] = entry{score: e.at(now, t.halfLife()) + 1, last: now}
	s.mu.Unlock()
}

func (t *Tracker) Score(key string) float64 {
	if key == "" {
		return 0
	}
	s := t.shardFor(key)

	s.mu.RLock()
	e, ok := s.m[key]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	return e.at(t.now(), t.halfLife())
}

func (t *Tracker) Reset(keys ...string) {
	for _, key := range keys {
		s := t.shardFor(key)
		s.mu.Lock()
		delete(s.m, key)
		s.mu.Unlock()
	}
}

// Sweep drops keys whose decayed score fell below minScore and returns how
// many were removed.
func (t *Tracker) Sweep(minScore float64) int {
	now := t.now()
	hl := t.halfLife()
	removed := 0
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		for k, e := range s.m {
			if e.at(now, hl) < minScore {
				delete(s.m, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Size is the number of tracked keys.
func (t *Tracker) Size() int {
	n := 0
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.RLock()
		n += len(s.m)
		s.mu.RUnlock()
	}
	return n
}

func (t *Tracker) halfLife() float64 { return t.HalfLife.Seconds() }

func (t *Tracker) shardFor(key string) *shard {
	return &t.shards[xxhash.Sum64String(key)%numShards]
}

// decay returns score after dt seconds: score * 2^(-dt/halfLife).
func decay(score, dt, halfLife float64) float64 {
	if score == 0 || dt <= 0 || halfLife <= 0 {
		return score
	}
	return score * math.Exp2(-dt/halfLife)
}
