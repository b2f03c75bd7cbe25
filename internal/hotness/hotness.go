// Package hotness tracks how often each cache key is looked up and maps
// that frequency onto cache lifetimes.
package hotness

import "time"

type Interface interface {
	Inc(key string)
	Score(key string) float64
	Reset(keys ...string)
}

// Tier labels a hotness band.
type Tier string

const (
	Cold Tier = "cold"
	Warm Tier = "warm"
	Hot  Tier = "hot"
)

// TTLPolicy picks a cache lifetime from a hotness score. Scores at or above
// Threshold are hot, at or above Threshold/2 warm, everything else cold.
// A non-positive Threshold puts every key in the cold tier.
type TTLPolicy struct {
	Threshold float64
	Cold      time.Duration
	Warm      time.Duration
	Hot       time.Duration
}

func (p TTLPolicy) Classify(score float64) Tier {
	switch {
	case p.Threshold <= 0:
		return Cold
	case score >= p.Threshold:
		return Hot
	case score >= p.Threshold/2:
		return Warm
	default:
		return Cold
	}
}

func (p TTLPolicy) TTL(score float64) (time.Duration, Tier) {
	switch t := p.Classify(score); t {
	case Hot:
		return p.Hot, t
	case Warm:
		return p.Warm, t
	default:
		return p.Cold, t
	}
}
