// Package metricswrap reports hotness tracker size and threshold crossings.
package metricswrap

import (
	"fmt"

	xx "github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"github.com/mohammed-shakir/geopin/internal/core/observability"
	"github.com/mohammed-shakir/geopin/internal/hotness"
)

type Sizer interface{ Size() int }

type Options struct {
	// Tier labels the hot_keys gauge.
	Tier string
	// HotThreshold enables threshold logging when positive.
	HotThreshold float64
	// LogSample is the fraction of keys whose crossings are logged.
	LogSample float64
	Logger    zerolog.Logger
}

type WithMetrics struct {
	inner hotness.Interface
	opts  Options
}

func New(inner hotness.Interface, opts Options) *WithMetrics {
	if opts.Tier == "" {
		opts.Tier = "tracked"
	}
	return &WithMetrics{inner: inner, opts: opts}
}

func (w *WithMetrics) Inc(key string) {
	w.inner.Inc(key)
	if w.opts.HotThreshold > 0 {
		score := w.inner.Score(key)
		if score >= w.opts.HotThreshold && shouldLog(w.opts.LogSample, key) {
			w.opts.Logger.Info().
				Str("event", "hotness_threshold").
				Float64("score", score).
				Str("tier", w.opts.Tier).
				Str("key_hash", fmt.Sprintf("%08x", xx.Sum64String(key))).
				Msg("hot key above threshold")
		}
	}
	w.report()
}

func (w *WithMetrics) Score(key string) float64 {
	return w.inner.Score(key)
}

func (w *WithMetrics) Reset(keys ...string) {
	w.inner.Reset(keys...)
	w.report()
}

func (w *WithMetrics) report() {
	if s, ok := w.inner.(Sizer); ok {
		observability.SetHotKeysGauge(w.opts.Tier, s.Size())
	}
}

func shouldLog(sample float64, key string) bool {
	if sample <= 0 {
		return false
	}
	if sample >= 1 {
		return true
	}
	const denom = 10000 // 0.01 => 100/10000
	threshold := uint64(sample*denom + 0.5)
	if threshold == 0 {
		return false
	}
	h := xx.Sum64String(key)
	return (h % denom) < threshold
}
