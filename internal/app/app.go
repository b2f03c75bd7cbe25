// Package app assembles the encoding service from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/mohammed-shakir/geopin/internal/cache"
	"github.com/mohammed-shakir/geopin/internal/cache/lrucache"
	"github.com/mohammed-shakir/geopin/internal/cache/redisstore"
	"github.com/mohammed-shakir/geopin/internal/cache/tiered"
	"github.com/mohammed-shakir/geopin/internal/core/config"
	"github.com/mohammed-shakir/geopin/internal/core/health"
	"github.com/mohammed-shakir/geopin/internal/encoder"
	"github.com/mohammed-shakir/geopin/internal/events"
	"github.com/mohammed-shakir/geopin/internal/hotness"
	"github.com/mohammed-shakir/geopin/internal/hotness/expdecay"
	"github.com/mohammed-shakir/geopin/internal/hotness/metricswrap"
	h3mapper "github.com/mohammed-shakir/geopin/internal/mapper/h3"
	"github.com/mohammed-shakir/geopin/internal/scheme"
	enrichkafka "github.com/mohammed-shakir/geopin/pkg/enrichment/kafka"
)

// sweepEvery is how often cold keys are dropped from the hotness tracker.
const sweepEvery = time.Minute

// sweepFloor is the decayed score under which a key is forgotten.
const sweepFloor = 0.01

type Options struct {
	Logger *slog.Logger
	// ZL receives hotness threshold logs.
	ZL zerolog.Logger
	// Register receives the enrichment runner metrics; nil skips them.
	Register prometheus.Registerer
}

type App struct {
	Encoder *encoder.Service
	Store   cache.Interface
	Hot     *expdecay.Tracker
	Checks  []health.Check
	// Runner is nil unless enrichment is enabled.
	Runner *enrichkafka.Runner

	log       *slog.Logger
	publisher *events.Publisher
	stopSweep context.CancelFunc
	sweepWG   sync.WaitGroup
}

// New builds every component cfg asks for. The caller owns the result and
// must Close it.
func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	a := &App{log: opts.Logger}

	encs, err := scheme.NewSet(cfg.Schemes, scheme.Deps{HexGrid: h3mapper.New()})
	if err != nil {
		return nil, fmt.Errorf("schemes: %w", err)
	}

	store, checks, err := newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Store = store
	a.Checks = checks

	a.Hot = expdecay.New(cfg.HotHalfLife)
	hot := metricswrap.New(a.Hot, metricswrap.Options{
		HotThreshold: cfg.HotThreshold,
		LogSample:    0.01,
		Logger:       opts.ZL,
	})

	a.Encoder = encoder.New(encs, encoder.Config{
		Store: store,
		Hot:   hot,
		TTL: hotness.TTLPolicy{
			Threshold: cfg.HotThreshold,
			Cold:      cfg.CacheTTLCold,
			Warm:      cfg.CacheTTLWarm,
			Hot:       cfg.CacheTTLHot,
		},
		OpTimeout:         cfg.CacheOpTimeout,
		DefaultCodeLength: cfg.PlusCodeLength,
		Logger:            opts.Logger,
	})

	if cfg.Enrichment.Enabled {
		pub, err := events.NewPublisher(cfg.Enrichment.Brokers, cfg.Enrichment.OutputTopic,
			cfg.Enrichment.PublishQueue, opts.Logger)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("enrichment publisher: %w", err)
		}
		a.publisher = pub
		a.Runner = enrichkafka.New(cfg.Enrichment, a.Encoder, pub, enrichkafka.Options{
			Logger:     opts.Logger,
			Register:   opts.Register,
			CodeLength: cfg.PlusCodeLength,
			H3Res:      cfg.H3Res,
		})
	}
	return a, nil
}

// newStore picks the result cache for cfg.CacheMode.
func newStore(ctx context.Context, cfg config.Config) (cache.Interface, []health.Check, error) {
	mode, ok := cache.ParseMode(string(cfg.CacheMode))
	if !ok {
		return nil, nil, fmt.Errorf("unknown cache mode %q", cfg.CacheMode)
	}

	switch mode {
	case cache.ModeNone:
		return nil, nil, nil
	case cache.ModeLRU:
		l1, err := lrucache.New(cfg.LRUSize)
		if err != nil {
			return nil, nil, fmt.Errorf("lru cache: %w", err)
		}
		return l1, nil, nil
	case cache.ModeRedis:
		rc, err := redisstore.New(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("redis client: %w", err)
		}
		return rc, []health.Check{{Name: redisstore.Tier, Ping: rc.Ping}}, nil
	case cache.ModeTiered:
		l1, err := lrucache.New(cfg.LRUSize)
		if err != nil {
			return nil, nil, fmt.Errorf("lru cache: %w", err)
		}
		rc, err := redisstore.New(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("redis client: %w", err)
		}
		return tiered.New(l1, rc, cfg.L1TTL), []health.Check{{Name: redisstore.Tier, Ping: rc.Ping}}, nil
	}
	return nil, nil, fmt.Errorf("unhandled cache mode %q", mode)
}

// Ready returns the enrichment readiness reporter, or nil when enrichment
// is off.
func (a *App) Ready() health.ReadinessReporter {
	if a.Runner == nil {
		return nil
	}
	return a.Runner
}

// Start launches the background work: the hotness sweeper and, when
// enabled, the enrichment consumer.
func (a *App) Start(ctx context.Context) error {
	sctx, cancel := context.WithCancel(ctx)
	a.stopSweep = cancel
	a.sweepWG.Add(1)
	go func() {
		defer a.sweepWG.Done()
		t := time.NewTicker(sweepEvery)
		defer t.Stop()
		for {
			select {
			case <-sctx.Done():
				return
			case <-t.C:
				if n := a.Hot.Sweep(sweepFloor); n > 0 {
					a.log.Debug("hotness sweep", "removed", n, "tracked", a.Hot.Size())
				}
			}
		}
	}()

	if a.Runner != nil {
		if err := a.Runner.Start(ctx); err != nil {
			return fmt.Errorf("enrichment runner: %w", err)
		}
	}
	return nil
}

// Close stops background work and releases the cache and producer.
func (a *App) Close() error {
	if a.stopSweep != nil {
		a.stopSweep()
		a.sweepWG.Wait()
	}
	if a.Runner != nil {
		a.Runner.Stop()
	}
	var errs []error
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}
