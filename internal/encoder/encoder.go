// Package encoder runs every enabled addressing scheme for a coordinate and
// memoizes the combined result.
package encoder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/mohammed-shakir/geopin/internal/cache"
	"github.com/mohammed-shakir/geopin/internal/cache/keys"
	"github.com/mohammed-shakir/geopin/internal/core/model"
	"github.com/mohammed-shakir/geopin/internal/core/observability"
	"github.com/mohammed-shakir/geopin/internal/hotness"
	h3mapper "github.com/mohammed-shakir/geopin/internal/mapper/h3"
	"github.com/mohammed-shakir/geopin/internal/scheme"
	"github.com/mohammed-shakir/geopin/pkg/pluscode"
	"github.com/mohammed-shakir/geopin/pkg/ulpin"
)

// MaxBatch caps the number of points accepted by EncodeBatch.
const MaxBatch = 1000

// MaxCodeLength caps the Plus Code length a request may ask for.
const MaxCodeLength = 64

var ErrInvalidRequest = errors.New("invalid request")

type Config struct {
	// Store memoizes results; nil disables caching.
	Store cache.Interface
	// Hot scores cache keys; nil keeps every entry in the cold tier.
	Hot       hotness.Interface
	TTL       hotness.TTLPolicy
	OpTimeout time.Duration
	// DefaultCodeLength replaces a zero Plus Code length.
	DefaultCodeLength int
	Logger            *slog.Logger
}

type Service struct {
	schemes   []scheme.Encoder
	names     []string
	store     cache.Interface
	hot       hotness.Interface
	ttl       hotness.TTLPolicy
	opTimeout time.Duration
	codeLen   int
	logger    *slog.Logger

	// parameters only checked when their scheme is enabled
	hasPlusCode bool
	hasH3       bool
}

func New(schemes []scheme.Encoder, cfg Config) *Service {
	names := make([]string, len(schemes))
	for i, s := range schemes {
		names[i] = s.Name()
	}
	hasPlusCode := slices.Contains(names, scheme.PlusCode)
	hasH3 := slices.Contains(names, scheme.H3)
	if !hasPlusCode || cfg.DefaultCodeLength == 0 {
		cfg.DefaultCodeLength = pluscode.DefaultLength
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		schemes:   schemes,
		names:     names,
		store:     cfg.Store,
		hot:       cfg.Hot,
		ttl:       cfg.TTL,
		opTimeout: cfg.OpTimeout,
		codeLen:   cfg.DefaultCodeLength,
		logger:    cfg.Logger,

		hasPlusCode: hasPlusCode,
		hasH3:       hasH3,
	}
}

// Schemes returns the enabled scheme names in output order.
func (s *Service) Schemes() []string {
	return append([]string(nil), s.names...)
}

// Validate checks req and fills defaults. Returned errors wrap
// ErrInvalidRequest.
func (s *Service) Validate(req model.EncodeRequest) (model.EncodeRequest, error) {
	if !req.IsFinite() {
		return req, fmt.Errorf("%w: coordinate must be finite", ErrInvalidRequest)
	}
	if req.Floor < ulpin.MinFloor || req.Floor > ulpin.MaxFloor {
		return req, fmt.Errorf("%w: floor %d outside [%d, %d]",
			ErrInvalidRequest, req.Floor, ulpin.MinFloor, ulpin.MaxFloor)
	}
	if s.hasH3 {
		if err := h3mapper.ValidateRes(req.H3Res); err != nil {
			return req, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	} else {
		req.H3Res = 0
	}
	switch {
	case !s.hasPlusCode || req.CodeLength == 0:
		req.CodeLength = s.codeLen
	case req.CodeLength > MaxCodeLength:
		return req, fmt.Errorf("%w: code length %d exceeds %d", ErrInvalidRequest, req.CodeLength, MaxCodeLength)
	}
	return req, nil
}

// Encode returns the codes of every enabled scheme for req. Only invalid
// requests fail; scheme errors yield the scheme's placeholder.
func (s *Service) Encode(ctx context.Context, req model.EncodeRequest) (model.EncodeResult, error) {
	req, err := s.Validate(req)
	if err != nil {
		return model.EncodeResult{}, err
	}
	key := s.touch(req)

	if cached, ok := s.lookup(ctx, []string{key})[key]; ok {
		return resultFor(req, cached, true), nil
	}

	codes, complete := s.compute(ctx, req)
	if complete {
		s.fill(ctx, key, codes)
	}
	return resultFor(req, codes, false), nil
}

// EncodeBatch encodes every request with one cache round trip. Results are
// returned in request order.
func (s *Service) EncodeBatch(ctx context.Context, reqs []model.EncodeRequest) ([]model.EncodeResult, error) {
	if len(reqs) > MaxBatch {
		return nil, fmt.Errorf("%w: batch of %d exceeds %d", ErrInvalidRequest, len(reqs), MaxBatch)
	}
	norm := make([]model.EncodeRequest, len(reqs))
	ks := make([]string, len(reqs))
	for i, r := range reqs {
		n, err := s.Validate(r)
		if err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
		norm[i] = n
		ks[i] = s.touch(n)
	}

	hits := s.lookup(ctx, ks)

	out := make([]model.EncodeResult, len(norm))
	fills := make(map[time.Duration]map[string][]byte)
	for i, r := range norm {
		if codes, ok := hits[ks[i]]; ok {
			out[i] = resultFor(r, codes, true)
			continue
		}
		codes, complete := s.compute(ctx, r)
		out[i] = resultFor(r, codes, false)
		if !complete || s.store == nil {
			continue
		}
		b, err := json.Marshal(codes)
		if err != nil {
			continue
		}
		ttl := s.ttlFor(ks[i])
		if fills[ttl] == nil {
			fills[ttl] = make(map[string][]byte)
		}
		fills[ttl][ks[i]] = b
		// later duplicates in the same batch are served from this result
		hits[ks[i]] = codes
	}

	for ttl, kv := range fills {
		cctx, cancel := s.withTimeout(ctx)
		if err := s.store.MSetWithTTL(cctx, kv, ttl); err != nil {
			s.logger.WarnContext(ctx, "cache fill failed", "keys", len(kv), "err", err)
		}
		cancel()
	}
	return out, nil
}

// touch records the lookup for hotness and returns the cache key.
func (s *Service) touch(req model.EncodeRequest) string {
	key := keys.Key(req, s.names)
	if s.hot != nil {
		s.hot.Inc(key)
	}
	return key
}

// lookup reads keys from the store. Failures and undecodable entries count
// as misses.
func (s *Service) lookup(ctx context.Context, ks []string) map[string]model.Codes {
	out := make(map[string]model.Codes, len(ks))
	if s.store == nil {
		return out
	}
	cctx, cancel := s.withTimeout(ctx)
	defer cancel()

	raw, err := s.store.MGet(cctx, ks)
	if err != nil {
		s.logger.WarnContext(ctx, "cache lookup failed", "keys", len(ks), "err", err)
	}
	for k, b := range raw {
		var codes model.Codes
		if err := json.Unmarshal(b, &codes); err != nil {
			s.logger.DebugContext(ctx, "dropping undecodable cache entry", "key", k, "err", err)
			continue
		}
		out[k] = codes
	}
	return out
}

func (s *Service) fill(ctx context.Context, key string, codes model.Codes) {
	if s.store == nil {
		return
	}
	b, err := json.Marshal(codes)
	if err != nil {
		return
	}
	cctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.store.Set(cctx, key, b, s.ttlFor(key)); err != nil {
		s.logger.WarnContext(ctx, "cache fill failed", "key", key, "err", err)
	}
}

func (s *Service) ttlFor(key string) time.Duration {
	var score float64
	if s.hot != nil {
		score = s.hot.Score(key)
	}
	ttl, _ := s.ttl.TTL(score)
	return ttl
}

// compute runs every scheme. complete is false when any scheme fell back to
// its placeholder, so that transient failures are not memoized.
func (s *Service) compute(ctx context.Context, req model.EncodeRequest) (codes model.Codes, complete bool) {
	codes = make(model.Codes, len(s.schemes))
	complete = true
	for _, enc := range s.schemes {
		start := time.Now()
		code, err := enc.Encode(req)
		observability.ObserveEncode(enc.Name(), err == nil, time.Since(start).Seconds())
		if err != nil {
			complete = false
			code = enc.Placeholder()
			if enc.Name() == scheme.H3 {
				observability.IncHexGridFallback()
			}
			s.logger.DebugContext(ctx, "scheme fell back to placeholder",
				"scheme", enc.Name(), "coord", req.Coordinate.String(), "err", err)
		}
		codes[enc.Name()] = code
	}
	return codes, complete
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

func resultFor(req model.EncodeRequest, codes model.Codes, cached bool) model.EncodeResult {
	return model.EncodeResult{
		Lat:    req.Lat,
		Lon:    req.Lon,
		Floor:  req.Floor,
		Codes:  codes,
		Cached: cached,
	}
}
