package encoder_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/mohammed-shakir/geopin/internal/cache/keys"
	"github.com/mohammed-shakir/geopin/internal/cache/lrucache"
	"github.com/mohammed-shakir/geopin/internal/core/model"
	"github.com/mohammed-shakir/geopin/internal/encoder"
	"github.com/mohammed-shakir/geopin/internal/hotness"
	"github.com/mohammed-shakir/geopin/internal/hotness/expdecay"
	"github.com/mohammed-shakir/geopin/internal/scheme"
)

type stubGrid struct {
	calls int
	err   error
}

func (s *stubGrid) CellAt(_, _ float64, _ int) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "893da6b5a0bffff", nil
}

// recStore wraps the LRU store and records the TTL of every write.
type recStore struct {
	*lrucache.Store
	ttls    map[string]time.Duration
	mgets   int
	failGet error
}

func newRecStore(t *testing.T) *recStore {
	t.Helper()
	s, err := lrucache.New(64)
	if err != nil {
		t.Fatalf("lrucache.New: %v", err)
	}
	return &recStore{Store: s, ttls: map[string]time.Duration{}}
}

func (r *recStore) MGet(ctx context.Context, ks []string) (map[string][]byte, error) {
	r.mgets++
	if r.failGet != nil {
		return nil, r.failGet
	}
	return r.Store.MGet(ctx, ks)
}

func (r *recStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	r.ttls[key] = ttl
	return r.Store.Set(ctx, key, val, ttl)
}

func (r *recStore) MSetWithTTL(ctx context.Context, kv map[string][]byte, ttl time.Duration) error {
	for k := range kv {
		r.ttls[k] = ttl
	}
	return r.Store.MSetWithTTL(ctx, kv, ttl)
}

var policy = hotness.TTLPolicy{Threshold: 3.5, Cold: time.Minute, Warm: 10 * time.Minute, Hot: time.Hour}

func newService(t *testing.T, grid *stubGrid, store *recStore) *encoder.Service {
	t.Helper()
	set, err := scheme.NewSet(scheme.Default, scheme.Deps{HexGrid: grid})
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	cfg := encoder.Config{TTL: policy, OpTimeout: time.Second, Hot: expdecay.New(time.Hour)}
	if store != nil {
		cfg.Store = store
	}
	return encoder.New(set, cfg)
}

func dakBhawan() model.EncodeRequest {
	return model.EncodeRequest{Coordinate: model.Coordinate{Lat: 28.622788, Lon: 77.213033}, H3Res: 9}
}

func TestEncode_AllSchemes(t *testing.T) {
	svc := newService(t, &stubGrid{}, nil)

	got, err := svc.Encode(context.Background(), dakBhawan())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := model.Codes{
		scheme.DIGIPIN:  "39J-49L-L8T4",
		scheme.PlusCode: "7JWVJ6F7+2H",
		scheme.ULPIN:    "86JEZKDA6L11H0",
		scheme.H3:       "893da6b5a0bffff",
	}
	for k, v := range want {
		if got.Codes[k] != v {
			t.Fatalf("%s: got %q want %q", k, got.Codes[k], v)
		}
	}
	if got.Cached {
		t.Fatalf("first lookup without a store cannot be cached")
	}
	if s := svc.Schemes(); len(s) != 4 || s[0] != scheme.DIGIPIN {
		t.Fatalf("Schemes() = %v", s)
	}
}

func TestEncode_InvalidRequests(t *testing.T) {
	svc := newService(t, &stubGrid{}, nil)
	bad := []model.EncodeRequest{
		{Coordinate: model.Coordinate{Lat: math.NaN(), Lon: 1}},
		{Coordinate: model.Coordinate{Lat: 1, Lon: math.Inf(1)}},
		{Coordinate: model.Coordinate{Lat: 1, Lon: 1}, Floor: 10_000},
		{Coordinate: model.Coordinate{Lat: 1, Lon: 1}, H3Res: 16},
		{Coordinate: model.Coordinate{Lat: 1, Lon: 1}, H3Res: -1},
	}
	for _, r := range bad {
		if _, err := svc.Encode(context.Background(), r); !errors.Is(err, encoder.ErrInvalidRequest) {
			t.Fatalf("Encode(%+v) err=%v want ErrInvalidRequest", r, err)
		}
	}
}

func TestEncode_OutOfIndiaStillEncodesOtherSchemes(t *testing.T) {
	svc := newService(t, &stubGrid{}, nil)
	r := model.EncodeRequest{Coordinate: model.Coordinate{Lat: 47.0000625, Lon: 8.0000625}}
	got, err := svc.Encode(context.Background(), r)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got.Codes[scheme.DIGIPIN] != "Out of Range" {
		t.Fatalf("digipin = %q", got.Codes[scheme.DIGIPIN])
	}
	if got.Codes[scheme.PlusCode] != "8FVC2222+22" {
		t.Fatalf("pluscode = %q", got.Codes[scheme.PlusCode])
	}
}

func TestEncode_PlaceholdersOnSchemeErrors(t *testing.T) {
	store := newRecStore(t)
	grid := &stubGrid{err: errors.New("grid down")}
	svc := newService(t, grid, store)

	r := dakBhawan()
	r.CodeLength = 7
	got, err := svc.Encode(context.Background(), r)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got.Codes[scheme.H3] != scheme.H3Placeholder {
		t.Fatalf("h3 = %q", got.Codes[scheme.H3])
	}
	if got.Codes[scheme.PlusCode] != scheme.PlusCodePlaceholder {
		t.Fatalf("pluscode = %q", got.Codes[scheme.PlusCode])
	}
	if got.Codes[scheme.DIGIPIN] != "39J-49L-L8T4" {
		t.Fatalf("digipin = %q", got.Codes[scheme.DIGIPIN])
	}
	if grid.calls != 1 {
		t.Fatalf("hex grid called %d times, want 1", grid.calls)
	}
	if len(store.ttls) != 0 {
		t.Fatalf("results with placeholders must not be cached: %v", store.ttls)
	}
}

func TestEncode_SecondLookupIsCached(t *testing.T) {
	store := newRecStore(t)
	grid := &stubGrid{}
	svc := newService(t, grid, store)

	first, err := svc.Encode(context.Background(), dakBhawan())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	second, err := svc.Encode(context.Background(), dakBhawan())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if first.Cached || !second.Cached {
		t.Fatalf("cached flags: first=%v second=%v", first.Cached, second.Cached)
	}
	if grid.calls != 1 {
		t.Fatalf("hex grid called %d times, want 1", grid.calls)
	}
	for k, v := range first.Codes {
		if second.Codes[k] != v {
			t.Fatalf("%s: cached %q fresh %q", k, second.Codes[k], v)
		}
	}
}

func TestEncode_DefaultLengthSharesCacheEntry(t *testing.T) {
	store := newRecStore(t)
	svc := newService(t, &stubGrid{}, store)

	r := dakBhawan()
	_, _ = svc.Encode(context.Background(), r)
	r.CodeLength = 10
	got, _ := svc.Encode(context.Background(), r)
	if !got.Cached {
		t.Fatalf("explicit default length should hit the same entry")
	}
}

func TestEncode_TTLFollowsHotness(t *testing.T) {
	store := newRecStore(t)
	svc := newService(t, &stubGrid{}, store)

	r := dakBhawan()
	norm := r
	norm.CodeLength = 10
	key := keys.Key(norm, svc.Schemes())

	_, _ = svc.Encode(context.Background(), r)
	if got := store.ttls[key]; got != policy.Cold {
		t.Fatalf("first fill ttl=%v want cold %v", got, policy.Cold)
	}

	// purge the L1 so each lookup refills the entry
	_ = store.Store.Close()
	_, _ = svc.Encode(context.Background(), r)
	if got := store.ttls[key]; got != policy.Warm {
		t.Fatalf("second fill ttl=%v want warm %v", got, policy.Warm)
	}
	_ = store.Store.Close()
	_, _ = svc.Encode(context.Background(), r)
	_ = store.Store.Close()
	_, _ = svc.Encode(context.Background(), r)
	if got := store.ttls[key]; got != policy.Hot {
		t.Fatalf("fourth fill ttl=%v want hot %v", got, policy.Hot)
	}
}

func TestEncode_CacheFailureIsNotFatal(t *testing.T) {
	store := newRecStore(t)
	store.failGet = errors.New("redis down")
	svc := newService(t, &stubGrid{}, store)

	got, err := svc.Encode(context.Background(), dakBhawan())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got.Codes[scheme.DIGIPIN] != "39J-49L-L8T4" {
		t.Fatalf("digipin = %q", got.Codes[scheme.DIGIPIN])
	}
}

func TestEncodeBatch_OneLookupAndOrder(t *testing.T) {
	store := newRecStore(t)
	svc := newService(t, &stubGrid{}, store)

	_, _ = svc.Encode(context.Background(), dakBhawan())
	store.mgets = 0

	reqs := []model.EncodeRequest{
		{Coordinate: model.Coordinate{Lat: 47.0000625, Lon: 8.0000625}},
		dakBhawan(),
		{Coordinate: model.Coordinate{Lat: 12.9716, Lon: 77.5946}},
	}
	got, err := svc.EncodeBatch(context.Background(), reqs)
	if err != nil {
		t.Fatalf("EncodeBatch: %v", err)
	}
	if store.mgets != 1 {
		t.Fatalf("batch issued %d MGETs, want 1", store.mgets)
	}
	if len(got) != 3 {
		t.Fatalf("len=%d", len(got))
	}
	if got[0].Cached || !got[1].Cached || got[2].Cached {
		t.Fatalf("cached flags: %v %v %v", got[0].Cached, got[1].Cached, got[2].Cached)
	}
	if got[0].Codes[scheme.PlusCode] != "8FVC2222+22" || got[2].Codes[scheme.ULPIN] != "74UBYZDAYYYZH0" {
		t.Fatalf("results out of order: %+v", got)
	}
	if store.Len() != 3 {
		t.Fatalf("misses should be filled, len=%d", store.Len())
	}
}

func TestEncodeBatch_Limits(t *testing.T) {
	svc := newService(t, &stubGrid{}, nil)

	big := make([]model.EncodeRequest, encoder.MaxBatch+1)
	if _, err := svc.EncodeBatch(context.Background(), big); !errors.Is(err, encoder.ErrInvalidRequest) {
		t.Fatalf("oversized batch err=%v", err)
	}

	bad := []model.EncodeRequest{dakBhawan(), {Coordinate: model.Coordinate{Lat: math.NaN()}}}
	if _, err := svc.EncodeBatch(context.Background(), bad); !errors.Is(err, encoder.ErrInvalidRequest) {
		t.Fatalf("invalid point err=%v", err)
	}

	got, err := svc.EncodeBatch(context.Background(), nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("empty batch = %v, %v", got, err)
	}
}

func TestValidate_SchemeParamsOnlyCheckedWhenEnabled(t *testing.T) {
	set, err := scheme.NewSet([]string{scheme.DIGIPIN, scheme.ULPIN}, scheme.Deps{})
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	svc := encoder.New(set, encoder.Config{})

	req := dakBhawan()
	req.H3Res = 99
	req.CodeLength = 500
	got, err := svc.Encode(context.Background(), req)
	if err != nil {
		t.Fatalf("Encode with unused res and len: %v", err)
	}
	if got.Codes[scheme.DIGIPIN] != "39J-49L-L8T4" {
		t.Fatalf("digipin = %q", got.Codes[scheme.DIGIPIN])
	}

	norm, err := svc.Validate(req)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if norm.H3Res != 0 {
		t.Fatalf("unused res kept as %d", norm.H3Res)
	}
}

func TestValidate_CodeLengthCap(t *testing.T) {
	svc := newService(t, &stubGrid{}, nil)

	req := dakBhawan()
	req.CodeLength = encoder.MaxCodeLength
	got, err := svc.Encode(context.Background(), req)
	if err != nil {
		t.Fatalf("Encode at the cap: %v", err)
	}
	if n := len(got.Codes[scheme.PlusCode]); n != encoder.MaxCodeLength+1 {
		t.Fatalf("plus code has %d chars, want %d", n, encoder.MaxCodeLength+1)
	}

	req.CodeLength = encoder.MaxCodeLength + 1
	if _, err := svc.Encode(context.Background(), req); !errors.Is(err, encoder.ErrInvalidRequest) {
		t.Fatalf("err = %v, want ErrInvalidRequest", err)
	}
}
