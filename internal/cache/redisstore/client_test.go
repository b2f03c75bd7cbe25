package redisstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/mohammed-shakir/geopin/internal/core/observability"
	"github.com/mohammed-shakir/geopin/internal/metrics"
)

// creates new client connected to miniredis for testing
func newMini(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)

	rc, err := New(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })
	return rc, mr
}

func TestNew_RequiresAddress(t *testing.T) {
	if _, err := New(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty address")
	}
}

func TestSetMGet_HappyPath_AndMGetFiltersMissing(t *testing.T) {
	rc, _ := newMini(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := rc.Set(ctx, "k1", []byte("v1"), 5*time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := rc.Set(ctx, "k2", []byte("v2"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := rc.MGet(ctx, []string{"k1", "k2", "missing"})
	if err != nil {
		t.Fatalf("MGet: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("MGet size=%d want 2", len(got))
	}
	if string(got["k1"]) != "v1" || string(got["k2"]) != "v2" {
		t.Fatalf("unexpected values: %+v", got)
	}

	empty, err := rc.MGet(ctx, nil)
	if err != nil || len(empty) != 0 {
		t.Fatalf("MGet(nil) = %v, %v", empty, err)
	}
}

func TestMSetWithTTL_WritesAllWithTTL(t *testing.T) {
	rc, mr := newMini(t)
	ctx := context.Background()

	kv := map[string][]byte{"a": []byte("1"), "b": []byte("2"), "c": []byte("3")}
	if err := rc.MSetWithTTL(ctx, kv, 30*time.Second); err != nil {
		t.Fatalf("MSetWithTTL: %v", err)
	}
	for k, v := range kv {
		got, err := mr.Get(k)
		if err != nil || got != string(v) {
			t.Fatalf("key %s = %q, %v", k, got, err)
		}
		if ttl := mr.TTL(k); ttl != 30*time.Second {
			t.Fatalf("key %s ttl=%v want 30s", k, ttl)
		}
	}
	if err := rc.MSetWithTTL(ctx, nil, time.Second); err != nil {
		t.Fatalf("empty MSetWithTTL: %v", err)
	}
}

func TestContextDeadline_IsRespected(t *testing.T) {
	rc, _ := newMini(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := rc.Set(ctx, "k", []byte("v"), time.Second); err == nil {
		t.Fatalf("expected error on Set with canceled context")
	}
	if _, err := rc.MGet(ctx, []string{"k"}); err == nil {
		t.Fatalf("expected error on MGet with canceled context")
	}
	if err := rc.Ping(ctx); err == nil {
		t.Fatalf("expected error on Ping with canceled context")
	}
}

func TestMetrics_Incremented(t *testing.T) {
	p := metrics.Init(metrics.Config{})
	observability.Init(p.Registerer(), true)
	t.Cleanup(func() { observability.Init(nil, false) })

	rc, _ := newMini(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_ = rc.Set(ctx, "m1", []byte("x"), time.Minute)
	_, _ = rc.MGet(ctx, []string{"m1", "m2"})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		`cache_op_total{op="set"`,
		`cache_op_total{op="mget"`,
		`redis_operation_duration_seconds_bucket{op="set"`,
		`cache_results_total{outcome="hit",tier="redis"} 1`,
		`cache_results_total{outcome="miss",tier="redis"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %s; got:\n%s", want, body)
		}
	}
}

func TestAsBytes(t *testing.T) {
	if _, ok := asBytes(nil); ok {
		t.Fatal("nil should be a miss")
	}
	for _, v := range []any{"abc", []byte("abc")} {
		b, ok := asBytes(v)
		if !ok || string(b) != "abc" {
			t.Fatalf("asBytes(%T) = %q, %v", v, b, ok)
		}
	}
	if b, _ := asBytes(int64(42)); string(b) != "42" {
		t.Fatalf("asBytes(int64) = %q", b)
	}
}

func TestSet_NonPositiveTTLNeverExpires(t *testing.T) {
	rc, mr := newMini(t)
	ctx := context.Background()

	if err := rc.Set(ctx, "forever", []byte("v"), -time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	mr.FastForward(24 * time.Hour)
	if got := mr.TTL("forever"); got != 0 {
		t.Fatalf("ttl = %v, want none", got)
	}
	if !mr.Exists("forever") {
		t.Fatal("key expired")
	}
}
