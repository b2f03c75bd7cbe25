package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mohammed-shakir/geopin/internal/core/observability"
)

func assertHasMetricLine(t *testing.T, body, metric string, wantLabels ...string) {
	t.Helper()
	for ln := range strings.SplitSeq(body, "\n") {
		if !strings.HasPrefix(ln, metric+"{") {
			continue
		}
		ok := true
		for _, s := range wantLabels {
			if !strings.Contains(ln, s) {
				ok = false
				break
			}
		}
		if ok && (len(ln) > 0 && ln[len(ln)-1] >= '0' && ln[len(ln)-1] <= '9') {
			return
		}
	}
	t.Fatalf("expected a %s line with labels %v; got:\n%s", metric, wantLabels, body)
}

func scrape(t *testing.T, p *Provider) string {
	t.Helper()
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	return rr.Body.String()
}

func Test_AppMetrics_CustomRegistry_Smoke(t *testing.T) {
	p := Init(Config{
		Build:     BuildInfo{Version: "test", Revision: "abc123"},
		Schemes:   []string{"digipin", "h3"},
		CacheMode: "tiered",
	})
	observability.Init(p.Registerer(), true)
	t.Cleanup(func() { observability.Init(nil, false) })
	observability.ExposeBuildInfo("test")

	observability.ObserveHTTP("GET", "/v1/encode", 200, 0.003)
	observability.ObserveEncode("digipin", true, 0.00001)
	observability.ObserveEncode("h3", false, 0.00002)
	observability.IncHexGridFallback()
	observability.AddCacheHits("lru", 3)
	observability.AddCacheMisses("redis", 1)
	observability.ObserveCacheOp("mget", nil, 0.002)
	observability.SetHotKeysGauge("tracked", 42)

	body := scrape(t, p)
	assertHasMetricLine(t, body, "geopin_build_info", `version="test"`, `revision="abc123"`)
	assertHasMetricLine(t, body, "geopin_scheme_enabled", `scheme="digipin"`)
	assertHasMetricLine(t, body, "geopin_scheme_enabled", `scheme="h3"`)
	assertHasMetricLine(t, body, "geopin_cache_mode", `mode="tiered"`)
	assertHasMetricLine(t, body, "http_requests_total", `route="/v1/encode"`, `status="200"`)
	assertHasMetricLine(t, body, "encode_total", `scheme="h3"`, `outcome="placeholder"`)
	assertHasMetricLine(t, body, "encode_total", `scheme="digipin"`, `outcome="ok"`)
	assertHasMetricLine(t, body, "cache_results_total", `outcome="hit"`, `tier="lru"`)
	assertHasMetricLine(t, body, "hot_keys", `tier="tracked"`)
	if !strings.Contains(body, "hexgrid_fallback_total 1") {
		t.Fatalf("missing hexgrid_fallback_total; got:\n%s", body)
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Fatalf("go collector not registered")
	}
}

func Test_DefaultBuildVersion(t *testing.T) {
	p := Init(Config{})
	body := scrape(t, p)
	assertHasMetricLine(t, body, "geopin_build_info", `version="dev"`)
	if strings.Contains(body, "geopin_scheme_enabled{") || strings.Contains(body, "geopin_cache_mode{") {
		t.Fatalf("info gauges without labels should stay empty; got:\n%s", body)
	}
}
