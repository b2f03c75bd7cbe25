// Package metrics owns the Prometheus registry served on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type BuildInfo struct {
	Version   string
	Revision  string
	Branch    string
	BuildDate string
}

// Config describes the deployment. Schemes and CacheMode are exported as
// info gauges so dashboards can split encode traffic by what is switched on.
type Config struct {
	Build     BuildInfo
	Schemes   []string
	CacheMode string
}

type Provider struct {
	reg *prometheus.Registry
}

func Init(cfg Config) *Provider {
	reg := prometheus.NewRegistry()

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	build := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "geopin_build_info",
			Help: "Build info for this binary (value is always 1).",
		},
		[]string{"version", "revision", "branch", "build_date"},
	)
	schemes := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "geopin_scheme_enabled",
			Help: "Encoding schemes enabled in this process (value is always 1).",
		},
		[]string{"scheme"},
	)
	cacheMode := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "geopin_cache_mode",
			Help: "Result cache mode of this process (value is always 1).",
		},
		[]string{"mode"},
	)
	reg.MustRegister(build, schemes, cacheMode)

	v := cfg.Build
	if v.Version == "" {
		v.Version = "dev"
	}
	build.WithLabelValues(v.Version, v.Revision, v.Branch, v.BuildDate).Set(1)
	for _, s := range cfg.Schemes {
		schemes.WithLabelValues(s).Set(1)
	}
	if cfg.CacheMode != "" {
		cacheMode.WithLabelValues(cfg.CacheMode).Set(1)
	}

	return &Provider{reg: reg}
}

func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{})
}

func (p *Provider) Registerer() prometheus.Registerer { return p.reg }
