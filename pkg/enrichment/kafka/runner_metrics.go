package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metricSet struct {
	msgs     *prometheus.CounterVec
	proc     prometheus.Histogram
	lagGauge prometheus.Gauge
}

func newMetricSet(r prometheus.Registerer) *metricSet {
	m := &metricSet{
		msgs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enrich_msgs_total",
				Help: "Count of pointer events by result.",
			},
			[]string{"result"},
		),
		proc: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "enrich_processing_seconds",
				Help:    "Decode, encode and publish time for one message.",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15),
			},
		),
		lagGauge: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "enrich_lag_seconds",
				Help: "Approximate lag: now - message.timestamp.",
			},
		),
	}
	if r != nil {
		r.MustRegister(m.msgs, m.proc, m.lagGauge)
	}
	return m
}
