package rcu

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	grace prometheus.Histogram
}

func newMetrics(d *Domain, reg prometheus.Registerer) *metrics {
	m := &metrics{
		grace: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rcu_grace_period_seconds",
			Help:    "Time from sealing a callback batch to retiring it.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
	}
	reg.MustRegister(
		m.grace,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "rcu_epoch",
			Help: "Current global epoch.",
		}, func() float64 { return float64(d.epoch.Load()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "rcu_threads",
			Help: "Registered threads.",
		}, func() float64 { return float64(d.Threads()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "rcu_sealed_batches",
			Help: "Sealed batches waiting for a grace period.",
		}, func() float64 { return float64(d.sealed.Len()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "rcu_postponed_total",
			Help: "Callbacks postponed.",
		}, func() float64 { return float64(d.postponed.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "rcu_callbacks_total",
			Help: "Callbacks executed.",
		}, func() float64 { return float64(d.executed.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "rcu_batches_retired_total",
			Help: "Callback batches retired.",
		}, func() float64 { return float64(d.retired.Load()) }),
	)
	return m
}
