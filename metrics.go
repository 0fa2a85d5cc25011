package vessel

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes container activity to prometheus. All collectors are
// optional: a container built without WithMetrics records nothing.
type Metrics struct {
	componentsCreated prometheus.Counter
	resolutions       *prometheus.CounterVec
	mergedCacheHits   prometheus.Counter
	mergedCacheMisses prometheus.Counter

	registerer prometheus.Registerer
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		componentsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vessel",
			Name:      "components_created_total",
			Help:      "Number of component instances created.",
		}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vessel",
			Name:      "resolutions_total",
			Help:      "Number of resolution requests by outcome.",
		}, []string{"outcome"}),
		mergedCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vessel",
			Subsystem: "merged_cache",
			Name:      "hits_total",
			Help:      "Merged-definition cache hits.",
		}),
		mergedCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vessel",
			Subsystem: "merged_cache",
			Name:      "misses_total",
			Help:      "Merged-definition cache misses.",
		}),
		registerer: reg,
	}

	reg.MustRegister(m.componentsCreated, m.resolutions, m.mergedCacheHits, m.mergedCacheMisses)
	return m
}

// observeSingletons registers the live-singleton gauge against a count
// callback. Called once the singleton cache exists.
func (m *Metrics) observeSingletons(count func() int) {
	m.registerer.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "vessel",
		Name:      "active_singletons",
		Help:      "Number of completed singleton instances currently cached.",
	}, func() float64 {
		return float64(count())
	}))
}

func (m *Metrics) created() {
	m.componentsCreated.Inc()
}

func (m *Metrics) resolution(err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.resolutions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) mergedLookup(hit bool) {
	if hit {
		m.mergedCacheHits.Inc()
	} else {
		m.mergedCacheMisses.Inc()
	}
}
