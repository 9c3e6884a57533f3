package verification

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors that report verification activity.
type Metrics struct {
	verifications *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	active        prometheus.Gauge
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// DefaultMetrics returns the collectors registered with the global registry.
// They are created once so building several runners never double-registers.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics registers the collectors with reg, reusing collectors that
// are already registered under the same names. Any other registration error
// panics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	verifications := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskbench",
			Subsystem: "verification",
			Name:      "verifications_total",
			Help:      "Verification runs by service and outcome kind.",
		},
		[]string{"service", "outcome"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "taskbench",
			Subsystem: "verification",
			Name:      "verification_duration_seconds",
			Help:      "Wall-clock time of verification processes.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 90, 180, 300, 600},
		},
		[]string{"service"},
	)
	active := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "taskbench",
			Subsystem: "verification",
			Name:      "verifications_active",
			Help:      "Verification processes currently running.",
		},
	)

	for _, collector := range []prometheus.Collector{verifications, duration, active} {
		err := reg.Register(collector)
		if err == nil {
			continue
		}
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			panic(err)
		}
		switch collector.(type) {
		case *prometheus.CounterVec:
			verifications = already.ExistingCollector.(*prometheus.CounterVec)
		case *prometheus.HistogramVec:
			duration = already.ExistingCollector.(*prometheus.HistogramVec)
		case prometheus.Gauge:
			active = already.ExistingCollector.(prometheus.Gauge)
		}
	}

	return &Metrics{
		verifications: verifications,
		duration:      duration,
		active:        active,
	}
}

func (m *Metrics) started() {
	if m == nil {
		return
	}
	m.active.Inc()
}

func (m *Metrics) done() {
	if m == nil {
		return
	}
	m.active.Dec()
}

func (m *Metrics) finished(service string, kind Kind, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(service, string(kind)).Inc()
	if elapsed > 0 {
		m.duration.WithLabelValues(service).Observe(elapsed.Seconds())
	}
}
