package toolkit

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	applied  *prometheus.CounterVec
	failures prometheus.Counter
	duration prometheus.Histogram
	lockWait prometheus.Histogram
}

// newMetrics registers the collectors on reg. A nil reg keeps them unregistered.
func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		applied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "toolkit_migrations_applied_total",
			Help: "Migrations committed, by kind.",
		}, []string{"kind"}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "toolkit_migration_failures_total",
			Help: "Migrations rolled back because the script or the history write failed.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "toolkit_migration_duration_seconds",
			Help:    "Script execution time of committed migrations.",
			Buckets: prometheus.DefBuckets,
		}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "toolkit_lock_wait_seconds",
			Help:    "Time spent acquiring the migration lock.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
	}

	if reg == nil {
		return m, nil
	}

	var err error
	if m.applied, err = register(reg, m.applied); err != nil {
		return nil, err
	}
	if m.failures, err = register(reg, m.failures); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}
	if m.lockWait, err = register(reg, m.lockWait); err != nil {
		return nil, err
	}
	return m, nil
}

// register returns the already registered collector when reg has an equal one.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}

	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(T); ok {
			return existing, nil
		}
	}
	return c, err
}

func kindLabel(repeatable bool) string {
	if repeatable {
		return "repeatable"
	}
	return "versioned"
}
