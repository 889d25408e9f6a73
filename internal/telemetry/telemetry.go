package telemetry

import (
	"net/http"
	"time"

	"codeberg.org/mutker/envsim/internal/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type service struct {
	cycles    *prometheus.CounterVec
	inserted  prometheus.Counter
	evicted   prometheus.Counter
	duration  prometheus.Histogram
	storeSize prometheus.Gauge
	running   prometheus.Gauge
}

// No-op implementation
type noopRecorder struct{}

// NewService registers the scheduler metrics on registry. A disabled config
// yields a recorder that drops everything.
func NewService(cfg Config, registry prometheus.Registerer) (Recorder, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		return Noop(), nil
	}

	s := &service{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "cycles_total",
			Help:      "Rotation cycles by outcome.",
		}, []string{"result"}),
		inserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "readings_inserted_total",
			Help:      "Readings generated and persisted.",
		}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "readings_evicted_total",
			Help:      "Readings removed by the retention policy.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of rotation cycles.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		storeSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "store_readings",
			Help:      "Readings currently held by the store.",
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "scheduler_running",
			Help:      "1 while the background scheduler is running.",
		}),
	}

	for _, c := range []prometheus.Collector{s.cycles, s.inserted, s.evicted, s.duration, s.storeSize, s.running} {
		if err := registry.Register(c); err != nil {
			return nil, errFactory.Wrap(ErrRegisterFailed, err)
		}
	}

	return s, nil
}

func (s *service) ObserveCycle(outcome Outcome, duration time.Duration, inserted, evicted int64) {
	s.cycles.WithLabelValues(string(outcome)).Inc()
	s.duration.Observe(duration.Seconds())
	if inserted > 0 {
		s.inserted.Add(float64(inserted))
	}
	if evicted > 0 {
		s.evicted.Add(float64(evicted))
	}
}

func (s *service) SetStoreSize(n int64) {
	s.storeSize.Set(float64(n))
}

func (s *service) SetRunning(running bool) {
	if running {
		s.running.Set(1)
		return
	}
	s.running.Set(0)
}

// Handler exposes the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Noop returns a recorder that discards all observations.
func Noop() Recorder {
	return noopRecorder{}
}

func (noopRecorder) ObserveCycle(Outcome, time.Duration, int64, int64) {}
func (noopRecorder) SetStoreSize(int64)                               {}
func (noopRecorder) SetRunning(bool)                                  {}
