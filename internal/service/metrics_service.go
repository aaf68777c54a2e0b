package service

import (
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation of the planner.
type MetricsService struct {
	registry      *prometheus.Registry
	handler       http.Handler
	solveDuration *prometheus.HistogramVec
	solveTotal    *prometheus.CounterVec
	hardScore     prometheus.Gauge
	queueDepth    prometheus.Gauge
	cacheLatency  prometheus.Observer
	cacheWrite    prometheus.Observer
	cacheHitRatio prometheus.Gauge
	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter
	feedDuration  *prometheus.HistogramVec

	cacheHitCount  uint64
	cacheMissCount uint64
	solveCount     uint64
}

// MetricsSnapshot is a point-in-time summary of the counters.
type MetricsSnapshot struct {
	SolvesTotal   uint64    `json:"solvesTotal"`
	CacheHits     uint64    `json:"cacheHits"`
	CacheMisses   uint64    `json:"cacheMisses"`
	CacheHitRatio float64   `json:"cacheHitRatio"`
	Goroutines    int       `json:"goroutines"`
	GeneratedAt   time.Time `json:"generatedAt"`
}

// NewMetricsService registers the planner collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	solveDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "planner_solve_duration_seconds",
		Help:    "Wall-clock duration of plan solves",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
	}, []string{"strategy"})

	solveTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_solves_total",
		Help: "Total number of plan solves by outcome",
	}, []string{"strategy", "outcome"})

	hardScore := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "planner_last_hard_score",
		Help: "Hard score of the most recent searched plan",
	})

	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "planner_queue_depth",
		Help: "Solves accepted but not yet started",
	})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "planner_cache_latency_seconds",
		Help:    "Latency for plan cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "planner_cache_write_seconds",
		Help:    "Latency for plan cache writes",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "planner_cache_hit_ratio",
		Help: "Ratio of plan cache hits to total lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "planner_cache_hits_total",
		Help: "Total plan cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "planner_cache_misses_total",
		Help: "Total plan cache misses",
	})

	feedDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "planner_task_feed_duration_seconds",
		Help:    "Duration of task feed queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(solveDuration, solveTotal, hardScore, queueDepth, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses, feedDuration, goroutines)

	return &MetricsService{
		registry:      registry,
		handler:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		solveDuration: solveDuration,
		solveTotal:    solveTotal,
		hardScore:     hardScore,
		queueDepth:    queueDepth,
		cacheLatency:  cacheLatency,
		cacheWrite:    cacheWrite,
		cacheHitRatio: cacheHitRatio,
		cacheHits:     cacheHits,
		cacheMisses:   cacheMisses,
		feedDuration:  feedDuration,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the underlying registry for tests and embedding.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveSolve records one finished solve. outcome is "feasible",
// "infeasible" or "error".
func (m *MetricsService) ObserveSolve(strategy, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.solveDuration.WithLabelValues(strategy).Observe(duration.Seconds())
	m.solveTotal.WithLabelValues(strategy, outcome).Inc()
	atomic.AddUint64(&m.solveCount, 1)
}

// SetHardScore publishes the hard score of the latest searched plan.
func (m *MetricsService) SetHardScore(hard int64) {
	if m == nil {
		return
	}
	m.hardScore.Set(float64(hard))
}

// SetQueueDepth publishes the number of waiting solves.
func (m *MetricsService) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration of cache writes.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveTaskFeed records the duration of a task feed query.
func (m *MetricsService) ObserveTaskFeed(source string, duration time.Duration) {
	if m == nil {
		return
	}
	m.feedDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// Snapshot returns aggregated counters.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	var ratio float64
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return MetricsSnapshot{
		SolvesTotal:   atomic.LoadUint64(&m.solveCount),
		CacheHits:     hits,
		CacheMisses:   misses,
		CacheHitRatio: ratio,
		Goroutines:    runtime.NumGoroutine(),
		GeneratedAt:   time.Now().UTC(),
	}
}
