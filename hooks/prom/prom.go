// Package prom exports querycache hook events as Prometheus metrics.
//
// Keys are never used as label values; every series is bounded.
package prom

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/unkn0wn-root/querycache"
)

const namespace = "querycache"

// Recorder implements querycache.Hooks on top of Prometheus collectors.
type Recorder struct {
	gatherer prometheus.Gatherer
	handler  http.Handler

	lookups       *prometheus.CounterVec
	coalesced     prometheus.Counter
	storeFailures *prometheus.CounterVec
	lockEvents    *prometheus.CounterVec
	lockFailures  *prometheus.CounterVec
	lockWait      prometheus.Histogram
	invalidated   prometheus.Counter
}

var _ querycache.Hooks = (*Recorder)(nil)

// NewRecorder registers the querycache collectors on reg. When reg is nil a
// dedicated registry is created.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	r := &Recorder{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Read lookups by result.",
		}, []string{"result"}),
		coalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "coalesced_total",
			Help:      "Callers that joined a query execution already in flight.",
		}),
		storeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "failures_total",
			Help:      "Provider or codec failures degraded to a miss or no-op.",
		}, []string{"op"}),
		lockEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lock",
			Name:      "events_total",
			Help:      "Stampede lock outcomes.",
		}, []string{"event"}),
		lockFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lock",
			Name:      "failures_total",
			Help:      "Lock primitive failures.",
		}, []string{"op"}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "lock",
			Name:      "wait_timeout_seconds",
			Help:      "Time spent polling before a waiter gave up and filled directly.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		invalidated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "invalidated_keys_total",
			Help:      "Keys requested for invalidation.",
		}),
	}

	reg.MustRegister(
		r.lookups, r.coalesced, r.storeFailures,
		r.lockEvents, r.lockFailures, r.lockWait, r.invalidated,
	)
	r.gatherer = reg
	r.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return r
}

// Handler exposes the Prometheus HTTP handler for the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics unavailable", http.StatusServiceUnavailable)
		})
	}
	return r.handler
}

func (r *Recorder) Gatherer() prometheus.Gatherer { return r.gatherer }

func (r *Recorder) CacheHit(string)  { r.lookups.WithLabelValues("hit").Inc() }
func (r *Recorder) CacheMiss(string) { r.lookups.WithLabelValues("miss").Inc() }
func (r *Recorder) Coalesced(string) { r.coalesced.Inc() }

func (r *Recorder) StoreFailure(op, _ string, _ error) {
	r.storeFailures.WithLabelValues(op).Inc()
}

func (r *Recorder) LockAcquired(string)  { r.lockEvents.WithLabelValues("acquired").Inc() }
func (r *Recorder) LockContended(string) { r.lockEvents.WithLabelValues("contended").Inc() }

func (r *Recorder) LockWaitTimeout(_ string, waited time.Duration) {
	r.lockEvents.WithLabelValues("wait_timeout").Inc()
	r.lockWait.Observe(waited.Seconds())
}

func (r *Recorder) LockFailure(op, _ string, _ error) {
	r.lockFailures.WithLabelValues(op).Inc()
}

func (r *Recorder) Invalidated(keys int) {
	if keys > 0 {
		r.invalidated.Add(float64(keys))
	}
}
