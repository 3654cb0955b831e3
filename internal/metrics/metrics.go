package metrics

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/unkn0wn-root/assetcache"
)

// ResolveOutcome captures how a request was answered.
type ResolveOutcome string

const (
	// ResolveHit indicates the response came from the active generation.
	ResolveHit ResolveOutcome = "hit"
	// ResolveMiss indicates the request was forwarded to the network.
	ResolveMiss ResolveOutcome = "miss"
)

// Recorder publishes Prometheus metrics for cache lifecycle activity. It
// implements assetcache.Hooks so a Manager can feed it directly.
type Recorder struct {
	gatherer prometheus.Gatherer
	handler  http.Handler

	installs       *prometheus.CounterVec
	installLatency prometheus.Histogram
	installEntries prometheus.Gauge
	staleDeletions *prometheus.CounterVec
	resolves       *prometheus.CounterVec
	selfHeals      *prometheus.CounterVec

	mu             sync.Mutex
	activeGen      *prometheus.GaugeVec
	activeGenLabel string
}

var _ assetcache.Hooks = (*Recorder)(nil)

// NewRecorder constructs a Prometheus-backed Recorder. When reg is nil a dedicated
// registry is created so multiple recorders can coexist without conflicting with
// the global default registerer.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	installs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assetcache",
		Subsystem: "install",
		Name:      "total",
		Help:      "Install attempts by outcome.",
	}, []string{"outcome"})

	installLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "assetcache",
		Subsystem: "install",
		Name:      "duration_seconds",
		Help:      "Latency distribution for successful installs.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	installEntries := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "assetcache",
		Subsystem: "install",
		Name:      "entries",
		Help:      "Entries written by the most recent successful install.",
	})

	staleDeletions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assetcache",
		Subsystem: "activate",
		Name:      "stale_deletions_total",
		Help:      "Stale generation deletions attempted during activate.",
	}, []string{"result"})

	resolves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assetcache",
		Subsystem: "resolve",
		Name:      "requests_total",
		Help:      "Requests resolved, by cache outcome.",
	}, []string{"result"})

	selfHeals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assetcache",
		Subsystem: "store",
		Name:      "self_heals_total",
		Help:      "Unreadable entries dropped by the store on read.",
	}, []string{"reason"})

	activeGen := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "assetcache",
		Name:      "active_generation_info",
		Help:      "Set to 1 for the generation currently serving requests.",
	}, []string{"generation"})

	reg.MustRegister(installs, installLatency, installEntries, staleDeletions, resolves, selfHeals, activeGen)

	return &Recorder{
		gatherer:       reg,
		handler:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		installs:       installs,
		installLatency: installLatency,
		installEntries: installEntries,
		staleDeletions: staleDeletions,
		resolves:       resolves,
		selfHeals:      selfHeals,
		activeGen:      activeGen,
	}
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

// Gatherer returns the underlying Prometheus gatherer for tests and advanced
// integrations.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.gatherer
}

// SetActive marks gen as the serving generation, clearing the previous one.
func (r *Recorder) SetActive(gen string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activeGenLabel != "" {
		r.activeGen.DeleteLabelValues(r.activeGenLabel)
	}
	r.activeGenLabel = normalizeLabel(gen)
	r.activeGen.WithLabelValues(r.activeGenLabel).Set(1)
}

func (r *Recorder) InstallCompleted(_ string, entries int, took time.Duration) {
	if r == nil {
		return
	}
	r.installs.WithLabelValues("success").Inc()
	r.installLatency.Observe(took.Seconds())
	r.installEntries.Set(float64(entries))
}

func (r *Recorder) InstallFailed(string, string, error) {
	if r == nil {
		return
	}
	r.installs.WithLabelValues("failure").Inc()
}

func (r *Recorder) StaleDeleted(string) {
	if r == nil {
		return
	}
	r.staleDeletions.WithLabelValues("deleted").Inc()
}

func (r *Recorder) StaleDeleteFailed(string, error) {
	if r == nil {
		return
	}
	r.staleDeletions.WithLabelValues("failed").Inc()
}

func (r *Recorder) ResolveHit(string)  { r.observeResolve(ResolveHit) }
func (r *Recorder) ResolveMiss(string) { r.observeResolve(ResolveMiss) }

func (r *Recorder) observeResolve(outcome ResolveOutcome) {
	if r == nil {
		return
	}
	r.resolves.WithLabelValues(string(outcome)).Inc()
}

func (r *Recorder) SelfHeal(_ string, reason string) {
	if r == nil {
		return
	}
	r.selfHeals.WithLabelValues(normalizeLabel(reason)).Inc()
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
