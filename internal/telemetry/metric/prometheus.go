package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chathub"

// Outcome label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultTimeout = "timeout"
	ResultEmpty   = "empty"
	ResultCorrupt = "corrupt"

	LoginOK          = "ok"
	LoginUnknownUser = "unknown_user"
	LoginBadPassword = "bad_password"

	ExpiredLazy  = "lazy"
	ExpiredSweep = "sweep"
)

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	// Accounts and sessions
	AccountsRegistered prometheus.Counter
	Logins             *prometheus.CounterVec
	SessionsCreated    prometheus.Counter
	SessionsExpired    *prometheus.CounterVec

	// Snapshots
	SnapshotPublish         *prometheus.CounterVec
	SnapshotRestore         *prometheus.CounterVec
	SnapshotPublishDuration prometheus.Histogram
	SnapshotLastSuccess     prometheus.Gauge
	SummaryPublish          *prometheus.CounterVec

	// HTTP
	HTTPRequests *prometheus.CounterVec
}

// NewRegistry creates a registry with every application metric plus the Go
// runtime and process collectors registered.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		AccountsRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accounts_registered_total",
			Help:      "Accounts registered since process start",
		}),
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by outcome",
		}, []string{"outcome"}),
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Sessions issued",
		}),
		SessionsExpired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_expired_total",
			Help:      "Expired sessions removed, by removal path",
		}, []string{"path"}),

		SnapshotPublish: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_publish_total",
			Help:      "Snapshot publish attempts by result",
		}, []string{"result"}),
		SnapshotRestore: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_restore_total",
			Help:      "Snapshot restore attempts by result",
		}, []string{"result"}),
		SnapshotPublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_publish_duration_seconds",
			Help:      "Time spent encoding and writing a snapshot",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		SnapshotLastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful snapshot publish",
		}),
		SummaryPublish: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_publish_total",
			Help:      "Summary publish attempts by result",
		}, []string{"result"}),

		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code",
		}, []string{"method", "code"}),
	}

	r.registry.MustRegister(
		r.AccountsRegistered,
		r.Logins,
		r.SessionsCreated,
		r.SessionsExpired,
		r.SnapshotPublish,
		r.SnapshotRestore,
		r.SnapshotPublishDuration,
		r.SnapshotLastSuccess,
		r.SummaryPublish,
		r.HTTPRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registerer exposes the underlying registry to components that register
// their own collectors.
func (r *Registry) Registerer() prometheus.Registerer {
	return r.registry
}

// Gatherer exposes the underlying registry for scraping in tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// ObservePublish records one snapshot publish attempt.
func (r *Registry) ObservePublish(result string, elapsed time.Duration, at time.Time) {
	r.SnapshotPublish.WithLabelValues(result).Inc()
	r.SnapshotPublishDuration.Observe(elapsed.Seconds())
	if result == ResultSuccess {
		r.SnapshotLastSuccess.Set(float64(at.Unix()))
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		Registry:          r.registry,
		EnableOpenMetrics: false,
	})
}
