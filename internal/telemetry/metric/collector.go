package metric

import "github.com/prometheus/client_golang/prometheus"

// StateCounts is a point-in-time reading of live state sizes.
type StateCounts struct {
	Accounts         int
	Sessions         int
	Messages         int
	MessagesAppended uint64
	MessagesTrimmed  uint64
}

// StateSource returns current state sizes. It is called on every scrape
// and must be cheap.
type StateSource func() StateCounts

// StateCollector reports state sizes read at scrape time, so the hot
// append and register paths carry no metric updates of their own.
type StateCollector struct {
	source StateSource

	accounts *prometheus.Desc
	sessions *prometheus.Desc
	messages *prometheus.Desc
	appended *prometheus.Desc
	trimmed  *prometheus.Desc
}

// NewStateCollector creates a collector backed by source.
func NewStateCollector(source StateSource) *StateCollector {
	return &StateCollector{
		source: source,
		accounts: prometheus.NewDesc(namespace+"_accounts",
			"Registered accounts", nil, nil),
		sessions: prometheus.NewDesc(namespace+"_sessions_active",
			"Stored sessions, including expired ones not yet swept", nil, nil),
		messages: prometheus.NewDesc(namespace+"_messages",
			"Messages in the live log", nil, nil),
		appended: prometheus.NewDesc(namespace+"_messages_appended_total",
			"Messages appended since process start", nil, nil),
		trimmed: prometheus.NewDesc(namespace+"_messages_trimmed_total",
			"Messages dropped from the log to stay within capacity", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *StateCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.accounts
	ch <- c.sessions
	ch <- c.messages
	ch <- c.appended
	ch <- c.trimmed
}

// Collect implements prometheus.Collector.
func (c *StateCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.source()
	ch <- prometheus.MustNewConstMetric(c.accounts, prometheus.GaugeValue, float64(s.Accounts))
	ch <- prometheus.MustNewConstMetric(c.sessions, prometheus.GaugeValue, float64(s.Sessions))
	ch <- prometheus.MustNewConstMetric(c.messages, prometheus.GaugeValue, float64(s.Messages))
	ch <- prometheus.MustNewConstMetric(c.appended, prometheus.CounterValue, float64(s.MessagesAppended))
	ch <- prometheus.MustNewConstMetric(c.trimmed, prometheus.CounterValue, float64(s.MessagesTrimmed))
}

// RegisterState registers a StateCollector for source.
func (r *Registry) RegisterState(source StateSource) error {
	return r.registry.Register(NewStateCollector(source))
}
