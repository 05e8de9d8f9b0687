// Package metric provides Prometheus metrics for chathub.
//
//   - prometheus.go: the metric registry, event counters and the /metrics handler
//   - collector.go: a collector that reads live state sizes on every scrape
//
// Each Registry owns its own prometheus.Registry, so tests can create as
// many as they need without colliding on the global default.
package metric
