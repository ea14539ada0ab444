// Package prometheus exposes authcore engine metrics through
// github.com/prometheus/client_golang.
//
// [Collector] reads a fresh engine snapshot on every scrape. Counters are
// named authcore_*_total and latency histograms authcore_*_latency_seconds.
// [Handler] serves a private registry; nothing is registered globally.
package prometheus
