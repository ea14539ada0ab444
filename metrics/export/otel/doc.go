// Package otel publishes authcore engine metrics through an OpenTelemetry
// meter supplied by the caller.
//
// Each counter becomes an Int64ObservableCounter. Each latency histogram is
// flattened into cumulative bucket gauges plus _count and _sum gauges. One
// callback reads a fresh engine snapshot per collection.
package otel
