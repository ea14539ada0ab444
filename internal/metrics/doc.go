// Package metrics provides lock-free counters and fixed-bucket latency
// histograms.
//
// Counters live in cache-line-padded slots updated with sync/atomic;
// histograms have 8 buckets (<=5ms ... +Inf). The write path does not
// allocate. Metric names and exporters live elsewhere: the authcore root
// package assigns IDs and metrics/export renders snapshots.
package metrics
