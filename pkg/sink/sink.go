// Package sink implements the two downstream destinations a flushed
// registry can be emitted to: a child-process stream (sink.go,
// stream.go) and a batching HTTP endpoint (http.go). Both are
// grounded on original_source/src/sink.c's capability-interface shape
// (command/close) and src/sink_stream.c / src/sink_http.c for exact
// wire formats.
package sink

import (
	"context"
	"time"

	"github.com/ClusterCockpit/statsited/pkg/metrics"
)

// FlushContext carries everything a Sink needs to render one flushed
// registry: the registry itself (read-only at this point — the
// orchestrator never touches it again after handing it to the drain
// goroutine), the flush timestamp, and the configured flush interval
// (needed for rate suffixes).
type FlushContext struct {
	Registry        *metrics.Registry
	Now             time.Time
	IntervalSeconds float64
	ExtendedCounters bool
	Quantiles       []float64
	Prefixes        Prefixes
}

// Prefixes names the per-kind prefix original_source calls
// prefixes_final[kind]; an empty prefix is valid.
type Prefixes struct {
	Counter     string
	Timer       string
	Gauge       string
	GaugeDirect string
	Set         string
	KeyVal      string
}

// Sink is a pluggable flush destination. Command renders one flushed
// registry; Close is invoked exactly once during shutdown after the
// final flush.
type Sink interface {
	Command(ctx context.Context, fc FlushContext) error
	Close() error
}
