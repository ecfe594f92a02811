// Package ingest drives the statsd line parser over a connection,
// routing parsed samples into the currently live registry. Uses the
// standard net.Listen + goroutine-per-connection shape, so one slow
// client can never block another.
package ingest

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"sync"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/ClusterCockpit/statsited/pkg/metrics"
)

// RegistrySource returns the registry currently accepting samples.
// Implemented by pkg/flush's orchestrator, whose atomic.Pointer swap
// on each flush tick this package must always read through rather than
// cache, so that a sample is never routed to an already-rotated-out
// registry.
type RegistrySource func() *metrics.Registry

// Handler drives the line parser over one or more connections, all
// routed through the same RegistrySource.
type Handler struct {
	Registry     RegistrySource
	InputCounter string // optional metric name incremented once per successfully parsed line

	// mu serializes registry writes from concurrent connection and
	// datagram goroutines.
	mu sync.Mutex
}

// ServeConn reads newline-terminated lines from conn until EOF, a
// framing error, or ctx-independent I/O error, parsing and routing
// each one. Mirrors spec.md §4.2's handler loop: a parse error logs a
// warning and continues (the connection stays open); a framing/read
// error closes it. The connection is always closed before returning.
func (h *Handler) ServeConn(conn net.Conn) error {
	defer conn.Close()
	r := bufio.NewReader(conn)

	for {
		line, err := r.ReadString('\n')
		if len(line) > 0 {
			h.handleLine(strings.TrimRight(line, "\r\n"))
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func (h *Handler) handleLine(line string) {
	if line == "" {
		return
	}

	sample, err := metrics.ParseLine(line)
	if err != nil {
		cclog.Warnf("ingest: rejecting line %q: %v", line, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	registry := h.Registry()

	// Counts every successfully parsed line, independent of whether the
	// sample is later rejected by its aggregator (e.g. a NaN/Inf timer
	// value) — increment point is after the line parses, before the
	// aggregator's own validation.
	if h.InputCounter != "" {
		_ = registry.AddSample(metrics.Sample{
			Kind:       metrics.KindCounter,
			Name:       h.InputCounter,
			Value:      1,
			SampleRate: 1,
		})
	}

	if err := registry.AddSample(sample); err != nil {
		cclog.Warnf("ingest: add sample %q: %v", sample.Name, err)
		return
	}
}

// Serve accepts connections on ln until it is closed, spawning
// ServeConn in its own goroutine per connection so one slow client
// never blocks another.
func (h *Handler) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go func() {
			if err := h.ServeConn(conn); err != nil {
				cclog.Warnf("ingest: connection from %s closed: %v", conn.RemoteAddr(), err)
			}
		}()
	}
}
