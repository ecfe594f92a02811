package sink

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strconv"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/ClusterCockpit/statsited/pkg/metrics"
)

// StreamSink pipes a formatted text representation of each flushed
// registry to the stdin of a freshly launched child process, grounded
// on original_source/src/sink_stream.c's stream_formatter and
// wrap_stream (stream_to_command launches the configured command once
// per flush, not a long-lived process).
type StreamSink struct {
	cmdName string
	cmdArgs []string
}

// NewStreamSink builds a StreamSink that execs name with args on every
// Command call.
func NewStreamSink(name string, args ...string) *StreamSink {
	return &StreamSink{cmdName: name, cmdArgs: args}
}

// Command renders fc's registry as text lines and writes them to the
// stdin of a new child process, then waits for it to exit. A write
// failure aborts the remaining lines for this flush but is reported to
// the caller rather than the registry being re-used — per spec.md
// §4.7, the snapshot is still destroyed by the orchestrator regardless
// of this error.
func (s *StreamSink) Command(ctx context.Context, fc FlushContext) error {
	cmd := exec.CommandContext(ctx, s.cmdName, s.cmdArgs...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stream sink: stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("stream sink: start %s: %w", s.cmdName, err)
	}

	w := bufio.NewWriter(stdin)
	ts := strconv.FormatInt(fc.Now.Unix(), 10)
	writeErr := s.writeAll(w, fc, ts)
	flushErr := w.Flush()
	closeErr := stdin.Close()
	waitErr := cmd.Wait()

	if writeErr != nil {
		cclog.Warnf("stream sink: write failed, flush iteration aborted: %v", writeErr)
		return writeErr
	}
	if flushErr != nil {
		return fmt.Errorf("stream sink: flush: %w", flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("stream sink: close stdin: %w", closeErr)
	}
	if waitErr != nil {
		return fmt.Errorf("stream sink: %s: %w", s.cmdName, waitErr)
	}
	return nil
}

func (s *StreamSink) writeAll(w *bufio.Writer, fc FlushContext, ts string) error {
	var outerErr error
	fc.Registry.Iter(func(kind metrics.Kind, name string, agg any) bool {
		var fields []Field
		var prefix string
		switch kind {
		case metrics.KindCounter:
			prefix = fc.Prefixes.Counter
			fields = CounterFields(agg.(*metrics.Counter), fc.ExtendedCounters, fc.IntervalSeconds)
		case metrics.KindTimer:
			prefix = fc.Prefixes.Timer
			fields = TimerFields(agg.(*metrics.Timer), fc.Quantiles, fc.IntervalSeconds)
		case metrics.KindGauge:
			prefix = fc.Prefixes.Gauge
			fields = GaugeFields(agg.(*metrics.Gauge))
		case metrics.KindGaugeDirect:
			prefix = fc.Prefixes.GaugeDirect
			fields = GaugeDirectFields(agg.(*metrics.GaugeDirect))
		case metrics.KindSet:
			prefix = fc.Prefixes.Set
			fields = SetFields(agg.(*metrics.Set))
		default:
			return true
		}
		if err := writeFields(w, prefix, name, fields, ts); err != nil {
			outerErr = err
			return false
		}
		return true
	})
	if outerErr != nil {
		return outerErr
	}

	for name, kv := range fc.Registry.KeyVals() {
		line := fc.Prefixes.KeyVal + name + "|" + kv.Value() + "|" + ts + "\n"
		if _, err := w.WriteString(line); err != nil {
			return err
		}
	}
	return nil
}

func writeFields(w *bufio.Writer, prefix, name string, fields []Field, ts string) error {
	for _, f := range fields {
		line := prefix + name + f.Suffix + "|" + strconv.FormatFloat(f.Value, 'f', -1, 64) + "|" + ts + "\n"
		if _, err := w.WriteString(line); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op: the stream sink has no persistent state between
// flushes, since each flush launches and waits on its own process.
func (s *StreamSink) Close() error {
	return nil
}
