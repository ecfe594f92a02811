package sink

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ClusterCockpit/statsited/pkg/metrics"
)

func TestStreamSinkCommandWritesOneLinePerField(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("requires /bin/sh")
	}

	dir := t.TempDir()
	out := filepath.Join(dir, "out.txt")

	reg := metrics.NewRegistry(metrics.DefaultConfig())
	sample, err := metrics.ParseLine("requests:4|c")
	if err != nil {
		t.Fatal(err)
	}
	if err := reg.AddSample(sample); err != nil {
		t.Fatal(err)
	}

	s := NewStreamSink("/bin/sh", "-c", "cat > "+out)
	fc := FlushContext{
		Registry:        reg,
		Now:             time.Unix(1700000000, 0),
		IntervalSeconds: 10,
		Prefixes:        Prefixes{Counter: "stats.counters."},
	}

	if err := s.Command(context.Background(), fc); err != nil {
		t.Fatalf("Command() error = %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading child output: %v", err)
	}
	line := strings.TrimSpace(string(data))
	want := "stats.counters.requests|4|1700000000"
	if line != want {
		t.Errorf("line = %q, want %q", line, want)
	}
}

func TestStreamSinkCloseIsNoop(t *testing.T) {
	s := NewStreamSink("/bin/true")
	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
}
