package metrics

import (
	"math"
	"testing"
)

// TestCounterSampling reproduces spec.md's S1: "a:1|c" then "a:2|c|@0.5"
// should leave count=2, sum=5.0 (1 + 2/0.5).
func TestCounterSampling(t *testing.T) {
	c := newCounter()
	c.AddSample(1, 1.0)
	c.AddSample(2, 0.5)

	if c.Count() != 2 {
		t.Errorf("Count() = %d, want 2", c.Count())
	}
	if c.Sum() != 5.0 {
		t.Errorf("Sum() = %v, want 5.0", c.Sum())
	}
}

// TestGaugeDelta reproduces spec.md's S2: "g:10|g" "g:+5|g" "g:-3|g"
// should leave value=12, count=3, sum=12, min=-3, max=10.
func TestGaugeDelta(t *testing.T) {
	g := newGauge()
	g.AddSample(10, false)
	g.AddSample(5, true)
	g.AddSample(-3, true)

	if g.Value() != 12 {
		t.Errorf("Value() = %v, want 12", g.Value())
	}
	if g.Count() != 3 {
		t.Errorf("Count() = %d, want 3", g.Count())
	}
	if g.Sum() != 12 {
		t.Errorf("Sum() = %v, want 12", g.Sum())
	}
	if g.Min() != -3 {
		t.Errorf("Min() = %v, want -3", g.Min())
	}
	if g.Max() != 10 {
		t.Errorf("Max() = %v, want 10", g.Max())
	}
}

func TestGaugeDirectLastWriteWins(t *testing.T) {
	g := newGaugeDirect()
	g.AddSample(1)
	g.AddSample(2)
	g.AddSample(3)
	if g.Value() != 3 {
		t.Errorf("Value() = %v, want 3", g.Value())
	}
}

func TestTimerRejectsNaNAndInf(t *testing.T) {
	tm, err := newTimer(0.01, nil)
	if err != nil {
		t.Fatalf("newTimer: %v", err)
	}

	if err := tm.AddSample(math.NaN()); err != ErrSampleRejected {
		t.Errorf("AddSample(NaN) err = %v, want ErrSampleRejected", err)
	}
	if err := tm.AddSample(math.Inf(1)); err != ErrSampleRejected {
		t.Errorf("AddSample(+Inf) err = %v, want ErrSampleRejected", err)
	}
	if tm.Count() != 0 {
		t.Errorf("Count() = %d, want 0 after rejected samples", tm.Count())
	}
}

// TestTimerHistogram reproduces spec.md's S4: 1000 samples uniformly
// in [0,1000) with histogram min=0 max=1000 bins=11 (9 interior bins
// of width 1000/9) should have sum(counts)==1000, counts[0]==0 (no
// underflow, all samples >= 0), counts[10]==0 (no overflow, all
// samples < 1000), and the median within 5% of 500.
func TestTimerHistogram(t *testing.T) {
	conf := NewHistogramConfig("t.", 0, 1000, 11)
	tm, err := newTimer(0.01, &conf)
	if err != nil {
		t.Fatalf("newTimer: %v", err)
	}

	const n = 1000
	for i := 0; i < n; i++ {
		v := float64(i) * (1000.0 / n)
		if err := tm.AddSample(v); err != nil {
			t.Fatalf("AddSample(%v): %v", v, err)
		}
	}

	if tm.Count() != n {
		t.Errorf("Count() = %d, want %d", tm.Count(), n)
	}

	_, counts, ok := tm.Histogram()
	if !ok {
		t.Fatal("expected histogram to be configured")
	}
	var sum uint64
	for _, c := range counts {
		sum += c
	}
	if sum != n {
		t.Errorf("sum(counts) = %d, want %d", sum, n)
	}
	if counts[0] != 0 {
		t.Errorf("counts[0] (underflow) = %d, want 0", counts[0])
	}
	if counts[10] != 0 {
		t.Errorf("counts[10] (overflow) = %d, want 0", counts[10])
	}

	median, err := tm.Quantile(0.5)
	if err != nil {
		t.Fatalf("Quantile(0.5): %v", err)
	}
	if math.Abs(median-500) > 500*0.05 {
		t.Errorf("median = %v, want within 5%% of 500", median)
	}
}

func TestSetCardinality(t *testing.T) {
	s, err := newSet(12)
	if err != nil {
		t.Fatalf("newSet: %v", err)
	}
	for i := 0; i < 1000; i++ {
		s.Add(randStringForTest(i))
	}
	size := s.Size()
	// HyperLogLog is approximate; allow generous tolerance.
	if size < 900 || size > 1100 {
		t.Errorf("Size() = %d, want ~1000", size)
	}
}

func randStringForTest(i int) string {
	return string(rune('a'+i%26)) + string(rune('A'+(i/26)%26)) + string(rune('0'+(i/676)%10))
}
