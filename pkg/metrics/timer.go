package metrics

import (
	"math"

	"github.com/DataDog/sketches-go/ddsketch"
)

// Timer is a streaming quantile sketch plus an optional fixed-width
// histogram. The sketch is the relative-accuracy estimator
// original_source treats as a black box (epsilon-bounded quantile
// error); github.com/DataDog/sketches-go/ddsketch provides the same
// contract and is a real dependency of DataDog's own statsd-compatible
// aggregator (dogstatsd), making it the natural stand-in here.
type Timer struct {
	sketch *ddsketch.DDSketch

	count uint64
	sum   float64
	min   float64
	max   float64

	hist   *HistogramConfig
	counts []uint64
}

// newTimer builds a Timer with quantile error bound eps. If conf is
// non-nil, a fixed-width histogram is also maintained, mirroring
// metrics_add_timer_sample's allocate-counts-if-histogrammed step.
func newTimer(eps float64, conf *HistogramConfig) (*Timer, error) {
	sk, err := ddsketch.NewDefaultDDSketch(eps)
	if err != nil {
		return nil, err
	}
	t := &Timer{sketch: sk}
	if conf != nil {
		t.hist = conf
		t.counts = make([]uint64, conf.NumBins)
	}
	return t, nil
}

// AddSample rejects NaN/±Inf (spec's SampleRejected error kind) and
// otherwise records the sample in the sketch, running stats, and —
// if configured — the histogram bin it falls into.
func (t *Timer) AddSample(value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return ErrSampleRejected
	}

	if t.hist != nil {
		c := t.hist
		switch {
		case value < c.MinVal:
			t.counts[0]++
		case value >= c.MaxVal:
			t.counts[c.NumBins-1]++
		default:
			idx := int((value-c.MinVal)/c.BinWidth) + 1
			if idx > c.NumBins-1 {
				idx = c.NumBins - 1
			}
			t.counts[idx]++
		}
	}

	if t.count == 0 {
		t.min = value
		t.max = value
	} else {
		if value < t.min {
			t.min = value
		}
		if value > t.max {
			t.max = value
		}
	}
	t.sum += value
	t.count++

	return t.sketch.Add(value)
}

func (t *Timer) Count() uint64 { return t.count }
func (t *Timer) Sum() float64  { return t.sum }
func (t *Timer) Min() float64  { return t.min }
func (t *Timer) Max() float64  { return t.max }

func (t *Timer) Mean() float64 {
	if t.count == 0 {
		return 0
	}
	return t.sum / float64(t.count)
}

// Quantile returns the estimated value at quantile q (0 <= q <= 1).
func (t *Timer) Quantile(q float64) (float64, error) {
	return t.sketch.GetValueAtQuantile(q)
}

// Histogram reports whether this timer has a histogram and, if so,
// its bin configuration and per-bin counts (index 0 = underflow,
// index len-1 = overflow).
func (t *Timer) Histogram() (HistogramConfig, []uint64, bool) {
	if t.hist == nil {
		return HistogramConfig{}, nil, false
	}
	return *t.hist, t.counts, true
}
