package sink

import (
	"fmt"
	"math"
	"strconv"

	"github.com/ClusterCockpit/statsited/pkg/metrics"
)

// Field is one rendered (suffix, value) pair belonging to a metric
// group; stream.go writes it as a text line, http.go as a JSON key.
// Suffix is empty for a kind's "base value" field.
type Field struct {
	Suffix string
	Value  float64
}

// CounterFields renders a counter: in basic mode a single unsuffixed
// sum, in extended mode count/mean/sum/lower/upper/rate.
func CounterFields(c *metrics.Counter, extended bool, intervalSeconds float64) []Field {
	if !extended {
		return []Field{{Suffix: "", Value: c.Sum()}}
	}
	return []Field{
		{Suffix: ".count", Value: float64(c.Count())},
		{Suffix: ".mean", Value: c.Mean()},
		{Suffix: ".sum", Value: c.Sum()},
		{Suffix: ".lower", Value: c.Min()},
		{Suffix: ".upper", Value: c.Max()},
		{Suffix: ".rate", Value: c.Rate(intervalSeconds)},
	}
}

func GaugeFields(g *metrics.Gauge) []Field {
	return []Field{
		{Suffix: "", Value: g.Value()},
		{Suffix: ".sum", Value: g.Sum()},
		{Suffix: ".mean", Value: g.Mean()},
		{Suffix: ".min", Value: g.Min()},
		{Suffix: ".max", Value: g.Max()},
	}
}

func GaugeDirectFields(g *metrics.GaugeDirect) []Field {
	return []Field{{Suffix: "", Value: g.Value()}}
}

func SetFields(s *metrics.Set) []Field {
	return []Field{{Suffix: "", Value: float64(s.Size())}}
}

// TimerFields renders mean/lower/upper/count, one field per configured
// quantile (with percentile-based suffix naming, plus a ".median"
// alias for q=0.5), rate/sample_rate, and — if the timer has a
// histogram — the underflow/interior/overflow bin counts.
func TimerFields(t *metrics.Timer, quantiles []float64, intervalSeconds float64) []Field {
	fields := []Field{
		{Suffix: ".mean", Value: t.Mean()},
		{Suffix: ".lower", Value: t.Min()},
		{Suffix: ".upper", Value: t.Max()},
		{Suffix: ".count", Value: float64(t.Count())},
	}

	for _, q := range quantiles {
		v, err := t.Quantile(q)
		if err != nil {
			continue
		}
		suffix, err := quantileSuffix(q)
		if err != nil {
			continue
		}
		fields = append(fields, Field{Suffix: suffix, Value: v})
		if q == 0.5 {
			fields = append(fields, Field{Suffix: ".median", Value: v})
		}
	}

	var rate, sampleRate float64
	if intervalSeconds > 0 {
		rate = t.Sum() / intervalSeconds
		sampleRate = float64(t.Count()) / intervalSeconds
	}
	fields = append(fields,
		Field{Suffix: ".rate", Value: rate},
		Field{Suffix: ".sample_rate", Value: sampleRate},
	)

	if conf, counts, ok := t.Histogram(); ok {
		fields = append(fields, histogramFields(conf, counts)...)
	}

	return fields
}

func histogramFields(conf metrics.HistogramConfig, counts []uint64) []Field {
	fields := make([]Field, 0, len(counts))
	fields = append(fields, Field{
		Suffix: fmt.Sprintf(".histogram.bin_<%.2f", conf.MinVal),
		Value:  float64(counts[0]),
	})
	for i := 1; i < len(counts)-1; i++ {
		lower := conf.MinVal + float64(i-1)*conf.BinWidth
		fields = append(fields, Field{
			Suffix: fmt.Sprintf(".histogram.bin_%.2f", lower),
			Value:  float64(counts[i]),
		})
	}
	fields = append(fields, Field{
		Suffix: fmt.Sprintf(".histogram.bin_>%.2f", conf.MaxVal),
		Value:  float64(counts[len(counts)-1]),
	})
	return fields
}

// quantileSuffix computes ".p<percentile>" where percentile is the
// smallest integer representation of q*100*10^k such that rounding
// error is below 1e-4, per spec.md §4.7 (0.5 -> 50, 0.999 -> 999,
// 0.9999 -> 9999). Rejects q outside [0,1] and a q whose decimal
// expansion never converges to an integer percentile within the
// precision above, per spec.md §8 item 8.
func quantileSuffix(q float64) (string, error) {
	if q < 0 || q > 1 {
		return "", fmt.Errorf("sink: quantile %v out of range [0,1]", q)
	}
	const epsilon = 1e-4
	scaled := q * 100
	for k := 0; k <= 6; k++ {
		mult := math.Pow(10, float64(k))
		candidate := scaled * mult
		rounded := math.Round(candidate)
		if math.Abs(candidate-rounded) < epsilon {
			return ".p" + strconv.FormatInt(int64(rounded), 10), nil
		}
	}
	return "", fmt.Errorf("sink: quantile %v does not converge to an integer percentile", q)
}
