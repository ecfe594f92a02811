package sink

import (
	"testing"

	"github.com/ClusterCockpit/statsited/pkg/metrics"
	"github.com/stretchr/testify/assert"
)

func TestCounterFieldsBasicModeIsSingleSum(t *testing.T) {
	sample, err := metrics.ParseLine("deploys:3|c")
	assert.NoError(t, err)

	reg := metrics.NewRegistry(metrics.DefaultConfig())
	assert.NoError(t, reg.AddSample(sample))

	c := reg.Counters()["deploys"]
	fields := CounterFields(c, false, 10)
	assert.Len(t, fields, 1)
	assert.Equal(t, "", fields[0].Suffix)
	assert.Equal(t, 3.0, fields[0].Value)
}

func TestCounterFieldsExtendedModeHasSixFields(t *testing.T) {
	reg := metrics.NewRegistry(metrics.DefaultConfig())
	for _, line := range []string{"deploys:3|c", "deploys:5|c"} {
		sample, err := metrics.ParseLine(line)
		assert.NoError(t, err)
		assert.NoError(t, reg.AddSample(sample))
	}

	c := reg.Counters()["deploys"]
	fields := CounterFields(c, true, 10)
	assert.Len(t, fields, 6)

	byKey := map[string]float64{}
	for _, f := range fields {
		byKey[f.Suffix] = f.Value
	}
	assert.Equal(t, 2.0, byKey[".count"])
	assert.Equal(t, 8.0, byKey[".sum"])
	assert.Equal(t, 4.0, byKey[".mean"])
	assert.Equal(t, 0.8, byKey[".rate"])
}

func TestQuantileSuffixFormatsPercentiles(t *testing.T) {
	cases := map[float64]string{
		0.5:    ".p50",
		0.95:   ".p95",
		0.99:   ".p99",
		0.999:  ".p999",
		0.9999: ".p9999",
	}
	for q, want := range cases {
		got, err := quantileSuffix(q)
		assert.NoError(t, err, "quantile %v", q)
		assert.Equal(t, want, got, "quantile %v", q)
	}
}

func TestQuantileSuffixRejectsOutOfRangeValues(t *testing.T) {
	for _, q := range []float64{-0.1, -1, 1.1, 2} {
		_, err := quantileSuffix(q)
		assert.Error(t, err, "quantile %v should be rejected as out of [0,1]", q)
	}
}

func TestQuantileSuffixRejectsNonConvergingValues(t *testing.T) {
	_, err := quantileSuffix(1.0 / 3.0)
	assert.Error(t, err, "a non-terminating percentile should be rejected")
}

func TestHistogramFieldsBoundariesUseTwoDecimals(t *testing.T) {
	conf := metrics.NewHistogramConfig("t.", 0, 1000, 11)
	counts := []uint64{2, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0}

	fields := histogramFields(conf, counts)
	assert.Equal(t, ".histogram.bin_<0.00", fields[0].Suffix)
	assert.Equal(t, 2.0, fields[0].Value)
	assert.Equal(t, ".histogram.bin_>1000.00", fields[len(fields)-1].Suffix)
}
