package metrics

// GaugeDirect holds only the most recent value; unlike Gauge it keeps
// no sample history (no count/sum/min/max), matching the stripped-down
// gauge_direct_t of the source implementation.
type GaugeDirect struct {
	value float64
}

func newGaugeDirect() *GaugeDirect {
	return &GaugeDirect{}
}

func (g *GaugeDirect) AddSample(sample float64) {
	g.value = sample
}

func (g *GaugeDirect) Value() float64 { return g.value }
