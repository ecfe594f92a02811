package metrics

import "github.com/axiomhq/hyperloglog"

// Set is an approximate distinct-value counter backed by HyperLogLog++.
// original_source/src/set.c implements the same estimator from
// scratch at a configurable precision; github.com/axiomhq/hyperloglog
// is a direct dependency of grafana/tempo for exactly this purpose
// (approximate cardinality of trace/span attributes) and is used here
// unmodified rather than reimplemented.
type Set struct {
	sketch *hyperloglog.Sketch
}

// newSet builds a Set at the given precision (4-18; spec default 12).
func newSet(precision uint8) (*Set, error) {
	sk, err := hyperloglog.NewPlus(precision)
	if err != nil {
		return nil, err
	}
	return &Set{sketch: sk}, nil
}

func (s *Set) Add(value string) {
	s.sketch.Insert([]byte(value))
}

// Size returns the estimated number of distinct values added.
func (s *Set) Size() uint64 {
	return s.sketch.Estimate()
}
