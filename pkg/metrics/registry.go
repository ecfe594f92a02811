package metrics

// Config bundles the tunables init_metrics_defaults hardcodes in the
// source implementation: timer sketch accuracy, quantiles to report,
// set precision, and the optional histogram prefix tree.
type Config struct {
	TimerEps     float64
	Quantiles    []float64
	SetPrecision uint8
	Histograms   *HistogramTree
}

// DefaultConfig mirrors init_metrics_defaults: eps=0.01, quantiles
// 0.5/0.95/0.99, set precision 12, no histograms.
func DefaultConfig() Config {
	return Config{
		TimerEps:     0.01,
		Quantiles:    []float64{0.5, 0.95, 0.99},
		SetPrecision: 12,
	}
}

// Registry is one flush window's worth of aggregator state: a flat
// bundle of typed maps keyed by metric name, with no hierarchy — the
// spec's registry has no host/cluster tree, unlike the teacher's
// MemoryStore. Not safe for concurrent use: the ingest handler
// serializes writes to the live registry, and the flush orchestrator
// hands off a reference to the draining goroutine only after rotation.
type Registry struct {
	cfg Config

	counters     map[string]*Counter
	timers       map[string]*Timer
	gauges       map[string]*Gauge
	gaugesDirect map[string]*GaugeDirect
	sets         map[string]*Set
	keyVals      map[string]*KeyVal
}

func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:          cfg,
		counters:     make(map[string]*Counter),
		timers:       make(map[string]*Timer),
		gauges:       make(map[string]*Gauge),
		gaugesDirect: make(map[string]*GaugeDirect),
		sets:         make(map[string]*Set),
		keyVals:      make(map[string]*KeyVal),
	}
}

// AddSample dispatches a parsed Sample to the aggregator of the
// matching kind, creating it on first use. Mirrors
// metrics_add_sample's switch in original_source/src/metrics.c.
func (r *Registry) AddSample(s Sample) error {
	switch s.Kind {
	case KindGaugeDirect:
		g, ok := r.gaugesDirect[s.Name]
		if !ok {
			g = newGaugeDirect()
			r.gaugesDirect[s.Name] = g
		}
		g.AddSample(s.Value)
		return nil

	case KindGauge:
		g, ok := r.gauges[s.Name]
		if !ok {
			g = newGauge()
			r.gauges[s.Name] = g
		}
		g.AddSample(s.Value, s.Delta)
		return nil

	case KindCounter:
		c, ok := r.counters[s.Name]
		if !ok {
			c = newCounter()
			r.counters[s.Name] = c
		}
		c.AddSample(s.Value, s.SampleRate)
		return nil

	case KindTimer:
		t, ok := r.timers[s.Name]
		if !ok {
			var conf *HistogramConfig
			if r.cfg.Histograms != nil {
				if c, found := r.cfg.Histograms.LongestPrefixMatch(s.Name); found {
					conf = &c
				}
			}
			var err error
			t, err = newTimer(r.cfg.TimerEps, conf)
			if err != nil {
				return err
			}
			r.timers[s.Name] = t
		}
		return t.AddSample(s.Value)

	case KindSet:
		return r.SetUpdate(s.Name, s.RawValue)

	case KindKeyVal:
		kv, ok := r.keyVals[s.Name]
		if !ok {
			kv = newKeyVal()
			r.keyVals[s.Name] = kv
		}
		kv.AddSample(s.RawValue)
		return nil

	default:
		return ErrParseUnknownType
	}
}

// SetUpdate locates or creates the named set and inserts element.
func (r *Registry) SetUpdate(name, element string) error {
	s, ok := r.sets[name]
	if !ok {
		var err error
		s, err = newSet(r.cfg.SetPrecision)
		if err != nil {
			return err
		}
		r.sets[name] = s
	}
	s.Add(element)
	return nil
}

// Counters, Timers, Gauges, GaugesDirect, Sets and KeyVals return the
// live maps for iteration; callers must not mutate them. Iter's fixed
// ordering (counters, timers, gauges, gauges-direct, sets) is the
// order spec.md §5 requires for sink emission.
func (r *Registry) Counters() map[string]*Counter         { return r.counters }
func (r *Registry) Timers() map[string]*Timer             { return r.timers }
func (r *Registry) Gauges() map[string]*Gauge             { return r.gauges }
func (r *Registry) GaugesDirect() map[string]*GaugeDirect { return r.gaugesDirect }
func (r *Registry) Sets() map[string]*Set                 { return r.sets }
func (r *Registry) KeyVals() map[string]*KeyVal           { return r.keyVals }

// Iter visits every (kind, name, aggregator) triple in the fixed
// order COUNTERS, TIMERS, GAUGES, GAUGES_DIRECT, SETS, stopping early
// if cb returns false.
func (r *Registry) Iter(cb func(kind Kind, name string, agg any) bool) {
	for name, c := range r.counters {
		if !cb(KindCounter, name, c) {
			return
		}
	}
	for name, t := range r.timers {
		if !cb(KindTimer, name, t) {
			return
		}
	}
	for name, g := range r.gauges {
		if !cb(KindGauge, name, g) {
			return
		}
	}
	for name, g := range r.gaugesDirect {
		if !cb(KindGaugeDirect, name, g) {
			return
		}
	}
	for name, s := range r.sets {
		if !cb(KindSet, name, s) {
			return
		}
	}
}

// Destroy releases the registry's internal maps. After Destroy the
// registry must not be used again.
func (r *Registry) Destroy() {
	r.counters = nil
	r.timers = nil
	r.gauges = nil
	r.gaugesDirect = nil
	r.sets = nil
	r.keyVals = nil
}
