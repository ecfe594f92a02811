package metrics

import (
	"strconv"
	"strings"
	"sync"
)

// parseState is scratch storage reused across calls to ParseLine,
// avoiding an allocation per ingested line on the hot path — the same
// motivation as pkg/metricstore/lineprotocol.go's decodeStatePool,
// adapted here from InfluxDB line protocol decoding to the statsd
// wire format.
type parseState struct {
	sample Sample
}

var parseStatePool = sync.Pool{
	New: func() any { return new(parseState) },
}

// ParseLine parses one statsd line (no trailing newline) per spec's
// grammar: "name:value|type[|@rate]". It returns a copy of the parsed
// Sample; the scratch state used internally is returned to a pool
// before this function returns, so the caller never observes it.
func ParseLine(line string) (Sample, error) {
	st := parseStatePool.Get().(*parseState)
	defer parseStatePool.Put(st)
	st.sample = Sample{SampleRate: 1.0}

	colon := strings.LastIndexByte(line, ':')
	if colon <= 0 || colon == len(line)-1 {
		return Sample{}, ErrParseBadFormat
	}
	st.sample.Name = line[:colon]
	rest := line[colon+1:]

	bar := strings.IndexByte(rest, '|')
	if bar < 0 {
		return Sample{}, ErrParseBadFormat
	}
	valueStr := rest[:bar]
	tail := rest[bar+1:]

	if valueStr == "" {
		return Sample{}, ErrParseBadValue
	}

	typeTail := tail
	var rateStr string
	hasRate := false
	if idx := strings.Index(tail, "|@"); idx >= 0 {
		typeTail = tail[:idx]
		rateStr = tail[idx+2:]
		hasRate = true
	}
	if typeTail == "" {
		return Sample{}, ErrParseBadFormat
	}

	switch typeTail[0] {
	case 'c':
		st.sample.Kind = KindCounter
	case 'h', 'm':
		st.sample.Kind = KindTimer
	case 'g':
		st.sample.Kind = KindGauge
		if valueStr[0] == '+' || valueStr[0] == '-' {
			st.sample.Delta = true
		}
	case 'k':
		st.sample.Kind = KindKeyVal
	case 's':
		st.sample.Kind = KindSet
	default:
		return Sample{}, ErrParseUnknownType
	}

	if st.sample.Kind == KindSet || st.sample.Kind == KindKeyVal {
		st.sample.RawValue = valueStr
		return st.sample, nil
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return Sample{}, ErrParseBadValue
	}
	st.sample.Value = value

	if hasRate && (st.sample.Kind == KindCounter || st.sample.Kind == KindTimer) {
		if rate, err := strconv.ParseFloat(rateStr, 64); err == nil && rate > 0 && rate <= 1 {
			st.sample.SampleRate = rate
		}
	}

	return st.sample, nil
}
