package metrics

import "errors"

// Error kinds named in spec.md §7.
var (
	ErrParseBadFormat    = errors.New("metrics: malformed line")
	ErrParseBadValue     = errors.New("metrics: value is not a finite IEEE double")
	ErrParseUnknownType  = errors.New("metrics: unknown metric type suffix")
	ErrSampleRejected    = errors.New("metrics: sample rejected (NaN or Inf)")
)
