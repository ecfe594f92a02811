package metrics

import "testing"

func TestParseLineKinds(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantKind Kind
		wantVal  float64
		wantRate float64
		wantRaw  string
		wantErr  error
	}{
		{name: "counter", line: "a:1|c", wantKind: KindCounter, wantVal: 1, wantRate: 1.0},
		{name: "counter with rate", line: "a:2|c|@0.5", wantKind: KindCounter, wantVal: 2, wantRate: 0.5},
		{name: "counter invalid rate kept at 1", line: "a:2|c|@2", wantKind: KindCounter, wantVal: 2, wantRate: 1.0},
		{name: "timer h", line: "t:123.4|h", wantKind: KindTimer, wantVal: 123.4, wantRate: 1.0},
		{name: "timer m", line: "t:5|m", wantKind: KindTimer, wantVal: 5, wantRate: 1.0},
		{name: "gauge set", line: "g:10|g", wantKind: KindGauge, wantVal: 10},
		{name: "gauge delta plus", line: "g:+5|g", wantKind: KindGauge, wantVal: 5},
		{name: "gauge delta minus", line: "g:-3|g", wantKind: KindGauge, wantVal: -3},
		{name: "set", line: "s:alice|s", wantKind: KindSet, wantRaw: "alice"},
		{name: "key_val passthrough", line: "k:release-42|k", wantKind: KindKeyVal, wantRaw: "release-42"},
		{name: "missing colon", line: "novalue|c", wantErr: ErrParseBadFormat},
		{name: "missing bar", line: "a:1", wantErr: ErrParseBadFormat},
		{name: "empty value", line: "a:|c", wantErr: ErrParseBadValue},
		{name: "bad value", line: "a:notanumber|c", wantErr: ErrParseBadValue},
		{name: "unknown type", line: "a:1|z", wantErr: ErrParseUnknownType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ParseLine(tt.line)
			if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Fatalf("ParseLine(%q) error = %v, want %v", tt.line, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLine(%q) unexpected error: %v", tt.line, err)
			}
			if s.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", s.Kind, tt.wantKind)
			}
			if tt.wantKind != KindSet && tt.wantKind != KindKeyVal && s.Value != tt.wantVal {
				t.Errorf("Value = %v, want %v", s.Value, tt.wantVal)
			}
			if tt.wantRaw != "" && s.RawValue != tt.wantRaw {
				t.Errorf("RawValue = %q, want %q", s.RawValue, tt.wantRaw)
			}
			if tt.wantRate != 0 && s.SampleRate != tt.wantRate {
				t.Errorf("SampleRate = %v, want %v", s.SampleRate, tt.wantRate)
			}
		})
	}
}

func TestParseLineGaugeDeltaFlag(t *testing.T) {
	s, err := ParseLine("g:+5|g")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.Delta {
		t.Error("expected Delta=true for '+' prefixed gauge sample")
	}

	s2, err := ParseLine("g:5|g")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s2.Delta {
		t.Error("expected Delta=false for bare gauge sample")
	}
}
