// Package config loads and validates statsited's JSON configuration:
// package-level defaults overridden by an unmarshaled file, validated
// against a JSON schema before being applied.
package config

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ClusterCockpit/statsited/pkg/metrics"
	"github.com/ClusterCockpit/statsited/pkg/sink"
)

// HistogramEntry is one entry of the §4.3 prefix-tree of timer
// histogram bin configs.
type HistogramEntry struct {
	Prefix  string  `json:"prefix"`
	MinVal  float64 `json:"min_val"`
	MaxVal  float64 `json:"max_val"`
	NumBins int     `json:"num_bins"`
}

// Prefixes names the per-kind metric-name prefix spec.md §6 calls
// prefixes_final[kind].
type Prefixes struct {
	Counter     string `json:"counter"`
	Timer       string `json:"timer"`
	Gauge       string `json:"gauge"`
	GaugeDirect string `json:"gauge_direct"`
	Set         string `json:"set"`
	KeyVal      string `json:"key_val"`
}

// HTTPSinkParam is one configured key/value form parameter appended to
// every HTTP sink POST body.
type HTTPSinkParam struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// SinkEntry configures one sink instance; Type selects which of the
// stream/http fields apply.
type SinkEntry struct {
	Type string `json:"type"`

	StreamCmd  string   `json:"stream_cmd,omitempty"`
	StreamArgs []string `json:"stream_args,omitempty"`

	PostURL           string          `json:"post_url,omitempty"`
	MetricsName       string          `json:"metrics_name,omitempty"`
	TimestampName     string          `json:"timestamp_name,omitempty"`
	TimestampFormat   string          `json:"timestamp_format,omitempty"`
	Params            []HTTPSinkParam `json:"params,omitempty"`
	OAuthTokenURL     string          `json:"oauth_token_url,omitempty"`
	OAuthClientID     string          `json:"oauth_client_id,omitempty"`
	OAuthClientSecret string          `json:"oauth_client_secret,omitempty"`
	Ciphers           []string        `json:"ciphers,omitempty"`
	TimeoutSeconds    float64         `json:"time_out_seconds,omitempty"`
	MaxBufferSize     int             `json:"max_buffer_size,omitempty"`
	SendBackoffMs     int             `json:"send_backoff_ms,omitempty"`
	ElideInterval     int             `json:"elide_interval,omitempty"`
	Workers           int             `json:"workers,omitempty"`
}

// Config is statsited's top-level configuration document, matching
// spec.md §6's enumerated configuration surface.
type Config struct {
	ListenAddr string `json:"listen_addr"`
	UDPAddr    string `json:"udp_addr,omitempty"`

	TimerEps             float64          `json:"timer_eps"`
	Quantiles            []float64        `json:"quantiles"`
	Histograms           []HistogramEntry `json:"histograms,omitempty"`
	SetPrecision         int              `json:"set_precision"`
	FlushIntervalSeconds float64          `json:"flush_interval_seconds"`
	ExtendedCounters     bool             `json:"extended_counters"`
	Prefixes             Prefixes         `json:"prefixes"`
	InputCounter         string           `json:"input_counter,omitempty"`
	Sinks                []SinkEntry      `json:"sinks"`
}

// Default returns a Config matching init_metrics_defaults' constants:
// eps=0.01, quantiles 0.5/0.95/0.99, set precision 12, a 10s flush
// interval, basic (non-extended) counters, and no sinks configured.
func Default() Config {
	return Config{
		ListenAddr:           ":8125",
		TimerEps:             0.01,
		Quantiles:            []float64{0.5, 0.95, 0.99},
		SetPrecision:         12,
		FlushIntervalSeconds: 10,
	}
}

// Load reads a JSON config document from path, validates it against
// configSchema, and unmarshals it over Default() so omitted fields keep
// their defaults.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	Validate(configSchema, raw)

	cfg := Default()
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// MetricsConfig projects the aggregation-relevant fields into
// metrics.Config, building the histogram prefix tree from Histograms.
func (c Config) MetricsConfig() metrics.Config {
	mc := metrics.Config{
		TimerEps:     c.TimerEps,
		Quantiles:    c.Quantiles,
		SetPrecision: uint8(c.SetPrecision),
	}
	if len(c.Histograms) == 0 {
		return mc
	}

	entries := make([]metrics.HistogramConfig, 0, len(c.Histograms))
	for _, h := range c.Histograms {
		entries = append(entries, metrics.NewHistogramConfig(h.Prefix, h.MinVal, h.MaxVal, h.NumBins))
	}
	mc.Histograms = metrics.NewHistogramTree(entries)
	return mc
}

// SinkPrefixes projects Prefixes into sink.Prefixes.
func (c Config) SinkPrefixes() sink.Prefixes {
	return sink.Prefixes{
		Counter:     c.Prefixes.Counter,
		Timer:       c.Prefixes.Timer,
		Gauge:       c.Prefixes.Gauge,
		GaugeDirect: c.Prefixes.GaugeDirect,
		Set:         c.Prefixes.Set,
		KeyVal:      c.Prefixes.KeyVal,
	}
}

// BuildSinks constructs a sink.Sink for every configured SinkEntry, in
// configured order. An unrecognized Type is a configuration error.
func (c Config) BuildSinks() ([]sink.Sink, error) {
	sinks := make([]sink.Sink, 0, len(c.Sinks))
	for i, se := range c.Sinks {
		switch se.Type {
		case "stream":
			sinks = append(sinks, sink.NewStreamSink(se.StreamCmd, se.StreamArgs...))

		case "http":
			params := make(map[string]string, len(se.Params))
			for _, p := range se.Params {
				params[p.Key] = p.Value
			}
			cfg := sink.HTTPConfig{
				PostURL:           se.PostURL,
				MetricsName:       se.MetricsName,
				TimestampName:     se.TimestampName,
				TimestampFormat:   se.TimestampFormat,
				Params:            params,
				OAuthTokenURL:     se.OAuthTokenURL,
				OAuthClientID:     se.OAuthClientID,
				OAuthClientSecret: se.OAuthClientSecret,
				CipherSuites:      resolveCipherSuites(se.Ciphers),
				TimeoutSeconds:    se.TimeoutSeconds,
				MaxBufferBytes:    se.MaxBufferSize,
				SendBackoffMs:     se.SendBackoffMs,
				ElideInterval:     se.ElideInterval,
				Workers:           se.Workers,
			}
			sinks = append(sinks, sink.NewHTTPSink(cfg))

		default:
			return nil, fmt.Errorf("config: sinks[%d]: unknown type %q", i, se.Type)
		}
	}
	return sinks, nil
}

// cipherByName maps TLS 1.2 cipher suite names to their Go constants,
// so a configured cipher list can be resolved into a
// tls.Config.CipherSuites slice.
var cipherByName = map[string]uint16{
	"TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256":   tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	"TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256": tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	"TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384":   tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	"TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384": tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
}

func resolveCipherSuites(names []string) []uint16 {
	if len(names) == 0 {
		return []uint16{
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		}
	}
	suites := make([]uint16, 0, len(names))
	for _, n := range names {
		if id, ok := cipherByName[n]; ok {
			suites = append(suites, id)
		}
	}
	return suites
}
