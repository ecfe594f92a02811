package config

// configSchema validates statsited's top-level configuration document
// against spec.md §6's enumerated configuration surface, in the same
// inline-JSON-Schema-string style pkg/metricstore/configSchema.go uses.
var configSchema = `{
  "type": "object",
  "description": "statsited daemon configuration.",
  "properties": {
    "listen_addr": {
      "description": "TCP address the line-protocol listener binds to.",
      "type": "string"
    },
    "udp_addr": {
      "description": "Optional UDP address for datagram ingest.",
      "type": "string"
    },
    "timer_eps": {
      "description": "Relative-error bound of the timer quantile sketch.",
      "type": "number",
      "exclusiveMinimum": 0
    },
    "quantiles": {
      "description": "Quantiles reported for every timer, in (0,1), ascending.",
      "type": "array",
      "items": { "type": "number", "exclusiveMinimum": 0, "exclusiveMaximum": 1 }
    },
    "histograms": {
      "description": "Prefix-tree of fixed-width histogram bin configs attached to matching timers.",
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "prefix": { "type": "string" },
          "min_val": { "type": "number" },
          "max_val": { "type": "number" },
          "num_bins": { "type": "integer", "minimum": 3 }
        },
        "required": ["prefix", "min_val", "max_val", "num_bins"]
      }
    },
    "set_precision": {
      "description": "HyperLogLog++ precision (register count exponent) for set cardinality estimation.",
      "type": "integer",
      "minimum": 4,
      "maximum": 18
    },
    "flush_interval_seconds": {
      "description": "Seconds between flush ticks.",
      "type": "number",
      "exclusiveMinimum": 0
    },
    "extended_counters": {
      "description": "Emit count/mean/sum/lower/upper/rate for counters instead of only sum.",
      "type": "boolean"
    },
    "prefixes": {
      "description": "Per-kind metric name prefix.",
      "type": "object",
      "properties": {
        "counter": { "type": "string" },
        "timer": { "type": "string" },
        "gauge": { "type": "string" },
        "gauge_direct": { "type": "string" },
        "set": { "type": "string" },
        "key_val": { "type": "string" }
      }
    },
    "input_counter": {
      "description": "Optional metric name incremented once per successfully parsed line.",
      "type": "string"
    },
    "sinks": {
      "description": "Flush destinations, run in configured order every flush.",
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "type": { "type": "string", "enum": ["stream", "http"] },
          "stream_cmd": { "type": "string" },
          "stream_args": { "type": "array", "items": { "type": "string" } },
          "post_url": { "type": "string" },
          "metrics_name": { "type": "string" },
          "timestamp_name": { "type": "string" },
          "timestamp_format": { "type": "string" },
          "params": {
            "type": "array",
            "items": {
              "type": "object",
              "properties": { "key": { "type": "string" }, "value": { "type": "string" } },
              "required": ["key", "value"]
            }
          },
          "oauth_token_url": { "type": "string" },
          "oauth_client_id": { "type": "string" },
          "oauth_client_secret": { "type": "string" },
          "ciphers": { "type": "array", "items": { "type": "string" } },
          "time_out_seconds": { "type": "number" },
          "max_buffer_size": { "type": "integer" },
          "send_backoff_ms": { "type": "integer" },
          "elide_interval": { "type": "integer" },
          "workers": { "type": "integer" }
        },
        "if": { "properties": { "type": { "const": "stream" } } },
        "then": { "required": ["stream_cmd"] },
        "required": ["type"]
      }
    }
  },
  "required": ["listen_addr", "flush_interval_seconds", "sinks"]
}`
