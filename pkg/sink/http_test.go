package sink

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ClusterCockpit/statsited/pkg/metrics"
)

func TestFieldsToJSONSingleUnsuffixedFieldIsRawNumber(t *testing.T) {
	v := fieldsToJSON([]Field{{Suffix: "", Value: 42}})
	n, ok := v.(float64)
	if !ok || n != 42 {
		t.Errorf("fieldsToJSON single field = %#v, want raw 42", v)
	}
}

func TestFieldsToJSONMultipleFieldsBecomeMap(t *testing.T) {
	v := fieldsToJSON([]Field{{Suffix: ".count", Value: 1}, {Suffix: ".sum", Value: 2}})
	m, ok := v.(map[string]float64)
	if !ok {
		t.Fatalf("fieldsToJSON multi-field = %#v, want map[string]float64", v)
	}
	if m["count"] != 1 || m["sum"] != 2 {
		t.Errorf("map = %+v, want count=1 sum=2 (no leading dot)", m)
	}
}

func TestEncodeBodySetsMetricsAndTimestampParams(t *testing.T) {
	s := &HTTPSink{cfg: HTTPConfig{
		MetricsName:     "metrics",
		TimestampName:   "ts",
		TimestampFormat: "2006-01-02T15:04:05",
		Params:          map[string]string{"cluster": "demo"},
	}}
	body := s.encodeBody(`{"a":1}`, time.Unix(1700000000, 0).UTC())

	v, err := url.ParseQuery(body)
	if err != nil {
		t.Fatal(err)
	}
	if v.Get("metrics") != `{"a":1}` {
		t.Errorf("metrics = %q", v.Get("metrics"))
	}
	if v.Get("cluster") != "demo" {
		t.Errorf("cluster param = %q, want demo", v.Get("cluster"))
	}
	if v.Get("ts") == "" {
		t.Error("timestamp param is empty")
	}
}

func TestHTTPSinkDeliversBatchToConfiguredURL(t *testing.T) {
	var receivedBodies int32
	var sawMetrics atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&receivedBodies, 1)
		if err := r.ParseForm(); err != nil {
			t.Error(err)
		}
		sawMetrics.Store(r.Form.Get("metrics"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewHTTPSink(HTTPConfig{
		PostURL:         srv.URL,
		MetricsName:     "metrics",
		TimestampName:   "timestamp",
		TimestampFormat: "2006-01-02T15:04:05",
		Workers:         1,
	})
	defer s.Close()

	reg := metrics.NewRegistry(metrics.DefaultConfig())
	sample, err := metrics.ParseLine("orders:7|c")
	if err != nil {
		t.Fatal(err)
	}
	if err := reg.AddSample(sample); err != nil {
		t.Fatal(err)
	}

	fc := FlushContext{Registry: reg, Now: time.Now(), Prefixes: Prefixes{Counter: "stats.counters."}}
	if err := s.Command(t.Context(), fc); err != nil {
		t.Fatalf("Command() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&receivedBodies) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if atomic.LoadInt32(&receivedBodies) == 0 {
		t.Fatal("server never received a batch within 2s")
	}
	if m, _ := sawMetrics.Load().(string); m == "" {
		t.Error("server received an empty metrics payload")
	}
}
