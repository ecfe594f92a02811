package sink

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/ClusterCockpit/statsited/pkg/elide"
	"github.com/ClusterCockpit/statsited/pkg/metrics"
	"github.com/ClusterCockpit/statsited/pkg/queue"
	"github.com/jpillora/backoff"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// MaxBodyObjects is the member-count threshold original_source/src/sink_http.c
// calls MAX_BODY_OBJECTS: once a JSON object under construction reaches
// this many metric keys, serialization starts a new object so that one
// HTTP request carries roughly this many metrics.
const MaxBodyObjects = 10000

// FailureWait is the fixed re-auth/retry delay original_source calls
// FAILURE_WAIT.
const FailureWait = 5 * time.Second

// HTTPConfig configures an HTTPSink. Field names mirror spec.md §6's
// enumerated per-sink HTTP configuration.
type HTTPConfig struct {
	PostURL         string
	MetricsName     string
	TimestampName   string
	TimestampFormat string // Go reference-time layout, passed to time.Format as is; strftime patterns are not translated
	Params          map[string]string

	OAuthTokenURL    string
	OAuthClientID    string
	OAuthClientSecret string

	CipherSuites    []uint16
	TimeoutSeconds  float64
	MaxBufferBytes  int
	SendBackoffMs   int
	ElideInterval   int

	Workers int
}

// HTTPSink batches flushed metrics into form-urlencoded JSON POST
// bodies and delivers them through a bounded LIFO queue drained by a
// fixed worker pool, per spec.md §4.8. Grounded throughout on
// original_source/src/sink_http.c.
type HTTPSink struct {
	cfg    HTTPConfig
	client *http.Client
	oauth  *clientcredentials.Config

	q *queue.Queue

	mu          sync.Mutex
	bearer      string
	elideCtrs   *elide.Map
	elideGauges *elide.Map
	elideTimers *elide.Map

	wg     sync.WaitGroup
	closed chan struct{}
}

// NewHTTPSink builds an HTTPSink and starts its worker pool. Callers
// must call Close to drain the queue and stop the workers.
func NewHTTPSink(cfg HTTPConfig) *HTTPSink {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.MaxBufferBytes <= 0 {
		cfg.MaxBufferBytes = 64 << 20
	}
	timeout := time.Duration(cfg.TimeoutSeconds * float64(time.Second))

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			CipherSuites:             cfg.CipherSuites,
			MinVersion:               tls.VersionTLS12,
			PreferServerCipherSuites: true,
		},
	}

	skip := elide.JitteredSkip(cfg.ElideInterval)

	s := &HTTPSink{
		cfg:         cfg,
		client:      &http.Client{Transport: transport, Timeout: timeout},
		q:           queue.New(cfg.MaxBufferBytes),
		elideCtrs:   elide.New(cfg.ElideInterval, skip),
		elideGauges: elide.New(cfg.ElideInterval, skip),
		elideTimers: elide.New(cfg.ElideInterval, skip),
		closed:      make(chan struct{}),
	}

	if cfg.OAuthClientID != "" {
		s.oauth = &clientcredentials.Config{
			ClientID:     cfg.OAuthClientID,
			ClientSecret: cfg.OAuthClientSecret,
			TokenURL:     cfg.OAuthTokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
	}

	for i := 0; i < cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

type batch struct {
	payload   string
	notBefore time.Time
}

// Command serializes fc's registry into one or more JSON objects
// capped at MaxBodyObjects members each, form-urlencodes each into a
// POST body, and pushes it onto the delivery queue with
// evict_if_full=true so that a slow downstream sheds its oldest
// batches first.
func (s *HTTPSink) Command(ctx context.Context, fc FlushContext) error {
	objects := []map[string]any{{}}
	head := objects[0]

	appendMetric := func(key string, value any) {
		if len(head) >= MaxBodyObjects {
			head = map[string]any{}
			objects = append(objects, head)
		}
		head[key] = value
	}

	now := fc.Now
	fc.Registry.Iter(func(kind metrics.Kind, name string, agg any) bool {
		switch kind {
		case metrics.KindCounter:
			c := agg.(*metrics.Counter)
			g := s.elideCtrs.Mark(name, now)
			if c.Sum() == 0 {
				if !s.elideCtrs.ShouldEmit(g) {
					return true
				}
			} else {
				s.elideCtrs.Unmark(name, now)
			}
			appendMetric(fc.Prefixes.Counter+name, fieldsToJSON(CounterFields(c, fc.ExtendedCounters, fc.IntervalSeconds)))

		case metrics.KindGauge:
			gg := agg.(*metrics.Gauge)
			g := s.elideGauges.Mark(name, now)
			if gg.Value() == 0 {
				if !s.elideGauges.ShouldEmit(g) {
					return true
				}
			} else {
				s.elideGauges.Unmark(name, now)
			}
			appendMetric(fc.Prefixes.Gauge+name, fieldsToJSON(GaugeFields(gg)))

		case metrics.KindGaugeDirect:
			gd := agg.(*metrics.GaugeDirect)
			g := s.elideGauges.Mark(name, now)
			if gd.Value() == 0 {
				if !s.elideGauges.ShouldEmit(g) {
					return true
				}
			} else {
				s.elideGauges.Unmark(name, now)
			}
			appendMetric(fc.Prefixes.GaugeDirect+name, gd.Value())

		case metrics.KindTimer:
			t := agg.(*metrics.Timer)
			g := s.elideTimers.Mark(name, now)
			if t.Mean() == 0 {
				if !s.elideTimers.ShouldEmit(g) {
					return true
				}
			} else {
				s.elideTimers.Unmark(name, now)
			}
			appendMetric(fc.Prefixes.Timer+name, fieldsToJSON(TimerFields(t, fc.Quantiles, fc.IntervalSeconds)))

		case metrics.KindSet:
			st := agg.(*metrics.Set)
			appendMetric(fc.Prefixes.Set+name, st.Size())
		}
		return true
	})

	for _, obj := range objects {
		if len(obj) == 0 {
			continue
		}
		body, err := json.Marshal(obj)
		if err != nil {
			return fmt.Errorf("http sink: marshal batch: %w", err)
		}
		payload := s.encodeBody(string(body), now)

		var notBefore time.Time
		if s.cfg.SendBackoffMs > 0 {
			n, err := rand.Int(rand.Reader, big.NewInt(int64(s.cfg.SendBackoffMs)))
			smear := 0
			if err == nil {
				smear = int(n.Int64())
			}
			notBefore = now.Add(time.Duration(smear) * time.Millisecond)
		} else {
			notBefore = now
		}

		size := len(payload)
		status := s.q.Push(queue.Item{Payload: batch{payload: payload, notBefore: notBefore}, Size: size}, true, false, func(item queue.Item) {
			cclog.Warnf("http sink: evicted stale batch under backpressure")
		})
		if status == queue.StatusClosed {
			return fmt.Errorf("http sink: queue closed")
		}
	}
	return nil
}

func (s *HTTPSink) encodeBody(metricsJSON string, now time.Time) string {
	v := url.Values{}
	v.Set(s.cfg.MetricsName, metricsJSON)
	v.Set(s.cfg.TimestampName, now.Format(s.cfg.TimestampFormat))
	for k, val := range s.cfg.Params {
		v.Set(k, val)
	}
	return v.Encode()
}

func fieldsToJSON(fields []Field) any {
	if len(fields) == 1 && fields[0].Suffix == "" {
		return fields[0].Value
	}
	m := make(map[string]float64, len(fields))
	for _, f := range fields {
		key := f.Suffix
		if key == "" {
			key = "value"
		} else {
			key = strings.TrimPrefix(key, ".")
		}
		m[key] = f.Value
	}
	return m
}

// worker drains the queue and delivers batches to post_url, retrying
// with the fixed FailureWait delay on auth or transport failure, per
// spec.md §4.8's worker loop.
func (s *HTTPSink) worker() {
	defer s.wg.Done()
	b := &backoff.Backoff{Min: FailureWait, Max: FailureWait, Factor: 1}

	for {
		item, status := s.q.Get()
		if status == queue.StatusClosed {
			return
		}
		bt := item.Payload.(batch)

		if time.Now().Before(bt.notBefore) && !s.q.IsClosed() {
			s.waitUntil(bt.notBefore)
		}

		bearer, err := s.ensureBearer()
		if err != nil {
			cclog.Warnf("http sink: oauth2 refresh failed: %v", err)
			s.q.Push(item, true, true, nil)
			time.Sleep(b.Duration())
			continue
		}

		if err := s.deliver(bt.payload, bearer); err != nil {
			cclog.Warnf("http sink: delivery failed: %v", err)
			s.q.Push(item, true, true, nil)
			s.clearBearerIfUnchanged(bearer)
			time.Sleep(b.Duration())
			continue
		}
		b.Reset()
	}
}

func (s *HTTPSink) waitUntil(notBefore time.Time) {
	for {
		remaining := time.Until(notBefore)
		if remaining <= 0 {
			break
		}
		slice := remaining
		if slice > time.Second {
			slice = time.Second
		}
		select {
		case <-s.closed:
			return
		case <-time.After(slice):
		}
		if s.q.IsClosed() {
			return
		}
	}
	n, err := rand.Int(rand.Reader, big.NewInt(500))
	jitter := int64(0)
	if err == nil {
		jitter = n.Int64()
	}
	time.Sleep(time.Duration(jitter) * time.Millisecond)
}

func (s *HTTPSink) ensureBearer() (string, error) {
	s.mu.Lock()
	bearer := s.bearer
	s.mu.Unlock()

	if bearer != "" || s.oauth == nil {
		return bearer, nil
	}

	token, err := s.oauth.Token(context.Background())
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.bearer = token.AccessToken
	bearer = s.bearer
	s.mu.Unlock()
	return bearer, nil
}

func (s *HTTPSink) clearBearerIfUnchanged(observed string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bearer == observed {
		s.bearer = ""
	}
}

func (s *HTTPSink) deliver(payload, bearer string) error {
	req, err := http.NewRequest(http.MethodPost, s.cfg.PostURL, strings.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Connection", "close")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	cclog.Debugf("http sink: %s %s status=%d bytes=%d duration=%s",
		req.Method, s.cfg.PostURL, resp.StatusCode, len(payload), time.Since(start))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http sink: unexpected status %s", strconv.Itoa(resp.StatusCode))
	}
	return nil
}

// Close closes the delivery queue and waits for all workers to drain
// it and exit. Batches re-pushed by a failing worker after Close are
// still honored up to queue capacity.
func (s *HTTPSink) Close() error {
	close(s.closed)
	s.q.Close()
	s.wg.Wait()
	return nil
}
