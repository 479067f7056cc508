package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"promptassist/internal/augment"
)

func TestCounterConcurrent(t *testing.T) {
	r := NewRegistry("test")
	c := r.Counter("events_total", "events", nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Inc()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(5000), c.Value())
}

func TestRegistryReturnsSameMetric(t *testing.T) {
	r := NewRegistry("")
	a := r.Counter("x_total", "x", Labels{"kind": "a"})
	assert.Same(t, a, r.Counter("x_total", "x", Labels{"kind": "a"}))
	assert.NotSame(t, a, r.Counter("x_total", "x", Labels{"kind": "b"}))
}

func TestHistogramBuckets(t *testing.T) {
	r := NewRegistry("")
	h := r.Histogram("latency_seconds", "latency", nil, []float64{1, 0.5})

	h.Observe(0.5) // on a boundary: counted in le=0.5
	h.Observe(0.75)
	h.Observe(3)

	var b strings.Builder
	require.NoError(t, r.WritePrometheus(&b))
	out := b.String()

	assert.Contains(t, out, `latency_seconds_bucket{le="0.5"} 1`)
	assert.Contains(t, out, `latency_seconds_bucket{le="1"} 2`)
	assert.Contains(t, out, `latency_seconds_bucket{le="+Inf"} 3`)
	assert.Contains(t, out, "latency_seconds_count 3")
	assert.Equal(t, uint64(3), h.Count())
	assert.InDelta(t, 4.25, h.Sum(), 1e-9)
}

func TestWritePrometheusSharesHeaders(t *testing.T) {
	r := NewRegistry("pa")
	r.Counter("requests_total", "requests", Labels{"result": "success"}).Add(3)
	r.Counter("requests_total", "requests", Labels{"result": "transport"}).Inc()

	var b strings.Builder
	require.NoError(t, r.WritePrometheus(&b))
	out := b.String()

	assert.Equal(t, 1, strings.Count(out, "# TYPE pa_requests_total counter"))
	assert.Contains(t, out, `pa_requests_total{result="success"} 3`)
	assert.Contains(t, out, `pa_requests_total{result="transport"} 1`)
}

func TestPipelineObserveAugmentation(t *testing.T) {
	p := NewPipeline(nil)

	p.ObserveAugmentation(200*time.Millisecond, nil)
	p.ObserveAugmentation(time.Second, &augment.Error{Kind: augment.KindTransport})
	p.ObserveAugmentation(time.Second, &augment.Error{Kind: augment.KindUpstreamStatus, Status: 401})
	p.ObserveAugmentation(time.Second, errors.New("not an augment error"))

	assert.Equal(t, uint64(1), p.Succeeded())
	assert.Equal(t, uint64(1), p.Failed(augment.KindTransport))
	assert.Equal(t, uint64(1), p.Failed(augment.KindUpstreamStatus))
	assert.Equal(t, uint64(1), p.Failed(augment.KindNone))
	assert.Equal(t, uint64(4), p.AugmentLatency.Count())
}

func TestHTTPHandler(t *testing.T) {
	p := NewPipeline(nil)
	p.KeyEvents.Add(42)
	p.SnippetTriggers.Inc()

	srv := httptest.NewServer(p.Registry().HTTPHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
	assert.Contains(t, string(body), "promptassist_key_events_total 42")
	assert.Contains(t, string(body), `promptassist_triggers_total{kind="snippet"} 1`)
	assert.Contains(t, string(body), `promptassist_augmentations_total{result="other"} 0`)
}
