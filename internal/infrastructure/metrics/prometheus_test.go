package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"tanktrace/internal/errs"
)

func TestRecorderCountsOutcomesByKind(t *testing.T) {
	r := NewRecorder()

	r.QueueOperation("advance", nil)
	r.QueueOperation("advance", nil)
	r.QueueOperation("update", errs.Conflict("item consumed"))
	r.AssemblyOperation("create", errs.Validation("shells", "bad"))
	r.AssemblyOperation("create", errors.New("disk full"))

	if got := testutil.ToFloat64(r.queueOps.WithLabelValues("advance", "ok")); got != 2 {
		t.Fatalf("advance ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.queueOps.WithLabelValues("update", errs.KindConflict.String())); got != 1 {
		t.Fatalf("update conflict = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.assemblyOps.WithLabelValues("create", errs.KindInternal.String())); got != 1 {
		t.Fatalf("create internal = %v, want 1", got)
	}
}

func TestRecorderExposesMetrics(t *testing.T) {
	r := NewRecorder()
	r.LookupCompleted(20*time.Millisecond, 7)
	r.ObserveHTTP("GET", "/api/v1/serial-numbers/{serial}/lookup", 200, 30*time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		"tanktrace_lookup_duration_seconds_count 1",
		"tanktrace_lookup_nodes_sum 7",
		`tanktrace_http_requests_total{method="GET",route="/api/v1/serial-numbers/{serial}/lookup",status="200"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
