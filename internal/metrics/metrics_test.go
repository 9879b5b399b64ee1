package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestStatCounters(t *testing.T) {
	m := New()
	m.StatHit("total_spent")
	m.StatHit("total_spent")
	m.StatMiss("total_spent")

	if got := testutil.ToFloat64(m.statReads.WithLabelValues("total_spent", "hit")); got != 2 {
		t.Fatalf("hits = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.statReads.WithLabelValues("total_spent", "miss")); got != 1 {
		t.Fatalf("misses = %v, want 1", got)
	}
}

func TestObserveReportCountsErrors(t *testing.T) {
	m := New()
	m.ObserveReport("spent_by_group", time.Millisecond, nil)
	m.ObserveReport("spent_by_group", time.Millisecond, errors.New("boom"))

	if got := testutil.ToFloat64(m.reportErrors.WithLabelValues("spent_by_group")); got != 1 {
		t.Fatalf("errors = %v, want 1", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveHTTP(http.MethodGet, 200)
	m.SetSessions(3)
	m.ObserveEvent("local")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()
	for _, want := range []string{
		`groupspend_http_requests_total{code="200",method="GET"} 1`,
		`groupspend_dashboard_sessions 3`,
		`groupspend_expense_events_total{source="local"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
