package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegistry_Counters(t *testing.T) {
	r := New()

	r.ObserveAttempt(OutcomeRateLimited)
	r.ObserveAttempt(OutcomeRateLimited)
	r.ObserveAttempt(OutcomeOK)
	r.ObserveRateLimitWait(1500 * time.Millisecond)
	r.ObserveRateLimitWait(500 * time.Millisecond)
	r.AddPosts(5)
	r.AddPosts(0)

	if got := testutil.ToFloat64(r.FetchAttempts.WithLabelValues(OutcomeRateLimited)); got != 2 {
		t.Errorf("rate_limited attempts = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.FetchAttempts.WithLabelValues(OutcomeOK)); got != 1 {
		t.Errorf("ok attempts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.RateLimitWaits); got != 2 {
		t.Errorf("waits = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.RateLimitWaitTotal); got != 2 {
		t.Errorf("wait seconds = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.PostsFetched); got != 5 {
		t.Errorf("posts = %v, want 5", got)
	}
}

func TestRegistry_NilIsNoop(t *testing.T) {
	var r *Registry
	r.ObserveAttempt(OutcomeFailed)
	r.ObserveRateLimitWait(time.Second)
	r.AddPosts(3)
}

func TestRegistry_Handler(t *testing.T) {
	r := New()
	r.ObserveAttempt(OutcomeFailed)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `redditlatest_fetch_attempts_total{outcome="failed"} 1`) {
		t.Errorf("metrics output missing attempt counter:\n%s", body)
	}
}
