package observability

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	body := scrape(t, metrics)
	if !strings.Contains(body, "http_requests_total{code=\"418\",route=\"/test\"} 1") {
		t.Fatalf("expected metrics to record request, got: %s", body)
	}
	if !strings.Contains(body, "http_request_duration_seconds_bucket{route=\"/test\"") {
		t.Fatalf("expected duration histogram to be present, got: %s", body)
	}
}

func TestLedgerCounters(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObservePosting("SO", nil)
	metrics.ObservePosting("SO", fmt.Errorf("%w: credit", shared.ErrPrecondition))
	metrics.ObservePosting("PO", fmt.Errorf("%w: busy", shared.ErrConflict))
	metrics.ReportServed("balance-sheet", true)
	metrics.ReportServed("balance-sheet", false)
	metrics.AddMatches(true, 3)
	metrics.AddMatches(false, 0)

	body := scrape(t, metrics)
	for _, want := range []string{
		`odyssey_ledger_postings_total{kind="SO",outcome="posted"} 1`,
		`odyssey_ledger_postings_total{kind="SO",outcome="rejected"} 1`,
		`odyssey_ledger_postings_total{kind="PO",outcome="conflict"} 1`,
		`odyssey_ledger_reports_total{cache="hit",report="balance-sheet"} 1`,
		`odyssey_ledger_reports_total{cache="miss",report="balance-sheet"} 1`,
		`odyssey_bank_matches_total{mode="auto"} 3`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %s in:\n%s", want, body)
		}
	}
	if strings.Contains(body, `mode="manual"`) {
		t.Fatalf("zero matches must not create a series")
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObservePosting("SO", nil)
	m.ReportServed("cash-flow", false)
	m.AddMatches(true, 1)
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
