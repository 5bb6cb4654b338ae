package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	_ "github.com/odyssey-erp/odyssey-ledger/internal/testing/guard"
)

func TestLoadConfigDefaultsAndValidation(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "120")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.UsesMemoryStore(), "test mode forces the memory store")
	require.Equal(t, 120, cfg.RateLimitPerMinute)
	require.Equal(t, 3, cfg.BankMatchMaxDays)
	require.False(t, cfg.IsProduction())

	bad := &Config{StoreDriver: "sqlite", RateLimitPerMinute: 1}
	require.ErrorContains(t, bad.validate(), "unknown STORE_DRIVER")
	bad = &Config{StoreDriver: StoreMemory, BankMatchMaxDays: -1, RateLimitPerMinute: 1}
	require.Error(t, bad.validate())
}

func TestTestModeFollowsEnvironment(t *testing.T) {
	t.Setenv(testModeEnv, "0")
	require.False(t, InTestMode())
	t.Setenv("STORE_DRIVER", "sqlite")
	_, err := LoadConfig()
	require.ErrorContains(t, err, "unknown STORE_DRIVER", "outside test mode the driver is taken as given")

	t.Setenv(testModeEnv, "1")
	require.True(t, InTestMode())
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, StoreMemory, cfg.StoreDriver)
}

func TestLoggerHonoursLevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogFormat: "json", LogLevel: "warn"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", slog.Int("n", 1))
	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, `"msg":"shown"`)
}

type server struct {
	t       *testing.T
	handler http.Handler
}

func (s server) do(method, path, body string) (int, map[string]any) {
	s.t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set(httpx.HeaderCompanyID, "1")
	req.Header.Set(httpx.HeaderActorID, "7")
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	var env map[string]any
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		require.NoError(s.t, json.Unmarshal(rr.Body.Bytes(), &env))
	}
	return rr.Code, env
}

func memoryRuntime(t *testing.T) *Runtime {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := &Config{
		StoreDriver:        StoreMemory,
		RedisAddr:          mr.Addr(),
		RateLimitPerMinute: 1000,
		BankMatchMaxDays:   3,
		MetricsEnabled:     true,
		ReportCacheTTL:     time.Minute,
	}
	rt, err := Build(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(rt.Close)
	return rt
}

func TestRouterServesLedgerEndToEnd(t *testing.T) {
	rt := memoryRuntime(t)
	srv := server{t: t, handler: rt.Router(nil)}

	code, _ := srv.do(http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, code)
	code, _ = srv.do(http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, code)

	code, body := srv.do(http.MethodPost, "/api/v1/accounts/seed", "")
	require.Equal(t, http.StatusOK, code, body)

	code, body = srv.do(http.MethodGet, "/api/v1/accounts", "")
	require.Equal(t, http.StatusOK, code)
	ids := map[string]float64{}
	for _, raw := range body["data"].([]any) {
		acc := raw.(map[string]any)
		ids[acc["code"].(string)] = acc["account_id"].(float64)
	}
	require.Contains(t, ids, "1001")
	require.Contains(t, ids, "6001")

	entry := `{"date":"2024-01-05","description":"cash sale","post":true,"lines":[` +
		`{"account_id":` + jsonNumber(ids["1001"]) + `,"debit":"1000.00"},` +
		`{"account_id":` + jsonNumber(ids["6001"]) + `,"credit":"1000.00"}]}`
	code, body = srv.do(http.MethodPost, "/api/v1/journals", entry)
	require.Equal(t, http.StatusCreated, code, body)

	code, body = srv.do(http.MethodGet, "/api/v1/reports/balance-sheet?as_of=2024-01-31", "")
	require.Equal(t, http.StatusOK, code, body)
	view := body["data"].(map[string]any)
	require.Equal(t, false, view["cached"])
	require.Equal(t, true, view["data"].(map[string]any)["is_balanced"])

	_, body = srv.do(http.MethodGet, "/api/v1/reports/balance-sheet?as_of=2024-01-31", "")
	require.Equal(t, true, body["data"].(map[string]any)["cached"])

	code, body = srv.do(http.MethodGet, "/api/v1/reports/cash-flow?start=2024-02-01", "")
	require.Equal(t, http.StatusBadRequest, code)
	require.Equal(t, false, body["success"])
}

func TestCustomerShowCarriesOrderStats(t *testing.T) {
	rt := memoryRuntime(t)
	srv := server{t: t, handler: rt.Router(nil)}

	code, body := srv.do(http.MethodPost, "/api/v1/customers", `{"name":"Globex","credit_limit":"5000"}`)
	require.Equal(t, http.StatusCreated, code, body)
	id := jsonNumber(body["data"].(map[string]any)["id"].(float64))

	code, body = srv.do(http.MethodGet, "/api/v1/customers/"+id, "")
	require.Equal(t, http.StatusOK, code, body)
	customer := body["data"].(map[string]any)
	require.Equal(t, "Globex", customer["name"])
	stats := customer["order_stats"].(map[string]any)
	require.Equal(t, float64(0), stats["total_orders"])
	require.Equal(t, "0", stats["current_debt"])
	require.Equal(t, "5000", stats["available_credit"])

	code, body = srv.do(http.MethodPost, "/api/v1/suppliers", `{"name":"Acme"}`)
	require.Equal(t, http.StatusCreated, code, body)
	id = jsonNumber(body["data"].(map[string]any)["id"].(float64))
	_, body = srv.do(http.MethodGet, "/api/v1/suppliers/"+id, "")
	require.NotContains(t, body["data"].(map[string]any), "order_stats")
}

func TestRouterRequiresTenant(t *testing.T) {
	rt := memoryRuntime(t)
	handler := rt.Router(nil)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "odyssey_http_requests_total")
}

func jsonNumber(f float64) string {
	b, _ := json.Marshal(int64(f))
	return string(b)
}
