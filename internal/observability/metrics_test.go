package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relay-core/relay/internal/rpc"
)

func TestObserveExportsSeries(t *testing.T) {
	metrics := NewMetrics()
	metrics.Observe("records.list", "OK", 15*time.Millisecond)
	metrics.Observe("records.list", rpc.CodeForbidden, time.Millisecond)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	require.Contains(t, body, `relay_rpc_calls_total{code="OK",procedure="records.list"} 1`)
	require.Contains(t, body, `relay_rpc_calls_total{code="FORBIDDEN",procedure="records.list"} 1`)
	require.Contains(t, body, "relay_rpc_call_duration_seconds")
}

func TestMiddlewareObservesWithoutAlteringResult(t *testing.T) {
	metrics := NewMetrics()
	reg := rpc.NewRegistry()
	reg.Use(metrics.Middleware())
	reg.Handle(rpc.Query("ping", func(ctx context.Context, call rpc.Ctx, in struct{}) (struct{}, error) {
		return struct{}{}, nil
	}))
	reg.Handle(rpc.Query("boom", func(ctx context.Context, call rpc.Ctx, in struct{}) (struct{}, error) {
		return struct{}{}, rpc.NotFound("nothing here")
	}))

	_, err := reg.Dispatch(context.Background(), "ping", nil, rpc.NewCtx("r"))
	require.NoError(t, err)

	_, err = reg.Dispatch(context.Background(), "boom", nil, rpc.NewCtx("r"))
	require.Error(t, err)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	require.Contains(t, body, `procedure="ping"`)
	require.True(t, strings.Contains(body, `code="NOT_FOUND"`))
}

func TestNilMetricsAreInert(t *testing.T) {
	var metrics *Metrics
	metrics.Observe("x", "OK", time.Second)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
