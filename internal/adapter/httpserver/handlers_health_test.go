package httpserver

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthOK(_ context.Context) error { return nil }

func healthErr(msg string) func(context.Context) error {
	return func(_ context.Context) error { return errors.New(msg) }
}

var counterStoreDegrades = map[string]string{
	"rate_limiter":       "fail_open",
	"duplicate_detector": "fail_closed",
}

func storeChecks(postgres, redis func(context.Context) error) func(*Server) {
	return withHealthChecks(
		HealthCheck{Name: "postgres", Store: "record_store", Check: postgres},
		HealthCheck{Name: "redis", Store: "counter_store", Degrades: counterStoreDegrades, Check: redis},
	)
}

func TestHealthReady_AllStoresUp(t *testing.T) {
	srv := newTestServer(t, &mockAppService{}, storeChecks(healthOK, healthOK))

	rec := serve(srv, http.MethodGet, "/health/ready", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready","checks":[
		{"name":"postgres","store":"record_store","status":"up"},
		{"name":"redis","store":"counter_store","status":"up"}
	]}`, rec.Body.String())
}

func TestHealthReady_CounterStoreDownIsDegraded(t *testing.T) {
	srv := newTestServer(t, &mockAppService{}, storeChecks(healthOK, healthErr("connection refused")))

	rec := serve(srv, http.MethodGet, "/health/ready", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"degraded","checks":[
		{"name":"postgres","store":"record_store","status":"up"},
		{"name":"redis","store":"counter_store","status":"down","error":"connection refused",
		 "degrades":{"rate_limiter":"fail_open","duplicate_detector":"fail_closed"}}
	]}`, rec.Body.String())
}

func TestHealthReady_RecordStoreDownIsUnhealthy(t *testing.T) {
	redisChecked := false
	srv := newTestServer(t, &mockAppService{}, storeChecks(
		healthErr("no route to host"),
		func(context.Context) error { redisChecked = true; return errors.New("timeout") },
	))

	rec := serve(srv, http.MethodGet, "/health/ready", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"unhealthy"`)
	assert.Contains(t, rec.Body.String(), `"error":"no route to host"`)
	assert.True(t, redisChecked)
}

func TestHealthStartup_IgnoresOptionalStores(t *testing.T) {
	srv := newTestServer(t, &mockAppService{}, storeChecks(healthOK, healthErr("connection refused")))

	rec := serve(srv, http.MethodGet, "/health/startup", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready","checks":[
		{"name":"postgres","store":"record_store","status":"up"}
	]}`, rec.Body.String())
}

func TestHealthStartup_RecordStoreDown(t *testing.T) {
	srv := newTestServer(t, &mockAppService{}, storeChecks(healthErr("down"), healthOK))

	rec := serve(srv, http.MethodGet, "/health/startup", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthLive_ReportsUptime(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testNow)
	srv := newTestServer(t, &mockAppService{}, func(s *Server) { s.clock = clock })
	clock.Advance(90 * time.Second)

	rec := serve(srv, http.MethodGet, "/health/live", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","uptime":90}`, rec.Body.String())
}

func TestVersionEndpoint(t *testing.T) {
	srv := newTestServer(t, &mockAppService{})

	rec := serve(srv, http.MethodGet, "/version", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version"`)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, &mockAppService{})

	rec := serve(srv, http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "planverify_http_in_flight_requests")
}
