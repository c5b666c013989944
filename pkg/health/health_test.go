package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probe(t *testing.T, handler http.HandlerFunc) (int, probeResponse) {
	t.Helper()

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var resp probeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec.Code, resp
}

func TestService_ReadinessGate(t *testing.T) {
	s := New()

	code, resp := probe(t, s.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code, "service starts not ready")
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Contains(t, resp.Checks, "_readiness")

	s.SetReady(true)
	code, resp = probe(t, s.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, s.IsReady())

	s.SetReady(false)
	code, _ = probe(t, s.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code, "drain closes the gate again")
	assert.False(t, s.IsReady())
}

func TestService_FailingReadinessCheck(t *testing.T) {
	s := New()
	s.AddReadinessCheck("postgres", time.Second, func(context.Context) error {
		return errors.New("connection refused")
	})
	s.SetReady(true)

	s.Start(context.Background(), time.Minute)
	defer s.Stop()

	require.Eventually(t, func() bool {
		code, _ := probe(t, s.ReadyEndpoint)
		return code == http.StatusServiceUnavailable
	}, time.Second, 10*time.Millisecond)

	_, resp := probe(t, s.ReadyEndpoint)
	assert.Equal(t, "connection refused", resp.Checks["postgres"])
	assert.False(t, s.IsReady())
}

func TestService_PassingChecks(t *testing.T) {
	s := New()
	s.AddLivenessCheck("goroutines", time.Second, GoroutineCountCheck(100000))
	s.AddReadinessCheck("noop", time.Second, func(context.Context) error { return nil })
	s.SetReady(true)

	s.Start(context.Background(), time.Minute)
	defer s.Stop()

	require.Eventually(t, func() bool {
		liveCode, _ := probe(t, s.LiveEndpoint)
		readyCode, _ := probe(t, s.ReadyEndpoint)
		return liveCode == http.StatusOK && readyCode == http.StatusOK
	}, time.Second, 10*time.Millisecond)
}

func TestService_LivenessIndependentOfGate(t *testing.T) {
	s := New() // gate closed, no checks

	code, resp := probe(t, s.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code, "liveness ignores the readiness gate")
	assert.Equal(t, "ok", resp.Status)
}

func TestGoroutineCountCheck(t *testing.T) {
	require.NoError(t, GoroutineCountCheck(100000)(context.Background()))
	require.Error(t, GoroutineCountCheck(0)(context.Background()))
}
