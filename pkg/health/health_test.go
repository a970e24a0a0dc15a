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

type statusBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func passingCheck() CheckFunc {
	return func(context.Context) error { return nil }
}

func failingCheck(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func serve(t *testing.T, handler http.HandlerFunc) (int, statusBody) {
	t.Helper()
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body statusBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func runN(h *Health, probe Probe, idx, n int) {
	for range n {
		h.checks[probe][idx].run(context.Background())
	}
}

func TestLiveEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		runs       int
		wantStatus int
		wantChecks map[string]string
	}{
		{name: "checks start healthy", runs: 0, wantStatus: http.StatusOK},
		{name: "failures below threshold", runs: 2, wantStatus: http.StatusOK},
		{
			name:       "failures reach threshold",
			runs:       3,
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"db": "connection refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New()
			h.Add(Liveness, "ok", time.Second, passingCheck())
			h.Add(Liveness, "db", time.Second, failingCheck("connection refused"))
			runN(h, Liveness, 1, tt.runs)

			code, body := serve(t, h.LiveEndpoint)
			assert.Equal(t, tt.wantStatus, code)
			assert.Equal(t, tt.wantChecks, body.Checks)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "ok", body.Status)
			} else {
				assert.Equal(t, "unhealthy", body.Status)
			}
		})
	}
}

func TestReadyEndpoint(t *testing.T) {
	t.Run("not ready by default", func(t *testing.T) {
		h := New()
		code, body := serve(t, h.ReadyEndpoint)
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "service is not ready", body.Checks["_readiness"])
		assert.False(t, h.IsReady())
	})

	t.Run("ready and passing", func(t *testing.T) {
		h := New()
		h.Add(Readiness, "postgres", time.Second, passingCheck())
		h.SetReady(true)

		code, body := serve(t, h.ReadyEndpoint)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ok", body.Status)
		assert.True(t, h.IsReady())
	})

	t.Run("failing readiness check", func(t *testing.T) {
		h := New()
		h.Add(Readiness, "coupon-filter", time.Second, failingCheck("never refreshed"), WithThresholds(1, 1))
		h.SetReady(true)
		runN(h, Readiness, 0, 1)

		code, body := serve(t, h.ReadyEndpoint)
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, map[string]string{"coupon-filter": "never refreshed"}, body.Checks)
		assert.False(t, h.IsReady())
	})

	t.Run("liveness failures do not affect readiness", func(t *testing.T) {
		h := New()
		h.Add(Liveness, "goroutines", time.Second, failingCheck("too many"), WithThresholds(1, 1))
		h.SetReady(true)
		runN(h, Liveness, 0, 1)

		code, _ := serve(t, h.ReadyEndpoint)
		assert.Equal(t, http.StatusOK, code)
	})
}

func TestCheck_Recovers(t *testing.T) {
	fail := true
	h := New()
	h.Add(Readiness, "flaky", time.Second, func(context.Context) error {
		if fail {
			return errors.New("down")
		}
		return nil
	}, WithThresholds(2, 2))
	h.SetReady(true)

	runN(h, Readiness, 0, 2)
	assert.False(t, h.IsReady())

	fail = false
	runN(h, Readiness, 0, 1)
	assert.False(t, h.IsReady(), "one success is below the success threshold")
	runN(h, Readiness, 0, 1)
	assert.True(t, h.IsReady())
}

func TestCheck_Timeout(t *testing.T) {
	h := New()
	h.Add(Liveness, "slow", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, WithThresholds(1, 1))
	runN(h, Liveness, 0, 1)

	code, body := serve(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, context.DeadlineExceeded.Error(), body.Checks["slow"])
}

func TestStartStop(t *testing.T) {
	h := New()
	h.Add(Readiness, "db", time.Second, failingCheck("down"), WithThresholds(1, 1))
	h.SetReady(true)

	h.Start(context.Background(), 5*time.Millisecond)
	require.Eventually(t, func() bool { return !h.IsReady() }, time.Second, 5*time.Millisecond)

	h.Stop()
	h.Stop()
}

func TestGoroutineCountCheck(t *testing.T) {
	require.NoError(t, GoroutineCountCheck(100000)(context.Background()))
	require.Error(t, GoroutineCountCheck(0)(context.Background()))
}

func TestStalenessCheck(t *testing.T) {
	ctx := context.Background()

	err := StalenessCheck(func() time.Time { return time.Time{} }, time.Minute)(ctx)
	require.EqualError(t, err, "never refreshed")

	require.NoError(t, StalenessCheck(time.Now, time.Minute)(ctx))

	old := func() time.Time { return time.Now().Add(-time.Hour) }
	require.Error(t, StalenessCheck(old, time.Minute)(ctx))
}
