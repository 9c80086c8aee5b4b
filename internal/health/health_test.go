package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticCheck(status Status, message string) CheckFunc {
	return func(context.Context) Check {
		return Check{Status: status, Message: message}
	}
}

func TestChecker_Health(t *testing.T) {
	t.Parallel()

	c := NewChecker("1.2.3")
	resp := c.Health()

	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.NotEmpty(t, resp.Uptime)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestChecker_Readiness(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		checks   map[string]CheckFunc
		expected Status
		code     int
	}{
		{
			name:     "no checks",
			expected: StatusHealthy,
			code:     http.StatusOK,
		},
		{
			name: "all healthy",
			checks: map[string]CheckFunc{
				"a": staticCheck(StatusHealthy, ""),
				"b": staticCheck(StatusHealthy, ""),
			},
			expected: StatusHealthy,
			code:     http.StatusOK,
		},
		{
			name: "degraded",
			checks: map[string]CheckFunc{
				"a": staticCheck(StatusHealthy, ""),
				"b": staticCheck(StatusDegraded, "slow"),
			},
			expected: StatusDegraded,
			code:     http.StatusOK,
		},
		{
			name: "unhealthy wins over degraded",
			checks: map[string]CheckFunc{
				"a": staticCheck(StatusUnhealthy, "down"),
				"b": staticCheck(StatusDegraded, "slow"),
			},
			expected: StatusUnhealthy,
			code:     http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := NewChecker("test")
			for name, fn := range tt.checks {
				c.RegisterCheck(name, fn)
			}

			resp := c.Readiness(context.Background())
			assert.Equal(t, tt.expected, resp.Status)
			assert.Len(t, resp.Checks, len(tt.checks))

			rec := httptest.NewRecorder()
			c.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
			assert.Equal(t, tt.code, rec.Code)

			var body ReadinessResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.expected, body.Status)
		})
	}
}

func TestChecker_UnregisterCheck(t *testing.T) {
	t.Parallel()

	c := NewChecker("test")
	c.RegisterCheck("flaky", staticCheck(StatusUnhealthy, "down"))
	require.Equal(t, StatusUnhealthy, c.Readiness(context.Background()).Status)

	c.UnregisterCheck("flaky")
	assert.Equal(t, StatusHealthy, c.Readiness(context.Background()).Status)
}

func TestChecker_Register(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	NewChecker("9.9.9").Register(mux)

	tests := []struct {
		path     string
		contains string
	}{
		{"/health", `"version":"9.9.9"`},
		{"/ready", `"status":"healthy"`},
		{"/live", `{"status":"ok"}`},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Body.String(), tt.contains)
		})
	}
}
