package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalConfig = `
apiVersion: edgegw.io/v1
kind: Gateway
metadata:
  name: test
spec:
  auth:
    validateURL: ${TEST_EDGEGW_VALIDATE_URL:-http://auth.local/validate}
  circuitBreakers:
    - name: gateway-cb
  services:
    - name: car-microservice
      instances: ["localhost:8080"]
  routes:
    - name: cars
      path: /api/v1/cars/**
      target: lb://car-microservice
      requiresAuth: true
      circuitBreaker: gateway-cb
`

func TestLoadConfigFromReader_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfigFromReader(strings.NewReader(minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Spec.Listener.Port)
	assert.Equal(t, DefaultBind, cfg.Spec.Listener.Bind)
	assert.Equal(t, "http://auth.local/validate", cfg.Spec.Auth.ValidateURL)
	assert.Equal(t, DefaultAuthTimeout, cfg.Spec.Auth.Timeout.Duration())
	assert.Equal(t, DefaultValidField, cfg.Spec.Auth.ValidField)
	assert.Equal(t, CacheTypeMemory, cfg.Spec.Auth.Cache.Type)

	cb, ok := cfg.BreakerByName("gateway-cb")
	require.True(t, ok)
	assert.Equal(t, DefaultFailureThreshold, cb.FailureThreshold)
	assert.Equal(t, DefaultOpenDuration, cb.OpenDuration.Duration())
	assert.Equal(t, DefaultHalfOpenTrialCount, cb.HalfOpenTrialCount)
	assert.Equal(t, EngineNative, cb.Engine)

	require.NoError(t, ValidateConfig(cfg))
}

func TestLoadConfig_EnvSubstitution(t *testing.T) {
	t.Setenv("TEST_EDGEGW_VALIDATE_URL", "http://security:8081/api/v1/auth/validate")

	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalConfig), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://security:8081/api/v1/auth/validate", cfg.Spec.Auth.ValidateURL)
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{name: "empty document", content: "", errMsg: "empty document"},
		{name: "invalid yaml", content: "spec: [", errMsg: "failed to parse YAML"},
		{name: "unknown field", content: "spec:\n  bogus: true\n", errMsg: "bogus"},
		{name: "bad duration", content: "spec:\n  auth:\n    timeout: soon\n", errMsg: "invalid duration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := LoadConfigFromReader(strings.NewReader(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_ShippedConfig(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(filepath.Join("..", "..", "configs", "gateway.yaml"))
	require.NoError(t, err)
	require.NoError(t, ValidateConfig(cfg))

	assert.True(t, cfg.Spec.Routing.Strict)
	assert.Len(t, cfg.Spec.Routes, 13)

	byName := make(map[string]RouteConfig)
	for _, r := range cfg.Spec.Routes {
		byName[r.Name] = r
	}

	auth := byName["auth"]
	assert.False(t, auth.RequiresAuth)
	assert.Empty(t, auth.CircuitBreaker)
	assert.Equal(t, "lb://security-microservice", auth.Target)

	drivingIncidents := byName["driving_incidents"]
	assert.True(t, drivingIncidents.RequiresAuth)
	assert.Equal(t, "gateway-cb", drivingIncidents.CircuitBreaker)
	assert.Equal(t, "/api/v1/fallback/incidents", drivingIncidents.Fallback)
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("TEST_EDGEGW_SET", "value")

	tests := []struct {
		in   string
		want string
	}{
		{in: "${TEST_EDGEGW_SET}", want: "value"},
		{in: "${TEST_EDGEGW_SET:-other}", want: "value"},
		{in: "${TEST_EDGEGW_UNSET:-fallback}", want: "fallback"},
		{in: "${TEST_EDGEGW_UNSET}", want: ""},
		{in: "cost: $$5", want: "cost: $5"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, substituteEnvVars(tt.in), tt.in)
	}
}

func TestDuration_JSON(t *testing.T) {
	t.Parallel()

	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"1m30s"`)))
	assert.Equal(t, 90*time.Second, d.Duration())

	out, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(out))

	require.NoError(t, d.UnmarshalJSON([]byte("null")))
	assert.Zero(t, d)

	assert.Error(t, d.UnmarshalJSON([]byte(`"later"`)))
}

func TestResolveConfigPath(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalConfig), 0o600))

	resolved, err := ResolveConfigPath(path)
	require.NoError(t, err)
	assert.Equal(t, path, resolved)

	_, err = ResolveConfigPath(filepath.Join(t.TempDir(), "none.yaml"))
	assert.Error(t, err)
}
