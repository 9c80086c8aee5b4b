package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/edgegw/internal/observability"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "gateway.yaml")
	writeConfig(t, path, minimalConfig)

	var mu sync.Mutex
	var reloaded []*GatewayConfig
	w, err := NewWatcher(path, func(cfg *GatewayConfig) {
		mu.Lock()
		reloaded = append(reloaded, cfg)
		mu.Unlock()
	}, WithDebounceDelay(20*time.Millisecond), WithLogger(observability.NopLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer func() { _ = w.Stop() }()

	require.NotNil(t, w.Current())
	assert.Len(t, w.Current().Spec.Routes, 1)

	updated := strings.Replace(minimalConfig, "routes:\n", `routes:
    - name: auth
      path: /api/v1/auth/**
      target: http://localhost:8081
`, 1)
	writeConfig(t, path, updated)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reloaded) > 0 && len(reloaded[len(reloaded)-1].Spec.Routes) == 2
	}, 5*time.Second, 10*time.Millisecond)

	assert.Len(t, w.Current().Spec.Routes, 2)
}

func TestWatcher_InvalidChangeKeepsLastConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "gateway.yaml")
	writeConfig(t, path, minimalConfig)

	errCh := make(chan error, 4)
	w, err := NewWatcher(path, nil,
		WithDebounceDelay(20*time.Millisecond),
		WithErrorFunc(func(err error) {
			select {
			case errCh <- err:
			default:
			}
		}),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer func() { _ = w.Stop() }()

	before := w.Current()
	writeConfig(t, path, strings.Replace(minimalConfig, "gateway-cb\n  services", "other-cb\n  services", 1))

	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("expected reload error")
	}
	assert.Same(t, before, w.Current())
}

func TestWatcher_StartFailsOnInvalidFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "gateway.yaml")
	writeConfig(t, path, "spec:\n  routes: []\n")

	w, err := NewWatcher(path, nil)
	require.NoError(t, err)
	assert.Error(t, w.Start(context.Background()))
	assert.NoError(t, w.Stop())
}

func TestWatcher_Reload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "gateway.yaml")
	writeConfig(t, path, minimalConfig)

	calls := 0
	w, err := NewWatcher(path, func(*GatewayConfig) { calls++ })
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	require.NoError(t, w.Reload())
	assert.Equal(t, 1, calls)
	assert.NotNil(t, w.Current())
}
