package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/ceyewan/grabservice/registry"
)

// syncBuffer 可被多个协程同时写入的 buffer
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type stubReference struct{ id registry.Identifier }

func (r stubReference) ID() string { return "ref-1" }

func (r stubReference) Identifier() registry.Identifier { return r.id }

func (r stubReference) Instance() *registry.ServiceInstance {
	return &registry.ServiceInstance{ID: "inst-1"}
}

func (r stubReference) Conn() *grpc.ClientConn { return nil }

func (r stubReference) Release(context.Context) error { return nil }

// stubManager 只认识 known 中的服务
type stubManager struct{ known map[string]bool }

func (m stubManager) Get(_ context.Context, id registry.Identifier) (registry.Reference, error) {
	if !m.known[id.String()] {
		return nil, registry.ErrServiceNotFound
	}
	return stubReference{id: id}, nil
}

func (m stubManager) Close() error { return nil }

func stubDialer(dials *atomic.Int32, services ...string) registry.Dialer {
	known := make(map[string]bool)
	for _, s := range services {
		known[s] = true
	}
	return func(context.Context) (registry.Manager, error) {
		dials.Add(1)
		return stubManager{known: known}, nil
	}
}

func noWait(context.Context) {}

func TestRunUsage(t *testing.T) {
	tests := []struct {
		name    string
		variant Variant
		args    []string
		usage   string
	}{
		{"legacy zero args", Binder, nil, "Usage: grabservice service_name"},
		{"legacy two args", Binder, []string{"a", "b"}, "Usage: grabservice service_name"},
		{"fqdn one arg", HwBinder, []string{"vendor.hal@2.0::IFoo"}, "Usage: grabservice-hw service_fqdn instance"},
		{"vnd zero args", VndBinder, []string{}, "Usage: grabservice-vnd service_name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dials atomic.Int32
			var stdout, stderr bytes.Buffer
			code := Run(tt.variant, tt.args, &stdout, &stderr,
				WithDialer(stubDialer(&dials, "media.player")), WithWait(noWait),
				WithConfigPaths(t.TempDir()))

			assert.Equal(t, 1, code)
			assert.Empty(t, stdout.String())
			assert.Equal(t, tt.usage+"\n", stderr.String())
			assert.Zero(t, dials.Load())
		})
	}
}

func TestRunHolding(t *testing.T) {
	var dials atomic.Int32
	var stdout, stderr bytes.Buffer
	code := Run(Binder, []string{"media.player"}, &stdout, &stderr,
		WithDialer(stubDialer(&dials, "media.player")), WithWait(noWait),
		WithConfigPaths(t.TempDir()))

	assert.Equal(t, 0, code)
	assert.Equal(t, "OK\n", stdout.String())
	assert.Contains(t, stderr.String(), "holding ref to service: media.player")
	assert.EqualValues(t, 1, dials.Load())
}

func TestRunQuietLogLevelKeepsHoldingNotice(t *testing.T) {
	for _, level := range []string{"warn", "error"} {
		t.Run(level, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "grabservice.yaml"),
				[]byte("log:\n  level: "+level+"\n"), 0o644))

			var dials atomic.Int32
			var stdout, stderr bytes.Buffer
			code := Run(Binder, []string{"media.player"}, &stdout, &stderr,
				WithDialer(stubDialer(&dials, "media.player")), WithWait(noWait), WithConfigPaths(dir))

			assert.Equal(t, 0, code)
			assert.Equal(t, "OK\n", stdout.String())
			assert.Contains(t, stderr.String(), "holding ref to service: media.player")
		})
	}
}

func TestRunFQDNIgnoresExtraArgs(t *testing.T) {
	var dials atomic.Int32
	var stdout, stderr bytes.Buffer
	code := Run(HwBinder, []string{"vendor.hal@2.0::IFoo", "default", "extra"}, &stdout, &stderr,
		WithDialer(stubDialer(&dials, "vendor.hal@2.0::IFoo/default")), WithWait(noWait),
		WithConfigPaths(t.TempDir()))

	assert.Equal(t, 0, code)
	assert.Equal(t, "OK\n", stdout.String())
}

func TestRunLookupFailed(t *testing.T) {
	var dials atomic.Int32
	var stdout, stderr bytes.Buffer
	code := Run(Binder, []string{"nonexistent.service"}, &stdout, &stderr,
		WithDialer(stubDialer(&dials, "media.player")), WithWait(noWait),
		WithConfigPaths(t.TempDir()))

	assert.Equal(t, 2, code)
	assert.Equal(t, "NO\n", stdout.String())
	assert.Contains(t, stderr.String(), "Unable to hold ref to service: nonexistent.service")
}

func TestRunRegistryUnavailable(t *testing.T) {
	t.Setenv("GRABSERVICE_ETCD_ENDPOINTS", "127.0.0.1:1")
	t.Setenv("GRABSERVICE_ETCD_DIAL_TIMEOUT", "200ms")

	var stdout, stderr bytes.Buffer
	code := Run(Binder, []string{"media.player"}, &stdout, &stderr,
		WithWait(noWait), WithConfigPaths(t.TempDir()))

	assert.Equal(t, 1, code)
	assert.Equal(t, "NO\n", stdout.String())
	assert.Contains(t, stderr.String(), "Unable to get default service manager!")
}

func TestRunInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "grabservice.yaml"), []byte("log: [unclosed"), 0o644))

	var dials atomic.Int32
	var stdout, stderr bytes.Buffer
	code := Run(Binder, []string{"media.player"}, &stdout, &stderr,
		WithDialer(stubDialer(&dials, "media.player")), WithWait(noWait), WithConfigPaths(dir))

	assert.Equal(t, 1, code)
	assert.Equal(t, "NO\n", stdout.String())
	assert.Zero(t, dials.Load())
}

func TestRunHotReloadsLogLevel(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "grabservice.yaml")
	require.NoError(t, os.WriteFile(file, []byte("log:\n  level: info\n"), 0o644))

	var dials atomic.Int32
	var stdout bytes.Buffer
	stderr := &syncBuffer{}

	wait := func(ctx context.Context) {
		// 给文件监听一点启动时间
		time.Sleep(200 * time.Millisecond)
		_ = os.WriteFile(file, []byte("log:\n  level: debug\n"), 0o644)

		deadline := time.After(5 * time.Second)
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-deadline:
				return
			case <-ticker.C:
				if bytes.Contains([]byte(stderr.String()), []byte("log level changed")) {
					return
				}
			}
		}
	}

	code := Run(Binder, []string{"media.player"}, &stdout, stderr,
		WithDialer(stubDialer(&dials, "media.player")), WithWait(wait), WithConfigPaths(dir))

	assert.Equal(t, 0, code)
	assert.Equal(t, "OK\n", stdout.String())
	assert.Contains(t, stderr.String(), "log level changed")
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, loader, err := LoadConfig(context.Background(), []string{t.TempDir()}, nil)
	require.NoError(t, err)
	assert.Empty(t, loader.ConfigFileUsed())

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "stderr", cfg.Log.Output)
	assert.Equal(t, []string{"127.0.0.1:2379"}, cfg.Etcd.Endpoints)
	assert.Equal(t, 3*time.Second, cfg.Etcd.DialTimeout)
	assert.Equal(t, 10*time.Second, cfg.Registry.ClientTTL)
	assert.True(t, cfg.Registry.DialService)

	assert.Equal(t, "/grabservice/binder", cfg.Registry.Namespace(Binder))
	assert.Equal(t, "/grabservice/hwbinder", cfg.Registry.For(HwBinder).Namespace)
	assert.Equal(t, "/grabservice/vndbinder", cfg.Registry.Namespace(VndBinder))
}

func TestLoadConfigEnv(t *testing.T) {
	t.Setenv("GRABSERVICE_ETCD_ENDPOINTS", "10.0.0.1:2379,10.0.0.2:2379")
	t.Setenv("GRABSERVICE_REGISTRY_ROOT", "/lab/")
	t.Setenv("GRABSERVICE_REGISTRY_DIAL_SERVICE", "false")

	cfg, _, err := LoadConfig(context.Background(), []string{t.TempDir()}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1:2379", "10.0.0.2:2379"}, cfg.Etcd.Endpoints)
	assert.Equal(t, "/lab/vndbinder", cfg.Registry.Namespace(VndBinder))
	assert.False(t, cfg.Registry.DialService)
}

func TestLoadLogConfig(t *testing.T) {
	cfg, err := LoadLogConfig(context.Background(), []string{t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.Equal(t, "stderr", cfg.Output)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "grabservice.yaml"),
		[]byte("log:\n  level: debug\n  format: json\netcd:\n  endpoints: [etcd-0:2379]\n"), 0o644))

	cfg, err = LoadLogConfig(context.Background(), []string{dir})
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
}
