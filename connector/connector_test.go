package connector

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/grabservice/clog"
	"github.com/ceyewan/grabservice/xerrors"
)

// TestEtcdConfigValidation 测试 Etcd 配置验证
func TestEtcdConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		cfg         *EtcdConfig
		wantErr     bool
		errContains string
	}{
		{
			name: "valid config",
			cfg: &EtcdConfig{
				Endpoints: []string{"localhost:2379"},
			},
		},
		{
			name: "multiple endpoints",
			cfg: &EtcdConfig{
				Endpoints: []string{"localhost:2379", "localhost:2380"},
			},
		},
		{
			name:        "empty endpoints should fail",
			cfg:         &EtcdConfig{Endpoints: []string{}},
			wantErr:     true,
			errContains: "端点不能为空",
		},
		{
			name:        "blank endpoint should fail",
			cfg:         &EtcdConfig{Endpoints: []string{""}},
			wantErr:     true,
			errContains: "空字符串",
		},
		{
			name:        "negative dial timeout should fail",
			cfg:         &EtcdConfig{Endpoints: []string{"localhost:2379"}, DialTimeout: -time.Second},
			wantErr:     true,
			errContains: "超时",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "default", tt.cfg.Name)
			assert.Equal(t, 3*time.Second, tt.cfg.DialTimeout)
		})
	}
}

func TestNewEtcdInvalidConfig(t *testing.T) {
	_, err := NewEtcd(nil)
	assert.ErrorIs(t, err, ErrConfig)

	_, err = NewEtcd(&EtcdConfig{})
	assert.ErrorIs(t, err, ErrConfig)
}

// TestConnectUnreachable 不可达的注册中心应在 DialTimeout 内返回 ErrConnection
func TestConnectUnreachable(t *testing.T) {
	conn, err := NewEtcd(&EtcdConfig{
		Name:        "unreachable",
		Endpoints:   []string{"127.0.0.1:1"},
		DialTimeout: 200 * time.Millisecond,
	}, WithLogger(clog.Discard()))
	require.NoError(t, err)
	defer conn.Close()

	start := time.Now()
	err = conn.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, ErrConnection))
	assert.False(t, conn.IsHealthy())
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, "unreachable", conn.Name())
}

// TestCloseIdempotent 重复关闭不报错，关闭后 Connect 返回 ErrAlreadyClosed
func TestCloseIdempotent(t *testing.T) {
	conn, err := NewEtcd(&EtcdConfig{Endpoints: []string{"127.0.0.1:1"}})
	require.NoError(t, err)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.Nil(t, conn.GetClient())
	assert.ErrorIs(t, conn.Connect(context.Background()), ErrAlreadyClosed)
	assert.ErrorIs(t, conn.HealthCheck(context.Background()), ErrClientNil)
}

func TestConnectorConcurrency(t *testing.T) {
	conn, err := NewEtcd(&EtcdConfig{Endpoints: []string{"127.0.0.1:1"}})
	require.NoError(t, err)
	defer conn.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = conn.IsHealthy()
			_ = conn.GetClient()
			_ = conn.Name()
		}()
	}
	wg.Wait()
}
