package testkit

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ceyewan/grabservice/connector"
)

// GetEtcdConfig 返回 Etcd 测试配置
// 默认连接 127.0.0.1:2379，可通过 ETCD_ENDPOINTS（逗号分隔）覆盖
func GetEtcdConfig() *connector.EtcdConfig {
	endpoints := []string{"127.0.0.1:2379"}
	if v := os.Getenv("ETCD_ENDPOINTS"); v != "" {
		endpoints = strings.Split(v, ",")
	}
	return &connector.EtcdConfig{
		Name:        "test-etcd",
		Endpoints:   endpoints,
		DialTimeout: 2 * time.Second,
	}
}

// GetEtcdConnector 获取已连接的 Etcd 连接器，Etcd 不可达时跳过当前测试
func GetEtcdConnector(t *testing.T) connector.EtcdConnector {
	t.Helper()

	conn, err := connector.NewEtcd(GetEtcdConfig(), connector.WithLogger(NewLogger()))
	if err != nil {
		t.Skipf("Etcd not available, skipping test: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := conn.Connect(ctx); err != nil {
		_ = conn.Close()
		t.Skipf("Failed to connect to Etcd, skipping test: %v", err)
	}

	t.Cleanup(func() {
		_ = conn.Close()
	})

	return conn
}

// GetEtcdClient 获取原生 Etcd 客户端
func GetEtcdClient(t *testing.T) *clientv3.Client {
	return GetEtcdConnector(t).GetClient()
}
