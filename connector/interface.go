// Package connector 管理到服务注册中心后端的连接。
//
// 连接器只负责连接的生命周期（创建、探活、关闭），不涉及业务语义；
// registry 组件借用连接器的客户端完成查找与引用持有。
//
// 基本使用：
//
//	conn, err := connector.NewEtcd(&connector.EtcdConfig{
//		Endpoints: []string{"127.0.0.1:2379"},
//	}, connector.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer conn.Close()
//
//	if err := conn.Connect(ctx); err != nil {
//		return err // 注册中心不可达
//	}
//
// 资源所有权：谁创建连接器，谁负责 Close。
package connector

import (
	"context"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// Connector 所有连接器的通用行为，方法均并发安全
type Connector interface {
	// Connect 建立连接并探活，幂等
	//
	// 返回错误：
	//   - ErrConnection: 后端不可达
	//   - ErrAlreadyClosed: 连接器已关闭
	Connect(ctx context.Context) error

	// Close 关闭连接，幂等
	Close() error

	// HealthCheck 发送探测请求并更新 IsHealthy 的缓存结果
	HealthCheck(ctx context.Context) error

	// IsHealthy 返回最后一次探测的结果，不阻塞
	IsHealthy() bool

	// Name 连接实例名称，用于日志
	Name() string
}

// TypedConnector 提供类型安全的客户端访问
type TypedConnector[T any] interface {
	Connector

	// GetClient 返回底层客户端，Close 之后返回 nil
	GetClient() T
}

// EtcdConnector Etcd 连接器接口
type EtcdConnector interface {
	TypedConnector[*clientv3.Client]
}
