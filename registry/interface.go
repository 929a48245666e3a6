package registry

import (
	"context"

	"google.golang.org/grpc"
)

// Manager 注册中心句柄
//
// 一个进程通常只创建一个 Manager。Get 成功返回的 Reference 在 Release
// 或进程退出之前一直被注册中心视为一个存活的客户端。
type Manager interface {
	// Get 查找服务并取得一个引用
	//
	// 返回错误：
	//   - ErrInvalidIdentifier: 标识无效
	//   - ErrServiceNotFound: 注册中心中没有该服务
	//   - ErrInstanceGone: 实例在登记客户端之前被注销
	//   - ErrRegistryClosed: Manager 已关闭
	//   - 其他: 与注册中心通信失败
	Get(ctx context.Context, id Identifier) (Reference, error)

	// Close 释放所有尚未释放的引用并停止后台任务，幂等
	Close() error
}

// Reference 一个被持有的服务引用
type Reference interface {
	// ID 引用的唯一标识，同时也是客户端登记的 Key 后缀
	ID() string

	// Identifier 查找时使用的服务标识
	Identifier() Identifier

	// Instance 被引用的服务实例
	Instance() *ServiceInstance

	// Conn 到服务实例的 gRPC 通道，未开启 DialService 或实例没有 endpoint 时为 nil
	Conn() *grpc.ClientConn

	// Release 注销客户端登记并关闭通道，幂等
	Release(ctx context.Context) error
}

// Dialer 取得注册中心句柄
//
// 注册中心不可达时返回的错误满足 errors.Is(err, ErrRegistryUnavailable)。
type Dialer func(ctx context.Context) (Manager, error)
