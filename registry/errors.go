package registry

import "github.com/ceyewan/grabservice/xerrors"

var (
	// ErrServiceNotFound 注册中心中没有该服务
	ErrServiceNotFound = xerrors.New("service not found")

	// ErrInvalidIdentifier 服务标识无效（参数个数或内容不对）
	ErrInvalidIdentifier = xerrors.New("invalid service identifier")

	// ErrRegistryUnavailable 无法取得注册中心句柄
	ErrRegistryUnavailable = xerrors.New("registry unavailable")

	// ErrRegistryClosed Manager 已关闭
	ErrRegistryClosed = xerrors.New("registry is closed")

	// ErrInstanceGone 查找到实例后、登记客户端之前实例已被注销
	ErrInstanceGone = xerrors.New("service instance deregistered during acquire")

	// ErrInvalidTTL 客户端租约时长无效
	ErrInvalidTTL = xerrors.New("invalid client ttl")
)
