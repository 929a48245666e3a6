package grab

import (
	"github.com/ceyewan/grabservice/xerrors"
)

// 错误码，供脚本和上层工具识别失败类别
const (
	CodeUsage               = "USAGE"
	CodeRegistryUnavailable = "REGISTRY_UNAVAILABLE"
	CodeLookupFailed        = "LOOKUP_FAILED"
)

var (
	// ErrUsage 命令行参数不正确
	ErrUsage = xerrors.New("usage error")

	// ErrRegistryUnavailable 无法取得注册中心句柄
	ErrRegistryUnavailable = xerrors.New("registry unavailable")

	// ErrLookupFailed 服务查找失败，不区分未注册、无权限和临时故障
	ErrLookupFailed = xerrors.New("lookup failed")
)

// 退出码
const (
	ExitOK          = 0
	ExitUsage       = 1
	ExitUnavailable = 1
	ExitLookup      = 2
)

// UsageError 把参数解析错误归类为用法错误
func UsageError(err error) error {
	if err == nil {
		return nil
	}
	return xerrors.WithCode(xerrors.Join(ErrUsage, err), CodeUsage)
}

func registryUnavailable(err error) error {
	return xerrors.WithCode(xerrors.Join(ErrRegistryUnavailable, err), CodeRegistryUnavailable)
}

func lookupFailed(service string) error {
	return xerrors.WithCode(xerrors.Wrapf(ErrLookupFailed, "service %s", service), CodeLookupFailed)
}

// ExitCode 把 Grab 返回的错误映射为进程退出码
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case xerrors.HasCode(err, CodeLookupFailed):
		return ExitLookup
	case xerrors.HasCode(err, CodeUsage):
		return ExitUsage
	default:
		return ExitUnavailable
	}
}
