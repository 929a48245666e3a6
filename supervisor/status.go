package supervisor

import (
	"fmt"
	"strings"

	"github.com/ceyewan/grabservice/registry"
)

// Status 一个抓取进程的状态
type Status int32

const (
	// StatusWaiting 进程已启动，尚未输出结果
	StatusWaiting Status = iota
	// StatusOK 进程输出 OK，正在持有引用
	StatusOK
	// StatusDead 进程输出 NO、输出无法识别、已退出或已被释放
	StatusDead
)

func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusOK:
		return "ok"
	case StatusDead:
		return "dead"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

// Kind 抓取程序的种类，对应不同的注册中心
type Kind string

const (
	KindLegacy Kind = "legacy"
	KindFQDN   Kind = "fqdn"
	KindVendor Kind = "vnd"
)

// 各种类对应的抓取程序文件名
const (
	BinaryLegacy = "grabservice"
	BinaryFQDN   = "grabservice-hw"
	BinaryVendor = "grabservice-vnd"
)

// ParseKind 解析 "legacy" / "fqdn" / "vnd"
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindLegacy, KindFQDN, KindVendor:
		return k, nil
	case "hw":
		return KindFQDN, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Binary 抓取程序文件名
func (k Kind) Binary() string {
	switch k {
	case KindFQDN:
		return BinaryFQDN
	case KindVendor:
		return BinaryVendor
	default:
		return BinaryLegacy
	}
}

// Scheme 该种类使用的寻址方式
func (k Kind) Scheme() registry.Scheme {
	if k == KindFQDN {
		return registry.SchemeFQDN
	}
	return registry.SchemeLegacy
}

// ParseTarget 把一个目标字符串解析为服务标识
// FQDN 种类使用 "接口全限定名/实例名" 形式
func ParseTarget(kind Kind, target string) (registry.Identifier, error) {
	if kind.Scheme() == registry.SchemeFQDN {
		return registry.SplitFQName(target)
	}
	return registry.ParseArgs(registry.SchemeLegacy, []string{target})
}
