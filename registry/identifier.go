package registry

import (
	"fmt"
	"strings"
)

// Scheme 注册中心的寻址方式
type Scheme int

const (
	// SchemeLegacy 扁平命名空间，只用一个服务名寻址
	SchemeLegacy Scheme = iota + 1
	// SchemeFQDN 接口全限定名 + 实例名寻址
	SchemeFQDN
)

func (s Scheme) String() string {
	switch s {
	case SchemeLegacy:
		return "legacy"
	case SchemeFQDN:
		return "fqdn"
	default:
		return fmt.Sprintf("scheme(%d)", int(s))
	}
}

// ParseScheme 解析 "legacy" / "fqdn"
func ParseScheme(s string) (Scheme, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "legacy", "flat":
		return SchemeLegacy, nil
	case "fqdn", "hw":
		return SchemeFQDN, nil
	default:
		return 0, fmt.Errorf("%w: unknown scheme %q", ErrInvalidIdentifier, s)
	}
}

// MinArgs 该寻址方式需要的位置参数个数
func (s Scheme) MinArgs() int {
	if s == SchemeFQDN {
		return 2
	}
	return 1
}

// Usage 返回命令行用法说明
func (s Scheme) Usage(program string) string {
	if s == SchemeFQDN {
		return fmt.Sprintf("Usage: %s service_fqdn instance", program)
	}
	return fmt.Sprintf("Usage: %s service_name", program)
}

// Identifier 要查找的服务标识，构造后不可变
type Identifier interface {
	// Scheme 寻址方式
	Scheme() Scheme
	// Service 扁平服务名，或接口全限定名
	Service() string
	// Instance 实例名，扁平寻址时为空
	Instance() string
	// Args 还原为抓取程序需要的命令行参数
	Args() []string
	String() string
}

// Name 扁平命名空间中的服务名
type Name string

func (n Name) Scheme() Scheme { return SchemeLegacy }

func (n Name) Service() string { return string(n) }

func (n Name) Instance() string { return "" }

func (n Name) Args() []string { return []string{string(n)} }

func (n Name) String() string { return string(n) }

// FQName 接口全限定名 + 实例名，例如 vendor.hal@2.0::IFoo / default
type FQName struct {
	Interface string
	Label     string
}

func (f FQName) Scheme() Scheme { return SchemeFQDN }

func (f FQName) Service() string { return f.Interface }

func (f FQName) Instance() string { return f.Label }

func (f FQName) Args() []string { return []string{f.Interface, f.Label} }

func (f FQName) String() string { return f.Interface + "/" + f.Label }

// ParseArgs 按寻址方式校验命令行位置参数并构造 Identifier
//
// 扁平寻址要求恰好一个参数；FQDN 寻址至少两个参数，多余的参数被忽略。
// 参数个数不对或出现空字符串时返回 ErrInvalidIdentifier。
func ParseArgs(scheme Scheme, args []string) (Identifier, error) {
	var id Identifier
	switch scheme {
	case SchemeLegacy:
		if len(args) != 1 {
			return nil, fmt.Errorf("%w: expected 1 argument, got %d", ErrInvalidIdentifier, len(args))
		}
		id = Name(args[0])
	case SchemeFQDN:
		if len(args) < 2 {
			return nil, fmt.Errorf("%w: expected 2 arguments, got %d", ErrInvalidIdentifier, len(args))
		}
		id = FQName{Interface: args[0], Label: args[1]}
	default:
		return nil, fmt.Errorf("%w: unknown scheme %s", ErrInvalidIdentifier, scheme)
	}

	if err := Validate(id); err != nil {
		return nil, err
	}
	return id, nil
}

// SplitFQName 拆分 "接口全限定名/实例名" 形式的组合标识
//
// 以第一个 "/" 为界，例如 "vendor.hal@2.0::IFoo/default"。
func SplitFQName(s string) (FQName, error) {
	iface, instance, ok := strings.Cut(s, "/")
	if !ok {
		return FQName{}, fmt.Errorf("%w: %q has no instance part", ErrInvalidIdentifier, s)
	}
	id := FQName{Interface: iface, Label: instance}
	if err := Validate(id); err != nil {
		return FQName{}, err
	}
	return id, nil
}

// Validate 检查标识是否可以用于查找
func Validate(id Identifier) error {
	if id == nil {
		return fmt.Errorf("%w: identifier is nil", ErrInvalidIdentifier)
	}
	if strings.TrimSpace(id.Service()) == "" {
		return fmt.Errorf("%w: empty service name", ErrInvalidIdentifier)
	}
	if id.Scheme() != SchemeFQDN {
		return nil
	}
	if strings.TrimSpace(id.Instance()) == "" {
		return fmt.Errorf("%w: empty instance for %s", ErrInvalidIdentifier, id.Service())
	}
	if strings.Contains(id.Service(), "/") || strings.Contains(id.Instance(), "/") {
		return fmt.Errorf("%w: %q must not contain '/'", ErrInvalidIdentifier, id.String())
	}
	return nil
}
