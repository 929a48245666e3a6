package registry

import "time"

// DefaultNamespace 未配置 Namespace 时使用的 Key 前缀
const DefaultNamespace = "/grabservice/binder"

// Config Registry 组件配置
type Config struct {
	// Namespace Etcd Key 前缀，不同的注册中心使用不同的前缀
	Namespace string `mapstructure:"namespace" yaml:"namespace" json:"namespace"`

	// ClientTTL 客户端登记租约时长，进程退出后最多经过这么久注册中心才能看到客户端离开，默认 10s
	ClientTTL time.Duration `mapstructure:"client_ttl" yaml:"client_ttl" json:"client_ttl"`

	// DialService 取得引用后是否同时建立到服务实例 endpoint 的 gRPC 通道
	DialService bool `mapstructure:"dial_service" yaml:"dial_service" json:"dial_service"`
}

// validate 设置默认值并校验
func (c *Config) validate() error {
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
	for len(c.Namespace) > 1 && c.Namespace[len(c.Namespace)-1] == '/' {
		c.Namespace = c.Namespace[:len(c.Namespace)-1]
	}
	if c.ClientTTL == 0 {
		c.ClientTTL = 10 * time.Second
	}
	if c.ClientTTL < time.Second {
		return ErrInvalidTTL
	}
	return nil
}
