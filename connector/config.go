package connector

import (
	"fmt"
	"time"
)

// EtcdConfig Etcd 连接配置
type EtcdConfig struct {
	Name string `mapstructure:"name"` // 连接器名称 (默认: "default")

	Endpoints []string `mapstructure:"endpoints"` // [必填] 连接地址列表
	Username  string   `mapstructure:"username"`  // [可选] 认证用户
	Password  string   `mapstructure:"password"`  // [可选] 认证密码

	DialTimeout      time.Duration `mapstructure:"dial_timeout"`       // 连接及探活超时 (默认: 3s)
	KeepAliveTime    time.Duration `mapstructure:"keep_alive_time"`    // gRPC 心跳间隔 (默认: 10s)
	KeepAliveTimeout time.Duration `mapstructure:"keep_alive_timeout"` // gRPC 心跳超时 (默认: 3s)
}

// SetDefaults 设置默认值
func (c *EtcdConfig) SetDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 3 * time.Second
	}
	if c.KeepAliveTime == 0 {
		c.KeepAliveTime = 10 * time.Second
	}
	if c.KeepAliveTimeout == 0 {
		c.KeepAliveTimeout = 3 * time.Second
	}
}

// Validate 设置默认值并校验
func (c *EtcdConfig) Validate() error {
	c.SetDefaults()
	if len(c.Endpoints) == 0 {
		return fmt.Errorf("Etcd端点不能为空")
	}
	for _, ep := range c.Endpoints {
		if ep == "" {
			return fmt.Errorf("Etcd端点不能为空字符串")
		}
	}
	if c.DialTimeout < 0 {
		return fmt.Errorf("连接超时不能为负数")
	}
	return nil
}
