package app

import (
	"context"
	"strings"
	"time"

	"github.com/ceyewan/grabservice/clog"
	"github.com/ceyewan/grabservice/config"
	"github.com/ceyewan/grabservice/connector"
	"github.com/ceyewan/grabservice/registry"
)

const (
	configName = "grabservice"
	envPrefix  = "GRABSERVICE"
)

// Config 抓取程序的完整配置
type Config struct {
	Log      clog.Config          `mapstructure:"log"`
	Etcd     connector.EtcdConfig `mapstructure:"etcd"`
	Registry RegistryConfig       `mapstructure:"registry"`
}

// RegistryConfig 各注册中心共用的配置
type RegistryConfig struct {
	Root        string        `mapstructure:"root"`
	ClientTTL   time.Duration `mapstructure:"client_ttl"`
	DialService bool          `mapstructure:"dial_service"`
}

// Namespace 某个注册中心在 Etcd 中的 Key 前缀
func (c RegistryConfig) Namespace(v Variant) string {
	return strings.TrimRight(c.Root, "/") + "/" + v.Registry
}

// For 生成 v 使用的 registry 配置
func (c RegistryConfig) For(v Variant) *registry.Config {
	return &registry.Config{
		Namespace:   c.Namespace(v),
		ClientTTL:   c.ClientTTL,
		DialService: c.DialService,
	}
}

func defaults() map[string]any {
	return map[string]any{
		"log.level":             "info",
		"log.format":            "console",
		"log.output":            "stderr",
		"log.add_source":        false,
		"etcd.name":             "registry",
		"etcd.endpoints":        []string{"127.0.0.1:2379"},
		"etcd.username":         "",
		"etcd.password":         "",
		"etcd.dial_timeout":     "3s",
		"registry.root":         "/grabservice",
		"registry.client_ttl":   "10s",
		"registry.dial_service": true,
	}
}

// LoadConfig 加载配置：默认值 < grabservice.yaml < .env < 环境变量
// 找不到配置文件不是错误
func LoadConfig(ctx context.Context, paths []string, logger clog.Logger) (*Config, config.Loader, error) {
	loader, err := config.New(&config.Config{
		Name:      configName,
		Paths:     paths,
		EnvPrefix: envPrefix,
	}, config.WithDefaults(defaults()), config.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	if err := loader.Load(ctx); err != nil {
		return nil, nil, err
	}

	var cfg Config
	if err := loader.Unmarshal(&cfg); err != nil {
		return nil, nil, config.WrapLoadError(err, configName)
	}
	return &cfg, loader, nil
}

// LoadLogConfig 只读取配置中的 log 部分，供不需要注册中心的程序使用
func LoadLogConfig(ctx context.Context, paths []string) (*clog.Config, error) {
	loader, err := config.New(&config.Config{
		Name:      configName,
		Paths:     paths,
		EnvPrefix: envPrefix,
	}, config.WithDefaults(defaults()))
	if err != nil {
		return nil, err
	}
	if err := loader.Load(ctx); err != nil {
		return nil, err
	}

	var cfg clog.Config
	if err := loader.UnmarshalKey("log", &cfg); err != nil {
		return nil, config.WrapLoadError(err, configName)
	}
	return &cfg, nil
}
