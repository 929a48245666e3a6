// Package config 为 grabservice 提供配置加载能力，基于 Viper 实现。
//
// 配置来源优先级：环境变量 > .env > 环境特定配置 > 基础配置文件 > 默认值。
// 配置文件是可选的：找不到文件时只使用默认值和环境变量。
//
// 基本使用：
//
//	loader, _ := config.New(&config.Config{
//		Name:      "grabservice",
//		EnvPrefix: "GRABSERVICE",
//	}, config.WithDefaults(map[string]any{"log.level": "warn"}))
//	if err := loader.Load(ctx); err != nil {
//		return err
//	}
//
//	var cfg AppConfig
//	_ = loader.Unmarshal(&cfg)
//
//	// 监听配置文件变化
//	ch, _ := loader.Watch(ctx, "log.level")
//	for event := range ch {
//		fmt.Printf("%s: %v -> %v\n", event.Key, event.OldValue, event.Value)
//	}
package config

import (
	"context"
	"time"
)

// Loader 定义配置加载器的核心行为
type Loader interface {
	// Load 加载配置并初始化内部状态
	Load(ctx context.Context) error

	// Get 获取原始配置值
	Get(key string) any

	// Unmarshal 将整个配置反序列化到结构体
	Unmarshal(v any) error

	// UnmarshalKey 将指定 Key 的配置反序列化到结构体
	UnmarshalKey(key string, v any) error

	// Watch 监听配置变化，ctx 结束时关闭通道
	Watch(ctx context.Context, key string) (<-chan Event, error)

	// ConfigFileUsed 返回实际加载的配置文件路径，未找到时为空
	ConfigFileUsed() string
}

// Event 配置变更事件
type Event struct {
	Key       string
	Value     any
	OldValue  any
	Source    string // "file"
	Timestamp time.Time
}
