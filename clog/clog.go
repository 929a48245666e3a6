// Package clog 为 grabservice 提供基于 slog 的结构化日志组件。
//
// grabservice 的两个输出通道中，标准输出只承载一行 OK/NO，
// 其余所有面向人的诊断信息都通过 clog 写到标准错误。
//
// 基本使用：
//
//	logger, _ := clog.New(&clog.Config{
//	    Level:  "info",
//	    Format: "console",
//	    Output: "stderr",
//	})
//	logger.Info("holding ref to service", clog.Int("pid", os.Getpid()))
//
// 子 Logger：
//
//	regLogger := logger.WithNamespace("registry")
//	regLogger.Debug("lookup", clog.String("service", "media.player"))
package clog

import "fmt"

// New 创建一个新的 Logger 实例
//
// config 为 nil 时使用 NewDefaultConfig()。
func New(config *Config, opts ...Option) (Logger, error) {
	if config == nil {
		config = NewDefaultConfig()
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return newLogger(config, applyOptions(opts...))
}
