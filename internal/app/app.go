// Package app 组装 grabservice 系列命令行程序：参数校验、配置、日志、注册中心与持有流程。
package app

import (
	"context"
	"fmt"
	"io"

	"github.com/ceyewan/grabservice/clog"
	"github.com/ceyewan/grabservice/config"
	"github.com/ceyewan/grabservice/grab"
	"github.com/ceyewan/grabservice/registry"
	"github.com/ceyewan/grabservice/xerrors"
)

// DefaultConfigPaths 配置文件搜索路径
var DefaultConfigPaths = []string{".", "/etc/grabservice"}

// Option Run 选项
type Option func(*options)

type options struct {
	ctx         context.Context
	configPaths []string
	dialer      registry.Dialer
	wait        grab.WaitFunc
}

// WithContext 设置整个流程使用的 context，默认 context.Background()，即永远持有
func WithContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}

// WithConfigPaths 覆盖配置文件搜索路径
func WithConfigPaths(paths ...string) Option {
	return func(o *options) {
		o.configPaths = paths
	}
}

// WithDialer 替换由配置生成的注册中心 Dialer
func WithDialer(d registry.Dialer) Option {
	return func(o *options) {
		o.dialer = d
	}
}

// WithWait 替换持有阶段的等待原语
func WithWait(wait grab.WaitFunc) Option {
	return func(o *options) {
		o.wait = wait
	}
}

// Run 执行一次抓取并返回进程退出码
//
// stdout 只输出 OK 或 NO 一行；诊断信息和用法说明写到 stderr。
func Run(v Variant, args []string, stdout, stderr io.Writer, opts ...Option) int {
	o := &options{ctx: context.Background(), configPaths: DefaultConfigPaths}
	for _, opt := range opts {
		opt(o)
	}

	// 参数不对时不加载配置，也不联系注册中心
	id, err := registry.ParseArgs(v.Scheme, args)
	if err != nil {
		fmt.Fprintln(stderr, v.Usage())
		return grab.ExitCode(grab.UsageError(err))
	}

	ctx, cancel := context.WithCancel(o.ctx)
	defer cancel()

	bootLogger := newLogger(clog.NewDefaultConfig(), stderr, v)
	cfg, loader, cfgErr := LoadConfig(ctx, o.configPaths, bootLogger)

	logger, notice := bootLogger, bootLogger
	dial := o.dialer
	if cfgErr != nil {
		// 配置不可用时同样无法取得注册中心句柄
		dial = func(context.Context) (registry.Manager, error) {
			return nil, xerrors.Join(registry.ErrRegistryUnavailable, cfgErr)
		}
	} else {
		logger = newLogger(&cfg.Log, stderr, v)
		// 持有提示固定为 info 级别，不受 log.level 及其热更新影响
		noticeCfg := cfg.Log
		noticeCfg.Level = "info"
		notice = newLogger(&noticeCfg, stderr, v)
		if dial == nil {
			dial = registry.NewDialer(&cfg.Etcd, cfg.Registry.For(v), registry.WithLogger(logger))
		}
	}

	holderOpts := []grab.Option{
		grab.WithOutput(stdout),
		grab.WithLogger(logger),
		grab.WithNoticeLogger(notice),
		grab.WithStateHook(func(s grab.State) {
			if s == grab.StateHolding && loader != nil {
				watchLogLevel(ctx, loader, logger)
			}
		}),
	}
	if o.wait != nil {
		holderOpts = append(holderOpts, grab.WithWait(o.wait))
	}

	err = grab.New(dial, holderOpts...).Grab(ctx, id)
	logger.Flush()
	return grab.ExitCode(err)
}

// newLogger 创建写到 stderr 的诊断日志，配置无效时退回默认配置
func newLogger(cfg *clog.Config, stderr io.Writer, v Variant) clog.Logger {
	logger, cfgErr := clog.New(cfg, clog.WithWriter(stderr), clog.WithNamespace(v.Program))
	if cfgErr == nil {
		return logger
	}
	logger, err := clog.New(clog.NewDefaultConfig(), clog.WithWriter(stderr), clog.WithNamespace(v.Program))
	if err != nil {
		return clog.Discard()
	}
	logger.Warn("invalid log config, using defaults", clog.Error(cfgErr))
	return logger
}

// watchLogLevel 持有期间跟随配置文件调整日志级别
func watchLogLevel(ctx context.Context, loader config.Loader, logger clog.Logger) {
	if loader.ConfigFileUsed() == "" {
		return
	}
	ch, err := loader.Watch(ctx, "log.level")
	if err != nil {
		logger.Warn("failed to watch log level", clog.Error(err))
		return
	}

	go func() {
		for ev := range ch {
			level, err := clog.ParseLevel(fmt.Sprint(ev.Value))
			if err != nil {
				logger.Warn("ignoring invalid log level", clog.Any("value", ev.Value))
				continue
			}
			if err := logger.SetLevel(level); err != nil {
				logger.Warn("failed to set log level", clog.Error(err))
				continue
			}
			logger.Info("log level changed",
				clog.Any("from", ev.OldValue),
				clog.String("to", level.String()))
		}
	}()
}
