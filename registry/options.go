package registry

import "github.com/ceyewan/grabservice/clog"

// Option 组件初始化选项函数
type Option func(*options)

type options struct {
	logger clog.Logger
	pid    int
}

// WithLogger 注入日志记录器，组件内部会自动追加 "registry" namespace
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPID 覆盖客户端登记中的进程号
func WithPID(pid int) Option {
	return func(o *options) {
		o.pid = pid
	}
}

func applyOptions(opts ...Option) *options {
	o := &options{logger: clog.Discard()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
