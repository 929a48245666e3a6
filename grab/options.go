package grab

import (
	"context"
	"io"
	"os"

	"github.com/ceyewan/grabservice/clog"
)

// WaitFunc 持有引用期间的等待原语，返回即表示持有结束
type WaitFunc func(ctx context.Context)

// WaitForever 阻塞直到 ctx 结束；配合 context.Background() 即永远阻塞
func WaitForever(ctx context.Context) {
	<-ctx.Done()
}

// Option Holder 选项
type Option func(*options)

type options struct {
	out     io.Writer
	logger  clog.Logger
	notice  clog.Logger
	wait    WaitFunc
	pid     int
	onState func(State)
}

// WithOutput 设置结果通道，默认 os.Stdout
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.out = w
		}
	}
}

// WithLogger 设置诊断日志
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithNoticeLogger 设置输出持有提示的日志，默认与 WithLogger 相同
//
// 持有提示是持有期间唯一的诊断输出，单独设置可使其不受诊断日志级别影响。
func WithNoticeLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.notice = l
		}
	}
}

// WithWait 替换持有阶段的等待原语
func WithWait(wait WaitFunc) Option {
	return func(o *options) {
		if wait != nil {
			o.wait = wait
		}
	}
}

// WithPID 覆盖诊断信息中的进程号
func WithPID(pid int) Option {
	return func(o *options) {
		o.pid = pid
	}
}

// WithStateHook 每次状态迁移时回调，在 Grab 所在的协程中同步执行
func WithStateHook(fn func(State)) Option {
	return func(o *options) {
		o.onState = fn
	}
}

func applyOptions(opts ...Option) *options {
	o := &options{
		out:    os.Stdout,
		logger: clog.Discard(),
		wait:   WaitForever,
		pid:    os.Getpid(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.notice == nil {
		o.notice = o.logger
	}
	return o
}
