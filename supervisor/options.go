package supervisor

import (
	"io"

	"github.com/ceyewan/grabservice/clog"
)

// Option Supervisor 选项
type Option func(*options)

type options struct {
	logger    clog.Logger
	collector Collector
	stderr    io.Writer
	buffer    int
}

// WithLogger 设置日志记录器
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithCollector 设置指标收集器，默认不收集
func WithCollector(c Collector) Option {
	return func(o *options) {
		if c != nil {
			o.collector = c
		}
	}
}

// WithStderr 转发抓取进程的 stderr，默认丢弃
func WithStderr(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.stderr = w
		}
	}
}

// WithEventBuffer 设置状态事件通道的容量
func WithEventBuffer(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.buffer = n
		}
	}
}

func applyOptions(opts ...Option) *options {
	o := &options{
		logger:    clog.Discard(),
		collector: Noop(),
		stderr:    io.Discard,
		buffer:    64,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
