package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ceyewan/grabservice/clog"
	"github.com/ceyewan/grabservice/supervisor"
	"github.com/ceyewan/grabservice/xerrors"
)

// ErrNoTargets 没有指定要抓取的服务
var ErrNoTargets = xerrors.New("no services to grab")

// WatchConfig grabwatch 的运行参数
type WatchConfig struct {
	BinDir      string
	Kind        supervisor.Kind
	MetricsAddr string
	MetricsPath string
	Targets     []string
}

// Watch 通过 Supervisor 同时持有多个服务，直到 ctx 结束或所有抓取都已结束
func Watch(ctx context.Context, cfg WatchConfig, logger clog.Logger, reg *prometheus.Registry) error {
	if len(cfg.Targets) == 0 {
		return ErrNoTargets
	}
	if logger == nil {
		logger = clog.Discard()
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}

	collector, err := supervisor.NewPrometheusCollector(reg)
	if err != nil {
		return xerrors.Wrap(err, "register metrics")
	}

	// 事件只用于日志，缓冲按目标数放大以减少丢弃
	sup := supervisor.New(&supervisor.Config{BinDir: cfg.BinDir},
		supervisor.WithLogger(logger),
		supervisor.WithCollector(collector),
		supervisor.WithEventBuffer(max(64, 4*len(cfg.Targets))))
	defer func() {
		if err := sup.Close(); err != nil {
			logger.Warn("failed to release grabs", clog.Error(err))
		}
	}()

	grabs := make([]*supervisor.Grab, 0, len(cfg.Targets))
	for _, target := range cfg.Targets {
		id, err := supervisor.ParseTarget(cfg.Kind, target)
		if err != nil {
			return xerrors.Wrapf(err, "target %q", target)
		}
		g, err := sup.Grab(cfg.Kind, id)
		if err != nil {
			return xerrors.Wrapf(err, "grab %s", id)
		}
		grabs = append(grabs, g)
	}

	if cfg.MetricsAddr != "" {
		stop := serveMetrics(cfg.MetricsAddr, cfg.MetricsPath, reg, logger)
		defer stop()
	}

	// 以 Done 判断结束，不依赖可能被丢弃的事件
	allDone := make(chan struct{})
	go func() {
		defer close(allDone)
		for _, g := range grabs {
			<-g.Done()
		}
	}()

	events := sup.Events()
	for {
		select {
		case <-ctx.Done():
			logger.Info("stopping, releasing grabs")
			return nil
		case <-allDone:
			logger.Warn("all grabs are dead", clog.Int("grabs", len(grabs)))
			return nil
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			logEvent(logger, ev)
		}
	}
}

// logEvent 记录一次状态变化
func logEvent(logger clog.Logger, ev supervisor.Event) {
	fields := []clog.Field{
		clog.String("service", ev.Grab.Identifier().String()),
		clog.String("status", ev.Status.String()),
		clog.Int("pid", ev.Grab.PID()),
	}
	if ev.Err != nil {
		fields = append(fields, clog.Error(ev.Err))
	}
	logger.Info("grab status", fields...)
}

// serveMetrics 在后台提供 Prometheus 指标，返回关闭函数
func serveMetrics(addr, path string, reg *prometheus.Registry, logger clog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("serving metrics", clog.String("addr", addr), clog.String("path", path))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", clog.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
