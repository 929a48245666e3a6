// grabwatch 通过 grabservice 系列程序同时持有多个服务，并报告它们的状态。
//
//	grabwatch [-bin dir] [-scheme legacy|fqdn|vnd] [-metrics addr] <service>...
//
// fqdn 方式下每个服务写成 "接口全限定名/实例名"。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ceyewan/grabservice/clog"
	"github.com/ceyewan/grabservice/internal/app"
	"github.com/ceyewan/grabservice/supervisor"
)

func main() {
	fs := flag.NewFlagSet("grabwatch", flag.ExitOnError)
	binDir := fs.String("bin", "", "directory containing the grabservice binaries (default: $PATH)")
	scheme := fs.String("scheme", "legacy", "grabber kind: legacy, fqdn or vnd")
	metricsAddr := fs.String("metrics", "", "address to serve Prometheus metrics on, e.g. :9105")
	level := fs.String("log-level", "", "log level (default: log.level from grabservice.yaml)")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: grabwatch [-bin dir] [-scheme legacy|fqdn|vnd] [-metrics addr] <service>...")
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[1:])

	kind, err := supervisor.ParseKind(*scheme)
	if err != nil || fs.NArg() == 0 {
		fs.Usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logCfg, err := app.LoadLogConfig(ctx, app.DefaultConfigPaths)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *level != "" {
		logCfg.Level = *level
	}
	logger, err := clog.New(logCfg, clog.WithNamespace("grabwatch"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	err = app.Watch(ctx, app.WatchConfig{
		BinDir:      *binDir,
		Kind:        kind,
		MetricsAddr: *metricsAddr,
		Targets:     fs.Args(),
	}, logger, reg)
	if err != nil {
		logger.Error("grabwatch failed", clog.Error(err))
		stop()
		os.Exit(1)
	}
}
