// Package supervisor 以子进程的方式运行抓取程序并跟踪其状态。
//
// 每个抓取对应一个 grabservice / grabservice-hw / grabservice-vnd 子进程。
// Supervisor 读取子进程结果通道的前两个字节：OK 表示正在持有，NO 表示查找失败，
// 其他内容视为无法识别。释放抓取即结束子进程，注册中心随之看到客户端离开。
//
//	sup := supervisor.New(&supervisor.Config{BinDir: "/usr/local/bin"}, supervisor.WithLogger(logger))
//	defer sup.Close()
//
//	g, err := sup.Grab(supervisor.KindLegacy, registry.Name("media.player"))
//	for ev := range sup.Events() {
//		// ev.Status: waiting -> ok | dead
//	}
//	g.Release()
package supervisor

import (
	"io"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/ceyewan/grabservice/clog"
	"github.com/ceyewan/grabservice/registry"
	"github.com/ceyewan/grabservice/xerrors"
)

// Config Supervisor 配置
type Config struct {
	// BinDir 抓取程序所在目录，为空时在 PATH 中查找
	BinDir string `mapstructure:"bin_dir" yaml:"bin_dir" json:"bin_dir"`
}

// Event 一次状态变化
type Event struct {
	Grab   *Grab
	Status Status
	Err    error
}

// Supervisor 管理一组抓取子进程，方法均并发安全
type Supervisor struct {
	binDir    string
	logger    clog.Logger
	collector Collector
	stderr    io.Writer

	events chan Event
	grabs  map[*Grab]struct{}
	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

// New 创建 Supervisor
func New(cfg *Config, opts ...Option) *Supervisor {
	if cfg == nil {
		cfg = &Config{}
	}
	o := applyOptions(opts...)
	return &Supervisor{
		binDir:    cfg.BinDir,
		logger:    o.logger.WithNamespace("supervisor"),
		collector: o.collector,
		stderr:    o.stderr,
		events:    make(chan Event, o.buffer),
		grabs:     make(map[*Grab]struct{}),
	}
}

// Events 状态变化通道，Close 之后关闭
// 通道写满时新事件被丢弃，状态仍可通过 Grab.Status 读取
func (s *Supervisor) Events() <-chan Event {
	return s.events
}

// Grab 启动一个抓取子进程，初始状态为 StatusWaiting
func (s *Supervisor) Grab(kind Kind, id registry.Identifier) (*Grab, error) {
	kind, err := ParseKind(string(kind))
	if err != nil {
		return nil, err
	}
	if err := registry.Validate(id); err != nil {
		return nil, err
	}
	if id.Scheme() != kind.Scheme() {
		return nil, xerrors.Wrapf(ErrSchemeMismatch, "%s for %s", id.Scheme(), kind)
	}

	path, err := s.binaryPath(kind)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSupervisorClosed
	}

	cmd := exec.Command(path, id.Args()...)
	cmd.Stderr = s.stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, xerrors.Wrap(err, "create stdout pipe")
	}
	if err := cmd.Start(); err != nil {
		return nil, xerrors.Wrapf(err, "start %s", path)
	}

	g := &Grab{
		sup:    s,
		kind:   kind,
		ident:  id,
		cmd:    cmd,
		stdout: stdout,
		done:   make(chan struct{}),
	}
	s.grabs[g] = struct{}{}
	s.collector.IncSpawn(kind)
	s.collector.AddGrab(kind, StatusWaiting, 1)
	s.publish(Event{Grab: g, Status: StatusWaiting})

	s.logger.Debug("grabber started",
		clog.String("kind", string(kind)),
		clog.String("service", id.String()),
		clog.Int("pid", cmd.Process.Pid))

	s.wg.Add(1)
	go g.run()
	return g, nil
}

// Grabs 当前跟踪中的抓取
func (s *Supervisor) Grabs() []*Grab {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]*Grab, 0, len(s.grabs))
	for g := range s.grabs {
		list = append(list, g)
	}
	return list
}

// Close 释放所有抓取并关闭事件通道，幂等
func (s *Supervisor) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	snapshot := make([]*Grab, 0, len(s.grabs))
	for g := range s.grabs {
		snapshot = append(snapshot, g)
	}
	s.mu.Unlock()

	var errs []error
	for _, g := range snapshot {
		errs = append(errs, g.Release())
	}

	s.wg.Wait()
	close(s.events)
	return xerrors.Combine(errs...)
}

func (s *Supervisor) binaryPath(kind Kind) (string, error) {
	if s.binDir != "" {
		return filepath.Join(s.binDir, kind.Binary()), nil
	}
	path, err := exec.LookPath(kind.Binary())
	if err != nil {
		return "", xerrors.Wrapf(err, "find %s", kind.Binary())
	}
	return path, nil
}

// publish 非阻塞地投递事件
func (s *Supervisor) publish(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.logger.Warn("event channel full, dropping status change",
			clog.String("service", ev.Grab.ident.String()),
			clog.String("status", ev.Status.String()))
	}
}

func (s *Supervisor) forget(g *Grab) {
	s.mu.Lock()
	_, ok := s.grabs[g]
	delete(s.grabs, g)
	s.mu.Unlock()
	if ok {
		s.collector.AddGrab(g.kind, g.Status(), -1)
	}
}
