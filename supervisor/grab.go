package supervisor

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/ceyewan/grabservice/clog"
	"github.com/ceyewan/grabservice/registry"
	"github.com/ceyewan/grabservice/xerrors"
)

const (
	outputOK = "OK"
	outputNO = "NO"
)

// Grab 一个抓取子进程
type Grab struct {
	sup    *Supervisor
	kind   Kind
	ident  registry.Identifier
	cmd    *exec.Cmd
	stdout io.ReadCloser

	mu       sync.Mutex
	status   Status
	err      error
	released atomic.Bool
	done     chan struct{}
}

// Kind 抓取程序种类
func (g *Grab) Kind() Kind { return g.kind }

// Identifier 被抓取的服务
func (g *Grab) Identifier() registry.Identifier { return g.ident }

// PID 子进程号
func (g *Grab) PID() int { return g.cmd.Process.Pid }

// Status 当前状态
func (g *Grab) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// Err 进入 StatusDead 的原因，正常释放时为 nil
func (g *Grab) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

// Done 子进程退出且状态不再变化后关闭
func (g *Grab) Done() <-chan struct{} {
	return g.done
}

// Release 结束子进程并等待其退出，幂等
func (g *Grab) Release() error {
	if !g.released.CompareAndSwap(false, true) {
		<-g.done
		return nil
	}

	var err error
	if killErr := g.cmd.Process.Kill(); killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
		err = xerrors.Wrapf(killErr, "kill grabber %d", g.PID())
	}
	<-g.done
	g.sup.forget(g)
	return err
}

// run 读取结果并等待子进程退出
func (g *Grab) run() {
	defer g.sup.wg.Done()
	defer close(g.done)

	var buf [2]byte
	_, readErr := io.ReadFull(g.stdout, buf[:])
	if readErr == nil {
		switch string(buf[:]) {
		case outputOK:
			g.setStatus(StatusOK, nil)
		case outputNO:
			g.setStatus(StatusDead, ErrLookupFailed)
		default:
			g.setStatus(StatusDead, xerrors.Wrapf(ErrUnsupportedOutput, "%q", buf[:]))
			_ = g.cmd.Process.Kill()
		}
	}

	// 子进程持有期间不会关闭 stdout
	_, _ = io.Copy(io.Discard, g.stdout)
	waitErr := g.cmd.Wait()

	switch {
	case g.Status() == StatusDead:
	case g.released.Load():
		g.setStatus(StatusDead, nil)
	default:
		g.setStatus(StatusDead, xerrors.Join(ErrExited, waitErr))
	}

	g.sup.logger.Debug("grabber exited",
		clog.String("service", g.ident.String()),
		clog.Int("pid", g.cmd.Process.Pid),
		clog.Bool("released", g.released.Load()))
}

func (g *Grab) setStatus(status Status, err error) {
	g.mu.Lock()
	from := g.status
	if from == status {
		g.mu.Unlock()
		return
	}
	g.status = status
	g.err = err
	g.mu.Unlock()

	g.sup.collector.MoveGrab(g.kind, from, status)
	g.sup.publish(Event{Grab: g, Status: status, Err: err})

	fields := []clog.Field{
		clog.String("service", g.ident.String()),
		clog.String("status", status.String()),
		clog.Int("pid", g.cmd.Process.Pid),
	}
	if err != nil {
		fields = append(fields, clog.Error(err))
	}
	g.sup.logger.Info("grab status changed", fields...)
}
