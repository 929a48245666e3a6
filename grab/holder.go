// Package grab 实现"查找服务并持有引用"的诊断流程。
//
// 流程：取得注册中心句柄 -> 查找服务 -> 成功则在结果通道输出 OK 并一直持有，
// 失败则输出 NO 并返回带错误码的错误。结果通道上每次调用恰好输出一行。
//
//	h := grab.New(registry.NewDialer(etcdCfg, regCfg), grab.WithLogger(logger))
//	err := h.Grab(context.Background(), registry.Name("media.player"))
//	os.Exit(grab.ExitCode(err))
//
// 失败不重试；持有期间不检查引用是否依然有效，也不主动释放。
package grab

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/ceyewan/grabservice/clog"
	"github.com/ceyewan/grabservice/registry"
	"github.com/ceyewan/grabservice/xerrors"
)

const (
	lineOK = "OK"
	lineNO = "NO"
)

// Holder 执行一次抓取，不可复用
type Holder struct {
	dial    registry.Dialer
	out     io.Writer
	logger  clog.Logger
	notice  clog.Logger
	wait    WaitFunc
	pid     int
	onState func(State)

	state   atomic.Int32
	started atomic.Bool
	ref     registry.Reference
}

// New 创建 Holder，dial 用于取得注册中心句柄
func New(dial registry.Dialer, opts ...Option) *Holder {
	o := applyOptions(opts...)
	return &Holder{
		dial:    dial,
		out:     o.out,
		logger:  o.logger.WithNamespace("grab"),
		notice:  o.notice.WithNamespace("grab"),
		wait:    o.wait,
		pid:     o.pid,
		onState: o.onState,
	}
}

// State 当前所处阶段，可在其他协程中读取
func (h *Holder) State() State {
	return State(h.state.Load())
}

// Reference 持有中的引用，Holding 之前为 nil
func (h *Holder) Reference() registry.Reference {
	if h.State() != StateHolding {
		return nil
	}
	return h.ref
}

// Grab 查找 id 对应的服务并持有
//
// 成功时输出 OK 后调用等待原语，等待原语返回后 Grab 返回 nil。
// 返回错误：
//   - CodeUsage: id 无效，不输出结果也不联系注册中心
//   - CodeRegistryUnavailable: 输出 NO
//   - CodeLookupFailed: 输出 NO
func (h *Holder) Grab(ctx context.Context, id registry.Identifier) error {
	if !h.started.CompareAndSwap(false, true) {
		return xerrors.New("holder already used")
	}
	if err := registry.Validate(id); err != nil {
		return UsageError(err)
	}
	if h.dial == nil {
		return UsageError(xerrors.New("registry dialer is required"))
	}

	service := id.String()

	h.transition(StateRegistryConnecting)
	mgr, err := h.dial(ctx)
	if err == nil && mgr == nil {
		err = xerrors.Wrap(registry.ErrRegistryUnavailable, "dialer returned no manager")
	}
	if err != nil {
		h.transition(StateRegistryFailed)
		h.emit(lineNO)
		h.logger.Error("Unable to get default service manager!", clog.Error(err))
		return registryUnavailable(err)
	}

	h.transition(StateLooking)
	ref, err := mgr.Get(ctx, id)
	if err == nil && ref == nil {
		err = xerrors.Wrap(registry.ErrServiceNotFound, "manager returned no reference")
	}
	if err != nil {
		h.transition(StateLookupFailed)
		h.emit(lineNO)
		h.logger.Debug("lookup error", clog.String("service", service), clog.Error(err))
		h.logger.Error(fmt.Sprintf("Unable to hold ref to service: %s", service))
		return lookupFailed(service)
	}

	h.ref = ref
	h.transition(StateHolding)
	h.emit(lineOK)
	fields := []clog.Field{clog.String("ref_id", ref.ID())}
	if instance := ref.Instance(); instance != nil {
		fields = append(fields, clog.String("instance_id", instance.ID))
	}
	h.notice.Info(fmt.Sprintf("PID %d holding ref to service: %s", h.pid, service), fields...)
	h.notice.Flush()

	h.wait(ctx)
	return nil
}

func (h *Holder) transition(s State) {
	h.state.Store(int32(s))
	if h.onState != nil {
		h.onState(s)
	}
}

// emit 在结果通道输出一行
func (h *Holder) emit(line string) {
	if _, err := fmt.Fprintln(h.out, line); err != nil {
		h.logger.Warn("failed to write result line", clog.Error(err))
	}
}
