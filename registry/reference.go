package registry

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
	clientv3 "go.etcd.io/etcd/client/v3"
	"google.golang.org/grpc"

	"github.com/ceyewan/grabservice/clog"
	"github.com/ceyewan/grabservice/xerrors"
)

// etcdReference 挂在客户端租约上的服务引用
type etcdReference struct {
	manager  *etcdManager
	id       string
	ident    Identifier
	instance *ServiceInstance
	key      string
	conn     *grpc.ClientConn

	leaseID     clientv3.LeaseID
	keepAliveCh <-chan *clientv3.LeaseKeepAliveResponse
	cancel      context.CancelFunc
	released    uint32
}

func newRefID() string {
	return uuid.NewString()
}

func (r *etcdReference) ID() string { return r.id }

func (r *etcdReference) Identifier() Identifier { return r.ident }

func (r *etcdReference) Instance() *ServiceInstance { return r.instance }

func (r *etcdReference) Conn() *grpc.ClientConn { return r.conn }

func (r *etcdReference) isReleased() bool {
	return atomic.LoadUint32(&r.released) == 1
}

// Release 停止续约、关闭通道并撤销租约（会自动删除客户端登记）
func (r *etcdReference) Release(ctx context.Context) error {
	if !atomic.CompareAndSwapUint32(&r.released, 0, 1) {
		return nil
	}
	r.cancel()
	r.manager.forget(r.id)

	var errs []error
	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			errs = append(errs, xerrors.Wrap(err, "close service channel"))
		}
	}

	// 租约已过期时登记也已不存在
	if _, err := r.manager.client.Revoke(ctx, r.leaseID); err != nil && !xerrors.Is(err, rpctypes.ErrLeaseNotFound) {
		errs = append(errs, xerrors.Wrap(err, "revoke lease failed"))
	}

	r.manager.logger.Debug("reference released",
		clog.String("service", r.ident.String()),
		clog.String("ref_id", r.id))

	return xerrors.Combine(errs...)
}
