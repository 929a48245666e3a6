package registry

import (
	"context"

	"github.com/ceyewan/grabservice/clog"
	"github.com/ceyewan/grabservice/connector"
	"github.com/ceyewan/grabservice/xerrors"
)

// NewDialer 返回一个 Dialer：每次调用创建新的 Etcd 连接器并探活
//
// 连接器归返回的 Manager 所有，Manager.Close 时一并关闭。
func NewDialer(etcdCfg *connector.EtcdConfig, cfg *Config, opts ...Option) Dialer {
	return func(ctx context.Context) (Manager, error) {
		opt := applyOptions(opts...)

		conn, err := connector.NewEtcd(etcdCfg, connector.WithLogger(opt.logger))
		if err != nil {
			return nil, xerrors.Join(ErrRegistryUnavailable, err)
		}

		if err := conn.Connect(ctx); err != nil {
			_ = conn.Close()
			return nil, xerrors.Join(ErrRegistryUnavailable, err)
		}

		mgr, err := newManager(conn, cfg, opt, true)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}

		opt.logger.Debug("registry connected",
			clog.String("connector", conn.Name()),
			clog.String("namespace", mgr.cfg.Namespace))
		return mgr, nil
	}
}
