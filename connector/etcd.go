package connector

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ceyewan/grabservice/clog"
	"github.com/ceyewan/grabservice/xerrors"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// probeKey 探活时读取的 key，是否存在不重要
const probeKey = "/grabservice/health-check"

type etcdConnector struct {
	cfg     *EtcdConfig
	client  *clientv3.Client
	logger  clog.Logger
	healthy atomic.Bool
	closed  atomic.Bool
	mu      sync.RWMutex
}

// NewEtcd 创建 Etcd 连接器
//
// clientv3.New 不会主动拨号，注册中心是否可达要到 Connect 才能知道。
func NewEtcd(cfg *EtcdConfig, opts ...Option) (EtcdConnector, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "etcd config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, xerrors.Wrapf(xerrors.Join(ErrConfig, err), "invalid etcd config")
	}

	opt := applyOptions(opts...)

	client, err := clientv3.New(clientv3.Config{
		Endpoints:            cfg.Endpoints,
		DialTimeout:          cfg.DialTimeout,
		DialKeepAliveTime:    cfg.KeepAliveTime,
		DialKeepAliveTimeout: cfg.KeepAliveTimeout,
		Username:             cfg.Username,
		Password:             cfg.Password,
	})
	if err != nil {
		return nil, xerrors.Wrapf(xerrors.Join(ErrConnection, err), "etcd connector[%s]", cfg.Name)
	}

	return &etcdConnector{
		cfg:    cfg,
		client: client,
		logger: opt.logger.With(clog.String("connector", "etcd"), clog.String("name", cfg.Name)),
	}, nil
}

// Connect 探测注册中心，失败返回 ErrConnection
func (c *etcdConnector) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrAlreadyClosed
	}
	if c.healthy.Load() {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Debug("connecting to etcd", clog.Any("endpoints", c.cfg.Endpoints))

	if err := c.probe(ctx); err != nil {
		c.logger.Debug("failed to connect to etcd", clog.Error(err))
		return xerrors.Wrapf(xerrors.Join(ErrConnection, err), "etcd connector[%s]: connect failed", c.cfg.Name)
	}

	c.healthy.Store(true)
	c.logger.Debug("connected to etcd", clog.Any("endpoints", c.cfg.Endpoints))
	return nil
}

// probe 在 DialTimeout 内完成一次线性读
func (c *etcdConnector) probe(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()

	_, err := c.client.Get(probeCtx, probeKey, clientv3.WithCountOnly())
	return err
}

// Close 关闭连接
func (c *etcdConnector) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.healthy.Store(false)
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	if err != nil {
		c.logger.Warn("failed to close etcd connection", clog.Error(err))
		return err
	}
	c.logger.Debug("etcd connection closed")
	return nil
}

// HealthCheck 检查连接健康状态
func (c *etcdConnector) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.client == nil {
		return ErrClientNil
	}
	if err := c.probe(ctx); err != nil {
		c.healthy.Store(false)
		return xerrors.Wrapf(xerrors.Join(ErrHealthCheck, err), "etcd connector[%s]", c.cfg.Name)
	}
	c.healthy.Store(true)
	return nil
}

func (c *etcdConnector) IsHealthy() bool {
	return c.healthy.Load()
}

func (c *etcdConnector) Name() string {
	return c.cfg.Name
}

func (c *etcdConnector) GetClient() *clientv3.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}
