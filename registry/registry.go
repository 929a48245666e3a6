// Package registry 提供基于 Etcd 的服务查找与引用持有。
//
// registry 组件在 Etcd 连接器的基础上提供了：
// - 扁平服务名与 "接口全限定名 + 实例名" 两种寻址方式
// - 取得引用时在注册中心登记客户端，登记挂在客户端租约上并自动续约
// - 可选地建立到服务实例 endpoint 的 gRPC 通道
//
// ## 基本使用
//
//	dial := registry.NewDialer(&connector.EtcdConfig{
//		Endpoints: []string{"127.0.0.1:2379"},
//	}, &registry.Config{Namespace: "/grabservice/binder"}, registry.WithLogger(logger))
//
//	mgr, err := dial(ctx)
//	if err != nil {
//		return err // errors.Is(err, registry.ErrRegistryUnavailable)
//	}
//
//	ref, err := mgr.Get(ctx, registry.Name("media.player"))
//	if err != nil {
//		return err
//	}
//	defer ref.Release(ctx)
//
// ## Etcd 存储结构
//
//	<namespace>/<service>/<instance_id>                      -> JSON(ServiceInstance)
//	<namespace>/<service>/<instance_id>/clients/<ref_id>     -> JSON(ClientRecord)，挂在客户端租约上
//
// 扁平寻址读取 <namespace>/<service>/ 下的第一个实例；FQDN 寻址直接读取
// <namespace>/<fqname>/<instance>。持有引用的进程退出后租约到期，
// 客户端登记随之消失。
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ceyewan/grabservice/clog"
	"github.com/ceyewan/grabservice/connector"
	"github.com/ceyewan/grabservice/xerrors"
)

const clientsDir = "clients"

// New 基于已连接的 Etcd 连接器创建 Manager
//
// Manager 借用连接器的客户端，不负责连接器的生命周期。
func New(conn connector.EtcdConnector, cfg *Config, opts ...Option) (Manager, error) {
	return newManager(conn, cfg, applyOptions(opts...), false)
}

func newManager(conn connector.EtcdConnector, cfg *Config, opt *options, ownsConn bool) (*etcdManager, error) {
	if conn == nil {
		return nil, xerrors.New("etcd connector is required")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	client := conn.GetClient()
	if client == nil {
		return nil, xerrors.New("etcd client cannot be nil")
	}

	pid := opt.pid
	if pid == 0 {
		pid = os.Getpid()
	}
	host, _ := os.Hostname()

	return &etcdManager{
		client:   client,
		conn:     conn,
		ownsConn: ownsConn,
		cfg:      cfg,
		logger:   opt.logger.WithNamespace("registry"),
		pid:      pid,
		host:     host,
		refs:     make(map[string]*etcdReference),
		stopChan: make(chan struct{}),
	}, nil
}

// etcdManager 基于 Etcd 的 Manager 实现
type etcdManager struct {
	client   *clientv3.Client
	conn     connector.EtcdConnector
	ownsConn bool
	cfg      *Config
	logger   clog.Logger
	pid      int
	host     string

	refs     map[string]*etcdReference // refID -> reference
	stopChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	closed   uint32
}

func (m *etcdManager) ensureOpen() error {
	if atomic.LoadUint32(&m.closed) == 1 {
		return ErrRegistryClosed
	}
	return nil
}

// Get 查找服务并取得引用
func (m *etcdManager) Get(ctx context.Context, id Identifier) (Reference, error) {
	if err := m.ensureOpen(); err != nil {
		return nil, err
	}
	if err := Validate(id); err != nil {
		return nil, err
	}

	key, instance, createRev, err := m.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	ref, err := m.acquire(ctx, id, key, instance, createRev)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("reference acquired",
		clog.String("service", id.String()),
		clog.String("instance_id", instance.ID),
		clog.String("ref_id", ref.id),
		clog.Int64("lease_id", int64(ref.leaseID)))

	return ref, nil
}

// lookup 解析服务实例，返回实例 Key、实例内容和实例 Key 的创建版本
func (m *etcdManager) lookup(ctx context.Context, id Identifier) (string, *ServiceInstance, int64, error) {
	if id.Scheme() == SchemeFQDN {
		key := m.buildKey(id.Service(), id.Instance())
		resp, err := m.client.Get(ctx, key)
		if err != nil {
			return "", nil, 0, xerrors.Wrapf(err, "get service %s", id)
		}
		if len(resp.Kvs) == 0 {
			return "", nil, 0, ErrServiceNotFound
		}
		kv := resp.Kvs[0]
		var instance ServiceInstance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			return "", nil, 0, xerrors.Wrapf(err, "unmarshal service %s", id)
		}
		return key, normalizeInstance(&instance, id.Service(), id.Instance()), kv.CreateRevision, nil
	}

	prefix := m.buildPrefix(id.Service())
	resp, err := m.client.Get(ctx, prefix, clientv3.WithPrefix(),
		clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
	if err != nil {
		return "", nil, 0, xerrors.Wrapf(err, "get service %s", id)
	}

	kv, instanceID, instance := firstInstance(prefix, resp.Kvs, m.logger)
	if kv == nil {
		return "", nil, 0, ErrServiceNotFound
	}
	return string(kv.Key), normalizeInstance(instance, id.Service(), instanceID), kv.CreateRevision, nil
}

// firstInstance 返回 prefix 下第一个能解析的直接子节点
//
// 客户端登记和以本服务名为路径前缀的其他服务都不是直接子节点。
func firstInstance(prefix string, kvs []*mvccpb.KeyValue, logger clog.Logger) (*mvccpb.KeyValue, string, *ServiceInstance) {
	for _, kv := range kvs {
		instanceID, ok := strings.CutPrefix(string(kv.Key), prefix)
		if !ok || instanceID == "" || strings.Contains(instanceID, "/") {
			continue
		}
		var instance ServiceInstance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			logger.Warn("failed to unmarshal service instance",
				clog.String("key", string(kv.Key)),
				clog.Error(err))
			continue
		}
		return kv, instanceID, &instance
	}
	return nil, "", nil
}

// acquire 在实例下登记客户端并启动租约续约
func (m *etcdManager) acquire(ctx context.Context, id Identifier, instanceKey string,
	instance *ServiceInstance, createRev int64) (*etcdReference, error) {
	refID := newRefID()
	record := ClientRecord{
		RefID:      refID,
		PID:        m.pid,
		Host:       m.host,
		Service:    id.Service(),
		Instance:   instance.ID,
		AcquiredAt: time.Now(),
	}
	value, err := json.Marshal(record)
	if err != nil {
		return nil, xerrors.Wrap(err, "marshal client record failed")
	}

	lease, err := m.client.Grant(ctx, int64(m.cfg.ClientTTL.Seconds()))
	if err != nil {
		return nil, xerrors.Wrap(err, "grant lease failed")
	}

	clientKey := fmt.Sprintf("%s/%s/%s", instanceKey, clientsDir, refID)

	// 实例在查找之后被注销或重新注册时不登记
	txnResp, err := m.client.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(instanceKey), "=", createRev)).
		Then(clientv3.OpPut(clientKey, string(value), clientv3.WithLease(lease.ID))).
		Commit()
	if err != nil {
		m.revokeQuietly(lease.ID)
		return nil, xerrors.Wrap(err, "put client record failed")
	}
	if !txnResp.Succeeded {
		m.revokeQuietly(lease.ID)
		return nil, ErrInstanceGone
	}

	keepAliveCtx, keepAliveCancel := context.WithCancel(context.Background())
	keepAliveCh, err := m.client.KeepAlive(keepAliveCtx, lease.ID)
	if err != nil {
		keepAliveCancel()
		m.revokeQuietly(lease.ID)
		return nil, xerrors.Wrap(err, "keepalive failed")
	}

	ref := &etcdReference{
		manager:     m,
		id:          refID,
		ident:       id,
		instance:    instance,
		key:         clientKey,
		leaseID:     lease.ID,
		keepAliveCh: keepAliveCh,
		cancel:      keepAliveCancel,
	}

	if m.cfg.DialService {
		ref.conn = m.dialInstance(instance)
	}

	m.mu.Lock()
	m.refs[refID] = ref
	m.mu.Unlock()

	m.wg.Add(1)
	go m.monitorKeepAlive(ref)

	return ref, nil
}

func (m *etcdManager) revokeQuietly(leaseID clientv3.LeaseID) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := m.client.Revoke(ctx, leaseID); err != nil {
		m.logger.Warn("failed to revoke lease",
			clog.Int64("lease_id", int64(leaseID)),
			clog.Error(err))
	}
}

// monitorKeepAlive 监听租约续约
// channel 关闭说明租约失效或连接中断，此时只记录日志，不重新登记
func (m *etcdManager) monitorKeepAlive(ref *etcdReference) {
	defer m.wg.Done()

	service := ref.ident.String()
	m.logger.Debug("keepalive monitor started",
		clog.String("service", service),
		clog.Int64("lease_id", int64(ref.leaseID)))

	for {
		select {
		case <-m.stopChan:
			return

		case kaResp, ok := <-ref.keepAliveCh:
			if !ok {
				if ref.isReleased() {
					m.logger.Debug("keepalive channel closed by caller",
						clog.String("service", service),
						clog.Int64("lease_id", int64(ref.leaseID)))
					return
				}

				m.logger.Error("keepalive channel closed, lease expired or connection lost",
					clog.String("service", service),
					clog.String("ref_id", ref.id),
					clog.Int64("lease_id", int64(ref.leaseID)))

				m.mu.Lock()
				delete(m.refs, ref.id)
				m.mu.Unlock()
				return
			}

			m.logger.Debug("keepalive renewed",
				clog.String("service", service),
				clog.Int64("lease_id", int64(kaResp.ID)),
				clog.Int64("ttl", kaResp.TTL))
		}
	}
}

// Close 释放所有引用并等待后台协程结束
// 由 NewDialer 创建的 Manager 还会关闭自己持有的连接器
func (m *etcdManager) Close() error {
	if !atomic.CompareAndSwapUint32(&m.closed, 0, 1) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	m.mu.Lock()
	snapshot := make([]*etcdReference, 0, len(m.refs))
	for _, ref := range m.refs {
		snapshot = append(snapshot, ref)
	}
	m.mu.Unlock()

	var errs []error
	for _, ref := range snapshot {
		if err := ref.Release(ctx); err != nil {
			m.logger.Warn("failed to release reference during shutdown",
				clog.String("ref_id", ref.id),
				clog.Error(err))
			errs = append(errs, err)
		}
	}

	close(m.stopChan)
	m.wg.Wait()

	if m.ownsConn {
		errs = append(errs, m.conn.Close())
	}

	m.logger.Debug("registry manager closed")
	return xerrors.Combine(errs...)
}

func (m *etcdManager) forget(refID string) {
	m.mu.Lock()
	delete(m.refs, refID)
	m.mu.Unlock()
}

// buildKey 构建实例存储键
func (m *etcdManager) buildKey(service, instanceID string) string {
	return fmt.Sprintf("%s/%s/%s", m.cfg.Namespace, service, instanceID)
}

// buildPrefix 构建服务前缀
func (m *etcdManager) buildPrefix(service string) string {
	return fmt.Sprintf("%s/%s/", m.cfg.Namespace, service)
}

// normalizeInstance 补全注册方省略的 ID 和 Name
func normalizeInstance(instance *ServiceInstance, service, instanceID string) *ServiceInstance {
	if instance.ID == "" {
		instance.ID = instanceID
	}
	if instance.Name == "" {
		instance.Name = service
	}
	return instance
}
