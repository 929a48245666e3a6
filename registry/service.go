package registry

import "time"

// ServiceInstance 注册中心中的服务实例
//
// 存储位置：<namespace>/<service>/<instance-id>
type ServiceInstance struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Version   string            `json:"version,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Endpoints []string          `json:"endpoints,omitempty"` // 如 grpc://10.0.0.7:9090
}

// ClientRecord 持有引用的客户端登记信息，挂在客户端租约上
//
// 存储位置：<namespace>/<service>/<instance-id>/clients/<ref-id>
type ClientRecord struct {
	RefID      string    `json:"ref_id"`
	PID        int       `json:"pid"`
	Host       string    `json:"host,omitempty"`
	Service    string    `json:"service"`
	Instance   string    `json:"instance"`
	AcquiredAt time.Time `json:"acquired_at"`
}
