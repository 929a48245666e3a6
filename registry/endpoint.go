package registry

import (
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ceyewan/grabservice/clog"
)

// parseEndpoint 解析 endpoint 地址
// 支持格式: grpc://host:port, http://host:port, https://host:port, host:port
func parseEndpoint(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	endpoint = strings.TrimPrefix(endpoint, "grpc://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")
	return strings.TrimSuffix(endpoint, "/")
}

// firstEndpoint 返回实例第一个可用的地址
func firstEndpoint(instance *ServiceInstance) string {
	for _, ep := range instance.Endpoints {
		if addr := parseEndpoint(ep); addr != "" {
			return addr
		}
	}
	return ""
}

// dialInstance 建立到实例的 gRPC 通道并触发连接，不等待 Ready
// 失败只记录日志，不影响引用本身
func (m *etcdManager) dialInstance(instance *ServiceInstance) *grpc.ClientConn {
	addr := firstEndpoint(instance)
	if addr == "" {
		m.logger.Debug("service instance has no endpoint, skip dialing",
			clog.String("instance_id", instance.ID))
		return nil
	}

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		m.logger.Warn("failed to create grpc channel",
			clog.String("instance_id", instance.ID),
			clog.String("endpoint", addr),
			clog.Error(err))
		return nil
	}
	conn.Connect()

	m.logger.Debug("grpc channel opened",
		clog.String("instance_id", instance.ID),
		clog.String("endpoint", addr),
		clog.String("state", conn.GetState().String()))
	return conn
}
