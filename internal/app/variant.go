package app

import "github.com/ceyewan/grabservice/registry"

// Variant 一个抓取程序的形态：程序名、寻址方式和所连接的注册中心
type Variant struct {
	Program  string
	Scheme   registry.Scheme
	Registry string // 注册中心名称，作为 Namespace 的最后一段
}

var (
	// Binder 扁平服务名，框架注册中心
	Binder = Variant{Program: "grabservice", Scheme: registry.SchemeLegacy, Registry: "binder"}

	// HwBinder 接口全限定名 + 实例名，硬件服务注册中心
	HwBinder = Variant{Program: "grabservice-hw", Scheme: registry.SchemeFQDN, Registry: "hwbinder"}

	// VndBinder 扁平服务名，厂商注册中心
	VndBinder = Variant{Program: "grabservice-vnd", Scheme: registry.SchemeLegacy, Registry: "vndbinder"}
)

// Usage 命令行用法
func (v Variant) Usage() string {
	return v.Scheme.Usage(v.Program)
}
