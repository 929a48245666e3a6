// grabservice-hw 在硬件服务注册中心按接口全限定名和实例名查找服务并一直持有引用。
//
//	grabservice-hw <interface-fqdn> <instance>
package main

import (
	"os"

	"github.com/ceyewan/grabservice/internal/app"
)

func main() {
	os.Exit(app.Run(app.HwBinder, os.Args[1:], os.Stdout, os.Stderr))
}
