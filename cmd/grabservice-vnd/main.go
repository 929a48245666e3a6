// grabservice-vnd 在厂商注册中心查找服务并一直持有引用。
package main

import (
	"os"

	"github.com/ceyewan/grabservice/internal/app"
)

func main() {
	os.Exit(app.Run(app.VndBinder, os.Args[1:], os.Stdout, os.Stderr))
}
