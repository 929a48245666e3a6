// grabservice 在框架注册中心查找服务并一直持有引用。
//
//	grabservice <service-name>
//
// stdout 输出 OK 或 NO；退出码 1 表示用法错误或注册中心不可用，2 表示查找失败。
package main

import (
	"os"

	"github.com/ceyewan/grabservice/internal/app"
)

func main() {
	os.Exit(app.Run(app.Binder, os.Args[1:], os.Stdout, os.Stderr))
}
