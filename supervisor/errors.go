package supervisor

import "github.com/ceyewan/grabservice/xerrors"

var (
	// ErrUnknownKind 未知的抓取程序种类
	ErrUnknownKind = xerrors.New("unknown grabber kind")

	// ErrSchemeMismatch 服务标识的寻址方式与抓取程序种类不符
	ErrSchemeMismatch = xerrors.New("identifier scheme does not match grabber kind")

	// ErrUnsupportedOutput 抓取进程输出了 OK / NO 以外的内容
	ErrUnsupportedOutput = xerrors.New("unsupported grabber output")

	// ErrExited 抓取进程在输出结果之前退出
	ErrExited = xerrors.New("grabber exited before reporting")

	// ErrLookupFailed 抓取进程输出 NO
	ErrLookupFailed = xerrors.New("grabber reported failure")

	// ErrSupervisorClosed Supervisor 已关闭
	ErrSupervisorClosed = xerrors.New("supervisor is closed")
)
