package config

import "github.com/ceyewan/grabservice/xerrors"

// ErrInvalidWatchKey Watch 的 key 为空
var ErrInvalidWatchKey = xerrors.New("config: watch key is required")

// WrapLoadError 包装加载错误
func WrapLoadError(err error, message string) error {
	if err == nil {
		return nil
	}
	return xerrors.Wrapf(err, "failed to load config: %s", message)
}
