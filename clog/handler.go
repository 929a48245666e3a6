package clog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// clogHandler 封装 slog.Handler，提供动态级别和 Flush 能力。
type clogHandler struct {
	slog.Handler
	levelVar *slog.LevelVar
	writer   io.Writer
}

// newHandler 按 writer -> handler options -> base handler 的顺序构造 handler。
func newHandler(config *Config, opts *options) (*clogHandler, error) {
	w := opts.writer
	if w == nil {
		var err error
		if w, err = resolveWriter(config.Output); err != nil {
			return nil, err
		}
	}

	level, _ := ParseLevel(config.Level)
	levelVar := new(slog.LevelVar)
	levelVar.Set(level.slogLevel())

	handlerOpts := &slog.HandlerOptions{
		AddSource:   config.AddSource,
		Level:       levelVar,
		ReplaceAttr: replaceAttr,
	}

	var base slog.Handler
	if strings.ToLower(config.Format) == "json" {
		base = slog.NewJSONHandler(w, handlerOpts)
	} else {
		base = slog.NewTextHandler(w, handlerOpts)
	}

	return &clogHandler{Handler: base, levelVar: levelVar, writer: w}, nil
}

// resolveWriter 根据 Output 配置创建 writer。
func resolveWriter(output string) (io.Writer, error) {
	switch strings.ToLower(output) {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log output %s: %w", output, err)
		}
		return f, nil
	}
}

// replaceAttr 统一处理 Level/Time/Source 字段。
func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.LevelKey:
		if level, ok := a.Value.Any().(slog.Level); ok {
			a.Value = slog.StringValue(levelName(level))
		}
	case slog.TimeKey:
		if a.Value.Kind() == slog.KindTime {
			a.Value = slog.StringValue(a.Value.Time().Format(timeFormat))
		}
	case slog.SourceKey:
		if source, ok := a.Value.Any().(*slog.Source); ok {
			dir := filepath.Base(filepath.Dir(source.File))
			return slog.String("caller", fmt.Sprintf("%s/%s:%d", dir, filepath.Base(source.File), source.Line))
		}
	}
	return a
}

func levelName(level slog.Level) string {
	switch {
	case level <= slog.LevelDebug:
		return "DEBUG"
	case level <= slog.LevelInfo:
		return "INFO"
	case level <= slog.LevelWarn:
		return "WARN"
	default:
		return "ERROR"
	}
}

// SetLevel 动态调整日志级别。
func (h *clogHandler) SetLevel(level Level) error {
	switch level {
	case DebugLevel, InfoLevel, WarnLevel, ErrorLevel:
	default:
		return fmt.Errorf("unknown log level: %d", level)
	}
	h.levelVar.Set(level.slogLevel())
	return nil
}

// Flush 对文件输出执行 Sync，标准输出和错误无需处理。
func (h *clogHandler) Flush() {
	if f, ok := h.writer.(*os.File); ok && f != os.Stdout && f != os.Stderr {
		_ = f.Sync()
	}
}
