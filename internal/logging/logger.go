// Package logging 构造 slog logger：控制台（text）或 json，可同时追加写入日志文件。
// stdout 留给 RunReport JSON，日志一律写 stderr。
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	FieldComponent = "component"
	FieldRunID     = "run_id"
	FieldRecord    = "record"
	FieldProvider  = "provider"
	FieldStage     = "stage"
	FieldError     = "error"
)

// Options 描述 logger 的构造参数。
type Options struct {
	Level  string
	Format string // console | json
	File   string // 非空时追加写入该文件
	// Stderr 为 nil 时使用 os.Stderr；测试里替换为 buffer。
	Stderr io.Writer
}

// New 返回 logger 以及需要在退出时关闭的资源（没有打开文件时 Close 为 no-op）。
func New(opts Options) (*slog.Logger, io.Closer, error) {
	var closer io.Closer = nopCloser{}
	out := opts.Stderr
	if out == nil {
		out = os.Stderr
	}
	if f := strings.TrimSpace(opts.File); f != "" {
		if err := os.MkdirAll(filepath.Dir(f), 0o755); err != nil {
			return nil, nil, fmt.Errorf("ensure log directory: %w", err)
		}
		file, err := os.OpenFile(f, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file %s: %w", f, err)
		}
		out = io.MultiWriter(out, file)
		closer = file
	}

	level := ParseLevel(opts.Level)
	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "console":
		handler = slog.NewTextHandler(out, &slog.HandlerOptions{
			Level: level,
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
					a.Value = slog.StringValue(a.Value.Time().Format("15:04:05"))
				}
				return a
			},
		})
	case "json":
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level: level,
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				switch a.Key {
				case slog.TimeKey:
					a.Key = "ts"
					if a.Value.Kind() == slog.KindTime {
						a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339))
					}
				case slog.LevelKey:
					a.Value = slog.StringValue(strings.ToLower(a.Value.String()))
				}
				return a
			},
		})
	default:
		_ = closer.Close()
		return nil, nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}
	return slog.New(handler), closer, nil
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Component 返回带 component 字段的子 logger；l 为 nil 时返回丢弃一切的 logger。
func Component(l *slog.Logger, name string) *slog.Logger {
	if l == nil {
		l = NewNop()
	}
	return l.With(slog.String(FieldComponent, name))
}

// Error 统一错误字段名；err 为 nil 时不产生有意义的值。
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "<nil>")
	}
	return slog.String(FieldError, err.Error())
}

func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
