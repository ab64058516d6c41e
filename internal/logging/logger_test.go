package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	l, c, err := New(Options{Level: "debug", Format: "json", Stderr: &buf})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	defer c.Close()

	Component(l, "run").Warn("provider failed", slog.String(FieldRecord, "Heat"), Error(errors.New("boom")))

	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("输出不是 JSON：%v %q", err, buf.String())
	}
	if m["level"] != "warn" || m[FieldComponent] != "run" || m[FieldRecord] != "Heat" || m[FieldError] != "boom" {
		t.Fatalf("字段不正确：%v", m)
	}
	if _, ok := m["ts"]; !ok {
		t.Fatalf("缺少 ts 字段：%v", m)
	}
}

func TestNew_LevelFilterAndFile(t *testing.T) {
	var buf bytes.Buffer
	file := filepath.Join(t.TempDir(), "logs", "jukebox.log")
	l, c, err := New(Options{Level: "warn", File: file, Stderr: &buf})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	l.Info("hidden")
	l.Error("shown")
	if err := c.Close(); err != nil {
		t.Fatalf("关闭日志文件失败：%v", err)
	}

	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("级别过滤不正确：%q", buf.String())
	}
	b, err := os.ReadFile(file)
	if err != nil || !strings.Contains(string(b), "shown") {
		t.Fatalf("日志文件内容不正确：%q %v", string(b), err)
	}
}

func TestNew_UnknownFormat(t *testing.T) {
	if _, _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatalf("未知格式应报错")
	}
}

func TestComponent_NilLogger(t *testing.T) {
	Component(nil, "x").Error("丢弃，不应 panic")
}
