package logger

import (
	"testing"

	"smart-campus/backend/config"
)

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		l, err := NewLogger(&config.LogConfig{Level: "debug", Format: format})
		if err != nil {
			t.Fatalf("%s: 期望创建成功，实际: %v", format, err)
		}
		if !l.Core().Enabled(-1) {
			t.Errorf("%s: 期望 debug 级别已启用", format)
		}
	}

	if _, err := NewLogger(&config.LogConfig{Level: "verbose"}); err == nil {
		t.Error("期望无效级别报错")
	}
}

func TestIsDebug(t *testing.T) {
	if !IsDebug(&config.LogConfig{Level: "debug"}) {
		t.Error("debug 应返回 true")
	}
	if IsDebug(&config.LogConfig{Level: "info"}) {
		t.Error("info 应返回 false")
	}
}
