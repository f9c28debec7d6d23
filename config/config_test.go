package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("写入配置文件失败: %v", err)
	}
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
auth:
  jwt_secret: "0123456789abcdef0123"
scheduler:
  soft_ordering: true
  node_budget: 5000
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("期望端口 9090，实际 %d", cfg.Server.Port)
	}
	if !cfg.Scheduler.SoftOrdering || cfg.Scheduler.NodeBudget != 5000 {
		t.Errorf("排课配置未生效: %+v", cfg.Scheduler)
	}
	if cfg.Scheduler.MaxSections != 30 || cfg.Scheduler.MinGapMinutes != 15 {
		t.Errorf("默认值不符: %+v", cfg.Scheduler)
	}
	if cfg.Scheduler.Timeout != 20*time.Second || cfg.Scheduler.ViewCacheTTL != 10*time.Minute {
		t.Errorf("时长默认值不符: %+v", cfg.Scheduler)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
auth:
  jwt_secret: "0123456789abcdef0123"
scheduler:
  max_sections: 10
`)
	t.Setenv("CAMPUS_SCHEDULER_MAX_SECTIONS", "12")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if cfg.Scheduler.MaxSections != 12 {
		t.Errorf("环境变量应覆盖配置文件，实际 %d", cfg.Scheduler.MaxSections)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"缺少密钥", "server:\n  port: 8080\n", "jwt_secret 不能为空"},
		{"密钥过短", "auth:\n  jwt_secret: short\n", "长度不能少于 16"},
		{"端口越界", "server:\n  port: 70000\nauth:\n  jwt_secret: 0123456789abcdef\n", "server.port"},
		{"上限非正", "auth:\n  jwt_secret: 0123456789abcdef\nscheduler:\n  max_sections: 0\n", "max_sections"},
		{"预算为负", "auth:\n  jwt_secret: 0123456789abcdef\nscheduler:\n  node_budget: -1\n", "node_budget"},
		{"时区无效", "auth:\n  jwt_secret: 0123456789abcdef\nscheduler:\n  timezone: Mars/Base\n", "timezone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("期望包含 %q 的错误，实际: %v", tt.want, err)
			}
		})
	}
}

func TestLoadScheduler_IgnoresAuth(t *testing.T) {
	path := writeConfig(t, "scheduler:\n  min_gap_minutes: 20\n")

	sc, err := LoadScheduler(path)
	if err != nil {
		t.Fatalf("离线加载不应要求 jwt_secret: %v", err)
	}
	if sc.MinGapMinutes != 20 || sc.SlotMinutes != 30 || sc.CourseSlots != 3 {
		t.Errorf("排课配置不符: %+v", sc)
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "campus", SSLMode: "disable", Timezone: "UTC"}
	want := "host=db port=5432 user=u password=p dbname=campus sslmode=disable TimeZone=UTC"
	if got := c.DSN(); got != want {
		t.Errorf("DSN 不符:\n期望 %s\n实际 %s", want, got)
	}
}
