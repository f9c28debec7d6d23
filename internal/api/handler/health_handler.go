package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

// Probe 依赖探活函数，返回 nil 表示可用
type Probe func(ctx context.Context) error

// HealthHandler 健康检查
type HealthHandler struct {
	probes  map[string]Probe
	timeout time.Duration
}

// NewHealthHandler 创建 HealthHandler；probes 为空时只报告进程存活
func NewHealthHandler(probes map[string]Probe) *HealthHandler {
	return &HealthHandler{probes: probes, timeout: 2 * time.Second}
}

// Check GET /health
// 任一依赖不可用时返回 503，并在 checks 中标出失败项
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.probes))
	for name := range h.probes {
		names = append(names, name)
	}
	sort.Strings(names)

	status, code := "ok", http.StatusOK
	checks := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.probes[name](ctx); err != nil {
			checks[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	c.JSON(code, gin.H{"status": status, "checks": checks})
}
