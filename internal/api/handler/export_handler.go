package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"smart-campus/backend/internal/service"
	"smart-campus/backend/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportTimetable 导出学期课表
// GET /api/v1/export/timetable?term=2025-fall
func (h *ExportHandler) ExportTimetable(c *gin.Context) {
	term := c.Query("term")
	if term == "" {
		response.BadRequest(c, 10001, "term 不能为空")
		return
	}

	buf, filename, err := h.exportSvc.ExportTimetable(c.Request.Context(), term)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	// 设置下载响应头
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidTerm):
		response.BadRequest(c, 16100, err.Error())
	case errors.Is(err, service.ErrExportNoSchedule):
		response.NotFound(c, 16101, "该学期暂无已落地的课表")
	default:
		_ = c.Error(err)
		response.InternalError(c)
	}
}
