package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"smart-campus/backend/internal/dto"
	"smart-campus/backend/internal/service"
	pkgerrors "smart-campus/backend/pkg/errors"
	"smart-campus/backend/pkg/response"
)

// TimetableHandler 排课模块 Handler
type TimetableHandler struct {
	svc      service.TimetableService
	calendar service.CalendarService
}

// NewTimetableHandler 创建 TimetableHandler 实例
func NewTimetableHandler(svc service.TimetableService, calendar service.CalendarService) *TimetableHandler {
	return &TimetableHandler{svc: svc, calendar: calendar}
}

// Generate 为一组教学班生成排课方案（不落库）
// POST /api/v1/timetables/generate
func (h *TimetableHandler) Generate(c *gin.Context) {
	var req dto.GenerateScheduleRequest
	if !bindJSON(c, &req) {
		return
	}

	view, err := h.svc.GenerateSchedule(c.Request.Context(), &req)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, view)
}

// Apply 将审核后的方案整体写入
// POST /api/v1/timetables/apply
func (h *TimetableHandler) Apply(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.ApplyScheduleRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.svc.ApplySchedule(c.Request.Context(), &req, callerID)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, resp)
}

// Check 校验单个人工调整是否满足硬约束
// POST /api/v1/timetables/check
func (h *TimetableHandler) Check(c *gin.Context) {
	var req dto.CheckPlacementRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.svc.CheckPlacement(c.Request.Context(), &req)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, resp)
}

// GetMine 当前用户的周课表
// GET /api/v1/timetables/me?term=
func (h *TimetableHandler) GetMine(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	role, ok := MustGetRole(c)
	if !ok {
		return
	}

	var q dto.UserScheduleQuery
	if !bindQuery(c, &q) {
		return
	}

	week, err := h.svc.GetUserSchedule(c.Request.Context(), userID, role, q.Term)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, week)
}

// GetUser 管理员查看任意用户的周课表；role 缺省时按用户记录推断
// GET /api/v1/timetables/users/:id?term=&role=
func (h *TimetableHandler) GetUser(c *gin.Context) {
	var q dto.UserScheduleQuery
	if !bindQuery(c, &q) {
		return
	}

	week, err := h.svc.GetUserSchedule(c.Request.Context(), c.Param("id"), q.Role, q.Term)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, week)
}

// MyCalendar 导出当前用户课表为 iCalendar 文件
// GET /api/v1/timetables/me/calendar.ics?term=
func (h *TimetableHandler) MyCalendar(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	role, ok := MustGetRole(c)
	if !ok {
		return
	}

	var q dto.UserScheduleQuery
	if !bindQuery(c, &q) {
		return
	}

	data, filename, err := h.calendar.ExportCalendar(c.Request.Context(), userID, role, q.Term)
	if err != nil {
		handleTimetableError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(filename))
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", data)
}

// handleTimetableError 统一排课模块错误映射
func handleTimetableError(c *gin.Context, err error) {
	var infeasible *service.InfeasibleError
	if errors.As(err, &infeasible) {
		response.Unprocessable(c, 15005, service.ErrScheduleInfeasible.Error(), infeasible.Diagnostics)
		return
	}

	switch {
	case errors.Is(err, service.ErrTermRequired), errors.Is(err, service.ErrInvalidTerm):
		response.BadRequest(c, 15001, err.Error())
	case errors.Is(err, service.ErrNoSectionsRequested),
		errors.Is(err, service.ErrTooManySections),
		errors.Is(err, service.ErrDuplicateSections):
		response.BadRequest(c, 15002, err.Error())
	case errors.Is(err, service.ErrSectionsNotFound):
		response.NotFound(c, 15003, err.Error())
	case errors.Is(err, service.ErrNoClassrooms):
		response.Error(c, http.StatusUnprocessableEntity, 15004, err.Error())
	case errors.Is(err, service.ErrApplyInProgress):
		response.Conflict(c, 15006, err.Error())
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 15007, err.Error())
	case errors.Is(err, service.ErrEmptySchedule), errors.Is(err, service.ErrInvalidScheduleItem):
		response.BadRequest(c, 15008, err.Error())
	case errors.Is(err, pkgerrors.ErrSectionMissing), errors.Is(err, pkgerrors.ErrClassroomMissing):
		response.Error(c, http.StatusUnprocessableEntity, 15009, err.Error())
	case errors.Is(err, service.ErrSectionNotFound):
		response.NotFound(c, 15010, err.Error())
	case errors.Is(err, service.ErrClassroomNotFound):
		response.NotFound(c, 15011, err.Error())
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, 15012, err.Error())
	case errors.Is(err, service.ErrInvalidRole):
		response.BadRequest(c, 15013, err.Error())
	default:
		_ = c.Error(err)
		response.InternalError(c)
	}
}
