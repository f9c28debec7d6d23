package handler

import "smart-campus/backend/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Timetable *TimetableHandler
	Export    *ExportHandler
	Health    *HealthHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service, probes map[string]Probe) *Handler {
	return &Handler{
		Timetable: NewTimetableHandler(svc.Timetable, svc.Calendar),
		Export:    NewExportHandler(svc.Export),
		Health:    NewHealthHandler(probes),
	}
}
