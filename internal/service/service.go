package service

import (
	"go.uber.org/zap"

	"smart-campus/backend/config"
	"smart-campus/backend/internal/repository"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Timetable TimetableService
	Calendar  CalendarService
	Export    ExportService
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	deps TimetableDeps,
	logger *zap.Logger,
) *Service {
	return &Service{
		Timetable: NewTimetableService(&cfg.Scheduler, repo, deps, logger),
		Calendar:  NewCalendarService(&cfg.Scheduler, repo, logger),
		Export:    NewExportService(&cfg.Scheduler, repo, logger),
	}
}
