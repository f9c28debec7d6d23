package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"smart-campus/backend/config"
	"smart-campus/backend/internal/dto"
	"smart-campus/backend/internal/model"
	"smart-campus/backend/internal/repository"
	"smart-campus/backend/internal/scheduler"
	"smart-campus/backend/pkg/validate"
)

// ── 排课模块业务错误 ──

var (
	ErrTermRequired        = errors.New("学期不能为空且无当前学期")
	ErrInvalidTerm         = errors.New("学期代码格式无效")
	ErrNoSectionsRequested = errors.New("待排教学班列表为空")
	ErrTooManySections     = errors.New("待排教学班数量超出上限")
	ErrDuplicateSections   = errors.New("待排教学班重复")
	ErrSectionsNotFound    = errors.New("部分教学班不存在或不属于该学期")
	ErrNoClassrooms        = errors.New("无可用教室")
	ErrScheduleInfeasible  = errors.New("无可行排课方案")
	ErrApplyInProgress     = errors.New("该学期正在写入排课结果，请稍后重试")
	ErrEmptySchedule       = errors.New("排课方案为空")
	ErrInvalidScheduleItem = errors.New("排课安排无效")
	ErrSectionNotFound     = errors.New("教学班不存在")
	ErrClassroomNotFound   = errors.New("教室不存在或已停用")
	ErrUserNotFound        = errors.New("用户不存在")
	ErrInvalidRole         = errors.New("无效的角色")
)

// InfeasibleError 求解无可行解，携带诊断信息；errors.Is(err, ErrScheduleInfeasible) 为 true
type InfeasibleError struct {
	Diagnostics dto.FailureDiagnostics
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrScheduleInfeasible.Error(), e.Diagnostics.Reason)
}

func (e *InfeasibleError) Unwrap() error { return ErrScheduleInfeasible }

// TimetableService 自动排课业务接口
type TimetableService interface {
	// 生成排课方案（不落库）
	GenerateSchedule(ctx context.Context, req *dto.GenerateScheduleRequest) (*dto.ScheduleView, error)
	// 将方案写入教学班（单事务，全部成功或全部回滚）
	ApplySchedule(ctx context.Context, req *dto.ApplyScheduleRequest, callerID string) (*dto.ApplyScheduleResponse, error)
	// 个人周课表
	GetUserSchedule(ctx context.Context, userID, role, term string) (*dto.WeeklySchedule, error)
	// 人工调整前校验单个安排
	CheckPlacement(ctx context.Context, req *dto.CheckPlacementRequest) (*dto.CheckPlacementResponse, error)
}

// TimetableDeps 可选的协作组件；为空时使用进程内实现
type TimetableDeps struct {
	Locker TermLocker
	Cache  ViewCache
	Events EventPublisher
}

type timetableService struct {
	scheduleReader
	cfg    config.SchedulerConfig
	solver *scheduler.Solver
	locker TermLocker
	cache  ViewCache
	events EventPublisher
}

// NewTimetableService 创建 TimetableService 实例
func NewTimetableService(cfg *config.SchedulerConfig, repo *repository.Repository, deps TimetableDeps, logger *zap.Logger) TimetableService {
	if deps.Locker == nil {
		deps.Locker = NewLocalLocker()
	}
	if deps.Cache == nil {
		deps.Cache = NewNoopCache()
	}
	if deps.Events == nil {
		deps.Events = NewNoopPublisher()
	}
	c := *cfg
	if c.MaxSections <= 0 {
		c.MaxSections = scheduler.DefaultMaxSections
	}
	return &timetableService{
		scheduleReader: scheduleReader{repo: repo, logger: logger},
		cfg:            c,
		solver:         NewSolver(&c, logger),
		locker:         deps.Locker,
		cache:          deps.Cache,
		events:         deps.Events,
	}
}

// NewSolver 按配置构造求解器；评分表达式无效时退回默认评分
func NewSolver(cfg *config.SchedulerConfig, logger *zap.Logger) *scheduler.Solver {
	grid := gridFromConfig(cfg)
	var scorer scheduler.Scorer = scheduler.NewDefaultScorer(grid)
	if formula := strings.TrimSpace(cfg.ScoreFormula); formula != "" {
		fs, err := scheduler.NewFormulaScorer(grid, formula)
		if err != nil {
			logger.Warn("评分表达式无效，使用默认评分", zap.String("formula", formula), zap.Error(err))
		} else {
			scorer = fs
		}
	}

	return scheduler.New(scheduler.Options{
		Grid:          grid,
		MinGapMinutes: cfg.MinGapMinutes,
		MaxSections:   cfg.MaxSections,
		NodeBudget:    cfg.NodeBudget,
		SoftOrdering:  cfg.SoftOrdering,
		Scorer:        scorer,
	}, logger.Named("scheduler"))
}

func gridFromConfig(cfg *config.SchedulerConfig) scheduler.Grid {
	grid := scheduler.DefaultGrid()
	if cfg.SlotMinutes > 0 {
		grid.SlotMinutes = cfg.SlotMinutes
	}
	if cfg.CourseSlots > 0 {
		grid.CourseSlots = cfg.CourseSlots
	}
	return grid
}

// ════════════════════════════════════════════════════════════
// GenerateSchedule：加载快照 → 回溯求解 → 组装方案
// ════════════════════════════════════════════════════════════

func (s *timetableService) GenerateSchedule(ctx context.Context, req *dto.GenerateScheduleRequest) (*dto.ScheduleView, error) {
	// ── 输入校验（求解前拒绝） ──
	term := strings.ToLower(strings.TrimSpace(req.Term))
	if term == "" {
		return nil, ErrTermRequired
	}
	if !validate.ValidTerm(term) {
		return nil, ErrInvalidTerm
	}
	if len(req.SectionIDs) == 0 {
		return nil, ErrNoSectionsRequested
	}
	if len(req.SectionIDs) > s.cfg.MaxSections {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManySections, len(req.SectionIDs), s.cfg.MaxSections)
	}
	requested := make(map[string]bool, len(req.SectionIDs))
	for _, id := range req.SectionIDs {
		if requested[id] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSections, id)
		}
		requested[id] = true
	}

	// ── 一次性加载只读快照 ──
	found, err := s.repo.Section.ListByIDsAndTerm(ctx, req.SectionIDs, term)
	if err != nil {
		s.logger.Error("查询待排教学班失败", zap.Error(err))
		return nil, err
	}
	sectionByID := make(map[string]*model.Section, len(found))
	for i := range found {
		sectionByID[found[i].SectionID] = &found[i]
	}
	var missing []string
	for _, id := range req.SectionIDs {
		if _, ok := sectionByID[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrSectionsNotFound, strings.Join(missing, ", "))
	}

	// 保持调用方给定的顺序
	sections := make([]scheduler.Section, 0, len(req.SectionIDs))
	for _, id := range req.SectionIDs {
		sections = append(sections, toSolverSection(sectionByID[id], s.logger))
	}

	rooms, err := s.repo.Classroom.ListActive(ctx)
	if err != nil {
		s.logger.Error("查询教室失败", zap.Error(err))
		return nil, err
	}
	if len(rooms) == 0 {
		return nil, ErrNoClassrooms
	}
	roomByID := make(map[string]*model.Classroom, len(rooms))
	classrooms := make([]scheduler.Classroom, 0, len(rooms))
	for i := range rooms {
		roomByID[rooms[i].ClassroomID] = &rooms[i]
		classrooms = append(classrooms, toSolverClassroom(&rooms[i]))
	}

	enrollments, err := s.enrollmentSnapshot(ctx, req.SectionIDs, term)
	if err != nil {
		return nil, err
	}

	scheduled, err := s.repo.Section.ListScheduledByTerm(ctx, term)
	if err != nil {
		s.logger.Error("查询学期已排教学班失败", zap.Error(err))
		return nil, err
	}
	existing := existingAssignments(scheduled, requested, s.logger)

	// ── 求解 ──
	solveCtx := ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		solveCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	started := time.Now()
	res, err := s.solver.Solve(solveCtx, scheduler.Input{
		Sections:    sections,
		Classrooms:  classrooms,
		Enrollments: enrollments,
		Existing:    existing,
	})
	if err != nil {
		return nil, mapSolverError(err)
	}
	s.logger.Info("排课求解完成",
		zap.String("term", term),
		zap.Bool("success", res.Success),
		zap.Int("sections", len(sections)),
		zap.Int("existing", len(existing)),
		zap.Duration("elapsed", time.Since(started)),
	)

	if !res.Success {
		return nil, &InfeasibleError{Diagnostics: failureDiagnostics(res)}
	}
	return buildScheduleView(term, res, sectionByID, roomByID), nil
}

func mapSolverError(err error) error {
	switch {
	case errors.Is(err, scheduler.ErrNoSections):
		return ErrNoSectionsRequested
	case errors.Is(err, scheduler.ErrNoClassrooms):
		return ErrNoClassrooms
	case errors.Is(err, scheduler.ErrTooManySections):
		return fmt.Errorf("%w: %v", ErrTooManySections, err)
	case errors.Is(err, scheduler.ErrDuplicateSection):
		return fmt.Errorf("%w: %v", ErrDuplicateSections, err)
	default:
		return err
	}
}

// ════════════════════════════════════════════════════════════
// ApplySchedule：学期锁 → 单事务覆盖写入 → 失效视图缓存 → 发布事件
// ════════════════════════════════════════════════════════════

func (s *timetableService) ApplySchedule(ctx context.Context, req *dto.ApplyScheduleRequest, callerID string) (*dto.ApplyScheduleResponse, error) {
	term := strings.ToLower(strings.TrimSpace(req.Term))
	if term == "" {
		return nil, ErrTermRequired
	}
	if !validate.ValidTerm(term) {
		return nil, ErrInvalidTerm
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptySchedule
	}

	updates, err := s.buildUpdates(req.Items)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, term)
	if err != nil {
		if !errors.Is(err, ErrApplyInProgress) {
			s.logger.Error("获取学期锁失败", zap.String("term", term), zap.Error(err))
		}
		return nil, err
	}
	defer unlock()

	if err := s.repo.Section.ApplySchedules(ctx, term, updates); err != nil {
		s.logger.Warn("写入排课结果失败，已整体回滚",
			zap.String("term", term), zap.Int("sections", len(updates)), zap.Error(err))
		return nil, err
	}

	if err := s.cache.Bump(ctx, term); err != nil {
		s.logger.Warn("更新课表视图版本失败", zap.String("term", term), zap.Error(err))
	}

	ids := make([]string, len(updates))
	for i, u := range updates {
		ids[i] = u.SectionID
	}
	event := TimetableAppliedEvent{Term: term, SectionIDs: ids, AppliedBy: callerID, AppliedAt: time.Now().UTC()}
	if err := s.events.Publish(ctx, EventTimetableApplied, event); err != nil {
		s.logger.Warn("发布排课事件失败", zap.String("term", term), zap.Error(err))
	}

	s.logger.Info("排课结果已写入",
		zap.String("term", term), zap.Int("sections", len(updates)), zap.String("caller", callerID))

	return &dto.ApplyScheduleResponse{Applied: true, Term: term, Count: len(updates)}, nil
}

// buildUpdates 按教学班分组并编码为存储格式；同一教学班的多条安排合并写入
func (s *timetableService) buildUpdates(items []dto.ApplyItem) ([]repository.SectionScheduleUpdate, error) {
	grid := s.solver.Grid()
	order := make([]string, 0, len(items))
	grouped := make(map[string][]scheduler.ScheduleItem, len(items))
	versions := make(map[string]int, len(items))

	for _, it := range items {
		if it.SectionID == "" || it.ClassroomID == "" {
			return nil, fmt.Errorf("%w: 教学班与教室不能为空", ErrInvalidScheduleItem)
		}
		day := scheduler.Weekday(it.Day)
		if !day.Valid() {
			return nil, fmt.Errorf("%w: 教学班 %s 星期 %d 无效", ErrInvalidScheduleItem, it.SectionID, it.Day)
		}
		start, err := scheduler.ParseClock(it.StartTime)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidScheduleItem, err)
		}
		end, err := scheduler.ParseClock(it.EndTime)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidScheduleItem, err)
		}
		if !grid.Contains(start, end) || grid.OverlapsLunch(start, end) {
			return nil, fmt.Errorf("%w: 教学班 %s 时间 %s-%s 不在可排课时段内",
				ErrInvalidScheduleItem, it.SectionID, it.StartTime, it.EndTime)
		}

		if _, ok := grouped[it.SectionID]; !ok {
			order = append(order, it.SectionID)
		}
		if it.Version > 0 {
			if v, ok := versions[it.SectionID]; ok && v != it.Version {
				return nil, fmt.Errorf("%w: 教学班 %s 的版本号不一致 (%d/%d)",
					ErrInvalidScheduleItem, it.SectionID, v, it.Version)
			}
			versions[it.SectionID] = it.Version
		}
		grouped[it.SectionID] = append(grouped[it.SectionID], scheduler.ScheduleItem{
			Day: day, Start: start, End: end, ClassroomID: it.ClassroomID,
		})
	}

	updates := make([]repository.SectionScheduleUpdate, 0, len(order))
	for _, id := range order {
		list := grouped[id]
		raw, err := model.EncodeSchedule(list)
		if err != nil {
			return nil, fmt.Errorf("编码排课安排失败: %w", err)
		}
		updates = append(updates, repository.SectionScheduleUpdate{
			SectionID:       id,
			ClassroomID:     list[0].ClassroomID,
			Schedule:        raw,
			ExpectedVersion: versions[id],
		})
	}
	return updates, nil
}

// ════════════════════════════════════════════════════════════
// GetUserSchedule：个人周课表（按学期视图版本缓存）
// ════════════════════════════════════════════════════════════

func (s *timetableService) GetUserSchedule(ctx context.Context, userID, role, term string) (*dto.WeeklySchedule, error) {
	term, err := s.resolveTerm(ctx, term)
	if err != nil {
		return nil, err
	}
	role, err = s.resolveRole(ctx, userID, role)
	if err != nil {
		return nil, err
	}

	cacheable := true
	version, err := s.cache.Version(ctx, term)
	if err != nil {
		s.logger.Warn("读取课表视图版本失败，跳过缓存", zap.String("term", term), zap.Error(err))
		cacheable = false
	}
	key := weeklyKey(term, version, role, userID)
	if cacheable {
		var cached dto.WeeklySchedule
		hit, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("读取课表缓存失败", zap.String("key", key), zap.Error(err))
		}
		if hit {
			return &cached, nil
		}
	}

	sections, err := s.userSections(ctx, userID, role, term)
	if err != nil {
		return nil, err
	}
	rooms, err := s.classroomsByID(ctx, classroomIDs(sections, s.logger))
	if err != nil {
		return nil, err
	}

	week := newWeeklySchedule(term, userID, role)
	projectWeekly(week, sections, rooms, s.logger)

	if cacheable {
		if err := s.cache.Set(ctx, key, week); err != nil {
			s.logger.Warn("写入课表缓存失败", zap.String("key", key), zap.Error(err))
		}
	}
	return week, nil
}

// ════════════════════════════════════════════════════════════
// CheckPlacement：针对已落地安排校验单个人工调整
// ════════════════════════════════════════════════════════════

func (s *timetableService) CheckPlacement(ctx context.Context, req *dto.CheckPlacementRequest) (*dto.CheckPlacementResponse, error) {
	term := strings.ToLower(strings.TrimSpace(req.Term))
	if !validate.ValidTerm(term) {
		return nil, ErrInvalidTerm
	}
	day := scheduler.Weekday(req.Day)
	if !day.Valid() {
		return nil, fmt.Errorf("%w: 星期 %d 无效", ErrInvalidScheduleItem, req.Day)
	}
	start, err := scheduler.ParseClock(req.StartTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScheduleItem, err)
	}

	sec, err := s.repo.Section.GetByID(ctx, req.SectionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSectionNotFound
		}
		s.logger.Error("查询教学班失败", zap.Error(err))
		return nil, err
	}
	if sec.Term != term {
		return nil, ErrSectionNotFound
	}

	room, err := s.repo.Classroom.GetByID(ctx, req.ClassroomID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassroomNotFound
		}
		s.logger.Error("查询教室失败", zap.Error(err))
		return nil, err
	}
	if !room.IsActive {
		return nil, ErrClassroomNotFound
	}

	grid := s.solver.Grid()
	end := start + grid.Duration()
	resp := &dto.CheckPlacementResponse{
		StartTime: scheduler.FormatClock(start),
		EndTime:   scheduler.FormatClock(end),
	}
	if !grid.Contains(start, end) {
		resp.Code = "grid"
		resp.Reason = "不在可排课时段内"
		return resp, nil
	}

	scheduled, err := s.repo.Section.ListScheduledByTerm(ctx, term)
	if err != nil {
		s.logger.Error("查询学期已排教学班失败", zap.Error(err))
		return nil, err
	}
	committed := existingAssignments(scheduled, map[string]bool{sec.SectionID: true}, s.logger)

	enrollments, err := s.enrollmentSnapshot(ctx, []string{sec.SectionID}, term)
	if err != nil {
		return nil, err
	}
	siblings := scheduler.BuildConflictGraph(enrollments).Siblings(sec.SectionID)

	snap := toSolverSection(sec, s.logger)
	cand := scheduler.Assignment{
		SectionID:    sec.SectionID,
		ClassroomID:  room.ClassroomID,
		InstructorID: snap.InstructorID,
		Day:          day,
		Start:        start,
		End:          end,
	}
	verdict := s.solver.Checker().Check(cand, committed, snap, toSolverClassroom(room), siblings)
	resp.Valid = verdict.Valid
	resp.Code = string(verdict.Code)
	resp.Reason = verdict.Reason
	return resp, nil
}
