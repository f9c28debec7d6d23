package service

import (
	"sort"

	"go.uber.org/zap"

	"smart-campus/backend/internal/dto"
	"smart-campus/backend/internal/model"
	"smart-campus/backend/internal/scheduler"
)

// 状态
const statusProposed = "proposed"

var dayNames = map[scheduler.Weekday]string{
	scheduler.Monday:    "周一",
	scheduler.Tuesday:   "周二",
	scheduler.Wednesday: "周三",
	scheduler.Thursday:  "周四",
	scheduler.Friday:    "周五",
}

// ── 存储模型 → 求解快照 ──

// toSolverSection 转换教学班；已保存安排的首条作为手动预设
func toSolverSection(sec *model.Section, logger *zap.Logger) scheduler.Section {
	out := scheduler.Section{
		ID:            sec.SectionID,
		CourseID:      sec.CourseID,
		CourseCode:    sec.CourseCode(),
		InstructorID:  sec.InstructorIDValue(),
		Capacity:      sec.Capacity,
		EnrolledCount: sec.EnrolledCount,
	}
	if sec.Course != nil {
		out.Required = sec.Course.Required
		out.RequiredFeatures = []string(sec.Course.RequiredFeatures)
	}

	items, err := model.DecodeSchedule(sec.Schedule)
	if err != nil {
		logger.Warn("教学班已有安排无法解析，按未排处理",
			zap.String("section_id", sec.SectionID), zap.Error(err))
		return out
	}
	if len(items) > 0 {
		preset := items[0]
		if preset.ClassroomID == "" && sec.ClassroomID != nil {
			preset.ClassroomID = *sec.ClassroomID
		}
		out.Preset = &preset
	}
	return out
}

func toSolverClassroom(room *model.Classroom) scheduler.Classroom {
	return scheduler.Classroom{
		ID:       room.ClassroomID,
		Name:     room.Name,
		Building: room.Building,
		Capacity: room.Capacity,
		Features: []string(room.Features),
	}
}

// existingAssignments 学期内已落地、且不在 exclude 中的教学班安排
func existingAssignments(sections []model.Section, exclude map[string]bool, logger *zap.Logger) []scheduler.Assignment {
	var out []scheduler.Assignment
	for i := range sections {
		sec := &sections[i]
		if exclude[sec.SectionID] {
			continue
		}
		out = append(out, sectionAssignments(sec, logger)...)
	}
	return out
}

// sectionAssignments 将教学班已保存的安排展开为 Assignment 列表
func sectionAssignments(sec *model.Section, logger *zap.Logger) []scheduler.Assignment {
	items, err := model.DecodeSchedule(sec.Schedule)
	if err != nil {
		logger.Warn("跳过无法解析的已有安排",
			zap.String("section_id", sec.SectionID), zap.Error(err))
		return nil
	}
	out := make([]scheduler.Assignment, 0, len(items))
	for _, it := range items {
		room := it.ClassroomID
		if room == "" && sec.ClassroomID != nil {
			room = *sec.ClassroomID
		}
		out = append(out, scheduler.Assignment{
			SectionID:    sec.SectionID,
			ClassroomID:  room,
			InstructorID: sec.InstructorIDValue(),
			Day:          it.Day,
			Start:        it.Start,
			End:          it.End,
		})
	}
	return out
}

// ── 排课方案视图 ──

// buildScheduleView 按教学班请求顺序组装方案视图
func buildScheduleView(term string, res *scheduler.Result, sections map[string]*model.Section, rooms map[string]*model.Classroom) *dto.ScheduleView {
	view := &dto.ScheduleView{
		Term:   term,
		Status: statusProposed,
		Items:  make([]dto.ScheduleItemView, 0, len(res.Assignments)),
		Stats: dto.ScheduleStats{
			Nodes:      res.Stats.Nodes,
			Backtracks: res.Stats.Backtracks,
			Honored:    res.Stats.Honored,
		},
	}
	for _, a := range res.Assignments {
		item := dto.ScheduleItemView{
			SectionID:    a.SectionID,
			InstructorID: a.InstructorID,
			ClassroomID:  a.ClassroomID,
			Day:          int(a.Day),
			DayName:      dayNames[a.Day],
			StartTime:    scheduler.FormatClock(a.Start),
			EndTime:      scheduler.FormatClock(a.End),
		}
		if sec, ok := sections[a.SectionID]; ok {
			item.CourseCode = sec.CourseCode()
			item.CourseName = sec.CourseName()
			item.Version = sec.Version
		}
		if room, ok := rooms[a.ClassroomID]; ok {
			item.ClassroomName = room.Name
			item.Building = room.Building
		}
		view.Items = append(view.Items, item)
	}
	return view
}

// failureDiagnostics 求解失败信息 → 响应结构
func failureDiagnostics(res *scheduler.Result) dto.FailureDiagnostics {
	f := res.Failure
	d := dto.FailureDiagnostics{
		Reason:         f.Reason,
		SectionCount:   f.SectionCount,
		ClassroomCount: f.ClassroomCount,
		ExistingCount:  f.ExistingCount,
		Hints:          f.Hints,
		Aborted:        f.Aborted,
		Nodes:          res.Stats.Nodes,
		Backtracks:     res.Stats.Backtracks,
	}
	if d.Hints == nil {
		d.Hints = []string{}
	}
	if len(f.Rejections) > 0 {
		d.Rejections = make(map[string]int, len(f.Rejections))
		for code, n := range f.Rejections {
			d.Rejections[string(code)] = n
		}
	}
	return d
}

// ── 个人周课表 ──

// newWeeklySchedule 周一至周五五个键总是存在
func newWeeklySchedule(term, userID, role string) *dto.WeeklySchedule {
	days := make(map[string][]dto.WeeklyEntry, len(scheduler.Weekdays))
	for _, d := range scheduler.Weekdays {
		days[d.String()] = []dto.WeeklyEntry{}
	}
	return &dto.WeeklySchedule{Term: term, UserID: userID, Role: role, Days: days}
}

// projectWeekly 将教学班已保存的安排投影到周课表，每天按开始时间排序
func projectWeekly(week *dto.WeeklySchedule, sections []*model.Section, rooms map[string]*model.Classroom, logger *zap.Logger) {
	type keyed struct {
		start int
		entry dto.WeeklyEntry
	}
	buckets := make(map[scheduler.Weekday][]keyed)

	for _, sec := range sections {
		for _, a := range sectionAssignments(sec, logger) {
			if !a.Day.Valid() {
				continue
			}
			e := dto.WeeklyEntry{
				SectionID:    sec.SectionID,
				CourseCode:   sec.CourseCode(),
				CourseName:   sec.CourseName(),
				InstructorID: sec.InstructorIDValue(),
				ClassroomID:  a.ClassroomID,
				StartTime:    scheduler.FormatClock(a.Start),
				EndTime:      scheduler.FormatClock(a.End),
			}
			if sec.Instructor != nil {
				e.InstructorName = sec.Instructor.Name
			}
			if room, ok := rooms[a.ClassroomID]; ok {
				e.ClassroomName = room.Name
				e.Building = room.Building
			}
			buckets[a.Day] = append(buckets[a.Day], keyed{start: a.Start, entry: e})
		}
	}

	for day, list := range buckets {
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].start != list[j].start {
				return list[i].start < list[j].start
			}
			return list[i].entry.SectionID < list[j].entry.SectionID
		})
		entries := make([]dto.WeeklyEntry, len(list))
		for i, k := range list {
			entries[i] = k.entry
		}
		week.Days[day.String()] = entries
	}
}

// classroomIDs 收集教学班安排中引用的教室
func classroomIDs(sections []*model.Section, logger *zap.Logger) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, sec := range sections {
		for _, a := range sectionAssignments(sec, logger) {
			if a.ClassroomID != "" && !seen[a.ClassroomID] {
				seen[a.ClassroomID] = true
				ids = append(ids, a.ClassroomID)
			}
		}
	}
	sort.Strings(ids)
	return ids
}
