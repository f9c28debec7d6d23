package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"smart-campus/backend/config"
	"smart-campus/backend/internal/model"
	"smart-campus/backend/internal/repository"
	"smart-campus/backend/internal/scheduler"
)

const (
	icsLocalFormat = "20060102T150405"
	icsUTCFormat   = "20060102T150405Z"
	icsProductID   = "-//smart-campus//timetable//CN"
)

// 事件 UID 命名空间：同一 (学期, 教学班, 星期) 每次导出得到相同 UID，客户端可覆盖更新
var calendarNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("smart-campus/timetable"))

// CalendarService 个人课表日历导出
type CalendarService interface {
	// ExportCalendar 导出 iCalendar 文本与建议文件名
	ExportCalendar(ctx context.Context, userID, role, term string) ([]byte, string, error)
}

type calendarService struct {
	scheduleReader
	loc *time.Location
}

// NewCalendarService 创建 CalendarService 实例
func NewCalendarService(cfg *config.SchedulerConfig, repo *repository.Repository, logger *zap.Logger) CalendarService {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Warn("日历时区无效，使用 UTC", zap.String("timezone", cfg.Timezone), zap.Error(err))
		loc = time.UTC
	}
	return &calendarService{
		scheduleReader: scheduleReader{repo: repo, logger: logger},
		loc:            loc,
	}
}

// ════════════════════════════════════════════════════════════
// ExportCalendar：每个 (教学班, 星期) 生成一条按周重复的事件
// ════════════════════════════════════════════════════════════
//
// 首次发生日为学期开始当天或之后第一个对应星期，重复至学期结束日（UNTIL）。
// 学期表无记录时按学期代码推算起止日期。

func (s *calendarService) ExportCalendar(ctx context.Context, userID, role, term string) ([]byte, string, error) {
	term, err := s.resolveTerm(ctx, term)
	if err != nil {
		return nil, "", err
	}
	role, err = s.resolveRole(ctx, userID, role)
	if err != nil {
		return nil, "", err
	}
	start, end, err := s.termBounds(ctx, term)
	if err != nil {
		return nil, "", err
	}

	sections, err := s.userSections(ctx, userID, role, term)
	if err != nil {
		return nil, "", err
	}
	rooms, err := s.classroomsByID(ctx, classroomIDs(sections, s.logger))
	if err != nil {
		return nil, "", err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(icsProductID)
	cal.SetXWRCalName(fmt.Sprintf("课表 %s", term))
	cal.SetXWRTimezone(s.loc.String())

	sort.SliceStable(sections, func(i, j int) bool { return sections[i].SectionID < sections[j].SectionID })
	stamp := time.Now()
	count := 0
	for _, sec := range sections {
		seen := make(map[scheduler.Weekday]bool)
		for _, a := range sectionAssignments(sec, s.logger) {
			if !a.Day.Valid() || seen[a.Day] {
				continue
			}
			seen[a.Day] = true

			first := firstOccurrence(start, a.Day)
			if first.After(end) {
				continue
			}
			s.addEvent(cal, term, sec, a, rooms[a.ClassroomID], first, end, stamp)
			count++
		}
	}

	s.logger.Info("导出个人日历",
		zap.String("user_id", userID), zap.String("term", term), zap.Int("events", count))

	filename := fmt.Sprintf("timetable-%s.ics", term)
	return []byte(cal.Serialize()), filename, nil
}

func (s *calendarService) addEvent(cal *ics.Calendar, term string, sec *model.Section, a scheduler.Assignment,
	room *model.Classroom, first, termEnd, stamp time.Time) {

	uid := uuid.NewSHA1(calendarNamespace, []byte(fmt.Sprintf("%s/%s/%d", term, sec.SectionID, a.Day))).String()
	event := cal.AddEvent(uid + "@smart-campus")
	event.SetDtStampTime(stamp)

	dtStart := atMinutes(first, a.Start)
	dtEnd := atMinutes(first, a.End)
	tzid := &ics.KeyValues{Key: string(ics.ParameterTzid), Value: []string{s.loc.String()}}
	event.SetProperty(ics.ComponentPropertyDtStart, dtStart.Format(icsLocalFormat), tzid)
	event.SetProperty(ics.ComponentPropertyDtEnd, dtEnd.Format(icsLocalFormat), tzid)

	until := time.Date(termEnd.Year(), termEnd.Month(), termEnd.Day(), 23, 59, 59, 0, s.loc)
	event.AddProperty(ics.ComponentPropertyRrule,
		fmt.Sprintf("FREQ=WEEKLY;BYDAY=%s;UNTIL=%s", icsDay(a.Day), until.UTC().Format(icsUTCFormat)))

	summary := strings.TrimSpace(sec.CourseCode() + " " + sec.CourseName())
	if summary == "" {
		summary = sec.SectionID
	}
	event.SetSummary(summary)

	location := a.ClassroomID
	if room != nil {
		location = strings.TrimSpace(room.Building + " " + room.Name)
	}
	event.SetLocation(location)

	desc := "教学班 " + sec.SectionID
	if sec.Instructor != nil {
		desc += "，教师 " + sec.Instructor.Name
	}
	event.SetDescription(desc)
}

// termBounds 学期起止日期（日期部分，日历时区）
func (s *calendarService) termBounds(ctx context.Context, term string) (time.Time, time.Time, error) {
	t, err := s.repo.Term.GetByID(ctx, term)
	if err == nil {
		return dateIn(t.StartDate, s.loc), dateIn(t.EndDate, s.loc), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询学期失败", zap.String("term", term), zap.Error(err))
		return time.Time{}, time.Time{}, err
	}
	start, end, err := model.DeriveTermDates(term, s.loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %v", ErrInvalidTerm, err)
	}
	return start, end, nil
}

// ── 辅助函数 ──

// firstOccurrence from 当天或之后第一个 day
func firstOccurrence(from time.Time, day scheduler.Weekday) time.Time {
	offset := (int(day) - int(from.Weekday()) + 7) % 7
	return from.AddDate(0, 0, offset)
}

func atMinutes(date time.Time, minutes int) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), minutes/60, minutes%60, 0, 0, date.Location())
}

func dateIn(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func icsDay(d scheduler.Weekday) string {
	return strings.ToUpper(d.String()[:2])
}
