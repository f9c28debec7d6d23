// Package snapshot 读取离线排课快照（YAML），转换为求解器输入。
//
// 快照与线上求解使用同一份只读数据形态：教学班、教室、选课关系、学期内已落地的安排。
// 适用于排课前的容量预演和线上无解问题的复现。
package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"smart-campus/backend/internal/scheduler"
)

var (
	ErrEmptySnapshot = errors.New("snapshot: 内容为空")
	ErrInvalidSlot   = errors.New("snapshot: 时间安排无效")
)

// File 快照文件结构
type File struct {
	Term        string       `yaml:"term"`
	Sections    []Section    `yaml:"sections"`
	Classrooms  []Classroom  `yaml:"classrooms"`
	Enrollments []Enrollment `yaml:"enrollments"`
	Existing    []Placement  `yaml:"existing"`
}

// Section 待排教学班；顺序即求解顺序
type Section struct {
	ID         string   `yaml:"id"`
	CourseID   string   `yaml:"course_id"`
	CourseCode string   `yaml:"course_code"`
	Instructor string   `yaml:"instructor"`
	Capacity   int      `yaml:"capacity"`
	Enrolled   int      `yaml:"enrolled"`
	Features   []string `yaml:"features"`
	Required   bool     `yaml:"required"`
	Preset     *Slot    `yaml:"preset,omitempty"`
}

// Slot 手动指定的时间与教室；结束时间由网格时长推出
type Slot struct {
	Day       string `yaml:"day"`
	Start     string `yaml:"start"`
	Classroom string `yaml:"classroom"`
}

// Classroom 教室
type Classroom struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Building string   `yaml:"building"`
	Capacity int      `yaml:"capacity"`
	Features []string `yaml:"features"`
}

// Enrollment 一名学生所选的全部教学班
type Enrollment struct {
	Student  string   `yaml:"student"`
	Sections []string `yaml:"sections"`
}

// Placement 学期内其他教学班已落地的安排；end 为空时按网格时长推出
type Placement struct {
	Section    string `yaml:"section"`
	Classroom  string `yaml:"classroom"`
	Instructor string `yaml:"instructor"`
	Day        string `yaml:"day"`
	Start      string `yaml:"start"`
	End        string `yaml:"end,omitempty"`
}

// Parse 解析 YAML 快照
func Parse(data []byte) (*File, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptySnapshot
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("snapshot: 解析失败: %w", err)
	}
	f.Term = strings.ToLower(strings.TrimSpace(f.Term))
	return &f, nil
}

// Load 从 io.Reader 读取快照
func Load(r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("snapshot: 读取失败: %w", err)
	}
	return Parse(data)
}

// LoadFile 从文件读取快照
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: 读取 %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Input 转换为求解器输入。时间按 grid 的课时长度补全；
// 教学班数量、重复等输入校验交给求解器完成。
func (f *File) Input(grid scheduler.Grid) (scheduler.Input, error) {
	in := scheduler.Input{
		Sections:   make([]scheduler.Section, 0, len(f.Sections)),
		Classrooms: make([]scheduler.Classroom, 0, len(f.Classrooms)),
	}

	for _, s := range f.Sections {
		sec := scheduler.Section{
			ID:               s.ID,
			CourseID:         s.CourseID,
			CourseCode:       s.CourseCode,
			InstructorID:     s.Instructor,
			Capacity:         s.Capacity,
			EnrolledCount:    s.Enrolled,
			RequiredFeatures: s.Features,
			Required:         s.Required,
		}
		if s.Preset != nil {
			item, err := s.Preset.item(grid)
			if err != nil {
				return scheduler.Input{}, fmt.Errorf("教学班 %s: %w", s.ID, err)
			}
			sec.Preset = &item
		}
		in.Sections = append(in.Sections, sec)
	}

	for _, c := range f.Classrooms {
		in.Classrooms = append(in.Classrooms, scheduler.Classroom{
			ID:       c.ID,
			Name:     c.Name,
			Building: c.Building,
			Capacity: c.Capacity,
			Features: c.Features,
		})
	}

	for _, e := range f.Enrollments {
		for _, sid := range e.Sections {
			in.Enrollments = append(in.Enrollments, scheduler.Enrollment{StudentID: e.Student, SectionID: sid})
		}
	}

	for _, p := range f.Existing {
		a, err := p.assignment(grid)
		if err != nil {
			return scheduler.Input{}, fmt.Errorf("已有安排 %s: %w", p.Section, err)
		}
		in.Existing = append(in.Existing, a)
	}

	return in, nil
}

// ClassroomNames 教室 ID → 名称，便于输出
func (f *File) ClassroomNames() map[string]string {
	names := make(map[string]string, len(f.Classrooms))
	for _, c := range f.Classrooms {
		name := c.Name
		if name == "" {
			name = c.ID
		}
		names[c.ID] = name
	}
	return names
}

func (s Slot) item(grid scheduler.Grid) (scheduler.ScheduleItem, error) {
	day, start, err := parseDayStart(s.Day, s.Start)
	if err != nil {
		return scheduler.ScheduleItem{}, err
	}
	return scheduler.ScheduleItem{Day: day, Start: start, End: start + grid.Duration(), ClassroomID: s.Classroom}, nil
}

func (p Placement) assignment(grid scheduler.Grid) (scheduler.Assignment, error) {
	day, start, err := parseDayStart(p.Day, p.Start)
	if err != nil {
		return scheduler.Assignment{}, err
	}
	end := start + grid.Duration()
	if p.End != "" {
		if end, err = scheduler.ParseClock(p.End); err != nil {
			return scheduler.Assignment{}, fmt.Errorf("%w: %v", ErrInvalidSlot, err)
		}
		if end <= start {
			return scheduler.Assignment{}, fmt.Errorf("%w: 结束时间 %s 不晚于开始时间 %s", ErrInvalidSlot, p.End, p.Start)
		}
	}
	return scheduler.Assignment{
		SectionID:    p.Section,
		ClassroomID:  p.Classroom,
		InstructorID: p.Instructor,
		Day:          day,
		Start:        start,
		End:          end,
	}, nil
}

func parseDayStart(dayText, startText string) (scheduler.Weekday, int, error) {
	day, ok := scheduler.ParseWeekday(dayText)
	if !ok {
		return 0, 0, fmt.Errorf("%w: 星期 %q", ErrInvalidSlot, dayText)
	}
	start, err := scheduler.ParseClock(startText)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrInvalidSlot, err)
	}
	return day, start, nil
}
