package scheduler

import (
	"fmt"
	"sort"
	"strings"
)

// RejectCode 硬约束编号，用于诊断统计
type RejectCode string

const (
	RejectLunch      RejectCode = "lunch"
	RejectInstructor RejectCode = "instructor"
	RejectClassroom  RejectCode = "classroom"
	RejectStudent    RejectCode = "student"
	RejectCapacity   RejectCode = "capacity"
	RejectFeatures   RejectCode = "features"
)

// Verdict 约束检查结果
// Reason 仅用于诊断与日志，不参与求解决策
type Verdict struct {
	Valid  bool
	Code   RejectCode
	Reason string
}

var accepted = Verdict{Valid: true}

func reject(code RejectCode, format string, args ...interface{}) Verdict {
	return Verdict{Valid: false, Code: code, Reason: fmt.Sprintf(format, args...)}
}

// ConflictGraph 教学班冲突图：共享至少一名在读学生的教学班互为邻居
type ConflictGraph map[string]map[string]struct{}

// BuildConflictGraph 由有效选课记录构建冲突图
func BuildConflictGraph(enrollments []Enrollment) ConflictGraph {
	byStudent := make(map[string][]string)
	for _, e := range enrollments {
		byStudent[e.StudentID] = append(byStudent[e.StudentID], e.SectionID)
	}

	g := make(ConflictGraph)
	for _, sections := range byStudent {
		for i := range sections {
			for j := range sections {
				if sections[i] == sections[j] {
					continue
				}
				if g[sections[i]] == nil {
					g[sections[i]] = make(map[string]struct{})
				}
				g[sections[i]][sections[j]] = struct{}{}
			}
		}
	}
	return g
}

// Siblings 返回与 sectionID 共享学生的教学班集合（可能为 nil）
func (g ConflictGraph) Siblings(sectionID string) map[string]struct{} {
	return g[sectionID]
}

// Checker 硬约束检查器（纯函数，无状态）
type Checker struct {
	grid   Grid
	minGap int
}

// NewChecker 创建约束检查器；minGap 为同教师/同教室两次课的最小间隔（分钟）
func NewChecker(grid Grid, minGap int) Checker {
	return Checker{grid: grid, minGap: minGap}
}

// Check 按固定顺序校验全部硬约束，遇到首个失败即返回：
//  1. 不得与午休重叠
//  2. 同教师同日不同教学班需间隔 ≥ minGap
//  3. 同教室同日不同教学班需间隔 ≥ minGap
//  4. 共享学生的教学班同日不得重叠
//  5. 教室容量 ≥ 教学班容量
//  6. 教室设施 ⊇ 课程所需设施
func (c Checker) Check(cand Assignment, committed []Assignment, sec Section, room Classroom, siblings map[string]struct{}) Verdict {
	if c.grid.OverlapsLunch(cand.Start, cand.End) {
		return reject(RejectLunch, "%s %s-%s 与午休时间重叠",
			cand.Day, FormatClock(cand.Start), FormatClock(cand.End))
	}

	if cand.InstructorID != "" {
		for _, a := range committed {
			if a.SectionID == cand.SectionID || a.InstructorID != cand.InstructorID || a.Day != cand.Day {
				continue
			}
			if !separated(cand.Start, cand.End, a.Start, a.End, c.minGap) {
				return reject(RejectInstructor, "教师 %s 在 %s 与教学班 %s (%s-%s) 间隔不足 %d 分钟",
					cand.InstructorID, cand.Day, a.SectionID, FormatClock(a.Start), FormatClock(a.End), c.minGap)
			}
		}
	}

	for _, a := range committed {
		if a.SectionID == cand.SectionID || a.ClassroomID != cand.ClassroomID || a.Day != cand.Day {
			continue
		}
		if !separated(cand.Start, cand.End, a.Start, a.End, c.minGap) {
			return reject(RejectClassroom, "教室 %s 在 %s 与教学班 %s (%s-%s) 间隔不足 %d 分钟",
				cand.ClassroomID, cand.Day, a.SectionID, FormatClock(a.Start), FormatClock(a.End), c.minGap)
		}
	}

	if len(siblings) > 0 {
		for _, a := range committed {
			if a.SectionID == cand.SectionID || a.Day != cand.Day {
				continue
			}
			if _, ok := siblings[a.SectionID]; !ok {
				continue
			}
			if overlaps(cand.Start, cand.End, a.Start, a.End) {
				return reject(RejectStudent, "与教学班 %s 存在共同学生且 %s %s-%s 时间重叠",
					a.SectionID, cand.Day, FormatClock(a.Start), FormatClock(a.End))
			}
		}
	}

	if room.Capacity < sec.Capacity {
		return reject(RejectCapacity, "教室 %s 容量 %d 小于教学班容量 %d", room.ID, room.Capacity, sec.Capacity)
	}

	if missing := missingFeatures(sec.RequiredFeatures, room.Features); len(missing) > 0 {
		return reject(RejectFeatures, "教室 %s 缺少设施: %s", room.ID, strings.Join(missing, ", "))
	}

	return accepted
}

// missingFeatures 返回 required 中教室不具备的设施（大小写不敏感，结果有序）
func missingFeatures(required, available []string) []string {
	if len(required) == 0 {
		return nil
	}
	have := make(map[string]struct{}, len(available))
	for _, f := range available {
		have[normalizeFeature(f)] = struct{}{}
	}
	var missing []string
	for _, f := range required {
		key := normalizeFeature(f)
		if key == "" {
			continue
		}
		if _, ok := have[key]; !ok {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	return missing
}

func normalizeFeature(f string) string {
	return strings.ToLower(strings.TrimSpace(f))
}
