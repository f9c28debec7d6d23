package scheduler

import (
	"fmt"
	"sort"
	"strings"
)

// 单个教师承担的教学班数超过该值时给出提示
const instructorLoadHint = 5

// diagnose 汇总无解时的诊断信息，帮助调用方调整输入而不是盲目重试
func (s *Solver) diagnose(in Input, st *search) *Failure {
	f := &Failure{
		Reason:         "已穷尽全部候选，无可行解",
		SectionCount:   len(in.Sections),
		ClassroomCount: len(in.Classrooms),
		ExistingCount:  len(in.Existing),
		Aborted:        st.aborted,
	}
	if st.aborted {
		f.Reason = st.abortReason
	}
	if len(st.rejections) > 0 {
		f.Rejections = make(map[RejectCode]int, len(st.rejections))
		for k, v := range st.rejections {
			f.Rejections[k] = v
		}
	}
	f.Hints = s.hints(in)
	return f
}

func (s *Solver) hints(in Input) []string {
	var hints []string

	if len(in.Classrooms) < len(in.Sections) {
		hints = append(hints, fmt.Sprintf("可用教室数 (%d) 少于待排教学班数 (%d)", len(in.Classrooms), len(in.Sections)))
	}

	// 教师负荷
	load := make(map[string]int)
	for _, sec := range in.Sections {
		if sec.InstructorID != "" {
			load[sec.InstructorID]++
		}
	}
	instructors := make([]string, 0, len(load))
	for id, n := range load {
		if n > instructorLoadHint {
			instructors = append(instructors, id)
		}
	}
	sort.Strings(instructors)
	for _, id := range instructors {
		hints = append(hints, fmt.Sprintf("教师 %s 承担 %d 个教学班 (>%d)", id, load[id], instructorLoadHint))
	}

	maxCap := 0
	for _, r := range in.Classrooms {
		if r.Capacity > maxCap {
			maxCap = r.Capacity
		}
	}
	for _, sec := range in.Sections {
		if sec.Capacity > maxCap {
			hints = append(hints, fmt.Sprintf("教学班 %s 容量 %d 超过最大教室容量 %d", sec.ID, sec.Capacity, maxCap))
			continue
		}
		if len(sec.RequiredFeatures) == 0 {
			continue
		}
		satisfiable := false
		for _, r := range in.Classrooms {
			if r.Capacity >= sec.Capacity && len(missingFeatures(sec.RequiredFeatures, r.Features)) == 0 {
				satisfiable = true
				break
			}
		}
		if !satisfiable {
			hints = append(hints, fmt.Sprintf("教学班 %s 所需设施 [%s] 无满足容量的教室提供",
				sec.ID, strings.Join(sec.RequiredFeatures, ", ")))
		}
	}

	weekly := len(in.Classrooms) * len(s.opts.Grid.Days) * len(s.opts.Grid.Origins())
	if weekly < len(in.Sections)+len(in.Existing) {
		hints = append(hints, fmt.Sprintf("教室周可用时段总数 (%d) 少于需安排的课程数 (%d)",
			weekly, len(in.Sections)+len(in.Existing)))
	}

	return hints
}
