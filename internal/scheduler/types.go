package scheduler

// Section 待排教学班快照（求解期间只读）
type Section struct {
	ID               string
	CourseID         string
	CourseCode       string
	InstructorID     string // 空字符串表示未指派教师
	Capacity         int
	EnrolledCount    int
	RequiredFeatures []string
	Required         bool // 必修课（软评分：上午优先）

	// Preset 已手动设置的时间安排，求解时优先尝试沿用
	Preset *ScheduleItem
}

// Classroom 教室快照
type Classroom struct {
	ID       string
	Name     string
	Building string
	Capacity int
	Features []string
}

// Enrollment 选课关系，仅用于检测学生课程时间冲突
type Enrollment struct {
	StudentID string
	SectionID string
}

// ScheduleItem 单条时间安排（存储边界统一后的内部格式）
type ScheduleItem struct {
	Day         Weekday
	Start       int
	End         int
	ClassroomID string
}

// Assignment 求解产出的最小单元：教学班 → (教室, 星期, 时间区间)
type Assignment struct {
	SectionID    string
	ClassroomID  string
	InstructorID string
	Day          Weekday
	Start        int
	End          int
}

// Item 转换为存储用的时间安排
func (a Assignment) Item() ScheduleItem {
	return ScheduleItem{Day: a.Day, Start: a.Start, End: a.End, ClassroomID: a.ClassroomID}
}

// overlaps 两个区间 [s1,e1) 与 [s2,e2) 是否相交
func overlaps(s1, e1, s2, e2 int) bool {
	return s1 < e2 && s2 < e1
}

// separated 两个区间是否至少间隔 gap 分钟（背靠背视为间隔 0）
func separated(s1, e1, s2, e2, gap int) bool {
	return s2 >= e1+gap || s1 >= e2+gap
}
