package dto

// ── 排课生成 ──

// GenerateScheduleRequest 排课生成请求
type GenerateScheduleRequest struct {
	SectionIDs []string `json:"section_ids" binding:"required,min=1,dive,required"`
	Term       string   `json:"term" binding:"required,term"`
}

// ScheduleItemView 单个教学班的排课结果
type ScheduleItemView struct {
	SectionID     string `json:"section_id"`
	CourseCode    string `json:"course_code"`
	CourseName    string `json:"course_name"`
	InstructorID  string `json:"instructor_id,omitempty"`
	ClassroomID   string `json:"classroom_id"`
	ClassroomName string `json:"classroom_name"`
	Building      string `json:"building"`
	Day           int    `json:"day"`
	DayName       string `json:"day_name"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	// Version 生成方案时教学班的版本号，apply 时原样回传
	Version       int    `json:"version"`
}

// ScheduleStats 搜索统计
type ScheduleStats struct {
	Nodes      int `json:"nodes"`
	Backtracks int `json:"backtracks"`
	Honored    int `json:"honored"`
}

// ScheduleView 排课方案（未持久化）
type ScheduleView struct {
	Term   string             `json:"term"`
	Status string             `json:"status"` // proposed
	Items  []ScheduleItemView `json:"items"`
	Stats  ScheduleStats      `json:"stats"`
}

// FailureDiagnostics 排课无解时的诊断信息
type FailureDiagnostics struct {
	Reason         string         `json:"reason"`
	SectionCount   int            `json:"section_count"`
	ClassroomCount int            `json:"classroom_count"`
	ExistingCount  int            `json:"existing_count"`
	Hints          []string       `json:"hints"`
	Rejections     map[string]int `json:"rejections,omitempty"`
	Aborted        bool           `json:"aborted"`
	Nodes          int            `json:"nodes"`
	Backtracks     int            `json:"backtracks"`
}

// ── 排课落地 ──

// ApplyItem 待写入的单条安排
type ApplyItem struct {
	SectionID   string `json:"section_id" binding:"required"`
	ClassroomID string `json:"classroom_id" binding:"required"`
	Day         int    `json:"day" binding:"required,weekday"`
	StartTime   string `json:"start_time" binding:"required,clock"`
	EndTime     string `json:"end_time" binding:"required,clock"`
	// Version 为 0 时不做版本校验
	Version     int    `json:"version" binding:"omitempty,min=1"`
}

// ApplyScheduleRequest 排课落地请求（通常即 generate 返回的 ScheduleView）
type ApplyScheduleRequest struct {
	Term  string      `json:"term" binding:"required,term"`
	Items []ApplyItem `json:"items" binding:"required,min=1,dive"`
}

// ApplyScheduleResponse 排课落地响应
type ApplyScheduleResponse struct {
	Applied bool   `json:"applied"`
	Term    string `json:"term"`
	Count   int    `json:"count"`
}

// ── 人工调整校验 ──

// CheckPlacementRequest 校验单个教学班放在指定教室/时间是否可行
type CheckPlacementRequest struct {
	SectionID   string `json:"section_id" binding:"required"`
	Term        string `json:"term" binding:"required,term"`
	ClassroomID string `json:"classroom_id" binding:"required"`
	Day         int    `json:"day" binding:"required,weekday"`
	StartTime   string `json:"start_time" binding:"required,clock"`
}

// CheckPlacementResponse 校验结果
type CheckPlacementResponse struct {
	Valid     bool   `json:"valid"`
	Code      string `json:"code,omitempty"`
	Reason    string `json:"reason,omitempty"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// ── 个人课表 ──

// UserScheduleQuery 个人课表查询参数
type UserScheduleQuery struct {
	Term string `form:"term" binding:"omitempty,term"`
	Role string `form:"role" binding:"omitempty,oneof=student instructor admin"`
}

// WeeklyEntry 周课表中的一节课
type WeeklyEntry struct {
	SectionID      string `json:"section_id"`
	CourseCode     string `json:"course_code"`
	CourseName     string `json:"course_name"`
	InstructorID   string `json:"instructor_id,omitempty"`
	InstructorName string `json:"instructor_name,omitempty"`
	ClassroomID    string `json:"classroom_id"`
	ClassroomName  string `json:"classroom_name"`
	Building       string `json:"building"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
}

// WeeklySchedule 周一至周五的个人课表，每天按开始时间排序
type WeeklySchedule struct {
	Term   string                   `json:"term"`
	UserID string                   `json:"user_id"`
	Role   string                   `json:"role"`
	Days   map[string][]WeeklyEntry `json:"days"`
}
