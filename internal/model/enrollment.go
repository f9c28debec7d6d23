package model

// 选课状态
const (
	EnrollmentEnrolled  = "enrolled"
	EnrollmentDropped   = "dropped"
	EnrollmentCompleted = "completed"
)

// Enrollment 选课表：对应 enrollments
// 只有 status=enrolled 的记录参与学生冲突检测与个人课表
type Enrollment struct {
	EnrollmentID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"enrollment_id"`
	StudentID    string `gorm:"type:uuid;not null;index"                       json:"student_id"`
	SectionID    string `gorm:"type:uuid;not null;index"                       json:"section_id"`
	Term         string `gorm:"type:varchar(20);not null;index"                json:"term"`
	Status       string `gorm:"type:varchar(20);not null;default:'enrolled'"   json:"status"`
	BaseModel

	// 关联
	Section *Section `gorm:"foreignKey:SectionID;references:SectionID" json:"section,omitempty"`
}

// TableName 指定表名
func (Enrollment) TableName() string { return "enrollments" }
