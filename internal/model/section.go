package model

import (
	"gorm.io/datatypes"
)

// Section 教学班表：对应 sections
//
// Schedule 为 JSONB 时间安排，格式见 schedule_codec.go；
// ClassroomID 冗余保存首条安排的教室，便于按教室查询。
type Section struct {
	SectionID     string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"section_id"`
	CourseID      string         `gorm:"type:uuid;not null;index"                       json:"course_id"`
	Term          string         `gorm:"type:varchar(20);not null;index"                json:"term"`
	SectionNumber string         `gorm:"type:varchar(10);not null;default:'01'"         json:"section_number"`
	InstructorID  *string        `gorm:"type:uuid;index"                                json:"instructor_id,omitempty"`
	Capacity      int            `gorm:"not null"                                       json:"capacity"`
	EnrolledCount int            `gorm:"not null;default:0"                             json:"enrolled_count"`
	ClassroomID   *string        `gorm:"type:varchar(36)"                               json:"classroom_id,omitempty"`
	Schedule      datatypes.JSON `gorm:"type:jsonb"                                     json:"schedule"`
	VersionedModel

	// 关联
	Course     *Course    `gorm:"foreignKey:CourseID;references:CourseID"       json:"course,omitempty"`
	Instructor *User      `gorm:"foreignKey:InstructorID;references:UserID"     json:"instructor,omitempty"`
	Classroom  *Classroom `gorm:"foreignKey:ClassroomID;references:ClassroomID" json:"classroom,omitempty"`
}

// TableName 指定表名
func (Section) TableName() string { return "sections" }

// InstructorIDValue 未指派教师时返回空字符串
func (s *Section) InstructorIDValue() string {
	if s.InstructorID == nil {
		return ""
	}
	return *s.InstructorID
}

// CourseCode 预加载课程时返回课程代码
func (s *Section) CourseCode() string {
	if s.Course == nil {
		return ""
	}
	return s.Course.Code
}

// CourseName 预加载课程时返回课程名称
func (s *Section) CourseName() string {
	if s.Course == nil {
		return ""
	}
	return s.Course.Name
}
