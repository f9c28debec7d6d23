package model

// Classroom 教室表：对应 classrooms
type Classroom struct {
	ClassroomID string      `gorm:"type:varchar(36);primaryKey"   json:"classroom_id"`
	Name        string      `gorm:"type:varchar(100);not null"    json:"name"`
	Building    string      `gorm:"type:varchar(100);not null"    json:"building"`
	Capacity    int         `gorm:"not null"                      json:"capacity"`
	Features    StringArray `gorm:"type:text[]"                   json:"features"`
	IsActive    bool        `gorm:"not null;default:true"         json:"is_active"`
	BaseModel
}

// TableName 指定表名
func (Classroom) TableName() string { return "classrooms" }
