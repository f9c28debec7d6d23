package model

// 用户角色
const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
)

// User 用户表：对应 users
// 账号与登录由统一身份平台负责，本服务只保存排课所需的最小信息
type User struct {
	UserID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"user_id"`
	Name   string `gorm:"type:varchar(100);not null"                     json:"name"`
	Email  string `gorm:"type:varchar(255);not null"                     json:"email"`
	Role   string `gorm:"type:varchar(20);not null;default:'student'"    json:"role"`
	SoftDeleteModel
}

// TableName 指定表名
func (User) TableName() string { return "users" }
