package repository

import "gorm.io/gorm"

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Term       TermRepository
	Section    SectionRepository
	Classroom  ClassroomRepository
	Enrollment EnrollmentRepository
	User       UserRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Term:       NewTermRepo(db),
		Section:    NewSectionRepo(db),
		Classroom:  NewClassroomRepo(db),
		Enrollment: NewEnrollmentRepo(db),
		User:       NewUserRepo(db),
	}
}
