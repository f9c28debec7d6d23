package repository

import (
	"context"

	"gorm.io/gorm"

	"smart-campus/backend/internal/model"
)

// EnrollmentRepository 选课数据访问接口（只读取 status=enrolled 的有效记录）
type EnrollmentRepository interface {
	ListActiveBySections(ctx context.Context, sectionIDs []string) ([]model.Enrollment, error)
	ListActiveByStudents(ctx context.Context, studentIDs []string, term string) ([]model.Enrollment, error)
	// ListActiveByStudentAndTerm 预加载教学班及课程，用于个人课表
	ListActiveByStudentAndTerm(ctx context.Context, studentID, term string) ([]model.Enrollment, error)
}

type enrollmentRepo struct {
	db *gorm.DB
}

// NewEnrollmentRepo 创建 EnrollmentRepository 实例
func NewEnrollmentRepo(db *gorm.DB) EnrollmentRepository {
	return &enrollmentRepo{db: db}
}

func (r *enrollmentRepo) ListActiveBySections(ctx context.Context, sectionIDs []string) ([]model.Enrollment, error) {
	var list []model.Enrollment
	if len(sectionIDs) == 0 {
		return list, nil
	}
	err := r.db.WithContext(ctx).
		Where("section_id IN ? AND status = ?", sectionIDs, model.EnrollmentEnrolled).
		Find(&list).Error
	return list, err
}

func (r *enrollmentRepo) ListActiveByStudents(ctx context.Context, studentIDs []string, term string) ([]model.Enrollment, error) {
	var list []model.Enrollment
	if len(studentIDs) == 0 {
		return list, nil
	}
	err := r.db.WithContext(ctx).
		Where("student_id IN ? AND term = ? AND status = ?", studentIDs, term, model.EnrollmentEnrolled).
		Find(&list).Error
	return list, err
}

func (r *enrollmentRepo) ListActiveByStudentAndTerm(ctx context.Context, studentID, term string) ([]model.Enrollment, error) {
	var list []model.Enrollment
	err := r.db.WithContext(ctx).
		Preload("Section").
		Preload("Section.Course").
		Preload("Section.Instructor").
		Where("student_id = ? AND term = ? AND status = ?", studentID, term, model.EnrollmentEnrolled).
		Order("section_id ASC").
		Find(&list).Error
	return list, err
}
