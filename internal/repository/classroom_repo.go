package repository

import (
	"context"

	"gorm.io/gorm"

	"smart-campus/backend/internal/model"
)

// ClassroomRepository 教室数据访问接口
type ClassroomRepository interface {
	GetByID(ctx context.Context, id string) (*model.Classroom, error)
	ListActive(ctx context.Context) ([]model.Classroom, error)
	// ListByIDs 含已停用教室，用于展示历史安排
	ListByIDs(ctx context.Context, ids []string) ([]model.Classroom, error)
}

type classroomRepo struct {
	db *gorm.DB
}

// NewClassroomRepo 创建 ClassroomRepository 实例
func NewClassroomRepo(db *gorm.DB) ClassroomRepository {
	return &classroomRepo{db: db}
}

func (r *classroomRepo) GetByID(ctx context.Context, id string) (*model.Classroom, error) {
	var room model.Classroom
	err := r.db.WithContext(ctx).
		Where("classroom_id = ?", id).
		First(&room).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *classroomRepo) ListActive(ctx context.Context) ([]model.Classroom, error) {
	var rooms []model.Classroom
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("capacity DESC, classroom_id ASC").
		Find(&rooms).Error
	return rooms, err
}

func (r *classroomRepo) ListByIDs(ctx context.Context, ids []string) ([]model.Classroom, error) {
	var rooms []model.Classroom
	if len(ids) == 0 {
		return rooms, nil
	}
	err := r.db.WithContext(ctx).
		Where("classroom_id IN ?", ids).
		Find(&rooms).Error
	return rooms, err
}
