package repository

import (
	"context"

	"gorm.io/gorm"

	"smart-campus/backend/internal/model"
)

// TermRepository 学期数据访问接口
type TermRepository interface {
	GetByID(ctx context.Context, id string) (*model.Term, error)
	GetActive(ctx context.Context) (*model.Term, error)
}

type termRepo struct {
	db *gorm.DB
}

// NewTermRepo 创建 TermRepository 实例
func NewTermRepo(db *gorm.DB) TermRepository {
	return &termRepo{db: db}
}

func (r *termRepo) GetByID(ctx context.Context, id string) (*model.Term, error) {
	var term model.Term
	err := r.db.WithContext(ctx).
		Where("term_id = ?", id).
		First(&term).Error
	if err != nil {
		return nil, err
	}
	return &term, nil
}

func (r *termRepo) GetActive(ctx context.Context) (*model.Term, error) {
	var term model.Term
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("start_date DESC").
		First(&term).Error
	if err != nil {
		return nil, err
	}
	return &term, nil
}
