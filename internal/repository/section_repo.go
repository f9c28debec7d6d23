package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"smart-campus/backend/internal/model"
	pkgerrors "smart-campus/backend/pkg/errors"
)

// SectionScheduleUpdate 单个教学班的时间安排写入
type SectionScheduleUpdate struct {
	SectionID   string
	ClassroomID string
	Schedule    datatypes.JSON
	// ExpectedVersion 大于 0 时启用乐观锁校验
	ExpectedVersion int
}

// SectionRepository 教学班数据访问接口
type SectionRepository interface {
	GetByID(ctx context.Context, id string) (*model.Section, error)
	ListByIDsAndTerm(ctx context.Context, ids []string, term string) ([]model.Section, error)
	ListScheduledByTerm(ctx context.Context, term string) ([]model.Section, error)
	ListByInstructorAndTerm(ctx context.Context, instructorID, term string) ([]model.Section, error)
	// ApplySchedules 在单个事务内覆盖写入全部教学班的时间安排，任一失败整体回滚
	ApplySchedules(ctx context.Context, term string, updates []SectionScheduleUpdate) error
}

type sectionRepo struct {
	db *gorm.DB
}

// NewSectionRepo 创建 SectionRepository 实例
func NewSectionRepo(db *gorm.DB) SectionRepository {
	return &sectionRepo{db: db}
}

func (r *sectionRepo) GetByID(ctx context.Context, id string) (*model.Section, error) {
	var section model.Section
	err := r.db.WithContext(ctx).
		Preload("Course").
		Where("section_id = ?", id).
		First(&section).Error
	if err != nil {
		return nil, err
	}
	return &section, nil
}

func (r *sectionRepo) ListByIDsAndTerm(ctx context.Context, ids []string, term string) ([]model.Section, error) {
	var sections []model.Section
	if len(ids) == 0 {
		return sections, nil
	}
	err := r.db.WithContext(ctx).
		Preload("Course").
		Where("section_id IN ? AND term = ?", ids, term).
		Find(&sections).Error
	return sections, err
}

func (r *sectionRepo) ListScheduledByTerm(ctx context.Context, term string) ([]model.Section, error) {
	var sections []model.Section
	err := r.db.WithContext(ctx).
		Preload("Course").
		Preload("Instructor").
		Where("term = ? AND schedule IS NOT NULL AND schedule::text NOT IN ('null', '[]', '{}')", term).
		Order("section_id ASC").
		Find(&sections).Error
	return sections, err
}

func (r *sectionRepo) ListByInstructorAndTerm(ctx context.Context, instructorID, term string) ([]model.Section, error) {
	var sections []model.Section
	err := r.db.WithContext(ctx).
		Preload("Course").
		Preload("Instructor").
		Where("instructor_id = ? AND term = ?", instructorID, term).
		Order("section_id ASC").
		Find(&sections).Error
	return sections, err
}

func (r *sectionRepo) ApplySchedules(ctx context.Context, term string, updates []SectionScheduleUpdate) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		checked := make(map[string]bool)
		for _, u := range updates {
			// 教室存在性（同一事务内只查一次）
			if !checked[u.ClassroomID] {
				var n int64
				if err := tx.Model(&model.Classroom{}).
					Where("classroom_id = ? AND is_active = ?", u.ClassroomID, true).
					Count(&n).Error; err != nil {
					return err
				}
				if n == 0 {
					return fmt.Errorf("%w: %s", pkgerrors.ErrClassroomMissing, u.ClassroomID)
				}
				checked[u.ClassroomID] = true
			}

			q := tx.Model(&model.Section{}).Where("section_id = ? AND term = ?", u.SectionID, term)
			if u.ExpectedVersion > 0 {
				q = q.Where("version = ?", u.ExpectedVersion)
			}
			result := q.Updates(map[string]interface{}{
				"schedule":     u.Schedule,
				"classroom_id": u.ClassroomID,
				"version":      gorm.Expr("version + 1"),
			})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return r.missingOrStale(tx, term, u)
			}
		}
		return nil
	})
}

// missingOrStale 区分"教学班不存在"与"版本已过期"
// 版本过期但库中安排与本次写入一致时视为重复提交，直接跳过
func (r *sectionRepo) missingOrStale(tx *gorm.DB, term string, u SectionScheduleUpdate) error {
	var current model.Section
	err := tx.Select("section_id", "classroom_id", "schedule", "version").
		Where("section_id = ? AND term = ?", u.SectionID, term).
		First(&current).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", pkgerrors.ErrSectionMissing, u.SectionID)
	}
	if err != nil {
		return err
	}
	if current.ClassroomID != nil && *current.ClassroomID == u.ClassroomID &&
		model.SameSchedule(current.Schedule, u.Schedule) {
		return nil
	}
	return fmt.Errorf("%w: 教学班 %s 当前版本 %d，期望 %d",
		pkgerrors.ErrOptimisticLock, u.SectionID, current.Version, u.ExpectedVersion)
}
