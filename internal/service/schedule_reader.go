package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"smart-campus/backend/internal/model"
	"smart-campus/backend/internal/repository"
	"smart-campus/backend/internal/scheduler"
	"smart-campus/backend/pkg/validate"
)

// scheduleReader 课表查询与导出共用的读取逻辑
type scheduleReader struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// resolveTerm 未指定学期时使用当前活跃学期
func (r *scheduleReader) resolveTerm(ctx context.Context, term string) (string, error) {
	term = strings.TrimSpace(term)
	if term != "" {
		if !validate.ValidTerm(term) {
			return "", ErrInvalidTerm
		}
		return strings.ToLower(term), nil
	}
	active, err := r.repo.Term.GetActive(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrTermRequired
		}
		r.logger.Error("查询当前学期失败", zap.Error(err))
		return "", err
	}
	return active.TermID, nil
}

// resolveRole 未指定角色时以用户记录为准
func (r *scheduleReader) resolveRole(ctx context.Context, userID, role string) (string, error) {
	switch role {
	case model.RoleStudent, model.RoleInstructor, model.RoleAdmin:
		return role, nil
	case "":
	default:
		return "", ErrInvalidRole
	}
	user, err := r.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrUserNotFound
		}
		r.logger.Error("查询用户失败", zap.String("user_id", userID), zap.Error(err))
		return "", err
	}
	return user.Role, nil
}

// userSections 学生取有效选课的教学班，教师与管理员取本人任课的教学班
func (r *scheduleReader) userSections(ctx context.Context, userID, role, term string) ([]*model.Section, error) {
	switch role {
	case model.RoleStudent:
		list, err := r.repo.Enrollment.ListActiveByStudentAndTerm(ctx, userID, term)
		if err != nil {
			r.logger.Error("查询学生选课失败", zap.String("user_id", userID), zap.Error(err))
			return nil, err
		}
		out := make([]*model.Section, 0, len(list))
		for i := range list {
			if list[i].Section != nil {
				out = append(out, list[i].Section)
			}
		}
		return out, nil

	case model.RoleInstructor, model.RoleAdmin:
		list, err := r.repo.Section.ListByInstructorAndTerm(ctx, userID, term)
		if err != nil {
			r.logger.Error("查询教师任课失败", zap.String("user_id", userID), zap.Error(err))
			return nil, err
		}
		out := make([]*model.Section, len(list))
		for i := range list {
			out[i] = &list[i]
		}
		return out, nil

	default:
		return nil, ErrInvalidRole
	}
}

// classroomsByID 批量加载教室并按 ID 索引
func (r *scheduleReader) classroomsByID(ctx context.Context, ids []string) (map[string]*model.Classroom, error) {
	rooms, err := r.repo.Classroom.ListByIDs(ctx, ids)
	if err != nil {
		r.logger.Error("查询教室失败", zap.Error(err))
		return nil, err
	}
	out := make(map[string]*model.Classroom, len(rooms))
	for i := range rooms {
		out[rooms[i].ClassroomID] = &rooms[i]
	}
	return out, nil
}

// enrollmentSnapshot 加载与 sectionIDs 共享学生的全部有效选课
// 先取这些教学班的学生，再取这些学生本学期的全部选课，冲突图因此覆盖请求范围外的教学班
func (r *scheduleReader) enrollmentSnapshot(ctx context.Context, sectionIDs []string, term string) ([]scheduler.Enrollment, error) {
	direct, err := r.repo.Enrollment.ListActiveBySections(ctx, sectionIDs)
	if err != nil {
		r.logger.Error("查询教学班选课失败", zap.Error(err))
		return nil, err
	}
	seen := make(map[string]bool)
	var students []string
	for _, e := range direct {
		if !seen[e.StudentID] {
			seen[e.StudentID] = true
			students = append(students, e.StudentID)
		}
	}
	all, err := r.repo.Enrollment.ListActiveByStudents(ctx, students, term)
	if err != nil {
		r.logger.Error("查询学生选课失败", zap.Error(err))
		return nil, err
	}
	out := make([]scheduler.Enrollment, 0, len(all))
	for _, e := range all {
		out = append(out, scheduler.Enrollment{StudentID: e.StudentID, SectionID: e.SectionID})
	}
	return out, nil
}
