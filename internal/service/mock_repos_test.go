package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"gorm.io/gorm"

	"smart-campus/backend/internal/model"
	"smart-campus/backend/internal/repository"
	pkgerrors "smart-campus/backend/pkg/errors"
)

// ── Mock TermRepository ──

type mockTermRepo struct {
	terms map[string]*model.Term
}

func newMockTermRepo() *mockTermRepo {
	return &mockTermRepo{terms: make(map[string]*model.Term)}
}

func (m *mockTermRepo) GetByID(_ context.Context, id string) (*model.Term, error) {
	if t, ok := m.terms[id]; ok {
		return t, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTermRepo) GetActive(_ context.Context) (*model.Term, error) {
	for _, t := range m.terms {
		if t.IsActive {
			return t, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// ── Mock UserRepository ──

type mockUserRepo struct {
	users map[string]*model.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

// ── Mock ClassroomRepository ──

type mockClassroomRepo struct {
	rooms map[string]*model.Classroom
}

func newMockClassroomRepo() *mockClassroomRepo {
	return &mockClassroomRepo{rooms: make(map[string]*model.Classroom)}
}

func (m *mockClassroomRepo) GetByID(_ context.Context, id string) (*model.Classroom, error) {
	if r, ok := m.rooms[id]; ok {
		return r, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockClassroomRepo) ListActive(_ context.Context) ([]model.Classroom, error) {
	var result []model.Classroom
	for _, r := range m.rooms {
		if r.IsActive {
			result = append(result, *r)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Capacity != result[j].Capacity {
			return result[i].Capacity > result[j].Capacity
		}
		return result[i].ClassroomID < result[j].ClassroomID
	})
	return result, nil
}

func (m *mockClassroomRepo) ListByIDs(_ context.Context, ids []string) ([]model.Classroom, error) {
	var result []model.Classroom
	for _, id := range ids {
		if r, ok := m.rooms[id]; ok {
			result = append(result, *r)
		}
	}
	return result, nil
}

// ── Mock SectionRepository ──

type mockSectionRepo struct {
	sections   map[string]*model.Section
	rooms      *mockClassroomRepo
	users      *mockUserRepo
	applyCalls int
}

func newMockSectionRepo(rooms *mockClassroomRepo, users *mockUserRepo) *mockSectionRepo {
	return &mockSectionRepo{sections: make(map[string]*model.Section), rooms: rooms, users: users}
}

// withRelations 模拟 Preload：按外键挂上教师
func (m *mockSectionRepo) withRelations(s *model.Section) model.Section {
	out := *s
	if s.InstructorID != nil {
		if u, ok := m.users.users[*s.InstructorID]; ok {
			out.Instructor = u
		}
	}
	return out
}

func (m *mockSectionRepo) sorted(match func(*model.Section) bool) []model.Section {
	var result []model.Section
	for _, s := range m.sections {
		if match(s) {
			result = append(result, m.withRelations(s))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SectionID < result[j].SectionID })
	return result
}

func (m *mockSectionRepo) GetByID(_ context.Context, id string) (*model.Section, error) {
	if s, ok := m.sections[id]; ok {
		out := m.withRelations(s)
		return &out, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSectionRepo) ListByIDsAndTerm(_ context.Context, ids []string, term string) ([]model.Section, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	return m.sorted(func(s *model.Section) bool { return want[s.SectionID] && s.Term == term }), nil
}

func (m *mockSectionRepo) ListScheduledByTerm(_ context.Context, term string) ([]model.Section, error) {
	return m.sorted(func(s *model.Section) bool {
		if s.Term != term {
			return false
		}
		items, err := model.DecodeSchedule(s.Schedule)
		return err == nil && len(items) > 0
	}), nil
}

func (m *mockSectionRepo) ListByInstructorAndTerm(_ context.Context, instructorID, term string) ([]model.Section, error) {
	return m.sorted(func(s *model.Section) bool {
		return s.Term == term && s.InstructorID != nil && *s.InstructorID == instructorID
	}), nil
}

// ApplySchedules 先整体校验再提交，模拟事务回滚语义
func (m *mockSectionRepo) ApplySchedules(_ context.Context, term string, updates []repository.SectionScheduleUpdate) error {
	m.applyCalls++
	skip := make(map[string]bool)
	for _, u := range updates {
		room, ok := m.rooms.rooms[u.ClassroomID]
		if !ok || !room.IsActive {
			return fmt.Errorf("%w: %s", pkgerrors.ErrClassroomMissing, u.ClassroomID)
		}
		s, ok := m.sections[u.SectionID]
		if !ok || s.Term != term {
			return fmt.Errorf("%w: %s", pkgerrors.ErrSectionMissing, u.SectionID)
		}
		if u.ExpectedVersion > 0 && s.Version != u.ExpectedVersion {
			if s.ClassroomID != nil && *s.ClassroomID == u.ClassroomID && model.SameSchedule(s.Schedule, u.Schedule) {
				skip[u.SectionID] = true
				continue
			}
			return pkgerrors.ErrOptimisticLock
		}
	}
	for _, u := range updates {
		if skip[u.SectionID] {
			continue
		}
		s := m.sections[u.SectionID]
		roomID := u.ClassroomID
		s.Schedule = u.Schedule
		s.ClassroomID = &roomID
		s.Version++
	}
	return nil
}

// ── Mock EnrollmentRepository ──

type mockEnrollmentRepo struct {
	list     []model.Enrollment
	sections *mockSectionRepo
}

func newMockEnrollmentRepo(sections *mockSectionRepo) *mockEnrollmentRepo {
	return &mockEnrollmentRepo{sections: sections}
}

func (m *mockEnrollmentRepo) add(studentID, sectionID, term string) {
	m.list = append(m.list, model.Enrollment{
		EnrollmentID: fmt.Sprintf("enr-%d", len(m.list)+1),
		StudentID:    studentID,
		SectionID:    sectionID,
		Term:         term,
		Status:       model.EnrollmentEnrolled,
	})
}

func (m *mockEnrollmentRepo) ListActiveBySections(_ context.Context, sectionIDs []string) ([]model.Enrollment, error) {
	want := make(map[string]bool, len(sectionIDs))
	for _, id := range sectionIDs {
		want[id] = true
	}
	var result []model.Enrollment
	for _, e := range m.list {
		if want[e.SectionID] && e.Status == model.EnrollmentEnrolled {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *mockEnrollmentRepo) ListActiveByStudents(_ context.Context, studentIDs []string, term string) ([]model.Enrollment, error) {
	want := make(map[string]bool, len(studentIDs))
	for _, id := range studentIDs {
		want[id] = true
	}
	var result []model.Enrollment
	for _, e := range m.list {
		if want[e.StudentID] && e.Term == term && e.Status == model.EnrollmentEnrolled {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *mockEnrollmentRepo) ListActiveByStudentAndTerm(_ context.Context, studentID, term string) ([]model.Enrollment, error) {
	var result []model.Enrollment
	for _, e := range m.list {
		if e.StudentID != studentID || e.Term != term || e.Status != model.EnrollmentEnrolled {
			continue
		}
		if s, ok := m.sections.sections[e.SectionID]; ok {
			sec := m.sections.withRelations(s)
			e.Section = &sec
		}
		result = append(result, e)
	}
	return result, nil
}

// ── 协作组件替身 ──

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	last   interface{}
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	p.last = payload
	return p.err
}

// memoryCache 进程内 ViewCache，与 Redis 实现一样以 JSON 保存
type memoryCache struct {
	versions map[string]int64
	values   map[string][]byte
	hits     int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{versions: make(map[string]int64), values: make(map[string][]byte)}
}

func (c *memoryCache) Version(_ context.Context, term string) (int64, error) {
	return c.versions[term], nil
}

func (c *memoryCache) Bump(_ context.Context, term string) error {
	c.versions[term]++
	return nil
}

func (c *memoryCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	b, ok := c.values[key]
	if !ok {
		return false, nil
	}
	c.hits++
	return true, json.Unmarshal(b, dest)
}

func (c *memoryCache) Set(_ context.Context, key string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.values[key] = b
	return nil
}

type busyLocker struct{}

func (busyLocker) Lock(context.Context, string) (func(), error) {
	return nil, ErrApplyInProgress
}
