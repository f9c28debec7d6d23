package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"smart-campus/backend/internal/dto"
	"smart-campus/backend/internal/service"
	pkgerrors "smart-campus/backend/pkg/errors"
	"smart-campus/backend/pkg/response"
	"smart-campus/backend/pkg/validate"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := validate.Register(); err != nil {
		panic(err)
	}
}

// ═══════════════════════════════════════════════════════════
// Mock Services
// ═══════════════════════════════════════════════════════════

// ── Mock TimetableService ──

type mockTimetableService struct {
	generateResult *dto.ScheduleView
	generateErr    error
	applyResult    *dto.ApplyScheduleResponse
	applyErr       error
	weekResult     *dto.WeeklySchedule
	weekErr        error
	checkResult    *dto.CheckPlacementResponse
	checkErr       error

	gotCaller string
	gotUser   string
	gotRole   string
	gotTerm   string
}

func (m *mockTimetableService) GenerateSchedule(_ context.Context, _ *dto.GenerateScheduleRequest) (*dto.ScheduleView, error) {
	return m.generateResult, m.generateErr
}
func (m *mockTimetableService) ApplySchedule(_ context.Context, _ *dto.ApplyScheduleRequest, callerID string) (*dto.ApplyScheduleResponse, error) {
	m.gotCaller = callerID
	return m.applyResult, m.applyErr
}
func (m *mockTimetableService) GetUserSchedule(_ context.Context, userID, role, term string) (*dto.WeeklySchedule, error) {
	m.gotUser, m.gotRole, m.gotTerm = userID, role, term
	return m.weekResult, m.weekErr
}
func (m *mockTimetableService) CheckPlacement(_ context.Context, _ *dto.CheckPlacementRequest) (*dto.CheckPlacementResponse, error) {
	return m.checkResult, m.checkErr
}

// ── Mock CalendarService ──

type mockCalendarService struct {
	data     []byte
	filename string
	err      error
}

func (m *mockCalendarService) ExportCalendar(_ context.Context, _, _, _ string) ([]byte, string, error) {
	return m.data, m.filename, m.err
}

// ── Mock ExportService ──

type mockExportService struct {
	buf      *bytes.Buffer
	filename string
	err      error
}

func (m *mockExportService) ExportTimetable(_ context.Context, _ string) (*bytes.Buffer, string, error) {
	return m.buf, m.filename, m.err
}

// ═══════════════════════════════════════════════════════════
// Test Helpers
// ═══════════════════════════════════════════════════════════

func setAuth(c *gin.Context, role string) {
	c.Set("user_id", "test-user-id")
	c.Set("role", role)
}

func withAuth(role string, h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		setAuth(c, role)
		h(c)
	}
}

func jsonBody(v interface{}) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func parseResponse(w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

func serve(r *gin.Engine, method, path string, body io.Reader) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	r.ServeHTTP(w, req)
	return w
}

func validGenerateRequest() dto.GenerateScheduleRequest {
	return dto.GenerateScheduleRequest{SectionIDs: []string{"s-1", "s-2"}, Term: "2025-fall"}
}

func validApplyRequest() dto.ApplyScheduleRequest {
	return dto.ApplyScheduleRequest{
		Term: "2025-fall",
		Items: []dto.ApplyItem{
			{SectionID: "s-1", ClassroomID: "r-1", Day: 1, StartTime: "09:00", EndTime: "10:30"},
		},
	}
}

// ═══════════════════════════════════════════════════════════
// TimetableHandler Tests
// ═══════════════════════════════════════════════════════════

func TestTimetableHandler_Generate_Success(t *testing.T) {
	mock := &mockTimetableService{generateResult: &dto.ScheduleView{
		Term:   "2025-fall",
		Status: "proposed",
		Items:  []dto.ScheduleItemView{{SectionID: "s-1", Day: 1, StartTime: "09:00", EndTime: "10:30"}},
	}}
	h := NewTimetableHandler(mock, &mockCalendarService{})

	r := gin.New()
	r.POST("/generate", h.Generate)
	w := serve(r, "POST", "/generate", jsonBody(validGenerateRequest()))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := parseResponse(w)
	if resp.Code != 0 {
		t.Errorf("expected code 0, got %d", resp.Code)
	}
	data, _ := resp.Data.(map[string]interface{})
	if data["status"] != "proposed" {
		t.Errorf("expected status proposed, got %v", data["status"])
	}
}

func TestTimetableHandler_Generate_BadJSON(t *testing.T) {
	h := NewTimetableHandler(&mockTimetableService{}, &mockCalendarService{})

	r := gin.New()
	r.POST("/generate", h.Generate)
	w := serve(r, "POST", "/generate", strings.NewReader("invalid json"))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 10001 {
		t.Errorf("expected code 10001, got %d", resp.Code)
	}
}

func TestTimetableHandler_Generate_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		body  map[string]interface{}
		field string
	}{
		{"空教学班列表", map[string]interface{}{"section_ids": []string{}, "term": "2025-fall"}, "section_ids"},
		{"学期格式错误", map[string]interface{}{"section_ids": []string{"s-1"}, "term": "fall-2025"}, "term"},
		{"缺少学期", map[string]interface{}{"section_ids": []string{"s-1"}}, "term"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewTimetableHandler(&mockTimetableService{}, &mockCalendarService{})
			r := gin.New()
			r.POST("/generate", h.Generate)
			w := serve(r, "POST", "/generate", jsonBody(tt.body))

			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			data, _ := parseResponse(w).Data.(map[string]interface{})
			if _, ok := data[tt.field]; !ok {
				t.Errorf("expected field error on %s, got %v", tt.field, data)
			}
		})
	}
}

func TestTimetableHandler_Generate_Infeasible(t *testing.T) {
	mock := &mockTimetableService{generateErr: &service.InfeasibleError{Diagnostics: dto.FailureDiagnostics{
		Reason:       "无法为全部教学班找到满足硬约束的安排",
		SectionCount: 2,
		Hints:        []string{"检查教室容量"},
		Rejections:   map[string]int{"capacity": 3},
	}}}
	h := NewTimetableHandler(mock, &mockCalendarService{})

	r := gin.New()
	r.POST("/generate", h.Generate)
	w := serve(r, "POST", "/generate", jsonBody(validGenerateRequest()))

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	resp := parseResponse(w)
	if resp.Code != 15005 {
		t.Errorf("expected code 15005, got %d", resp.Code)
	}
	data, _ := resp.Data.(map[string]interface{})
	if data["section_count"] != float64(2) {
		t.Errorf("expected diagnostics in data, got %v", resp.Data)
	}
}

func TestTimetableHandler_Generate_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   int
	}{
		{"学期缺失", service.ErrTermRequired, http.StatusBadRequest, 15001},
		{"数量超限", service.ErrTooManySections, http.StatusBadRequest, 15002},
		{"教学班不存在", service.ErrSectionsNotFound, http.StatusNotFound, 15003},
		{"无可用教室", service.ErrNoClassrooms, http.StatusUnprocessableEntity, 15004},
		{"未知错误", errors.New("db down"), http.StatusInternalServerError, 50000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewTimetableHandler(&mockTimetableService{generateErr: tt.err}, &mockCalendarService{})
			r := gin.New()
			r.POST("/generate", h.Generate)
			w := serve(r, "POST", "/generate", jsonBody(validGenerateRequest()))

			if w.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, w.Code)
			}
			if resp := parseResponse(w); resp.Code != tt.code {
				t.Errorf("expected code %d, got %d", tt.code, resp.Code)
			}
		})
	}
}

func TestTimetableHandler_Apply_Success(t *testing.T) {
	mock := &mockTimetableService{applyResult: &dto.ApplyScheduleResponse{Applied: true, Term: "2025-fall", Count: 1}}
	h := NewTimetableHandler(mock, &mockCalendarService{})

	r := gin.New()
	r.POST("/apply", withAuth("admin", h.Apply))
	w := serve(r, "POST", "/apply", jsonBody(validApplyRequest()))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if mock.gotCaller != "test-user-id" {
		t.Errorf("expected caller test-user-id, got %q", mock.gotCaller)
	}
}

func TestTimetableHandler_Apply_Unauthenticated(t *testing.T) {
	h := NewTimetableHandler(&mockTimetableService{}, &mockCalendarService{})

	r := gin.New()
	r.POST("/apply", h.Apply)
	w := serve(r, "POST", "/apply", jsonBody(validApplyRequest()))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestTimetableHandler_Apply_InvalidItem(t *testing.T) {
	req := validApplyRequest()
	req.Items[0].Day = 6
	req.Items[0].StartTime = "9am"
	h := NewTimetableHandler(&mockTimetableService{}, &mockCalendarService{})

	r := gin.New()
	r.POST("/apply", withAuth("admin", h.Apply))
	w := serve(r, "POST", "/apply", jsonBody(req))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if msg := parseResponse(w).Message; !strings.Contains(msg, "星期") || !strings.Contains(msg, "HH:MM") {
		t.Errorf("expected weekday and clock messages, got %q", msg)
	}
}

func TestTimetableHandler_Apply_Conflicts(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"学期锁被占用", service.ErrApplyInProgress, 15006},
		{"乐观锁冲突", pkgerrors.ErrOptimisticLock, 15007},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewTimetableHandler(&mockTimetableService{applyErr: tt.err}, &mockCalendarService{})
			r := gin.New()
			r.POST("/apply", withAuth("admin", h.Apply))
			w := serve(r, "POST", "/apply", jsonBody(validApplyRequest()))

			if w.Code != http.StatusConflict {
				t.Errorf("expected 409, got %d", w.Code)
			}
			if resp := parseResponse(w); resp.Code != tt.code {
				t.Errorf("expected code %d, got %d", tt.code, resp.Code)
			}
		})
	}
}

func TestTimetableHandler_Apply_MissingReference(t *testing.T) {
	err := errors.Join(errors.New("写入失败"), pkgerrors.ErrClassroomMissing)
	h := NewTimetableHandler(&mockTimetableService{applyErr: err}, &mockCalendarService{})

	r := gin.New()
	r.POST("/apply", withAuth("admin", h.Apply))
	w := serve(r, "POST", "/apply", jsonBody(validApplyRequest()))

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", w.Code)
	}
}

func TestTimetableHandler_Apply_BodyTooLarge(t *testing.T) {
	h := NewTimetableHandler(&mockTimetableService{}, &mockCalendarService{})

	r := gin.New()
	r.POST("/apply", func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 16)
		setAuth(c, "admin")
		h.Apply(c)
	})
	w := serve(r, "POST", "/apply", jsonBody(validApplyRequest()))

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", w.Code)
	}
}

func TestTimetableHandler_Check(t *testing.T) {
	mock := &mockTimetableService{checkResult: &dto.CheckPlacementResponse{
		Valid: false, Code: "instructor", Reason: "教师时间冲突", StartTime: "10:30", EndTime: "12:00",
	}}
	h := NewTimetableHandler(mock, &mockCalendarService{})

	r := gin.New()
	r.POST("/check", h.Check)
	w := serve(r, "POST", "/check", jsonBody(dto.CheckPlacementRequest{
		SectionID: "s-1", Term: "2025-fall", ClassroomID: "r-1", Day: 1, StartTime: "10:30",
	}))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	data, _ := parseResponse(w).Data.(map[string]interface{})
	if data["valid"] != false || data["code"] != "instructor" {
		t.Errorf("unexpected check result: %v", data)
	}
}

func TestTimetableHandler_Check_NotFound(t *testing.T) {
	h := NewTimetableHandler(&mockTimetableService{checkErr: service.ErrClassroomNotFound}, &mockCalendarService{})

	r := gin.New()
	r.POST("/check", h.Check)
	w := serve(r, "POST", "/check", jsonBody(dto.CheckPlacementRequest{
		SectionID: "s-1", Term: "2025-fall", ClassroomID: "r-x", Day: 1, StartTime: "10:30",
	}))

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestTimetableHandler_GetMine(t *testing.T) {
	mock := &mockTimetableService{weekResult: &dto.WeeklySchedule{Term: "2025-fall", UserID: "test-user-id"}}
	h := NewTimetableHandler(mock, &mockCalendarService{})

	r := gin.New()
	r.GET("/me", withAuth("student", h.GetMine))
	w := serve(r, "GET", "/me?term=2025-fall", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if mock.gotUser != "test-user-id" || mock.gotRole != "student" || mock.gotTerm != "2025-fall" {
		t.Errorf("unexpected service args: %s %s %s", mock.gotUser, mock.gotRole, mock.gotTerm)
	}
}

func TestTimetableHandler_GetMine_InvalidTerm(t *testing.T) {
	h := NewTimetableHandler(&mockTimetableService{}, &mockCalendarService{})

	r := gin.New()
	r.GET("/me", withAuth("student", h.GetMine))
	w := serve(r, "GET", "/me?term=2025", nil)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestTimetableHandler_GetUser(t *testing.T) {
	mock := &mockTimetableService{weekResult: &dto.WeeklySchedule{Term: "2025-fall", UserID: "t-1"}}
	h := NewTimetableHandler(mock, &mockCalendarService{})

	r := gin.New()
	r.GET("/users/:id", withAuth("admin", h.GetUser))
	w := serve(r, "GET", "/users/t-1?role=instructor", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if mock.gotUser != "t-1" || mock.gotRole != "instructor" || mock.gotTerm != "" {
		t.Errorf("unexpected service args: %s %s %s", mock.gotUser, mock.gotRole, mock.gotTerm)
	}
}

func TestTimetableHandler_GetUser_Errors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		err    error
		status int
	}{
		{"非法角色参数", "/users/t-1?role=teacher", nil, http.StatusBadRequest},
		{"用户不存在", "/users/x", service.ErrUserNotFound, http.StatusNotFound},
		{"记录中角色无效", "/users/x", service.ErrInvalidRole, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewTimetableHandler(&mockTimetableService{weekErr: tt.err}, &mockCalendarService{})
			r := gin.New()
			r.GET("/users/:id", withAuth("admin", h.GetUser))
			w := serve(r, "GET", tt.path, nil)

			if w.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, w.Code)
			}
		})
	}
}

func TestTimetableHandler_MyCalendar(t *testing.T) {
	cal := &mockCalendarService{data: []byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"), filename: "timetable-2025-fall.ics"}
	h := NewTimetableHandler(&mockTimetableService{}, cal)

	r := gin.New()
	r.GET("/me/calendar.ics", withAuth("student", h.MyCalendar))
	w := serve(r, "GET", "/me/calendar.ics?term=2025-fall", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("expected text/calendar, got %s", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "timetable-2025-fall.ics") {
		t.Errorf("expected filename in Content-Disposition, got %s", cd)
	}
	if !strings.HasPrefix(w.Body.String(), "BEGIN:VCALENDAR") {
		t.Errorf("unexpected body: %q", w.Body.String())
	}
}

func TestTimetableHandler_MyCalendar_InvalidTerm(t *testing.T) {
	h := NewTimetableHandler(&mockTimetableService{}, &mockCalendarService{err: service.ErrInvalidTerm})

	r := gin.New()
	r.GET("/me/calendar.ics", withAuth("student", h.MyCalendar))
	w := serve(r, "GET", "/me/calendar.ics", nil)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// ExportHandler Tests
// ═══════════════════════════════════════════════════════════

func TestExportHandler_ExportTimetable_Success(t *testing.T) {
	mock := &mockExportService{buf: bytes.NewBufferString("xlsx"), filename: "课表_2025-fall.xlsx"}
	h := NewExportHandler(mock)

	r := gin.New()
	r.GET("/export/timetable", h.ExportTimetable)
	w := serve(r, "GET", "/export/timetable?term=2025-fall", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Errorf("unexpected Content-Type: %s", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "filename*=UTF-8''") {
		t.Errorf("unexpected Content-Disposition: %s", cd)
	}
}

func TestExportHandler_ExportTimetable_Errors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		err    error
		status int
	}{
		{"缺少学期", "/export/timetable", nil, http.StatusBadRequest},
		{"学期格式错误", "/export/timetable?term=x", service.ErrInvalidTerm, http.StatusBadRequest},
		{"暂无课表", "/export/timetable?term=2025-fall", service.ErrExportNoSchedule, http.StatusNotFound},
		{"生成失败", "/export/timetable?term=2025-fall", service.ErrExportGenerateFail, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewExportHandler(&mockExportService{err: tt.err})
			r := gin.New()
			r.GET("/export/timetable", h.ExportTimetable)
			w := serve(r, "GET", tt.path, nil)

			if w.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, w.Code)
			}
		})
	}
}

// ═══════════════════════════════════════════════════════════
// HealthHandler Tests
// ═══════════════════════════════════════════════════════════

func TestHealthHandler_Check(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name   string
		probes map[string]Probe
		status int
	}{
		{"无依赖", nil, http.StatusOK},
		{"全部可用", map[string]Probe{"db": ok, "redis": ok}, http.StatusOK},
		{"Redis 不可用", map[string]Probe{"db": ok, "redis": down}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.probes)
			r := gin.New()
			r.GET("/health", h.Check)
			w := serve(r, "GET", "/health", nil)

			if w.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, w.Code)
			}
		})
	}
}
