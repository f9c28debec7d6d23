package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"smart-campus/backend/config"
	"smart-campus/backend/internal/model"
	"smart-campus/backend/internal/repository"
	"smart-campus/backend/internal/scheduler"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoSchedule   = errors.New("该学期暂无已落地的排课")
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

const (
	overviewSheet = "课表总览"
	detailSheet   = "排课明细"
)

// ExportService 导出业务接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
type ExportService interface {
	// ExportTimetable 导出学期课表为 Excel
	ExportTimetable(ctx context.Context, term string) (*bytes.Buffer, string, error)
}

type exportService struct {
	scheduleReader
	grid scheduler.Grid
}

// NewExportService 创建 ExportService 实例
func NewExportService(cfg *config.SchedulerConfig, repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{
		scheduleReader: scheduleReader{repo: repo, logger: logger},
		grid:           gridFromConfig(cfg),
	}
}

// exportRow 一条已落地的安排
type exportRow struct {
	section *model.Section
	a       scheduler.Assignment
	room    *model.Classroom
}

func (r exportRow) label() string {
	text := strings.TrimSpace(r.section.CourseCode() + " " + r.section.CourseName())
	if r.room != nil {
		text += " @ " + r.room.Name
	} else if r.a.ClassroomID != "" {
		text += " @ " + r.a.ClassroomID
	}
	return text
}

// ═══════════════════════════════════════════════════════════
// ExportTimetable：导出学期课表为 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - Sheet "课表总览"：行为起始时间，列为周一 ~ 周五，单元格列出该时段开课的课程与教室
//   - Sheet "排课明细"：每条安排一行
//
// 返回值：buf（Excel 内容）, filename（建议文件名）, error

func (s *exportService) ExportTimetable(ctx context.Context, term string) (*bytes.Buffer, string, error) {
	term, err := s.resolveTerm(ctx, term)
	if err != nil {
		return nil, "", err
	}

	// 1. 查询已排教学班
	sections, err := s.repo.Section.ListScheduledByTerm(ctx, term)
	if err != nil {
		s.logger.Error("查询学期已排教学班失败", zap.Error(err))
		return nil, "", err
	}
	if len(sections) == 0 {
		return nil, "", ErrExportNoSchedule
	}
	ptrs := make([]*model.Section, len(sections))
	for i := range sections {
		ptrs[i] = &sections[i]
	}

	rooms, err := s.classroomsByID(ctx, classroomIDs(ptrs, s.logger))
	if err != nil {
		return nil, "", err
	}

	// 2. 学期名称
	termName := term
	if t, err := s.repo.Term.GetByID(ctx, term); err == nil {
		termName = t.Name
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询学期失败", zap.Error(err))
		return nil, "", err
	}

	// 3. 展开安排并排序：星期 → 开始时间 → 教学班
	var rows []exportRow
	for _, sec := range ptrs {
		for _, a := range sectionAssignments(sec, s.logger) {
			if !a.Day.Valid() {
				continue
			}
			rows = append(rows, exportRow{section: sec, a: a, room: rooms[a.ClassroomID]})
		}
	}
	if len(rows) == 0 {
		return nil, "", ErrExportNoSchedule
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].a.Day != rows[j].a.Day {
			return rows[i].a.Day < rows[j].a.Day
		}
		if rows[i].a.Start != rows[j].a.Start {
			return rows[i].a.Start < rows[j].a.Start
		}
		return rows[i].a.SectionID < rows[j].a.SectionID
	})

	// 4. 生成 Excel
	f := excelize.NewFile()
	defer f.Close()

	idx, _ := f.NewSheet(overviewSheet)
	f.SetActiveSheet(idx)
	// 删除默认 Sheet1
	f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	wrapStyle, _ := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
	})

	s.writeOverview(f, termName, rows, headerStyle, wrapStyle)
	s.writeDetail(f, rows, headerStyle)

	// 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("课表_%s.xlsx", term)
	return buf, filename, nil
}

// writeOverview 时间 × 星期 总览表
func (s *exportService) writeOverview(f *excelize.File, termName string, rows []exportRow, headerStyle, wrapStyle int) {
	sheet := overviewSheet

	// 行：网格起点 + 数据中出现的非网格起点
	startSet := make(map[int]bool)
	for _, o := range s.grid.Origins() {
		startSet[o] = true
	}
	cells := make(map[string][]string) // "day:start" → labels
	for _, r := range rows {
		startSet[r.a.Start] = true
		key := fmt.Sprintf("%d:%d", r.a.Day, r.a.Start)
		cells[key] = append(cells[key], r.label())
	}
	starts := make([]int, 0, len(startSet))
	for st := range startSet {
		starts = append(starts, st)
	}
	sort.Ints(starts)

	f.SetColWidth(sheet, "A", "A", 14)
	f.SetColWidth(sheet, colName(1), colName(len(scheduler.Weekdays)), 28)

	// 标题行
	f.SetCellValue(sheet, "A1", fmt.Sprintf("%s 课表", termName))
	f.MergeCell(sheet, "A1", cell(colName(len(scheduler.Weekdays)), 1))
	f.SetCellStyle(sheet, "A1", "A1", headerStyle)

	// 表头
	f.SetCellValue(sheet, cell("A", 2), "时间")
	for i, d := range scheduler.Weekdays {
		f.SetCellValue(sheet, cell(colName(1+i), 2), dayNames[d])
	}
	f.SetCellStyle(sheet, "A2", cell(colName(len(scheduler.Weekdays)), 2), headerStyle)

	// 数据行
	row := 3
	duration := s.grid.Duration()
	for _, st := range starts {
		f.SetCellValue(sheet, cell("A", row),
			fmt.Sprintf("%s-%s", scheduler.FormatClock(st), scheduler.FormatClock(st+duration)))
		for i, d := range scheduler.Weekdays {
			text := "-"
			if labels, ok := cells[fmt.Sprintf("%d:%d", d, st)]; ok {
				text = strings.Join(labels, "\n")
			}
			f.SetCellValue(sheet, cell(colName(1+i), row), text)
		}
		row++
	}
	if row > 3 {
		f.SetCellStyle(sheet, "B3", cell(colName(len(scheduler.Weekdays)), row-1), wrapStyle)
	}
}

// writeDetail 每条安排一行
func (s *exportService) writeDetail(f *excelize.File, rows []exportRow, headerStyle int) {
	sheet := detailSheet
	f.NewSheet(sheet)

	headers := []string{"课程代码", "课程名称", "教学班", "教师", "星期", "开始", "结束", "教学楼", "教室"}
	widths := []float64{12, 24, 38, 12, 8, 8, 8, 12, 16}
	for i, h := range headers {
		f.SetCellValue(sheet, cell(colName(i), 1), h)
		f.SetColWidth(sheet, colName(i), colName(i), widths[i])
	}
	f.SetCellStyle(sheet, "A1", cell(colName(len(headers)-1), 1), headerStyle)

	for i, r := range rows {
		line := i + 2
		instructor := ""
		if r.section.Instructor != nil {
			instructor = r.section.Instructor.Name
		}
		building, roomName := "", r.a.ClassroomID
		if r.room != nil {
			building, roomName = r.room.Building, r.room.Name
		}
		values := []interface{}{
			r.section.CourseCode(),
			r.section.CourseName(),
			r.section.SectionID,
			instructor,
			dayNames[r.a.Day],
			scheduler.FormatClock(r.a.Start),
			scheduler.FormatClock(r.a.End),
			building,
			roomName,
		}
		f.SetSheetRow(sheet, cell("A", line), &values)
	}
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
