package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Term 学期表：对应 terms，主键为学期代码（如 2025-fall）
type Term struct {
	TermID    string    `gorm:"type:varchar(20);primaryKey"    json:"term_id"`
	Name      string    `gorm:"type:varchar(100);not null"     json:"name"`
	StartDate time.Time `gorm:"type:date;not null"             json:"start_date"`
	EndDate   time.Time `gorm:"type:date;not null"             json:"end_date"`
	IsActive  bool      `gorm:"not null;default:false"         json:"is_active"`
	BaseModel
}

// TableName 指定表名
func (Term) TableName() string { return "terms" }

// DeriveTermDates 学期表中无记录时，按学期代码推算大致起止日期
//
//	YYYY-fall   → 09-01 .. 12-20
//	YYYY-spring → 02-15 .. 06-15
//	YYYY-summer → 07-01 .. 08-20
//
// 仅用于日历导出的边界，不参与排课
func DeriveTermDates(code string, loc *time.Location) (start, end time.Time, err error) {
	if loc == nil {
		loc = time.UTC
	}
	year, season, ok := strings.Cut(strings.ToLower(strings.TrimSpace(code)), "-")
	if !ok {
		return start, end, fmt.Errorf("无法识别的学期代码 %q", code)
	}
	y, err := strconv.Atoi(year)
	if err != nil || y < 1900 || y > 9999 {
		return start, end, fmt.Errorf("无法识别的学期年份 %q", code)
	}
	date := func(m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, loc) }

	switch season {
	case "fall", "autumn":
		return date(time.September, 1), date(time.December, 20), nil
	case "spring":
		return date(time.February, 15), date(time.June, 15), nil
	case "summer":
		return date(time.July, 1), date(time.August, 20), nil
	default:
		return start, end, fmt.Errorf("无法识别的学期季节 %q", code)
	}
}
