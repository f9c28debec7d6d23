package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/datatypes"

	"smart-campus/backend/internal/scheduler"
)

// ── 时间安排 JSON 编解码 ──────────────────────────────────────
//
// sections.schedule 历史上存在两种格式，读取时统一归一化：
//
//	标准格式（写入只用这一种）:
//	  [{"day":1,"start_time":"09:00","end_time":"10:30","classroom_id":"R-101"}]
//	旧格式（只读兼容）:
//	  {"days":["Mon","Wed"],"time":"09:00-10:30","room":"R-101"}
// ─────────────────────────────────────────────────────────────

// scheduleEntry 标准格式中的单条记录（读取用，day 兼容数字与字符串）
type scheduleEntry struct {
	Day         json.RawMessage `json:"day"`
	StartTime   string          `json:"start_time"`
	EndTime     string          `json:"end_time"`
	ClassroomID string          `json:"classroom_id"`
}

type legacySchedule struct {
	Days []json.RawMessage `json:"days"`
	Time string            `json:"time"`
	Room string            `json:"room"`
}

type canonicalEntry struct {
	Day         int    `json:"day"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	ClassroomID string `json:"classroom_id"`
}

// DecodeSchedule 解析 schedule 字段；空值或 null 返回 nil
func DecodeSchedule(raw datatypes.JSON) ([]scheduler.ScheduleItem, error) {
	data := bytes.TrimSpace(raw)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	switch data[0] {
	case '[':
		var entries []scheduleEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("时间安排格式错误: %w", err)
		}
		items := make([]scheduler.ScheduleItem, 0, len(entries))
		for i, e := range entries {
			item, err := e.toItem()
			if err != nil {
				return nil, fmt.Errorf("时间安排第 %d 条: %w", i+1, err)
			}
			items = append(items, item)
		}
		return items, nil

	case '{':
		var keys map[string]json.RawMessage
		if err := json.Unmarshal(data, &keys); err != nil {
			return nil, fmt.Errorf("时间安排格式错误: %w", err)
		}
		if _, ok := keys["days"]; ok {
			return decodeLegacy(data)
		}
		// 单个对象视为只有一条记录的标准格式
		var e scheduleEntry
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("时间安排格式错误: %w", err)
		}
		item, err := e.toItem()
		if err != nil {
			return nil, err
		}
		return []scheduler.ScheduleItem{item}, nil
	}
	return nil, fmt.Errorf("时间安排格式错误: 既不是数组也不是对象")
}

func decodeLegacy(data []byte) ([]scheduler.ScheduleItem, error) {
	var l legacySchedule
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("旧版时间安排格式错误: %w", err)
	}
	from, to, ok := strings.Cut(l.Time, "-")
	if !ok {
		return nil, fmt.Errorf("旧版时间安排时间段无效 %q", l.Time)
	}
	start, err := scheduler.ParseClock(from)
	if err != nil {
		return nil, err
	}
	end, err := scheduler.ParseClock(to)
	if err != nil {
		return nil, err
	}
	if end <= start {
		return nil, fmt.Errorf("旧版时间安排结束时间早于开始时间 %q", l.Time)
	}
	items := make([]scheduler.ScheduleItem, 0, len(l.Days))
	for _, d := range l.Days {
		day, err := parseDay(d)
		if err != nil {
			return nil, err
		}
		items = append(items, scheduler.ScheduleItem{Day: day, Start: start, End: end, ClassroomID: l.Room})
	}
	return items, nil
}

func (e scheduleEntry) toItem() (scheduler.ScheduleItem, error) {
	day, err := parseDay(e.Day)
	if err != nil {
		return scheduler.ScheduleItem{}, err
	}
	start, err := scheduler.ParseClock(e.StartTime)
	if err != nil {
		return scheduler.ScheduleItem{}, err
	}
	end, err := scheduler.ParseClock(e.EndTime)
	if err != nil {
		return scheduler.ScheduleItem{}, err
	}
	if end <= start {
		return scheduler.ScheduleItem{}, fmt.Errorf("结束时间 %s 不晚于开始时间 %s", e.EndTime, e.StartTime)
	}
	return scheduler.ScheduleItem{Day: day, Start: start, End: end, ClassroomID: e.ClassroomID}, nil
}

// parseDay 星期既可能是数字也可能是字符串（"Mon"/"monday"/"1"）
func parseDay(raw json.RawMessage) (scheduler.Weekday, error) {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		d := scheduler.Weekday(n)
		if !d.Valid() {
			return 0, fmt.Errorf("无效的星期 %d", n)
		}
		return d, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("无效的星期 %s", string(raw))
	}
	d, ok := scheduler.ParseWeekday(s)
	if !ok {
		return 0, fmt.Errorf("无效的星期 %q", s)
	}
	return d, nil
}

// EncodeSchedule 统一以标准格式写入
func EncodeSchedule(items []scheduler.ScheduleItem) (datatypes.JSON, error) {
	out := make([]canonicalEntry, len(items))
	for i, it := range items {
		out[i] = canonicalEntry{
			Day:         int(it.Day),
			StartTime:   scheduler.FormatClock(it.Start),
			EndTime:     scheduler.FormatClock(it.End),
			ClassroomID: it.ClassroomID,
		}
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// SameSchedule 两份 schedule 解析后是否一致（忽略 JSON 格式差异）
func SameSchedule(a, b datatypes.JSON) bool {
	x, err := DecodeSchedule(a)
	if err != nil {
		return false
	}
	y, err := DecodeSchedule(b)
	if err != nil || len(x) != len(y) {
		return false
	}
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}
