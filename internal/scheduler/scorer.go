package scheduler

import (
	"fmt"

	"github.com/Knetic/govaluate"
)

// Scorer 软约束评分：分数越低越优先
// 仅用于调整候选顺序，不会否决任何候选
type Scorer interface {
	Score(cand Assignment, placed []Assignment, sec Section) float64
}

// DefaultScorer 默认评分规则
//   - 必修课排在上午（09:00–12:00）得分更低
//   - 同一天每多一个已排课程，追加少量惩罚，促使一周分布均匀
type DefaultScorer struct {
	Grid           Grid
	MorningBonus   float64
	DayLoadPenalty float64
}

// NewDefaultScorer 使用默认权重创建评分器
func NewDefaultScorer(grid Grid) DefaultScorer {
	return DefaultScorer{Grid: grid, MorningBonus: 10, DayLoadPenalty: 1}
}

func (s DefaultScorer) Score(cand Assignment, placed []Assignment, sec Section) float64 {
	score := 0.0
	if sec.Required && s.Grid.IsMorning(cand.Start, cand.End) {
		score -= s.MorningBonus
	}
	score += s.DayLoadPenalty * float64(sameDayCount(cand, placed))
	return score
}

func sameDayCount(cand Assignment, placed []Assignment) int {
	n := 0
	for _, a := range placed {
		if a.Day == cand.Day && a.SectionID != cand.SectionID {
			n++
		}
	}
	return n
}

// FormulaScorer 基于表达式的评分器，表达式可用变量：
//
//	required  必修课为 1，否则 0
//	morning   候选位于上午为 1，否则 0
//	same_day  同一天已排课程数
//	day       星期（1-5）
//	start     起始分钟数
//	capacity  教学班容量
type FormulaScorer struct {
	grid     Grid
	expr     *govaluate.EvaluableExpression
	fallback Scorer
}

// NewFormulaScorer 解析评分表达式；表达式求值失败时回退到默认评分
func NewFormulaScorer(grid Grid, formula string) (*FormulaScorer, error) {
	expr, err := govaluate.NewEvaluableExpression(formula)
	if err != nil {
		return nil, fmt.Errorf("评分表达式解析失败: %w", err)
	}
	return &FormulaScorer{grid: grid, expr: expr, fallback: NewDefaultScorer(grid)}, nil
}

func (s *FormulaScorer) Score(cand Assignment, placed []Assignment, sec Section) float64 {
	params := map[string]interface{}{
		"required": boolToFloat(sec.Required),
		"morning":  boolToFloat(s.grid.IsMorning(cand.Start, cand.End)),
		"same_day": float64(sameDayCount(cand, placed)),
		"day":      float64(cand.Day),
		"start":    float64(cand.Start),
		"capacity": float64(sec.Capacity),
	}
	v, err := s.expr.Evaluate(params)
	if err != nil {
		return s.fallback.Score(cand, placed, sec)
	}
	switch x := v.(type) {
	case float64:
		return x
	case bool:
		return boolToFloat(x)
	default:
		return s.fallback.Score(cand, placed, sec)
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
