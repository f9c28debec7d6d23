package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultScorer(t *testing.T) {
	s := NewDefaultScorer(DefaultGrid())
	required := Section{ID: "s-1", Required: true}
	elective := Section{ID: "s-2"}

	morning := Assignment{SectionID: "s-1", Day: Monday, Start: 9 * 60, End: 10*60 + 30}
	afternoon := Assignment{SectionID: "s-1", Day: Monday, Start: 13 * 60, End: 14*60 + 30}

	assert.Less(t, s.Score(morning, nil, required), s.Score(afternoon, nil, required))
	assert.Equal(t, s.Score(morning, nil, elective), s.Score(afternoon, nil, elective))

	placed := []Assignment{
		{SectionID: "x-1", Day: Monday},
		{SectionID: "x-2", Day: Monday},
		{SectionID: "x-3", Day: Tuesday},
		{SectionID: "s-1", Day: Monday}, // 自身不计入
	}
	assert.Equal(t, -10.0+2, s.Score(morning, placed, required))
}

func TestFormulaScorer(t *testing.T) {
	grid := DefaultGrid()
	s, err := NewFormulaScorer(grid, "same_day * 2 - required * morning * 5 + day")
	require.NoError(t, err)

	cand := Assignment{SectionID: "s-1", Day: Tuesday, Start: 9 * 60, End: 10*60 + 30}
	placed := []Assignment{{SectionID: "x-1", Day: Tuesday}}
	assert.Equal(t, 2.0-5+2, s.Score(cand, placed, Section{ID: "s-1", Required: true}))

	// 布尔表达式按 0/1 计分
	b, err := NewFormulaScorer(grid, "capacity > 50")
	require.NoError(t, err)
	assert.Equal(t, 1.0, b.Score(cand, nil, Section{Capacity: 60}))
	assert.Equal(t, 0.0, b.Score(cand, nil, Section{Capacity: 10}))
}

func TestFormulaScorer_Fallback(t *testing.T) {
	grid := DefaultGrid()
	_, err := NewFormulaScorer(grid, "same_day +* (")
	assert.Error(t, err)

	// 引用未知变量时求值失败，回退默认评分
	s, err := NewFormulaScorer(grid, "unknown_var + 1")
	require.NoError(t, err)
	cand := Assignment{SectionID: "s-1", Day: Monday, Start: 9 * 60, End: 10*60 + 30}
	sec := Section{ID: "s-1", Required: true}
	assert.Equal(t, NewDefaultScorer(grid).Score(cand, nil, sec), s.Score(cand, nil, sec))
}
