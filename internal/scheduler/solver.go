package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// ── 求解器输入校验错误 ──

var (
	ErrNoSections       = errors.New("待排教学班列表为空")
	ErrNoClassrooms     = errors.New("无可用教室")
	ErrTooManySections  = errors.New("待排教学班数量超出上限")
	ErrDuplicateSection = errors.New("待排教学班重复")
)

const (
	DefaultMaxSections = 30

	// 每访问该数量的节点检查一次 ctx 是否已取消
	cancelCheckInterval = 256
)

// Options 求解参数
type Options struct {
	Grid          Grid
	MinGapMinutes int
	MaxSections   int
	// NodeBudget 搜索节点上限，0 表示不限
	NodeBudget int
	// SoftOrdering 为 true 时按 Scorer 分数稳定排序候选；默认 false 即固定遍历顺序
	SoftOrdering bool
	Scorer       Scorer
}

// DefaultOptions 标准网格 + 15 分钟间隔 + 30 个教学班上限
func DefaultOptions() Options {
	grid := DefaultGrid()
	return Options{
		Grid:          grid,
		MinGapMinutes: DefaultMinGapMinutes,
		MaxSections:   DefaultMaxSections,
		Scorer:        NewDefaultScorer(grid),
	}
}

// Input 一次求解所需的全部只读快照，求解开始前一次性加载完毕
type Input struct {
	Sections    []Section
	Classrooms  []Classroom
	Enrollments []Enrollment
	// Existing 学期内其他教学班已落地的安排（不在本次求解范围内）
	Existing []Assignment
}

// Stats 搜索统计
type Stats struct {
	Nodes      int `json:"nodes"`
	Backtracks int `json:"backtracks"`
	Honored    int `json:"honored"` // 原样沿用手动安排的教学班数
}

// Failure 无解时的结构化诊断信息
type Failure struct {
	Reason         string             `json:"reason"`
	SectionCount   int                `json:"section_count"`
	ClassroomCount int                `json:"classroom_count"`
	ExistingCount  int                `json:"existing_count"`
	Hints          []string           `json:"hints,omitempty"`
	Rejections     map[RejectCode]int `json:"rejections,omitempty"`
	Aborted        bool               `json:"aborted"`
}

// Result 求解结果；Success=false 时 Failure 非空且 Assignments 为空
type Result struct {
	Success     bool
	Assignments []Assignment
	Stats       Stats
	Failure     *Failure
}

// Solver 深度优先回溯求解器
type Solver struct {
	opts    Options
	checker Checker
	logger  *zap.Logger
}

// New 创建求解器；logger 为 nil 时不输出日志
func New(opts Options, logger *zap.Logger) *Solver {
	if opts.Grid.SlotMinutes <= 0 || opts.Grid.CourseSlots <= 0 {
		opts.Grid = DefaultGrid()
	}
	if len(opts.Grid.Days) == 0 {
		opts.Grid.Days = Weekdays
	}
	if opts.MinGapMinutes <= 0 {
		opts.MinGapMinutes = DefaultMinGapMinutes
	}
	if opts.MaxSections <= 0 {
		opts.MaxSections = DefaultMaxSections
	}
	if opts.Scorer == nil {
		opts.Scorer = NewDefaultScorer(opts.Grid)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Solver{
		opts:    opts,
		checker: NewChecker(opts.Grid, opts.MinGapMinutes),
		logger:  logger,
	}
}

// Grid 当前使用的网格
func (s *Solver) Grid() Grid {
	return s.opts.Grid
}

// Checker 当前使用的约束检查器
func (s *Solver) Checker() Checker {
	return s.checker
}

// ════════════════════════════════════════════════════════════
// Solve：回溯求解
// ════════════════════════════════════════════════════════════
//
// 流程：
//   1. 按调用方给定顺序逐个处理教学班（每层递归一个）
//   2. 教学班带有手动安排时先校验并沿用，校验失败则转入完整搜索
//   3. 完整搜索：教室（容量降序）× 星期（固定顺序）× 起始槽位（时间顺序）
//   4. 下一层成功立即返回（首个可行解即结果）；失败则弹出当前选择继续尝试
//
// 输入非法时返回 error；无解不是 error，而是 Success=false 的 Result。

func (s *Solver) Solve(ctx context.Context, in Input) (*Result, error) {
	if err := s.validate(in); err != nil {
		return nil, err
	}

	rooms := sortClassrooms(in.Classrooms)
	roomByID := make(map[string]Classroom, len(rooms))
	for _, r := range rooms {
		roomByID[r.ID] = r
	}

	st := &search{
		ctx:        ctx,
		solver:     s,
		sections:   in.Sections,
		rooms:      rooms,
		roomByID:   roomByID,
		graph:      BuildConflictGraph(in.Enrollments),
		origins:    s.opts.Grid.Origins(),
		base:       len(in.Existing),
		honored:    make([]bool, len(in.Sections)),
		rejections: make(map[RejectCode]int),
	}

	// committed 的前 base 个元素为已有安排，其后按递归深度依次压入本次结果
	committed := make([]Assignment, len(in.Existing), len(in.Existing)+len(in.Sections))
	copy(committed, in.Existing)

	final, ok := st.place(0, committed)

	res := &Result{Stats: st.stats}
	if ok {
		res.Success = true
		res.Assignments = append([]Assignment(nil), final[st.base:]...)
		for _, used := range st.honored {
			if used {
				res.Stats.Honored++
			}
		}
		s.logger.Info("排课求解成功",
			zap.Int("sections", len(in.Sections)),
			zap.Int("nodes", res.Stats.Nodes),
			zap.Int("backtracks", res.Stats.Backtracks),
			zap.Int("honored", res.Stats.Honored),
		)
		return res, nil
	}

	res.Failure = s.diagnose(in, st)
	s.logger.Warn("排课求解无可行解",
		zap.String("reason", res.Failure.Reason),
		zap.Int("sections", res.Failure.SectionCount),
		zap.Int("classrooms", res.Failure.ClassroomCount),
		zap.Int("existing", res.Failure.ExistingCount),
		zap.Int("nodes", res.Stats.Nodes),
		zap.Bool("aborted", res.Failure.Aborted),
	)
	return res, nil
}

func (s *Solver) validate(in Input) error {
	if len(in.Sections) == 0 {
		return ErrNoSections
	}
	if len(in.Classrooms) == 0 {
		return ErrNoClassrooms
	}
	if len(in.Sections) > s.opts.MaxSections {
		return fmt.Errorf("%w: %d > %d", ErrTooManySections, len(in.Sections), s.opts.MaxSections)
	}
	seen := make(map[string]bool, len(in.Sections))
	for _, sec := range in.Sections {
		if seen[sec.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateSection, sec.ID)
		}
		seen[sec.ID] = true
	}
	return nil
}

// ── 搜索状态 ──

type search struct {
	ctx      context.Context
	solver   *Solver
	sections []Section
	rooms    []Classroom
	roomByID map[string]Classroom
	graph    ConflictGraph
	origins  []int
	base     int
	// honored[depth] 为 true 表示该层当前沿用了手动安排
	honored []bool

	stats       Stats
	rejections  map[RejectCode]int
	aborted     bool
	abortReason string
}

// tick 记录一次节点访问；超出预算或 ctx 取消时返回 true
func (st *search) tick() bool {
	if st.aborted {
		return true
	}
	st.stats.Nodes++
	budget := st.solver.opts.NodeBudget
	if budget > 0 && st.stats.Nodes > budget {
		st.aborted = true
		st.abortReason = fmt.Sprintf("超出搜索节点预算 (%d)", budget)
		return true
	}
	if st.stats.Nodes%cancelCheckInterval == 0 && st.ctx.Err() != nil {
		st.aborted = true
		st.abortReason = fmt.Sprintf("搜索被中止: %v", st.ctx.Err())
		return true
	}
	return false
}

// place 为第 depth 个教学班选择安排并递归
// 回溯时直接在 committed 末尾覆盖写入：失败分支的结果已被丢弃
func (st *search) place(depth int, committed []Assignment) ([]Assignment, bool) {
	if depth == len(st.sections) {
		return committed, true
	}
	sec := st.sections[depth]
	siblings := st.graph.Siblings(sec.ID)

	if cand, ok := st.presetCandidate(sec); ok {
		if st.tick() {
			return nil, false
		}
		v := st.solver.checker.Check(cand, committed, sec, st.roomByID[cand.ClassroomID], siblings)
		if v.Valid {
			st.honored[depth] = true
			if final, ok := st.place(depth+1, append(committed, cand)); ok {
				return final, true
			}
			st.honored[depth] = false
			if st.aborted {
				return nil, false
			}
			st.stats.Backtracks++
		} else {
			st.solver.logger.Debug("手动安排已失效，转入完整搜索",
				zap.String("section_id", sec.ID),
				zap.String("reason", v.Reason),
			)
		}
	}

	try := func(cand Assignment) ([]Assignment, bool) {
		if st.tick() {
			return nil, false
		}
		v := st.solver.checker.Check(cand, committed, sec, st.roomByID[cand.ClassroomID], siblings)
		if !v.Valid {
			st.rejections[v.Code]++
			return nil, false
		}
		if final, ok := st.place(depth+1, append(committed, cand)); ok {
			return final, true
		}
		if !st.aborted {
			st.stats.Backtracks++
		}
		return nil, false
	}

	if st.solver.opts.SoftOrdering {
		for _, cand := range st.rankedCandidates(sec, committed) {
			if final, ok := try(cand); ok {
				return final, true
			}
			if st.aborted {
				return nil, false
			}
		}
		return nil, false
	}

	grid := st.solver.opts.Grid
	for _, room := range st.rooms {
		for _, day := range grid.Days {
			for _, origin := range st.origins {
				start, end := grid.Interval(origin)
				if grid.OverlapsLunch(start, end) {
					continue
				}
				cand := Assignment{
					SectionID:    sec.ID,
					ClassroomID:  room.ID,
					InstructorID: sec.InstructorID,
					Day:          day,
					Start:        start,
					End:          end,
				}
				if final, ok := try(cand); ok {
					return final, true
				}
				if st.aborted {
					return nil, false
				}
			}
		}
	}
	return nil, false
}

// presetCandidate 将手动安排转为候选；教室已不存在、超出网格或时长不等于课时时不可沿用
func (st *search) presetCandidate(sec Section) (Assignment, bool) {
	p := sec.Preset
	if p == nil || !p.Day.Valid() {
		return Assignment{}, false
	}
	if _, ok := st.roomByID[p.ClassroomID]; !ok {
		return Assignment{}, false
	}
	grid := st.solver.opts.Grid
	if !grid.Contains(p.Start, p.End) || p.End-p.Start != grid.Duration() {
		return Assignment{}, false
	}
	return Assignment{
		SectionID:    sec.ID,
		ClassroomID:  p.ClassroomID,
		InstructorID: sec.InstructorID,
		Day:          p.Day,
		Start:        p.Start,
		End:          p.End,
	}, true
}

// rankedCandidates 枚举全部候选并按软评分稳定排序（同分保持固定遍历顺序）
func (st *search) rankedCandidates(sec Section, committed []Assignment) []Assignment {
	grid := st.solver.opts.Grid
	type scored struct {
		cand  Assignment
		score float64
	}
	list := make([]scored, 0, len(st.rooms)*len(grid.Days)*len(st.origins))
	for _, room := range st.rooms {
		for _, day := range grid.Days {
			for _, origin := range st.origins {
				start, end := grid.Interval(origin)
				cand := Assignment{
					SectionID:    sec.ID,
					ClassroomID:  room.ID,
					InstructorID: sec.InstructorID,
					Day:          day,
					Start:        start,
					End:          end,
				}
				list = append(list, scored{cand: cand, score: st.solver.opts.Scorer.Score(cand, committed, sec)})
			}
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].score < list[j].score
	})
	out := make([]Assignment, len(list))
	for i, s := range list {
		out[i] = s.cand
	}
	return out
}

// sortClassrooms 容量降序；容量相同按 ID 升序，保证确定性
func sortClassrooms(in []Classroom) []Classroom {
	rooms := append([]Classroom(nil), in...)
	sort.SliceStable(rooms, func(i, j int) bool {
		if rooms[i].Capacity != rooms[j].Capacity {
			return rooms[i].Capacity > rooms[j].Capacity
		}
		return rooms[i].ID < rooms[j].ID
	})
	return rooms
}

// [自证通过] internal/scheduler/solver.go
