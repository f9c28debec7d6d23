package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"smart-campus/backend/config"
	"smart-campus/backend/internal/scheduler"
)

type solveOptions struct {
	softOrdering bool
	nodeBudget   int
	timeout      time.Duration
	asJSON       bool
}

// solveOutput --json 输出
type solveOutput struct {
	Term        string             `json:"term,omitempty"`
	Success     bool               `json:"success"`
	Assignments []assignmentOutput `json:"assignments,omitempty"`
	Stats       scheduler.Stats    `json:"stats"`
	Failure     *scheduler.Failure `json:"failure,omitempty"`
}

type assignmentOutput struct {
	SectionID   string `json:"section_id"`
	ClassroomID string `json:"classroom_id"`
	Day         string `json:"day"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
}

func newSolveCmd(root *rootOptions) *cobra.Command {
	opts := &solveOptions{}
	cmd := &cobra.Command{
		Use:   "solve <snapshot.yaml>",
		Short: "为快照中的教学班生成排课方案",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			var timeout time.Duration
			solver, snap, in, err := root.prepare(args[0], func(c *config.SchedulerConfig) {
				if flags.Changed("soft-ordering") {
					c.SoftOrdering = opts.softOrdering
				}
				if flags.Changed("node-budget") {
					c.NodeBudget = opts.nodeBudget
				}
				if flags.Changed("timeout") {
					c.Timeout = opts.timeout
				}
				timeout = c.Timeout
			})
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			res, err := solver.Solve(ctx, in)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.asJSON {
				if err := writeSolveJSON(out, snap.Term, res); err != nil {
					return err
				}
			} else {
				writeSolveText(out, res, snap.ClassroomNames())
			}
			if !res.Success {
				return errInfeasible
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.softOrdering, "soft-ordering", false, "按软评分排序候选（覆盖配置）")
	cmd.Flags().IntVar(&opts.nodeBudget, "node-budget", 0, "搜索节点上限，0 表示不限（覆盖配置）")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "求解时限，0 表示不限（覆盖配置）")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "以 JSON 输出")
	return cmd
}

func writeSolveJSON(w io.Writer, term string, res *scheduler.Result) error {
	o := solveOutput{Term: term, Success: res.Success, Stats: res.Stats, Failure: res.Failure}
	for _, a := range res.Assignments {
		o.Assignments = append(o.Assignments, assignmentOutput{
			SectionID:   a.SectionID,
			ClassroomID: a.ClassroomID,
			Day:         a.Day.String(),
			StartTime:   scheduler.FormatClock(a.Start),
			EndTime:     scheduler.FormatClock(a.End),
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(o)
}

func writeSolveText(w io.Writer, res *scheduler.Result, rooms map[string]string) {
	if !res.Success {
		f := res.Failure
		fmt.Fprintf(w, "排课失败: %s\n", f.Reason)
		fmt.Fprintf(w, "教学班 %d，教室 %d，已有安排 %d，节点 %d，回溯 %d\n",
			f.SectionCount, f.ClassroomCount, f.ExistingCount, res.Stats.Nodes, res.Stats.Backtracks)
		codes := make([]string, 0, len(f.Rejections))
		for code := range f.Rejections {
			codes = append(codes, string(code))
		}
		sort.Strings(codes)
		for _, code := range codes {
			fmt.Fprintf(w, "  拒绝 %-10s %d\n", code, f.Rejections[scheduler.RejectCode(code)])
		}
		for _, h := range f.Hints {
			fmt.Fprintf(w, "  提示: %s\n", h)
		}
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "教学班\t星期\t时间\t教室")
	for _, a := range res.Assignments {
		room := rooms[a.ClassroomID]
		if room == "" {
			room = a.ClassroomID
		}
		fmt.Fprintf(tw, "%s\t%s\t%s-%s\t%s\n",
			a.SectionID, a.Day, scheduler.FormatClock(a.Start), scheduler.FormatClock(a.End), room)
	}
	tw.Flush()
	fmt.Fprintf(w, "共 %d 个教学班，节点 %d，回溯 %d，沿用手动安排 %d\n",
		len(res.Assignments), res.Stats.Nodes, res.Stats.Backtracks, res.Stats.Honored)
}
