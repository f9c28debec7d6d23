package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"smart-campus/backend/internal/scheduler"
)

type checkOptions struct {
	section   string
	classroom string
	day       string
	start     string
}

func newCheckCmd(root *rootOptions) *cobra.Command {
	opts := &checkOptions{}
	cmd := &cobra.Command{
		Use:   "check <snapshot.yaml>",
		Short: "校验把一个教学班放在指定教室与时间是否满足硬约束",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			solver, _, in, err := root.prepare(args[0], nil)
			if err != nil {
				return err
			}

			sec, ok := findSection(in.Sections, opts.section)
			if !ok {
				return fmt.Errorf("快照中不存在教学班 %s", opts.section)
			}
			room, ok := findClassroom(in.Classrooms, opts.classroom)
			if !ok {
				return fmt.Errorf("快照中不存在教室 %s", opts.classroom)
			}
			day, ok := scheduler.ParseWeekday(opts.day)
			if !ok {
				return fmt.Errorf("无效的星期 %q", opts.day)
			}
			start, err := scheduler.ParseClock(opts.start)
			if err != nil {
				return err
			}

			grid := solver.Grid()
			end := start + grid.Duration()
			out := cmd.OutOrStdout()
			if !grid.Contains(start, end) {
				fmt.Fprintf(out, "不可行 [grid] %s-%s 超出教学时段\n", scheduler.FormatClock(start), scheduler.FormatClock(end))
				return errRejected
			}

			cand := scheduler.Assignment{
				SectionID:    sec.ID,
				ClassroomID:  room.ID,
				InstructorID: sec.InstructorID,
				Day:          day,
				Start:        start,
				End:          end,
			}
			siblings := scheduler.BuildConflictGraph(in.Enrollments).Siblings(sec.ID)
			v := solver.Checker().Check(cand, in.Existing, sec, room, siblings)
			if !v.Valid {
				fmt.Fprintf(out, "不可行 [%s] %s\n", v.Code, v.Reason)
				return errRejected
			}
			fmt.Fprintf(out, "可行: %s %s %s-%s\n", sec.ID, day, scheduler.FormatClock(start), scheduler.FormatClock(end))
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.section, "section", "", "教学班 ID")
	cmd.Flags().StringVar(&opts.classroom, "classroom", "", "教室 ID")
	cmd.Flags().StringVar(&opts.day, "day", "", "星期（1-5 或 mon..fri）")
	cmd.Flags().StringVar(&opts.start, "start", "", "开始时间 HH:MM")
	for _, name := range []string{"section", "classroom", "day", "start"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func findSection(sections []scheduler.Section, id string) (scheduler.Section, bool) {
	for _, s := range sections {
		if s.ID == id {
			return s, true
		}
	}
	return scheduler.Section{}, false
}

func findClassroom(rooms []scheduler.Classroom, id string) (scheduler.Classroom, bool) {
	for _, r := range rooms {
		if r.ID == id {
			return r, true
		}
	}
	return scheduler.Classroom{}, false
}
