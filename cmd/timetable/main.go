// timetable 离线排课工具：读取 YAML 快照，运行与线上相同的求解器。
//
//	timetable solve snapshot.yaml [--soft-ordering] [--node-budget N] [--json]
//	timetable check snapshot.yaml --section s-1 --classroom r-1 --day mon --start 10:30
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"smart-campus/backend/config"
	"smart-campus/backend/internal/scheduler"
	"smart-campus/backend/internal/service"
	"smart-campus/backend/internal/snapshot"
	applogger "smart-campus/backend/pkg/logger"
)

// 以非零码退出但不重复打印的结果类错误
var (
	errInfeasible = errors.New("无可行排课方案")
	errRejected   = errors.New("安排不满足硬约束")
)

type rootOptions struct {
	configPath string
	verbose    bool
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		if !errors.Is(err, errInfeasible) && !errors.Is(err, errRejected) {
			fmt.Fprintln(os.Stderr, "错误:", err)
		}
		os.Exit(1)
	}
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "timetable",
		Short:         "离线排课求解与校验",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "配置文件路径（只读取 scheduler 段）")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "输出求解日志")

	root.AddCommand(newSolveCmd(opts), newCheckCmd(opts))
	return root
}

// prepare 加载配置与快照，返回可直接求解的上下文
func (o *rootOptions) prepare(path string, override func(*config.SchedulerConfig)) (*scheduler.Solver, *snapshot.File, scheduler.Input, error) {
	cfg, err := config.LoadScheduler(o.configPath)
	if err != nil {
		return nil, nil, scheduler.Input{}, err
	}
	if override != nil {
		override(cfg)
	}

	logger := zap.NewNop()
	if o.verbose {
		if logger, err = applogger.NewLogger(&config.LogConfig{Level: "debug", Format: "console"}); err != nil {
			return nil, nil, scheduler.Input{}, err
		}
	}

	snap, err := snapshot.LoadFile(path)
	if err != nil {
		return nil, nil, scheduler.Input{}, err
	}

	solver := service.NewSolver(cfg, logger)
	in, err := snap.Input(solver.Grid())
	if err != nil {
		return nil, nil, scheduler.Input{}, err
	}
	return solver, snap, in, nil
}
