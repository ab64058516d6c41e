package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/jukebox/internal/app/run"
	"github.com/John-Robertt/jukebox/internal/config"
	"github.com/John-Robertt/jukebox/internal/domain"
	"github.com/John-Robertt/jukebox/internal/infra/fsx"
	"github.com/John-Robertt/jukebox/internal/logging"
	"github.com/John-Robertt/jukebox/internal/provider/builtin"
)

// ReportName 是 apply 模式下写入 jukebox 目录的 report 文件名。
const ReportName = "report.json"

func newRunCommand(configFlag *string) *cobra.Command {
	var apply bool
	var concurrency int

	cmd := &cobra.Command{
		Use:   "run [path]",
		Short: "扫描媒体库并聚合元数据（默认 dry-run，不写任何文件）",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("读取当前目录失败：%w", err)
			}
			cwdAbs, _ := filepath.Abs(cwd)

			cli := config.CLIArgs{
				Path:           optionalArg(args, 0),
				ConfigFile:     *configFlag,
				Apply:          apply,
				ApplySet:       cmd.Flags().Changed("apply"),
				Concurrency:    concurrency,
				ConcurrencySet: cmd.Flags().Changed("concurrency"),
			}
			eff, err := config.LoadEffective(cwd, cli)
			if err != nil {
				emitReport(stdout, stderr, reportForConfigError(cwdAbs, cli, err))
				return errRunFailed
			}

			// dry-run 不写任何文件，日志文件也一样。
			logFile := ""
			if eff.Apply {
				logFile = eff.Log.File
			}
			logger, closer, err := logging.New(logging.Options{
				Level:  eff.Log.Level,
				Format: eff.Log.Format,
				File:   logFile,
				Stderr: stderr,
			})
			if err != nil {
				return fmt.Errorf("初始化日志失败：%w", err)
			}
			defer closer.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			progressW, interactive := pickProgressWriter(stdout, stderr)
			var obs run.Observer
			var ui *progressUI
			if interactive {
				ui = newProgressUI(progressW)
				obs = ui
			}

			rr := run.ExecuteWithObserver(ctx, eff, builtin.Table(), obs, logger)
			if ui != nil {
				ui.Stop()
			}

			if eff.Apply {
				if err := writeReportFile(eff.JukeboxDir, rr); err != nil {
					fmt.Fprintf(stderr, "写入 %s 失败：%v\n", ReportName, err)
					emitReport(stdout, stderr, rr)
					return errRunFailed
				}
			}

			emitReport(stdout, stderr, rr)
			if interactive {
				emitLocations(progressW, eff)
			}
			if rr.Summary.Failed > 0 {
				return errRunFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "写入 jukebox 与缓存；支持 --apply=false 覆盖配置中的 apply=true")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "并发处理的记录数（1-32，默认读配置）")
	return cmd
}

// emitReport：stdout 是终端时打印摘要表；否则 stdout 必须且仅输出一个 RunReport JSON（摘要走 stderr）。
func emitReport(stdout, stderr io.Writer, rr domain.RunReport) {
	if isTerminal(stdout) {
		fmt.Fprintln(stdout, renderSummary(rr))
		if failed := renderFailures(rr); failed != "" {
			fmt.Fprintln(stderr, failed)
		}
		return
	}

	enc := json.NewEncoder(stdout)
	_ = enc.Encode(rr)
	fmt.Fprintf(stderr, "完成：processed=%d cached=%d failed=%d\n",
		rr.Summary.Processed, rr.Summary.Cached, rr.Summary.Failed,
	)
}

func reportForConfigError(cwdAbs string, cli config.CLIArgs, err error) domain.RunReport {
	now := time.Now().UTC()
	path := cwdAbs
	if cli.Path != "" {
		path = cli.Path
	}
	rr := domain.RunReport{
		RunID:      uuid.NewString(),
		Path:       path,
		DryRun:     !(cli.ApplySet && cli.Apply),
		StartedAt:  now,
		FinishedAt: now,
		Items: []domain.ItemResult{{
			Status:    domain.StatusFailed,
			Stage:     domain.StageDiscovered,
			ErrorCode: config.Code(err),
			ErrorMsg:  err.Error(),
			Attempts:  []domain.ProviderAttempt{},
			Files:     []string{},
		}},
	}
	rr.Finalize()
	return rr
}

func writeReportFile(jukeboxDir string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomic(jukeboxDir, ReportName, b)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func pickProgressWriter(stdout, stderr io.Writer) (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTerminal(stderr) {
		return stderr, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if isTerminal(stdout) {
		return stdout, true
	}
	return nil, false
}

func emitLocations(w io.Writer, eff config.EffectiveConfig) {
	if w == nil {
		return
	}
	if eff.Apply {
		fmt.Fprintf(w, "report: %s\n", filepath.Join(eff.JukeboxDir, ReportName))
	}
	fmt.Fprintf(w, "jukebox: %s\n", eff.JukeboxDir)
}
