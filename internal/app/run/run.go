package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/John-Robertt/jukebox/internal/app"
	"github.com/John-Robertt/jukebox/internal/app/planner"
	"github.com/John-Robertt/jukebox/internal/config"
	"github.com/John-Robertt/jukebox/internal/domain"
	"github.com/John-Robertt/jukebox/internal/logging"
	"github.com/John-Robertt/jukebox/internal/provider"
	"github.com/John-Robertt/jukebox/internal/scan"
)

// Execute 执行一次 run（dry-run/apply），并返回对外稳定的 RunReport。
// 该函数尽量把错误“降级”为 item 级失败（单条失败不影响其他）。
func Execute(ctx context.Context, eff config.EffectiveConfig, table provider.Table) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, table, nil, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 与 logger（均可为 nil）。
//
// 流程：lock → scan → group → plan → exec（errgroup，记录之间并发，记录内部串行）。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, table provider.Table, obs Observer, logger *slog.Logger) domain.RunReport {
	started := time.Now().UTC()
	eff = withDefaults(eff)

	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		RunID:     uuid.NewString(),
		Path:      eff.Path,
		DryRun:    !eff.Apply,
		StartedAt: started,
		Items:     make([]domain.ItemResult, 0, 128),
	}
	log := logging.Component(logger, "run").With(slog.String(logging.FieldRunID, rr.RunID))

	finish := func() domain.RunReport {
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}
	abort := func(code, msg string) domain.RunReport {
		log.Error("运行中止", slog.String("error_code", code), slog.String(logging.FieldError, msg))
		rr.Items = append(rr.Items, syntheticFailed(code, msg))
		return finish()
	}

	if eff.Apply {
		unlock, err := acquireLock(eff.JukeboxDir)
		defer unlock()
		if err != nil {
			if errors.Is(err, errLocked) {
				return abort(domain.ErrCodeLocked, fmt.Sprintf("%v（%s）", err, eff.JukeboxDir))
			}
			return abort(domain.ErrCodeIOFailed, err.Error())
		}
	}

	e, err := newEnv(eff, table, log)
	if err != nil {
		if code := config.Code(err); code != "" {
			return abort(code, err.Error())
		}
		return abort(domain.ErrCodeIOFailed, err.Error())
	}
	defer func() {
		if err := e.Close(); err != nil {
			log.Warn("关闭缓存失败", logging.Error(err))
		}
	}()

	scanStarted := time.Now()
	roots := make([]scan.Root, 0, len(eff.Libraries))
	for _, l := range eff.Libraries {
		roots = append(roots, scan.Root{Path: l.Path, Exclude: l.Exclude})
	}
	// jukebox 目录可能位于库内部：其中的文件永远不是输入。
	files, err := scan.ScanLibraries(roots, []string{eff.JukeboxDir})
	if err != nil {
		return abort(domain.ErrCodeScanFailed, fmt.Sprintf("扫描失败：%v", err))
	}
	scanDur := time.Since(scanStarted)

	groupStarted := time.Now()
	groups, unmatched, err := app.GroupRecords(files)
	if err != nil {
		return abort(domain.ErrCodeScanFailed, fmt.Sprintf("分组失败：%v", err))
	}
	groupDur := time.Since(groupStarted)

	for _, u := range unmatched {
		log.Warn("无法从文件名识别记录，已跳过", slog.String("file", u.File.AbsPath), slog.String("reason", u.Reason))
	}
	if obs != nil {
		obs.OnPhaseDone("scan", map[string]any{
			"libraries": len(roots),
			"files":     len(files),
			"unmatched": len(unmatched),
		}, scanDur)
		obs.OnPhaseDone("group", map[string]any{
			"records": len(groups),
		}, groupDur)
	}

	planStarted := time.Now()
	plans := make([]domain.ItemPlan, 0, len(groups))
	for _, g := range groups {
		key := g.Key()
		if !planner.SafeKey(key) {
			rr.Items = append(rr.Items, failedPlanItem(g, domain.ErrCodeScanFailed, fmt.Sprintf("记录 key 不能作为文件名：%q", key)))
			continue
		}
		st, serr := planner.ReadJukeboxState(eff.JukeboxDir, key)
		if serr != nil {
			rr.Items = append(rr.Items, failedPlanItem(g, domain.ErrCodeIOFailed, fmt.Sprintf("读取 jukebox 状态失败：%v", serr)))
			continue
		}
		localNFO := planner.FindLocalNFO(g.Identity.Kind, g.Files)
		plans = append(plans, planner.PlanItem(key, g.Identity.Kind, g.Files, g.SourceMod, st, localNFO))
	}
	// 派发顺序按 key 稳定；完成顺序仍取决于各记录耗时。
	planner.SortPlans(plans)
	planDur := time.Since(planStarted)

	if obs != nil {
		var needNFO, needPoster, needFanart, localNFO int
		for i := range plans {
			p := plans[i]
			if p.Need.NeedNFO {
				needNFO++
			}
			if p.Need.NeedPoster {
				needPoster++
			}
			if p.Need.NeedFanart {
				needFanart++
			}
			if p.LocalNFO != "" {
				localNFO++
			}
		}
		obs.OnPhaseDone("plan", map[string]any{
			"items":       len(plans),
			"local_nfo":   localNFO,
			"need_nfo":    needNFO,
			"need_poster": needPoster,
			"need_fanart": needFanart,
		}, planDur)
		obs.OnPhaseDone("exec", map[string]any{
			"workers":     eff.Concurrency,
			"total_items": len(plans),
		}, 0)
	}

	// 执行阶段：按记录并发，记录内串行。ctx 取消后不再派发新记录。
	var (
		mu   sync.Mutex
		done int
		eg   errgroup.Group
	)
	eg.SetLimit(eff.Concurrency)
	collect := func(p domain.ItemPlan, res domain.ItemResult, dur time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		done++
		rr.Items = append(rr.Items, res)
		if obs != nil {
			obs.OnItemDone(done, len(plans), p.Key, res, dur)
		}
	}

	for _, p := range plans {
		if ctx.Err() != nil {
			collect(p, canceledItem(p), 0)
			continue
		}
		eg.Go(func() error {
			if obs != nil {
				obs.OnItemStart(p.Key)
			}
			oneStarted := time.Now()
			res := e.execOne(ctx, p)
			collect(p, res, time.Since(oneStarted))
			return nil
		})
	}
	_ = eg.Wait()

	out := finish()
	log.Info("运行结束",
		slog.Int("processed", out.Summary.Processed),
		slog.Int("cached", out.Summary.Cached),
		slog.Int("failed", out.Summary.Failed),
		slog.Duration("elapsed", out.FinishedAt.Sub(out.StartedAt)),
	)
	return out
}

func syntheticFailed(code, msg string) domain.ItemResult {
	return domain.ItemResult{
		Key:       "",
		Status:    domain.StatusFailed,
		Stage:     domain.StageDiscovered,
		ErrorCode: code,
		ErrorMsg:  msg,
		Attempts:  []domain.ProviderAttempt{},
		Files:     []string{},
	}
}

func failedPlanItem(g app.Group, code, msg string) domain.ItemResult {
	return domain.ItemResult{
		Key:       g.Key(),
		Kind:      g.Identity.Kind,
		Status:    domain.StatusFailed,
		Stage:     domain.StageDiscovered,
		ErrorCode: code,
		ErrorMsg:  msg,
		Attempts:  []domain.ProviderAttempt{},
		Files:     relPaths(g.Files),
	}
}

func canceledItem(p domain.ItemPlan) domain.ItemResult {
	it := newItem(p)
	return failItem(it, domain.ErrCodeCanceled, "运行已取消，记录未处理")
}

func newItem(p domain.ItemPlan) domain.ItemResult {
	return domain.ItemResult{
		Key:      p.Key,
		Kind:     p.Kind,
		Status:   domain.StatusProcessed, // 失败时覆盖
		Stage:    domain.StageDiscovered,
		Attempts: []domain.ProviderAttempt{},
		Files:    relPaths(p.Files),
	}
}

func failItem(it domain.ItemResult, code, msg string) domain.ItemResult {
	it.Status = domain.StatusFailed
	it.ErrorCode = code
	it.ErrorMsg = msg
	return it
}

func relPaths(files []domain.VideoFile) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.RelPath)
	}
	return out
}
