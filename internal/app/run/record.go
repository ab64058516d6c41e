package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"time"

	"github.com/John-Robertt/jukebox/internal/app/planner"
	"github.com/John-Robertt/jukebox/internal/domain"
	"github.com/John-Robertt/jukebox/internal/infra/cache"
	"github.com/John-Robertt/jukebox/internal/infra/fsx"
	"github.com/John-Robertt/jukebox/internal/logging"
	"github.com/John-Robertt/jukebox/internal/nfo"
	"github.com/John-Robertt/jukebox/internal/provider"
)

// execOne 把一条记录推进 DISCOVERED → METADATA_SCANNED → ARTWORK_RESOLVED → PERSISTED。
//
// 约束：
// - provider 失败只记录在 attempts 上，记录继续推进
// - dry-run 不写任何文件，最终停在 ARTWORK_RESOLVED
// - 持久化前检查 ctx：已取消则放弃，不留半条快照
func (e *env) execOne(ctx context.Context, p domain.ItemPlan) domain.ItemResult {
	log := e.log.With(slog.String(logging.FieldRecord, p.Key))
	it := newItem(p)

	rec := domain.NewRecord(p.Key, p.Kind)
	rec.Files = append([]domain.VideoFile(nil), p.Files...)
	rec.SourceMod = p.SourceMod
	rec.NFOPath = p.LocalNFO

	cached := e.loadCached(ctx, rec, log)
	if cached {
		it.Status = domain.StatusCached
	} else {
		attempts, err := e.scanMetadata(ctx, rec, log)
		it.Attempts = append(it.Attempts, attempts...)
		if err != nil {
			return failItem(it, domain.ErrCodeCanceled, "运行已取消")
		}
	}
	it.Stage = domain.StageMetadataScanned

	if ctx.Err() != nil {
		return failItem(it, domain.ErrCodeCanceled, "运行已取消")
	}
	if !cached {
		it.Attempts = append(it.Attempts, e.resolveArtwork(ctx, rec, log)...)
	}
	it.Artwork = reportArtwork(rec)
	if e.eff.Apply {
		used, err := e.writeArtwork(ctx, rec, p.Need, log)
		if err != nil {
			return failItem(it, ioCode(err), fmt.Sprintf("写入图片失败：%v", err))
		}
		maps.Copy(it.Artwork, used)
	}
	it.Stage = domain.StageArtworkResolved

	if !e.eff.Apply {
		return it
	}
	if ctx.Err() != nil {
		return failItem(it, domain.ErrCodeCanceled, "运行已取消，未写入缓存")
	}
	if err := e.persist(ctx, rec, p.Need, !cached); err != nil {
		return failItem(it, ioCode(err), err.Error())
	}
	it.Stage = domain.StagePersisted
	return it
}

// loadCached 尝试缓存 fast-path：快照存在且不比源文件旧时直接还原记录。
// 损坏的快照只记 warn，按无缓存处理。
func (e *env) loadCached(ctx context.Context, rec *domain.Record, log *slog.Logger) bool {
	snap, ok, err := e.store.Load(ctx, rec.Key)
	switch {
	case err != nil && cache.IsCorrupt(err):
		log.Warn("缓存快照损坏，重新扫描", logging.Error(err))
		return false
	case err != nil:
		log.Warn("读取缓存失败，重新扫描", logging.Error(err))
		return false
	case !ok:
		return false
	case !snap.Fresh(rec.SourceMod):
		log.Debug("源文件比缓存新，重新扫描", slog.Int64("snapshot_mod", snap.SourceMod), slog.Int64("source_mod", rec.SourceMod))
		return false
	}
	if err := snap.Apply(rec); err != nil {
		log.Warn("缓存快照损坏，重新扫描", logging.Error(err))
		return false
	}
	return true
}

// scanMetadata 先用本地 NFO 发现外部 id，再按配置顺序调用每个 metadata provider。
// provider 失败不中断记录：全部失败时字段保持 UNKNOWN，照常进入图片与持久化阶段。
// 只有 ctx 取消才返回 error。
func (e *env) scanMetadata(ctx context.Context, rec *domain.Record, log *slog.Logger) ([]domain.ProviderAttempt, error) {
	metas := e.reg.Metadata()

	if rec.NFOPath != "" {
		b, err := os.ReadFile(rec.NFOPath)
		if err != nil {
			log.Warn("读取本地 NFO 失败", slog.String("nfo", rec.NFOPath), logging.Error(err))
		} else if found := provider.ScanNFO(metas, string(b), rec); len(found) > 0 {
			log.Debug("本地 NFO 中发现外部 id", slog.Any("providers", found))
		}
	}

	attempts := make([]domain.ProviderAttempt, 0, len(metas))
	failed := 0
	for _, p := range metas {
		if err := ctx.Err(); err != nil {
			return attempts, err
		}
		a, err := provider.Scan(ctx, p, rec, e.policy, e.eff.ProviderTimeout)
		if err != nil {
			failed++
			a.Error = describeProviderError(a.Provider, err)
			attrs := []any{slog.String(logging.FieldProvider, a.Provider), slog.String(logging.FieldStage, provider.StageScan), logging.Error(err)}
			var pe *provider.PanicError
			if errors.As(err, &pe) {
				attrs = append(attrs, slog.String("stack", pe.Stack))
			}
			log.Warn("provider 调用失败", attrs...)
		} else {
			log.Debug("provider 完成", slog.String(logging.FieldProvider, a.Provider), slog.Bool("found", a.Found), slog.Any("fields", a.Contributed))
		}
		attempts = append(attempts, a)
	}
	if len(metas) > 0 && failed == len(metas) {
		log.Warn("全部 metadata provider 均失败，字段保持 UNKNOWN", slog.Int("providers", failed))
	}
	return attempts, nil
}

// resolveArtwork 只为还没有图片地址的类型查询 provider；找不到时交给占位图。
func (e *env) resolveArtwork(ctx context.Context, rec *domain.Record, log *slog.Logger) []domain.ProviderAttempt {
	var out []domain.ProviderAttempt
	for _, kind := range []domain.ArtKind{domain.ArtPoster, domain.ArtFanart} {
		if img, ok := rec.Artwork[kind]; ok && provider.IsHTTPURL(img.URL) {
			continue
		}
		img, ok, attempts := provider.ResolveArtwork(ctx, e.reg.Artwork(kind), rec, kind, e.eff.ProviderTimeout)
		for _, a := range attempts {
			if a.Error != "" {
				log.Warn("图片解析失败", slog.String(logging.FieldProvider, a.Provider), slog.String(logging.FieldStage, a.Stage), slog.String(logging.FieldError, a.Error))
			}
		}
		out = append(out, attempts...)
		if ok {
			rec.Artwork[kind] = img
			continue
		}
		log.Info("没有可用的图片地址，使用占位图", slog.String("kind", string(kind)))
	}
	return out
}

// persist 写缓存快照（只有重新扫描过的记录才需要），并按需导出 NFO。
func (e *env) persist(ctx context.Context, rec *domain.Record, need domain.SidecarNeed, rescanned bool) error {
	if rescanned {
		if err := e.store.Save(ctx, cache.FromRecord(rec, time.Now())); err != nil {
			return fmt.Errorf("写入缓存失败：%w", err)
		}
	}
	if !e.eff.ExportNFO || (!rescanned && !need.NeedNFO) {
		return nil
	}
	b, err := nfo.Encode(rec)
	if err != nil {
		return fmt.Errorf("生成 NFO 失败：%w", err)
	}
	dir := planner.ItemDir(e.eff.JukeboxDir, rec.Key)
	if err := ensureDir(dir); err != nil {
		return err
	}
	if err := fsx.WriteFileAtomic(dir, planner.NFOName(rec.Key), b); err != nil {
		return fmt.Errorf("写入 NFO 失败：%w", err)
	}
	return nil
}

// reportArtwork 生成 report 中的图片来源；没有地址的类型标记为占位图。
func reportArtwork(rec *domain.Record) map[domain.ArtKind]domain.Image {
	out := make(map[domain.ArtKind]domain.Image, 2)
	for _, kind := range []domain.ArtKind{domain.ArtPoster, domain.ArtFanart} {
		if img, ok := rec.Artwork[kind]; ok && provider.IsHTTPURL(img.URL) {
			out[kind] = img
			continue
		}
		out[kind] = placeholderImage
	}
	return out
}

func ioCode(err error) string {
	if errors.Is(err, context.Canceled) {
		return domain.ErrCodeCanceled
	}
	return domain.ErrCodeIOFailed
}
