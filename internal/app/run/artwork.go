package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/John-Robertt/jukebox/internal/app/planner"
	"github.com/John-Robertt/jukebox/internal/domain"
	"github.com/John-Robertt/jukebox/internal/infra/fsx"
	"github.com/John-Robertt/jukebox/internal/infra/imgx"
	"github.com/John-Robertt/jukebox/internal/logging"
	"github.com/John-Robertt/jukebox/internal/provider"
)

// PlaceholderSource 是占位图在 report 中的来源名。
const PlaceholderSource = "placeholder"

var placeholderImage = domain.Image{Source: PlaceholderSource}

var errNoImageURL = errors.New("没有图片地址")

// writeArtwork 把缺失的 fanart / poster 写进 <jukebox>/<key>/（apply 才会调用）。
//
// 规则：
// - 已存在的图片不覆盖（用户手工放置的图片优先）
// - fanart 先于 poster：poster 下载失败时从 fanart 居中裁切 2:3
// - 仍然失败则写占位图；返回值是实际写入的图片来源（供 report 使用）
func (e *env) writeArtwork(ctx context.Context, rec *domain.Record, need domain.SidecarNeed, log *slog.Logger) (map[domain.ArtKind]domain.Image, error) {
	used := map[domain.ArtKind]domain.Image{}
	if !need.NeedFanart && !need.NeedPoster {
		return used, nil
	}
	dir := planner.ItemDir(e.eff.JukeboxDir, rec.Key)
	if err := ensureDir(dir); err != nil {
		return nil, err
	}

	var fanart []byte
	if need.NeedFanart {
		img := rec.Artwork[domain.ArtFanart]
		b, err := e.download(ctx, img)
		if err != nil {
			if !errors.Is(err, errNoImageURL) {
				log.Warn("下载 fanart 失败，使用占位图", slog.String("url", img.URL), logging.Error(err))
			}
			b, img = imgx.Placeholder(false), placeholderImage
		} else {
			fanart = b
		}
		if err := writeOnce(dir, planner.FanartName, b); err != nil {
			return nil, err
		}
		used[domain.ArtFanart] = img
	} else if b, err := os.ReadFile(filepath.Join(dir, planner.FanartName)); err == nil {
		fanart = b
	}

	if need.NeedPoster {
		img := rec.Artwork[domain.ArtPoster]
		b, err := e.download(ctx, img)
		if err != nil {
			if !errors.Is(err, errNoImageURL) {
				log.Warn("下载 poster 失败，尝试从 fanart 裁切", slog.String("url", img.URL), logging.Error(err))
			}
			b, img = posterFallback(fanart, rec.Artwork[domain.ArtFanart], log)
		}
		if err := writeOnce(dir, planner.PosterName, b); err != nil {
			return nil, err
		}
		used[domain.ArtPoster] = img
	}
	return used, nil
}

// download 拉取图片并校验；非 JPEG 统一转成 JPEG（jukebox 里固定是 .jpg）。
func (e *env) download(ctx context.Context, img domain.Image) ([]byte, error) {
	if !provider.IsHTTPURL(img.URL) {
		return nil, errNoImageURL
	}
	if e.images == nil {
		return nil, errors.New("image client 为空")
	}
	b, _, err := provider.Fetch(ctx, e.images, img.URL)
	if err != nil {
		return nil, err
	}
	if _, err := imgx.Validate(b); err != nil {
		return nil, err
	}
	return imgx.ToJPEG(b)
}

func posterFallback(fanart []byte, fanartImg domain.Image, log *slog.Logger) ([]byte, domain.Image) {
	if len(fanart) > 0 {
		b, err := imgx.PosterFromFanartJPEG(fanart)
		if err == nil {
			if fanartImg.Source == "" {
				// 裁切自 jukebox 里已有的 fanart.jpg
				fanartImg = domain.Image{Source: "local"}
			}
			return b, fanartImg
		}
		log.Warn("从 fanart 裁切 poster 失败，使用占位图", logging.Error(err))
	}
	return imgx.Placeholder(true), placeholderImage
}

// writeOnce 原子写入且不覆盖；目标已存在视为满足。
func writeOnce(dir, name string, b []byte) error {
	err := fsx.WriteFileAtomicNoOverwrite(dir, name, b)
	switch {
	case err == nil, errors.Is(err, os.ErrExist):
		return nil
	case fsx.IsPathTypeConflict(err):
		return err
	default:
		return fmt.Errorf("写入 %s 失败：%w", name, err)
	}
}
