// Package provider 定义元数据/图片来源的统一接口、注册表，以及调用边界（超时、panic 恢复、尝试轨迹）。
package provider

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/John-Robertt/jukebox/internal/domain"
	"github.com/John-Robertt/jukebox/internal/infra/cache"
	"github.com/John-Robertt/jukebox/internal/override"
)

// MetadataProvider 把“站点变化”限制在 provider 包内部；核心流程只依赖这个接口。
//
// 约束：
// - Scan 的所有字段写入必须经由 w（覆盖策略在 w 内部执行）
// - 没找到条目返回 (false, nil)；error 只用于意外失败（网络、解析）
// - 实现必须可以被多个 worker 并发调用（不持有单条记录的状态）
type MetadataProvider interface {
	Name() string
	Scan(ctx context.Context, rec *domain.Record, w *override.Writer) (bool, error)
	// ScanNFO 从本地 NFO 文本中发现本来源的外部 id（写入 rec.IDs）；发现返回 true。
	ScanNFO(nfo string, rec *domain.Record) bool
}

// ArtworkProvider 提供 poster 或 fanart 的图片地址。
//
// 约束：
// - ResolveID 找不到返回 ("", nil)
// - ImageURL 找不到返回 ("", nil)；返回值必须是 http(s) 绝对 URL 才会被采用
type ArtworkProvider interface {
	Name() string
	ResolveID(ctx context.Context, title string, year int) (string, error)
	ImageURL(ctx context.Context, id string) (string, error)
}

// SearchEngine 用通用搜索引擎定位某个站点上的页面（site 例如 "imdb.com/title"）。
// 没找到返回 ("", nil)。
type SearchEngine interface {
	Find(ctx context.Context, query, site string) (string, error)
}

// Deps 是构造 provider 时注入的共享依赖；零值字段由各 provider 使用自己的默认值。
type Deps struct {
	Client *http.Client
	Pages  *cache.Pages
	Search SearchEngine
	Logger *slog.Logger

	IMDbBaseURL    string
	FilmwebBaseURL string
	TMDb           TMDbOptions
}

type TMDbOptions struct {
	APIKey       string
	BaseURL      string
	ImageBaseURL string
	Language     string
}
