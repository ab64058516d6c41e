package run

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/John-Robertt/jukebox/internal/config"
	"github.com/John-Robertt/jukebox/internal/infra/cache"
	"github.com/John-Robertt/jukebox/internal/infra/fsx"
	"github.com/John-Robertt/jukebox/internal/infra/httpx"
	"github.com/John-Robertt/jukebox/internal/override"
	"github.com/John-Robertt/jukebox/internal/provider"
	"github.com/John-Robertt/jukebox/internal/provider/search"
)

// LockName 是 apply 模式下 jukebox 目录里的运行锁文件。
const LockName = ".jukebox.lock"

var errLocked = errors.New("另一个 jukebox 进程正在写入同一个 jukebox 目录")

// env 是一次运行内所有 worker 共享的只读依赖。
type env struct {
	eff    config.EffectiveConfig
	policy *override.Policy
	reg    *provider.Registry
	store  cache.Store
	images *http.Client // 只有 apply 才会下载图片
	log    *slog.Logger
}

// withDefaults 补齐直接构造 EffectiveConfig（库调用 / 测试）时缺省的字段。
// 经 config.LoadEffective 得到的配置已经规范化，这里不会改变它。
func withDefaults(eff config.EffectiveConfig) config.EffectiveConfig {
	if eff.JukeboxDir == "" {
		eff.JukeboxDir = filepath.Join(eff.Path, config.DefaultJukeboxDir)
	}
	if eff.CacheDir == "" {
		eff.CacheDir = filepath.Join(eff.JukeboxDir, "cache")
	}
	if len(eff.Libraries) == 0 {
		eff.Libraries = []config.Library{{Path: eff.Path}}
	}
	eff.Concurrency = max(1, min(eff.Concurrency, config.MaxConcurrency))
	if eff.ProviderTimeout <= 0 {
		eff.ProviderTimeout = config.DefaultProviderTimeout
	}
	return eff
}

// newEnv 构造 HTTP client、provider 注册表与缓存。
//
// 规则：
// - 代理 / provider 选择 / 搜索引擎等配置问题：返回 *config.Error（config_invalid）
// - 缓存打不开：返回普通 error（上层归类为 io_failed）
func newEnv(eff config.EffectiveConfig, table provider.Table, log *slog.Logger) (*env, error) {
	e := &env{eff: eff, policy: eff.Policy, log: log}
	if e.policy == nil {
		e.policy = override.MustDefault()
	}

	opt := httpx.Options{ProxyURL: eff.ProxyURL, PerHostRPS: eff.PerHostRPS}
	metaClient, err := httpx.NewMetaClient(opt)
	if err != nil {
		return nil, config.Invalid(eff.ConfigFile, fmt.Errorf("proxy.url 无效：%w", err))
	}
	if eff.Apply {
		e.images, err = httpx.NewImageClient(opt, eff.ImageProxy)
		if err != nil {
			return nil, config.Invalid(eff.ConfigFile, err)
		}
	}

	engines, err := search.FromNames(metaClient, eff.SearchEngines)
	if err != nil {
		return nil, config.Invalid(eff.ConfigFile, err)
	}

	deps := provider.Deps{
		Client:         metaClient,
		Pages:          cache.NewPages(eff.CacheDir, !eff.Apply).WithMaxAge(eff.PageCacheTTL),
		Search:         engines,
		Logger:         log,
		IMDbBaseURL:    eff.IMDbBaseURL,
		FilmwebBaseURL: eff.FilmwebBaseURL,
		TMDb: provider.TMDbOptions{
			APIKey:       eff.TMDb.APIKey,
			BaseURL:      eff.TMDb.BaseURL,
			ImageBaseURL: eff.TMDb.ImageBaseURL,
			Language:     eff.TMDb.Language,
		},
	}
	e.reg, err = provider.Build(table, provider.Selection{
		Metadata: eff.Providers.Metadata,
		Poster:   eff.Providers.Poster,
		Fanart:   eff.Providers.Fanart,
	}, deps)
	if err != nil {
		return nil, config.Invalid(eff.ConfigFile, err)
	}

	// 引用了未注册来源的优先级条目不致命：排名时与 unranked 等价。
	for _, s := range e.policy.UnknownSources(e.reg.Sources()) {
		log.Warn("优先级列表引用了未注册的来源", slog.String("entry", s))
	}

	e.store, err = cache.Open(eff.Cache, eff.CacheDir, !eff.Apply)
	if err != nil {
		return nil, fmt.Errorf("打开缓存失败：%w", err)
	}
	return e, nil
}

func (e *env) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

// acquireLock 对 <jukebox>/.jukebox.lock 加非阻塞排他锁。
// 已被占用时返回 errLocked；返回的 unlock 总是可以安全调用。
func acquireLock(jukeboxDir string) (unlock func(), err error) {
	if err := ensureDir(jukeboxDir); err != nil {
		return func() {}, err
	}
	fl := flock.New(filepath.Join(jukeboxDir, LockName))
	ok, err := fl.TryLock()
	if err != nil {
		return func() {}, fmt.Errorf("获取运行锁失败：%w", err)
	}
	if !ok {
		return func() {}, errLocked
	}
	return func() { _ = fl.Unlock() }, nil
}

// ensureDir 确保 dir 是目录；同名文件占位时返回 *fsx.PathTypeConflictError。
func ensureDir(dir string) error {
	fi, err := os.Stat(dir)
	if err == nil {
		if fi.IsDir() {
			return nil
		}
		return &fsx.PathTypeConflictError{Path: dir, Want: "dir", Got: "file"}
	}
	if !os.IsNotExist(err) {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}
