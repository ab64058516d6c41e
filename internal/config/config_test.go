package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/John-Robertt/jukebox/internal/domain"
)

func TestLoadEffective_ConfigNotFound(t *testing.T) {
	cwd := t.TempDir()

	_, err := LoadEffective(cwd, CLIArgs{})
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeNotFound, err, Code(err))
	}

	_, err = LoadEffective(cwd, CLIArgs{ConfigFile: "nope.toml"})
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("--config 指向不存在的文件应为 %q，实际 %v", ErrCodeNotFound, err)
	}
}

func TestLoadEffective_ConfigMissingPath(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte("concurrency = 2\n"))

	_, err := LoadEffective(cwd, CLIArgs{})
	if Code(err) != ErrCodeMissingPath {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeMissingPath, err, Code(err))
	}
}

func TestLoadEffective_Defaults(t *testing.T) {
	cwd := t.TempDir()
	eff, err := LoadEffective(cwd, CLIArgs{Path: "lib"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.ConfigFile != "" {
		t.Fatalf("配置文件不存在时 ConfigFile 应为空：%q", eff.ConfigFile)
	}
	lib := filepath.Join(cwd, "lib")
	if eff.Path != lib || eff.JukeboxDir != filepath.Join(lib, DefaultJukeboxDir) || eff.CacheDir != filepath.Join(lib, DefaultJukeboxDir, "cache") {
		t.Fatalf("路径默认值不正确：%+v", eff)
	}
	if eff.Apply || eff.Concurrency != DefaultConcurrency || eff.Cache != "xml" || eff.ProviderTimeout != DefaultProviderTimeout || eff.PageCacheTTL != DefaultPageCacheTTL {
		t.Fatalf("运行默认值不正确：%+v", eff)
	}
	if len(eff.Providers.Metadata) != 3 || eff.Providers.Metadata[0] != "nfo" || eff.Providers.Fanart[0] != "tmdb" {
		t.Fatalf("provider 默认值不正确：%+v", eff.Providers)
	}
	if eff.Override.MaxActor != 10 || eff.Override.MaxDirector != 2 || eff.Override.MaxWriter != 3 {
		t.Fatalf("max-count 默认值不正确：%+v", eff.Override)
	}
	if eff.Policy == nil || eff.Log.Level != "info" || eff.Log.Format != "console" {
		t.Fatalf("policy/log 默认值不正确：%+v", eff)
	}
	if len(eff.Libraries) != 1 || eff.Libraries[0].Path != lib {
		t.Fatalf("libraries 默认值不正确：%+v", eff.Libraries)
	}
}

func TestLoadEffective_ApplyAndConcurrencyCLIOverride(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte("path = \"videos\"\napply = true\nconcurrency = 8\n"))

	eff, err := LoadEffective(cwd, CLIArgs{ApplySet: true, Apply: false})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Apply {
		t.Fatalf("期望 --apply=false 覆盖配置")
	}
	if eff.Concurrency != 8 {
		t.Fatalf("期望 concurrency=8，实际 %d", eff.Concurrency)
	}
	if eff.Path != filepath.Join(cwd, "videos") {
		t.Fatalf("path 不正确：%q", eff.Path)
	}

	eff, err = LoadEffective(cwd, CLIArgs{ConcurrencySet: true, Concurrency: 100})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Concurrency != MaxConcurrency || !eff.Apply {
		t.Fatalf("期望 concurrency 截断到 %d 且 apply 来自配置：%d %v", MaxConcurrency, eff.Concurrency, eff.Apply)
	}
}

func TestLoadEffective_PriorityAndPeople(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`
path = "."
provider_timeout_seconds = 5
page_cache_days = -1

[priority]
skip_not_in_list = true

[priority.movie]
plot = "imdb, NFO"
"people.actors" = "nfo"

[people]
max_actor = 0
`))
	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.ProviderTimeout != 5*time.Second {
		t.Fatalf("provider 超时不正确：%v", eff.ProviderTimeout)
	}
	if eff.PageCacheTTL != 0 {
		t.Fatalf("page_cache_days<0 应表示不过期：%v", eff.PageCacheTTL)
	}
	if !eff.Policy.SkipNotInList() || eff.Policy.MaxCount(domain.RoleActor) != 0 || eff.Policy.MaxCount(domain.RoleDirector) != 2 {
		t.Fatalf("policy 设置不正确")
	}
	got := eff.Policy.Priorities(domain.KindMovie, domain.FieldPlot)
	if len(got) != 2 || got[0] != "imdb" || got[1] != "nfo" {
		t.Fatalf("plot 优先级不正确：%v", got)
	}
	if p := eff.Policy.Priorities(domain.KindMovie, domain.FieldPeopleActors); len(p) != 1 || p[0] != "nfo" {
		t.Fatalf("people.actors 优先级不正确：%v", p)
	}
}

func TestLoadEffective_UnknownPriorityField(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte("path = \".\"\n[priority.tv]\nrating = \"imdb\"\n"))
	_, err := LoadEffective(cwd, CLIArgs{})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("未知字段应为 %q，实际 %v", ErrCodeInvalid, err)
	}
}

func TestLoadEffective_UnknownKeyIsInvalid(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte("path = \".\"\nconcurrancy = 3\n"))
	_, err := LoadEffective(cwd, CLIArgs{})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("拼错的键应为 %q，实际 %v", ErrCodeInvalid, err)
	}
}

func TestLoadEffective_CLIPath_InvalidConfig(t *testing.T) {
	cwd := t.TempDir()
	lib := filepath.Join(cwd, "lib")
	writeFile(t, filepath.Join(lib, FileName), []byte("path = ["))

	_, err := LoadEffective(cwd, CLIArgs{Path: lib})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %q，实际 err=%v", ErrCodeInvalid, err)
	}
}

func TestLoadEffective_ImageProxyRequiresProxyURL(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte("path = \".\"\n[proxy]\nimage_proxy = true\n"))
	_, err := LoadEffective(cwd, CLIArgs{})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %q，实际 err=%v", ErrCodeInvalid, err)
	}
}

func TestLoadEffective_InvalidCacheAndURL(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte("path = \".\"\ncache = \"bolt\"\n"))
	if _, err := LoadEffective(cwd, CLIArgs{}); Code(err) != ErrCodeInvalid {
		t.Fatalf("未知 cache 后端应为 %q，实际 %v", ErrCodeInvalid, err)
	}

	writeFile(t, filepath.Join(cwd, FileName), []byte("path = \".\"\n[imdb]\nbase_url = \"ftp://imdb\"\n"))
	if _, err := LoadEffective(cwd, CLIArgs{}); Code(err) != ErrCodeInvalid {
		t.Fatalf("非 http(s) base_url 应为 %q，实际 %v", ErrCodeInvalid, err)
	}
}

func TestLoadEffective_TMDbKeyFromEnv(t *testing.T) {
	t.Setenv(tmdbAPIKeyEnv, "secret")
	eff, err := LoadEffective(t.TempDir(), CLIArgs{Path: "."})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.TMDb.APIKey != "secret" {
		t.Fatalf("期望从环境变量读取 api key，实际 %q", eff.TMDb.APIKey)
	}
}

func TestLoadEffective_LibrariesFile(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "libs.yaml"), []byte(`
libraries:
  - path: tv
    exclude: [extras]
  - path: .
`))
	writeFile(t, filepath.Join(cwd, FileName), []byte("path = \".\"\nlibraries_file = \"libs.yaml\"\n"))

	eff, err := LoadEffective(cwd, CLIArgs{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(eff.Libraries) != 2 {
		t.Fatalf("期望 2 个扫描根（重复的 path 被去重），实际 %+v", eff.Libraries)
	}
	if eff.Libraries[1].Path != filepath.Join(cwd, "tv") || eff.Libraries[1].Exclude[0] != "extras" {
		t.Fatalf("额外扫描根不正确：%+v", eff.Libraries[1])
	}
}

func TestLoadEffective_ExplicitConfigFile(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "conf", "my.toml"), []byte("path = \"../media\"\n"))
	eff, err := LoadEffective(cwd, CLIArgs{ConfigFile: "conf/my.toml"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Path != filepath.Join(cwd, "media") {
		t.Fatalf("path 应相对配置文件目录解析，实际 %q", eff.Path)
	}
}

func TestSampleConfigParses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	if err := CreateSample(path); err != nil {
		t.Fatalf("写示例配置失败：%v", err)
	}
	if err := CreateSample(path); err == nil {
		t.Fatalf("已存在时应拒绝覆盖")
	}
	if _, err := LoadEffective(dir, CLIArgs{}); err != nil {
		t.Fatalf("示例配置应能直接加载：%v", err)
	}
}

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("写文件失败：%v", err)
	}
}
