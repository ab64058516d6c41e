package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/John-Robertt/jukebox/internal/override"
)

const (
	// ErrCodeNotFound 表示没有给 path 且 cwd 下没有 jukebox.toml（或 --config 指向的文件不存在）。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingPath 表示配置文件缺少 path 字段且 CLI 也没给。
	ErrCodeMissingPath = "config_missing_path"
)

// FileName 是配置文件的固定文件名。
const FileName = "jukebox.toml"

//go:embed sample_config.toml
var sampleConfig string

// CLIArgs 只包含 CLI 暴露的入口，并保留“是否显式指定”的信息。
// 这样 --apply=false 才能覆盖 config 中的 apply=true。
type CLIArgs struct {
	Path string

	// ConfigFile 非空时只读这个文件（必须存在）。
	ConfigFile string

	Apply    bool
	ApplySet bool

	Concurrency    int
	ConcurrencySet bool
}

// FileConfig 对应 jukebox.toml 的解析结构。
type FileConfig struct {
	Path                   string   `toml:"path"`
	JukeboxDir             string   `toml:"jukebox_dir"`
	Apply                  *bool    `toml:"apply"`
	Concurrency            int      `toml:"concurrency"`
	Cache                  string   `toml:"cache"`
	ExportNFO              bool     `toml:"export_nfo"`
	LibrariesFile          string   `toml:"libraries_file"`
	ExcludeDirs            []string `toml:"exclude_dirs"`
	ProviderTimeoutSeconds int      `toml:"provider_timeout_seconds"`
	PageCacheDays          int      `toml:"page_cache_days"`

	Proxy     ProxyConfig     `toml:"proxy"`
	Providers ProvidersConfig `toml:"providers"`
	IMDb      SiteConfig      `toml:"imdb"`
	Filmweb   SiteConfig      `toml:"filmweb"`
	TMDb      TMDbConfig      `toml:"tmdb"`
	Search    SearchConfig    `toml:"search"`
	Priority  PriorityConfig  `toml:"priority"`
	People    PeopleConfig    `toml:"people"`
	Log       LogConfig       `toml:"log"`
}

type ProxyConfig struct {
	URL        string  `toml:"url"`
	ImageProxy bool    `toml:"image_proxy"`
	PerHostRPS float64 `toml:"per_host_rps"`
}

type ProvidersConfig struct {
	Metadata []string `toml:"metadata"`
	Poster   []string `toml:"poster"`
	Fanart   []string `toml:"fanart"`
}

type SiteConfig struct {
	BaseURL string `toml:"base_url"`
}

type TMDbConfig struct {
	APIKey       string `toml:"api_key"`
	BaseURL      string `toml:"base_url"`
	ImageBaseURL string `toml:"image_base_url"`
	Language     string `toml:"language"`
}

type SearchConfig struct {
	Engines []string `toml:"engines"`
}

// PriorityConfig：[priority.movie] / [priority.tv] 下是 field -> "src1,src2"。
// people.* 字段名带点，TOML 里需要加引号："people.actors" = "imdb,nfo"。
type PriorityConfig struct {
	SkipNotInList bool              `toml:"skip_not_in_list"`
	Movie         map[string]string `toml:"movie"`
	TV            map[string]string `toml:"tv"`
}

// PeopleConfig 用指针区分“未配置”与“显式配置为 0（关闭）”。
type PeopleConfig struct {
	MaxDirector *int `toml:"max_director"`
	MaxWriter   *int `toml:"max_writer"`
	MaxActor    *int `toml:"max_actor"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// Library 是一个扫描根。
type Library struct {
	Path    string
	Exclude []string
}

// EffectiveConfig 是合并并规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	Path       string
	ConfigFile string // 实际读到的配置文件；没有读到为空

	JukeboxDir string
	CacheDir   string
	Apply      bool

	Concurrency     int
	Cache           string
	ExportNFO       bool
	Libraries       []Library // 第一个总是 Path 本身
	ProviderTimeout time.Duration
	PageCacheTTL    time.Duration // 0 表示页面缓存不过期

	ProxyURL   string
	ImageProxy bool
	PerHostRPS float64

	Providers      ProvidersConfig
	IMDbBaseURL    string
	FilmwebBaseURL string
	TMDb           TMDbConfig
	SearchEngines  []string

	Override override.Settings
	Policy   *override.Policy

	Log LogConfig
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingPath:
		return fmt.Sprintf("%s：配置文件 %q 缺少必填字段 path", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Invalid 供上层把启动阶段的校验失败（例如未知 provider id）包装成 config_invalid。
func Invalid(path string, err error) error {
	return &Error{Code: ErrCodeInvalid, Path: path, Err: err}
}

// LoadEffective 找到配置文件并与 CLI 参数合并。
//
// 配置文件的位置：
//   - --config：就是它，必须存在
//   - 给了库根 path：<path>/jukebox.toml，可以没有
//   - 都没给：<cwd>/jukebox.toml，必须存在且写了 path
//
// path、apply、concurrency 以 CLI 为准（apply/concurrency 以 Changed 判断是否给出），其余只看配置文件。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	src := locate(cwdAbs, cli)
	fc, exists, err := readFileConfig(src.file)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: src.file, Err: err}
	}
	if !exists {
		if src.required {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: src.file, Err: os.ErrNotExist}
		}
		src.file = ""
	}

	root := src.root
	if root == "" {
		// 库根来自配置文件：相对路径以配置文件所在目录为基准。
		if strings.TrimSpace(fc.Path) == "" {
			return EffectiveConfig{}, &Error{Code: ErrCodeMissingPath, Path: src.file}
		}
		root = absCleanFrom(filepath.Dir(src.file), fc.Path)
	}
	return merge(root, cli, fc, src.file)
}

// source 是 locate 的结果：去哪读配置、是否必须存在、CLI 是否已给出库根。
type source struct {
	file     string
	required bool
	root     string // 空表示从配置文件的 path 取
}

func locate(cwdAbs string, cli CLIArgs) source {
	root := absCleanFrom(cwdAbs, cli.Path)
	switch {
	case strings.TrimSpace(cli.ConfigFile) != "":
		return source{file: absCleanFrom(cwdAbs, cli.ConfigFile), required: true, root: root}
	case root != "":
		return source{file: filepath.Join(root, FileName), root: root}
	default:
		return source{file: filepath.Join(cwdAbs, FileName), required: true}
	}
}

func merge(absPath string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	cfg := EffectiveConfig{Path: absPath, ConfigFile: cfgPath}

	if cli.ApplySet {
		cfg.Apply = cli.Apply
	} else if fc.Apply != nil {
		cfg.Apply = *fc.Apply
	}

	cfg.Concurrency = fc.Concurrency
	if cli.ConcurrencySet {
		cfg.Concurrency = cli.Concurrency
	}

	if err := cfg.normalize(fc); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if err := cfg.validate(); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	return cfg, nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 TOML 配置文件；未知键视为错误（拼错的键不应被静默忽略）。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	dec := toml.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}

// CreateSample 在 path 写出带注释的示例配置；文件已存在时拒绝覆盖。
func CreateSample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("配置文件已存在：%q", path)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
