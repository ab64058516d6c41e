package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/John-Robertt/jukebox/internal/override"
)

func (c *EffectiveConfig) normalize(fc FileConfig) error {
	c.normalizeRun(fc)
	if err := c.normalizePaths(fc); err != nil {
		return err
	}
	c.normalizeNetwork(fc)
	c.normalizeProviders(fc)
	if err := c.normalizeOverride(fc); err != nil {
		return err
	}
	c.normalizeLogging(fc)
	return nil
}

func (c *EffectiveConfig) normalizeRun(fc FileConfig) {
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
	// 超出范围截断，而不是报错。
	c.Concurrency = min(max(c.Concurrency, 1), MaxConcurrency)

	c.Cache = strings.ToLower(strings.TrimSpace(fc.Cache))
	if c.Cache == "" {
		c.Cache = DefaultCache
	}
	c.ExportNFO = fc.ExportNFO

	c.ProviderTimeout = DefaultProviderTimeout
	if fc.ProviderTimeoutSeconds > 0 {
		c.ProviderTimeout = time.Duration(fc.ProviderTimeoutSeconds) * time.Second
	}

	// page_cache_days：0 取默认；负数表示不过期。
	switch {
	case fc.PageCacheDays > 0:
		c.PageCacheTTL = time.Duration(fc.PageCacheDays) * 24 * time.Hour
	case fc.PageCacheDays == 0:
		c.PageCacheTTL = DefaultPageCacheTTL
	}
}

func (c *EffectiveConfig) normalizePaths(fc FileConfig) error {
	jb := strings.TrimSpace(fc.JukeboxDir)
	if jb == "" {
		jb = DefaultJukeboxDir
	}
	c.JukeboxDir = absCleanFrom(c.Path, jb)
	c.CacheDir = filepath.Join(c.JukeboxDir, "cache")

	c.Libraries = []Library{{Path: c.Path, Exclude: cleanList(fc.ExcludeDirs)}}
	if lf := strings.TrimSpace(fc.LibrariesFile); lf != "" {
		base := c.Path
		if c.ConfigFile != "" {
			base = filepath.Dir(c.ConfigFile)
		}
		extra, err := ReadLibraries(absCleanFrom(base, lf))
		if err != nil {
			return fmt.Errorf("libraries_file：%w", err)
		}
		seen := map[string]bool{c.Path: true}
		for _, l := range extra {
			if seen[l.Path] {
				continue
			}
			seen[l.Path] = true
			c.Libraries = append(c.Libraries, l)
		}
	}
	return nil
}

func (c *EffectiveConfig) normalizeNetwork(fc FileConfig) {
	c.ProxyURL = strings.TrimSpace(fc.Proxy.URL)
	c.ImageProxy = fc.Proxy.ImageProxy
	c.PerHostRPS = fc.Proxy.PerHostRPS
	if c.PerHostRPS == 0 {
		c.PerHostRPS = defaultPerHostRPS
	}
	if c.PerHostRPS < 0 {
		c.PerHostRPS = 0
	}
}

func (c *EffectiveConfig) normalizeProviders(fc FileConfig) {
	c.Providers = ProvidersConfig{
		Metadata: orDefault(fc.Providers.Metadata, defaultMetadataProviders),
		Poster:   orDefault(fc.Providers.Poster, defaultPosterProviders),
		Fanart:   orDefault(fc.Providers.Fanart, defaultFanartProviders),
	}
	c.SearchEngines = orDefault(fc.Search.Engines, defaultSearchEngines)

	c.IMDbBaseURL = strings.TrimRight(orString(fc.IMDb.BaseURL, defaultIMDbBaseURL), "/")
	c.FilmwebBaseURL = strings.TrimRight(orString(fc.Filmweb.BaseURL, defaultFilmwebBaseURL), "/")

	c.TMDb = TMDbConfig{
		APIKey:       strings.TrimSpace(fc.TMDb.APIKey),
		BaseURL:      strings.TrimRight(orString(fc.TMDb.BaseURL, defaultTMDbBaseURL), "/"),
		ImageBaseURL: strings.TrimRight(orString(fc.TMDb.ImageBaseURL, defaultTMDbImageURL), "/"),
		Language:     orString(fc.TMDb.Language, defaultTMDbLanguage),
	}
	if c.TMDb.APIKey == "" {
		if v, ok := os.LookupEnv(tmdbAPIKeyEnv); ok {
			c.TMDb.APIKey = strings.TrimSpace(v)
		}
	}
}

func (c *EffectiveConfig) normalizeOverride(fc FileConfig) error {
	s := override.DefaultSettings()
	s.SkipNotInList = fc.Priority.SkipNotInList
	s.Movie = fc.Priority.Movie
	s.TV = fc.Priority.TV
	if fc.People.MaxDirector != nil {
		s.MaxDirector = *fc.People.MaxDirector
	}
	if fc.People.MaxWriter != nil {
		s.MaxWriter = *fc.People.MaxWriter
	}
	if fc.People.MaxActor != nil {
		s.MaxActor = *fc.People.MaxActor
	}
	p, err := override.New(s)
	if err != nil {
		return err
	}
	c.Override = s
	c.Policy = p
	return nil
}

func (c *EffectiveConfig) normalizeLogging(fc FileConfig) {
	c.Log.Level = strings.ToLower(strings.TrimSpace(fc.Log.Level))
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
	c.Log.Format = strings.ToLower(strings.TrimSpace(fc.Log.Format))
	switch c.Log.Format {
	case "console", "json":
	default:
		c.Log.Format = defaultLogFormat
	}
	if f := strings.TrimSpace(fc.Log.File); f != "" {
		c.Log.File = absCleanFrom(c.Path, f)
	}
}

func orDefault(v []string, def func() []string) []string {
	v = cleanList(v)
	if len(v) == 0 {
		return def()
	}
	for i := range v {
		v[i] = strings.ToLower(v[i])
	}
	return v
}

func orString(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}

func cleanList(v []string) []string {
	var out []string
	for _, s := range v {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
