package config

import (
	"fmt"
	"net/url"
)

func (c *EffectiveConfig) validate() error {
	if c.Cache != "xml" && c.Cache != "sqlite" {
		return fmt.Errorf("cache 只能是 xml 或 sqlite，实际是 %q", c.Cache)
	}
	if c.ProxyURL != "" {
		if _, err := url.Parse(c.ProxyURL); err != nil {
			return fmt.Errorf("proxy.url 无效：%w", err)
		}
	}
	if c.ImageProxy && c.ProxyURL == "" {
		return fmt.Errorf("proxy.image_proxy=true 但 proxy.url 为空")
	}
	for name, v := range map[string]string{
		"imdb.base_url":       c.IMDbBaseURL,
		"filmweb.base_url":    c.FilmwebBaseURL,
		"tmdb.base_url":       c.TMDb.BaseURL,
		"tmdb.image_base_url": c.TMDb.ImageBaseURL,
	} {
		if err := validateHTTPURL(name, v); err != nil {
			return err
		}
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level 只能是 debug/info/warn/error，实际是 %q", c.Log.Level)
	}
	return nil
}

func validateHTTPURL(name, v string) error {
	u, err := url.Parse(v)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s 无效：%q", name, v)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s 必须是 http/https：%q", name, v)
	}
	return nil
}
