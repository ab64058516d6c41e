// Package tmdb 通过 TMDb API 提供 poster（poster_path）与 fanart（backdrop_path）。
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/John-Robertt/jukebox/internal/infra/cache"
	"github.com/John-Robertt/jukebox/internal/logging"
	"github.com/John-Robertt/jukebox/internal/provider"
)

const (
	Name                = "tmdb"
	DefaultBaseURL      = "https://api.themoviedb.org/3"
	DefaultImageBaseURL = "https://image.tmdb.org/t/p/original"
)

// Client 是 poster / fanart 共用的 TMDb 访问层。
//
// id 的形式：
// - "movie/949" / "tv/1973"：ResolveID 产出
// - "949"：来自 NFO 的裸 id，先按电影查，查不到再按剧集查
type Client struct {
	base      string
	imageBase string
	apiKey    string
	language  string
	client    *http.Client
	pages     *cache.Pages
	log       *slog.Logger
}

func NewClient(d provider.Deps) *Client {
	c := d.Client
	if c == nil {
		c = http.DefaultClient
	}
	return &Client{
		base:      orDefault(d.TMDb.BaseURL, DefaultBaseURL),
		imageBase: orDefault(d.TMDb.ImageBaseURL, DefaultImageBaseURL),
		apiKey:    strings.TrimSpace(d.TMDb.APIKey),
		language:  strings.TrimSpace(d.TMDb.Language),
		client:    c,
		pages:     d.Pages,
		log:       logging.Component(d.Logger, "provider.tmdb"),
	}
}

type searchResult struct {
	ID           int    `json:"id"`
	MediaType    string `json:"media_type"`
	Title        string `json:"title"`
	Name         string `json:"name"`
	ReleaseDate  string `json:"release_date"`
	FirstAirDate string `json:"first_air_date"`
}

func (r searchResult) label() string {
	if r.Title != "" {
		return r.Title
	}
	return r.Name
}

func (r searchResult) year() int {
	d := r.ReleaseDate
	if d == "" {
		d = r.FirstAirDate
	}
	if len(d) < 4 {
		return 0
	}
	y, _ := strconv.Atoi(d[:4])
	return y
}

type details struct {
	PosterPath   string `json:"poster_path"`
	BackdropPath string `json:"backdrop_path"`
}

// ResolveID 用 search/multi 查找并挑选最佳匹配；没配置 api key 时视为找不到。
//
// 规则：
// - 只考虑 movie / tv 结果
// - 只有一个结果时直接采用
// - 多个结果按（标题编辑距离 + 年份差）打分，取最小；同分取靠前的
func (c *Client) ResolveID(ctx context.Context, title string, year int) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", nil
	}
	if c.apiKey == "" {
		c.log.Debug("未配置 tmdb.api_key，跳过")
		return "", nil
	}
	q := c.query()
	q.Set("query", title)
	var resp struct {
		Results []searchResult `json:"results"`
	}
	if err := c.getJSON(ctx, "/search/multi", q, &resp, false); err != nil {
		return "", err
	}

	var cands []searchResult
	for _, r := range resp.Results {
		if r.MediaType == "movie" || r.MediaType == "tv" {
			cands = append(cands, r)
		}
	}
	best, ok := pick(cands, title, year)
	if !ok {
		return "", nil
	}
	return best.MediaType + "/" + strconv.Itoa(best.ID), nil
}

func pick(cands []searchResult, title string, year int) (searchResult, bool) {
	if len(cands) == 0 {
		return searchResult{}, false
	}
	if len(cands) == 1 {
		return cands[0], true
	}
	want := strings.ToLower(title)
	bestScore := -1
	var best searchResult
	for _, r := range cands {
		score := matchr.Levenshtein(want, strings.ToLower(r.label()))
		if year > 0 {
			if y := r.year(); y > 0 {
				score += 2 * abs(y-year)
			} else {
				score += 4
			}
		}
		if bestScore < 0 || score < bestScore {
			best, bestScore = r, score
		}
	}
	return best, true
}

// imagePath 读取详情并返回 poster_path 或 backdrop_path。
func (c *Client) imagePath(ctx context.Context, id string, backdrop bool) (string, error) {
	if c.apiKey == "" {
		return "", nil
	}
	paths := []string{id}
	if !strings.Contains(id, "/") {
		paths = []string{"movie/" + id, "tv/" + id}
	}
	var lastErr error
	for _, p := range paths {
		var d details
		err := c.getJSON(ctx, "/"+p, c.query(), &d, true)
		if provider.IsNotFound(err) {
			continue
		}
		if err != nil {
			lastErr = err
			continue
		}
		path := d.PosterPath
		if backdrop {
			path = d.BackdropPath
		}
		if path == "" {
			return "", nil
		}
		return c.imageBase + path, nil
	}
	return "", lastErr
}

func (c *Client) query() url.Values {
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	if c.language != "" {
		q.Set("language", c.language)
	}
	return q
}

// getJSON 请求 API；cached=true 时响应进入页面缓存（键不含 api_key）。
// 错误里的 URL 会去掉 api_key，避免它出现在日志与 report 中。
func (c *Client) getJSON(ctx context.Context, path string, q url.Values, out any, cached bool) error {
	key := c.base + path + "?language=" + q.Get("language")
	if cached {
		if b, ok, err := c.pages.Read(Name, key, "json"); err == nil && ok && json.Unmarshal(b, out) == nil {
			return nil
		}
	}
	b, _, err := provider.Fetch(ctx, c.client, c.base+path+"?"+q.Encode())
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) {
			ue.URL = c.base + path
		}
		var se *provider.HTTPStatusError
		if errors.As(err, &se) {
			se.URL = c.base + path
		}
		return err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode tmdb %s: %w", path, err)
	}
	if cached {
		_ = c.pages.Write(Name, key, "json", b)
	}
	return nil
}

func orDefault(v, def string) string {
	v = strings.TrimRight(strings.TrimSpace(v), "/")
	if v == "" {
		return def
	}
	return v
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Poster / Fanart 是同一个 Client 的两种角色。
type Poster struct{ c *Client }

func NewPoster(d provider.Deps) *Poster { return &Poster{c: NewClient(d)} }

func (p *Poster) Name() string { return Name }

func (p *Poster) ResolveID(ctx context.Context, title string, year int) (string, error) {
	return p.c.ResolveID(ctx, title, year)
}

func (p *Poster) ImageURL(ctx context.Context, id string) (string, error) {
	return p.c.imagePath(ctx, id, false)
}

type Fanart struct{ c *Client }

func NewFanart(d provider.Deps) *Fanart { return &Fanart{c: NewClient(d)} }

func (f *Fanart) Name() string { return Name }

func (f *Fanart) ResolveID(ctx context.Context, title string, year int) (string, error) {
	return f.c.ResolveID(ctx, title, year)
}

func (f *Fanart) ImageURL(ctx context.Context, id string) (string, error) {
	return f.c.imagePath(ctx, id, true)
}
