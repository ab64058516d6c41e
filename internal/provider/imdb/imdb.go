// Package imdb 从 IMDb 详情页（JSON-LD + 少量 data-testid 区块）抽取元数据，同时提供 poster。
package imdb

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/jukebox/internal/domain"
	"github.com/John-Robertt/jukebox/internal/infra/cache"
	"github.com/John-Robertt/jukebox/internal/logging"
	"github.com/John-Robertt/jukebox/internal/override"
	"github.com/John-Robertt/jukebox/internal/provider"
)

const (
	Name           = "imdb"
	DefaultBaseURL = "https://www.imdb.com"
)

// scanFields 是 imdb 可能写入的全部字段；一个都写不了时不访问网络。
var scanFields = []domain.Field{
	domain.FieldTitle, domain.FieldOriginalTitle, domain.FieldPlot, domain.FieldOutline,
	domain.FieldYear, domain.FieldReleaseDate, domain.FieldRuntime, domain.FieldCertification,
	domain.FieldTagline, domain.FieldAspectRatio, domain.FieldCountry, domain.FieldCompany,
	domain.FieldLanguage, domain.FieldGenres, domain.FieldActors, domain.FieldDirectors,
	domain.FieldWriters, domain.FieldPeopleActors, domain.FieldPeopleDirectors, domain.FieldPeopleWriters,
}

// Provider 实现 IMDb 的页面定位与解析。
//
// 约束：
// - 没有 id 时先走 /find，失败再走 SearchEngine
// - 详情页经由页面缓存读取（dry-run 只读）
// - 可被多个 worker 并发使用
type Provider struct {
	base   string
	client *http.Client
	pages  *cache.Pages
	search provider.SearchEngine
	log    *slog.Logger
}

func New(d provider.Deps) *Provider {
	base := strings.TrimRight(strings.TrimSpace(d.IMDbBaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	c := d.Client
	if c == nil {
		c = http.DefaultClient
	}
	return &Provider{base: base, client: c, pages: d.Pages, search: d.Search, log: logging.Component(d.Logger, "provider.imdb")}
}

func (p *Provider) Name() string { return Name }

func (p *Provider) Scan(ctx context.Context, rec *domain.Record, w *override.Writer) (bool, error) {
	if !w.CheckOneOverwrite(Name, scanFields...) {
		p.log.Debug("所有字段都有更高优先级的来源，跳过", slog.String(logging.FieldRecord, rec.Key))
		return false, nil
	}
	id := rec.ID(Name)
	if id == "" {
		var err error
		id, err = p.ResolveID(ctx, rec.Title(), rec.Year())
		if err != nil || id == "" {
			return false, err
		}
		w.SetID(Name, id)
	}

	t, err := p.Title(ctx, id)
	if provider.IsNotFound(err) {
		p.log.Debug("imdb id 已失效", slog.String(logging.FieldRecord, rec.Key), slog.String("id", id))
		return false, nil
	}
	if err != nil {
		return false, err
	}
	apply(t, w, Name)
	return true, nil
}

// apply 以 source 的名义写入 t 的全部字段。
func apply(t Title, w *override.Writer, source string) {
	w.TrySet(domain.FieldTitle, t.Name, source)
	w.TrySet(domain.FieldOriginalTitle, t.OriginalTitle, source)
	w.TrySet(domain.FieldPlot, t.Plot, source)
	w.TrySet(domain.FieldOutline, t.Outline, source)
	w.TrySet(domain.FieldYear, t.Year, source)
	w.TrySet(domain.FieldReleaseDate, t.ReleaseDate, source)
	w.TrySet(domain.FieldRuntime, t.Runtime, source)
	w.TrySet(domain.FieldCertification, t.Certification, source)
	w.TrySet(domain.FieldTagline, t.Tagline, source)
	w.TrySet(domain.FieldAspectRatio, t.AspectRatio, source)
	w.TrySet(domain.FieldCountry, strings.Join(t.Countries, " / "), source)
	if len(t.Companies) > 0 {
		w.TrySet(domain.FieldCompany, t.Companies[0], source)
	}
	w.TrySet(domain.FieldLanguage, strings.Join(t.Languages, " / "), source)

	w.TrySetList(domain.FieldGenres, t.Genres, source)
	w.TrySetList(domain.FieldActors, names(t.Actors), source)
	w.TrySetList(domain.FieldDirectors, names(t.Directors), source)
	w.TrySetList(domain.FieldWriters, names(t.Writers), source)
	w.TrySetPeople(domain.FieldPeopleActors, t.Actors, source)
	w.TrySetPeople(domain.FieldPeopleDirectors, t.Directors, source)
	w.TrySetPeople(domain.FieldPeopleWriters, t.Writers, source)
}

// ScanNFO 在 NFO 文本（可能只是一个链接）里找 tt id。
func (p *Provider) ScanNFO(nfo string, rec *domain.Record) bool {
	id := idRE.FindString(nfo)
	if id == "" {
		return false
	}
	rec.SetID(Name, id)
	return true
}

// ResolveID 按 title/year 定位 tt id；找不到返回 ("", nil)。
func (p *Provider) ResolveID(ctx context.Context, title string, year int) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", nil
	}
	id, findErr := p.find(ctx, title, year)
	if id != "" {
		return id, nil
	}
	if p.search == nil {
		return "", findErr
	}

	q := title
	if year > 0 {
		q += " " + strconv.Itoa(year)
	}
	u, err := p.search.Find(ctx, q, "imdb.com/title")
	if err != nil {
		if findErr != nil {
			return "", fmt.Errorf("find: %v; search: %w", findErr, err)
		}
		return "", err
	}
	return idRE.FindString(u), nil
}

// find 读取 /find 结果页：有年份时优先选择文本里带该年份的结果，否则取第一个。
func (p *Provider) find(ctx context.Context, title string, year int) (string, error) {
	q := url.Values{}
	q.Set("q", title)
	q.Set("s", "tt")
	b, h, err := provider.Fetch(ctx, p.client, p.base+"/find/?"+q.Encode())
	if err != nil {
		return "", err
	}
	doc, err := provider.ParseHTML(b, h.Get("Content-Type"))
	if err != nil {
		return "", err
	}

	var first, best string
	want := strconv.Itoa(year)
	doc.Find(`a[href*="/title/tt"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		id := idRE.FindString(href)
		if id == "" {
			return true
		}
		if first == "" {
			first = id
		}
		if year > 0 && strings.Contains(s.Closest("li").Text(), want) {
			best = id
			return false
		}
		return true
	})
	if best != "" {
		return best, nil
	}
	return first, nil
}

// Title 读取并解析详情页。
func (p *Provider) Title(ctx context.Context, id string) (Title, error) {
	if idRE.FindString(id) != id {
		return Title{}, fmt.Errorf("非法 imdb id：%q", id)
	}
	pageURL := p.base + "/title/" + id + "/"
	b, err := provider.FetchCached(ctx, p.client, p.pages, Name, pageURL, checkPage)
	if err != nil {
		return Title{}, err
	}
	return Parse(id, b, p.base)
}

// Poster 让 imdb 同时作为 poster 来源：图片取 JSON-LD 的 image。
type Poster struct {
	p *Provider
}

func NewPoster(d provider.Deps) *Poster { return &Poster{p: New(d)} }

func (a *Poster) Name() string { return Name }

func (a *Poster) ResolveID(ctx context.Context, title string, year int) (string, error) {
	return a.p.ResolveID(ctx, title, year)
}

func (a *Poster) ImageURL(ctx context.Context, id string) (string, error) {
	t, err := a.p.Title(ctx, id)
	if err != nil {
		return "", err
	}
	return t.Image, nil
}
