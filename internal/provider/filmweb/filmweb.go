// Package filmweb 从 filmweb.pl 抽取元数据；页面找不到时把整次扫描委托给 fallback（通常是 imdb）。
package filmweb

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"regexp"
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
	Name           = "filmweb"
	DefaultBaseURL = "https://www.filmweb.pl"
)

var (
	pageRE     = regexp.MustCompile(`https?://(?:www\.)?filmweb\.pl/(?:film|serial)/[^\s"'<>]+`)
	imdbRE     = regexp.MustCompile(`tt\d{7,8}`)
	durationRE = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?`)
)

// Provider 组合一个 fallback：自己写完能写的字段后，再让 fallback 以它自己的来源名补齐。
// 谁最终生效由覆盖策略决定。
type Provider struct {
	base     string
	client   *http.Client
	pages    *cache.Pages
	search   provider.SearchEngine
	fallback provider.MetadataProvider
	log      *slog.Logger
}

func New(d provider.Deps, fallback provider.MetadataProvider) *Provider {
	base := strings.TrimRight(strings.TrimSpace(d.FilmwebBaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	c := d.Client
	if c == nil {
		c = http.DefaultClient
	}
	return &Provider{
		base:     base,
		client:   c,
		pages:    d.Pages,
		search:   d.Search,
		fallback: fallback,
		log:      logging.Component(d.Logger, "provider.filmweb"),
	}
}

func (p *Provider) Name() string { return Name }

func (p *Provider) Scan(ctx context.Context, rec *domain.Record, w *override.Writer) (bool, error) {
	pageURL := rec.ID(Name)
	if pageURL == "" {
		var err error
		pageURL, err = p.locate(ctx, rec)
		if err != nil {
			p.log.Warn("定位 filmweb 页面失败，交给 fallback", slog.String(logging.FieldRecord, rec.Key), logging.Error(err))
		}
	}
	if pageURL == "" {
		return p.delegate(ctx, rec, w)
	}

	b, err := provider.FetchCached(ctx, p.client, p.pages, Name, pageURL, nil)
	if provider.IsNotFound(err) {
		return p.delegate(ctx, rec, w)
	}
	if err != nil {
		return false, err
	}
	f, err := Parse(b)
	if err != nil {
		return false, err
	}
	w.SetID(Name, pageURL)
	if f.IMDbID != "" && rec.ID("imdb") == "" {
		w.SetID("imdb", f.IMDbID)
	}
	f.apply(w)

	if p.fallback != nil {
		if _, err := p.fallback.Scan(ctx, rec, w); err != nil {
			p.log.Warn("fallback 补齐失败", slog.String(logging.FieldRecord, rec.Key),
				slog.String(logging.FieldProvider, p.fallback.Name()), logging.Error(err))
		}
	}
	return true, nil
}

func (p *Provider) delegate(ctx context.Context, rec *domain.Record, w *override.Writer) (bool, error) {
	if p.fallback == nil {
		return false, nil
	}
	return p.fallback.Scan(ctx, rec, w)
}

// locate 通过搜索引擎定位页面；剧集搜 /serial，电影搜 /film。
func (p *Provider) locate(ctx context.Context, rec *domain.Record) (string, error) {
	if p.search == nil {
		return "", nil
	}
	q := rec.Title()
	if y := rec.Year(); y > 0 {
		q += " " + strconv.Itoa(y)
	}
	site := "filmweb.pl/film"
	if rec.Kind.IsTV() {
		site = "filmweb.pl/serial"
	}
	return p.search.Find(ctx, q, site)
}

// ScanNFO 识别 NFO 中的 filmweb 链接；同时让 fallback 识别它自己的 id。
func (p *Provider) ScanNFO(nfo string, rec *domain.Record) bool {
	found := false
	if u := pageRE.FindString(nfo); u != "" {
		rec.SetID(Name, u)
		found = true
	}
	if p.fallback != nil && p.fallback.ScanNFO(nfo, rec) {
		found = true
	}
	return found
}

// Film 是 filmweb 页面里使用的子集。
type Film struct {
	Title         string
	OriginalTitle string
	Year          string
	Plot          string
	Runtime       string
	Genres        []string
	Countries     []string
	Directors     []string
	Writers       []string
	Actors        []domain.Person
	IMDbID        string
}

// Parse 读取 schema.org 微数据（itemprop）以及封面区块。b 必须已是 UTF-8。
func Parse(b []byte) (Film, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(b))
	if err != nil {
		return Film{}, err
	}
	f := Film{
		Title:         first(doc, `h1.filmCoverSection__title`, `h1[itemprop="name"]`),
		OriginalTitle: first(doc, `.filmCoverSection__originalTitle`),
		Year:          first(doc, `.filmCoverSection__year`),
		Plot:          first(doc, `[itemprop="description"]`, `.filmPosterSection__plot`),
		Genres:        all(doc, `[itemprop="genre"]`),
		Countries:     all(doc, `.filmInfo__info a[href*="countries="]`),
		Directors:     all(doc, `[itemprop="director"] [itemprop="name"]`),
		Writers:       all(doc, `[itemprop="creator"] [itemprop="name"]`),
		IMDbID:        imdbRE.FindString(string(b)),
	}
	if f.OriginalTitle == "" {
		f.OriginalTitle = f.Title
	}
	if d, ok := doc.Find(`[itemprop="timeRequired"]`).First().Attr("content"); ok {
		f.Runtime = minutes(d)
	}
	doc.Find(`[itemprop="actor"]`).Each(func(_ int, s *goquery.Selection) {
		name := provider.NormSpace(s.Find(`[itemprop="name"]`).First().Text())
		if name == "" {
			return
		}
		f.Actors = append(f.Actors, domain.Person{
			Name:      name,
			Character: provider.NormSpace(s.Find(`[itemprop="characterName"], .role`).First().Text()),
		})
	})
	return f, nil
}

func (f Film) apply(w *override.Writer) {
	w.TrySet(domain.FieldTitle, f.Title, Name)
	w.TrySet(domain.FieldOriginalTitle, f.OriginalTitle, Name)
	w.TrySet(domain.FieldYear, f.Year, Name)
	w.TrySet(domain.FieldPlot, f.Plot, Name)
	w.TrySet(domain.FieldOutline, f.Plot, Name)
	w.TrySet(domain.FieldRuntime, f.Runtime, Name)
	w.TrySet(domain.FieldCountry, strings.Join(f.Countries, " / "), Name)
	w.TrySetList(domain.FieldGenres, f.Genres, Name)
	w.TrySetList(domain.FieldDirectors, f.Directors, Name)
	w.TrySetList(domain.FieldWriters, f.Writers, Name)

	names := make([]string, 0, len(f.Actors))
	for _, a := range f.Actors {
		names = append(names, a.Name)
	}
	w.TrySetList(domain.FieldActors, names, Name)
	w.TrySetPeople(domain.FieldPeopleActors, f.Actors, Name)
}

func first(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if v := provider.NormSpace(doc.Find(sel).First().Text()); v != "" {
			return v
		}
	}
	return ""
}

func all(doc *goquery.Document, sel string) []string {
	var out []string
	doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
		out = append(out, s.Text())
	})
	return provider.NormList(out)
}

func minutes(d string) string {
	m := durationRE.FindStringSubmatch(strings.TrimSpace(d))
	if m == nil {
		return ""
	}
	h, _ := strconv.Atoi(m[1])
	mm, _ := strconv.Atoi(m[2])
	if h == 0 && mm == 0 {
		return ""
	}
	return strconv.Itoa(h*60 + mm)
}
