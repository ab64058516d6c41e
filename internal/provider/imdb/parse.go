package imdb

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/jukebox/internal/domain"
	"github.com/John-Robertt/jukebox/internal/provider"
)

// Title 是详情页中本项目使用的子集。
type Title struct {
	ID            string
	Name          string
	OriginalTitle string
	Plot          string
	Outline       string
	Year          string
	ReleaseDate   string
	Runtime       string // 分钟
	Certification string
	Tagline       string
	AspectRatio   string
	Image         string

	Genres    []string
	Countries []string
	Companies []string
	Languages []string

	Actors    []domain.Person
	Directors []domain.Person
	Writers   []domain.Person
}

// ldMovie 对应详情页的 <script type="application/ld+json">。
// genre / director / creator 在不同页面上既可能是单个值也可能是数组。
type ldMovie struct {
	Type          string          `json:"@type"`
	Name          string          `json:"name"`
	AlternateName string          `json:"alternateName"`
	Description   string          `json:"description"`
	Image         string          `json:"image"`
	DatePublished string          `json:"datePublished"`
	Duration      string          `json:"duration"`
	ContentRating string          `json:"contentRating"`
	Genre         json.RawMessage `json:"genre"`
	Actor         json.RawMessage `json:"actor"`
	Director      json.RawMessage `json:"director"`
	Creator       json.RawMessage `json:"creator"`
}

type ldPerson struct {
	Type string `json:"@type"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

var (
	idRE       = regexp.MustCompile(`tt\d{7,8}`)
	personIDRE = regexp.MustCompile(`nm\d{7,8}`)
	durationRE = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?`)
)

// ErrNoData 表示页面里没有 JSON-LD（通常是拦截页或者改版）。
var ErrNoData = errors.New("详情页缺少 JSON-LD")

// Parse 把详情页 HTML 解析为 Title。纯函数：相同输入 => 相同输出。
func Parse(id string, html []byte, baseURL string) (Title, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return Title{}, err
	}

	var ld ldMovie
	found := false
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var m ldMovie
		if json.Unmarshal([]byte(s.Text()), &m) != nil || m.Name == "" {
			return true
		}
		ld, found = m, true
		return false
	})
	if !found {
		return Title{}, ErrNoData
	}

	t := Title{
		ID:            id,
		Name:          provider.NormSpace(ld.Name),
		OriginalTitle: provider.NormSpace(ld.Name),
		Plot:          provider.NormSpace(ld.Description),
		ReleaseDate:   strings.TrimSpace(ld.DatePublished),
		Runtime:       minutes(ld.Duration),
		Certification: strings.TrimSpace(ld.ContentRating),
		Image:         strings.TrimSpace(ld.Image),
		Genres:        provider.NormList(flexStrings(ld.Genre)),
		Actors:        flexPeople(ld.Actor, baseURL),
		Directors:     flexPeople(ld.Director, baseURL),
		Writers:       flexPeople(ld.Creator, baseURL),
	}
	if alt := provider.NormSpace(ld.AlternateName); alt != "" {
		// alternateName 存在时 name 是本地化标题，alternateName 才是原名。
		t.OriginalTitle = alt
	}
	if len(t.ReleaseDate) >= 4 {
		t.Year = t.ReleaseDate[:4]
	}

	t.Outline = provider.NormSpace(doc.Find(`[data-testid="plot-xl"]`).First().Text())
	if t.Outline == "" {
		t.Outline = t.Plot
	}
	t.Tagline = provider.NormSpace(doc.Find(`[data-testid="storyline-taglines"] .ipc-metadata-list-item__list-content-item`).First().Text())
	t.AspectRatio = provider.NormSpace(doc.Find(`[data-testid="title-techspec_aspectratio"] .ipc-metadata-list-item__list-content-item`).First().Text())
	t.Countries = listItems(doc, "title-details-origin")
	t.Companies = listItems(doc, "title-details-companies")
	t.Languages = listItems(doc, "title-details-languages")
	return t, nil
}

func listItems(doc *goquery.Document, testID string) []string {
	var out []string
	doc.Find(`[data-testid="` + testID + `"] .ipc-metadata-list-item__list-content-item`).Each(func(_ int, s *goquery.Selection) {
		out = append(out, s.Text())
	})
	return provider.NormList(out)
}

// minutes 把 ISO 8601 时长（PT2H50M）转成分钟数。
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

func flexStrings(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var one string
	if json.Unmarshal(raw, &one) == nil {
		return []string{one}
	}
	var many []string
	if json.Unmarshal(raw, &many) == nil {
		return many
	}
	return nil
}

// flexPeople 只保留 @type=Person（creator 里混有 Organization）。
func flexPeople(raw json.RawMessage, baseURL string) []domain.Person {
	if len(raw) == 0 {
		return nil
	}
	var many []ldPerson
	if json.Unmarshal(raw, &many) != nil {
		var one ldPerson
		if json.Unmarshal(raw, &one) != nil {
			return nil
		}
		many = []ldPerson{one}
	}
	seen := map[string]bool{}
	var out []domain.Person
	for _, p := range many {
		name := provider.NormSpace(p.Name)
		if name == "" || (p.Type != "" && p.Type != "Person") || seen[name] {
			continue
		}
		seen[name] = true
		person := domain.Person{Name: name, ID: personIDRE.FindString(p.URL)}
		if p.URL != "" {
			person.URL = provider.ResolveURL(baseURL+"/", p.URL)
		}
		out = append(out, person)
	}
	return out
}

func names(ps []domain.Person) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Name)
	}
	return out
}

// checkPage 识别 WAF 拦截/验证页，避免把它写进页面缓存。
func checkPage(b []byte) error {
	if bytes.Contains(b, []byte("application/ld+json")) {
		return nil
	}
	lower := bytes.ToLower(b)
	for _, marker := range []string{"awswafintegration", "captcha", "challenge-container"} {
		if bytes.Contains(lower, []byte(marker)) {
			return &provider.BlockedError{Marker: marker}
		}
	}
	return nil
}
