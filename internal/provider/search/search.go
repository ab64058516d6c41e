// Package search 用通用搜索引擎（duckduckgo / bing）定位站点页面，多个引擎轮换使用。
package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/PuerkitoBio/goquery"

	"github.com/John-Robertt/jukebox/internal/provider"
)

// Engine 描述一个搜索引擎：结果页地址与结果链接的选择器。
type Engine struct {
	Name     string
	BaseURL  string // 例如 https://html.duckduckgo.com/html/
	Selector string
}

func DuckDuckGo() Engine {
	return Engine{Name: "duckduckgo", BaseURL: "https://html.duckduckgo.com/html/", Selector: "a.result__a"}
}

func Bing() Engine {
	return Engine{Name: "bing", BaseURL: "https://www.bing.com/search", Selector: "li.b_algo h2 a"}
}

// Known 返回按名字索引的内置引擎。
func Known() map[string]Engine {
	return map[string]Engine{"duckduckgo": DuckDuckGo(), "bing": Bing()}
}

// Rotator 轮换使用多个引擎：每次查询从下一个引擎开始，失败/没结果时依次尝试其余引擎。
// 可被多个 worker 并发使用。
type Rotator struct {
	engines []Engine
	client  *http.Client
	next    atomic.Uint32
}

func New(c *http.Client, engines ...Engine) *Rotator {
	return &Rotator{engines: engines, client: c}
}

// FromNames 按配置里的名字构造；未知名字返回 error。
func FromNames(c *http.Client, names []string) (*Rotator, error) {
	known := Known()
	engines := make([]Engine, 0, len(names))
	for _, n := range names {
		e, ok := known[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return nil, fmt.Errorf("未知搜索引擎：%q", n)
		}
		engines = append(engines, e)
	}
	return New(c, engines...), nil
}

// Find 返回第一个 URL 中包含 site 的结果；所有引擎都没有结果返回 ("", nil)。
// 只有所有引擎都出错时才返回 error。
func (r *Rotator) Find(ctx context.Context, query, site string) (string, error) {
	if r == nil || len(r.engines) == 0 {
		return "", nil
	}
	start := int(r.next.Add(1)-1) % len(r.engines)
	var errs []error
	for i := range r.engines {
		e := r.engines[(start+i)%len(r.engines)]
		u, err := r.findOne(ctx, e, query, site)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Name, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if u != "" {
			return u, nil
		}
	}
	if len(errs) == len(r.engines) {
		return "", errs[len(errs)-1]
	}
	return "", nil
}

func (r *Rotator) findOne(ctx context.Context, e Engine, query, site string) (string, error) {
	q := url.Values{}
	q.Set("q", strings.TrimSpace(query)+" site:"+siteHost(site))
	b, h, err := provider.Fetch(ctx, r.client, e.BaseURL+"?"+q.Encode())
	if err != nil {
		return "", err
	}
	doc, err := provider.ParseHTML(b, h.Get("Content-Type"))
	if err != nil {
		return "", err
	}
	var found string
	doc.Find(e.Selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		u := unwrapRedirect(provider.ResolveURL(e.BaseURL, href))
		if strings.Contains(u, site) {
			found = u
			return false
		}
		return true
	})
	return found, nil
}

// unwrapRedirect 还原 duckduckgo 的跳转链接（/l/?uddg=<真实地址>）。
func unwrapRedirect(u string) string {
	pu, err := url.Parse(u)
	if err != nil {
		return u
	}
	if real := pu.Query().Get("uddg"); real != "" {
		return real
	}
	return u
}

func siteHost(site string) string {
	if i := strings.IndexByte(site, '/'); i > 0 {
		return site[:i]
	}
	return site
}
