package provider

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/John-Robertt/jukebox/internal/infra/cache"
)

// maxBody 限制单个页面的读取量，防止异常响应把内存吃满。
const maxBody = 8 << 20

// Fetch 发起 GET 请求并返回响应体与响应头；非 2xx 返回 *HTTPStatusError。
func Fetch(ctx context.Context, c *http.Client, u string) ([]byte, http.Header, error) {
	if c == nil {
		return nil, nil, errors.New("http client 不能为空")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")
	resp, err := c.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, &HTTPStatusError{URL: u, StatusCode: resp.StatusCode, Location: resp.Header.Get("Location")}
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, nil, err
	}
	return b, resp.Header, nil
}

// FetchCached 先查页面缓存，未命中再抓取并回写（dry-run 下回写被拒绝，忽略即可）。
// 返回 UTF-8 文本；缓存统一按 UTF-8 存储。
//
// check 非 nil 时对页面做校验（例如识别拦截页）：缓存里的页面校验失败则重新抓取，
// 新抓到的页面校验失败则不写缓存并返回该错误。
func FetchCached(ctx context.Context, c *http.Client, pages *cache.Pages, provider, u string, check func([]byte) error) ([]byte, error) {
	if b, ok, err := pages.Read(provider, u, "html"); err == nil && ok {
		if check == nil || check(b) == nil {
			return b, nil
		}
	}
	b, h, err := Fetch(ctx, c, u)
	if err != nil {
		return nil, err
	}
	utf8, err := ToUTF8(b, h.Get("Content-Type"))
	if err != nil {
		return nil, err
	}
	if check != nil {
		if err := check(utf8); err != nil {
			return nil, err
		}
	}
	_ = pages.Write(provider, u, "html", utf8)
	return utf8, nil
}

// ToUTF8 按 Content-Type 或页面 <meta charset> 声明的字符集把 HTML 转成 UTF-8。
func ToUTF8(b []byte, contentType string) ([]byte, error) {
	r, err := charset.NewReader(bytes.NewReader(b), contentType)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

// ParseHTML 解码字符集后交给 goquery。
func ParseHTML(b []byte, contentType string) (*goquery.Document, error) {
	utf8, err := ToUTF8(b, contentType)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(bytes.NewReader(utf8))
}

// ResolveURL 把页面里的相对链接解析为绝对 URL。
func ResolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	if IsHTTPURL(href) {
		return href
	}
	bu, err := url.Parse(base)
	if err != nil {
		return href
	}
	ru, err := url.Parse(href)
	if err != nil {
		return href
	}
	return bu.ResolveReference(ru).String()
}

// IsHTTPURL 判断 s 是否是 http(s) 绝对 URL（带 host）。
func IsHTTPURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func NormSpace(s string) string { return strings.Join(strings.Fields(s), " ") }

// NormList 去空白、去重、保持输入顺序。
func NormList(in []string) []string {
	m := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = NormSpace(s)
		if s == "" {
			continue
		}
		if _, ok := m[s]; ok {
			continue
		}
		m[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
