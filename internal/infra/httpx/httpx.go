package httpx

import (
	"errors"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultTimeout  = 20 * time.Second
	defaultRetryMax = 2
	retryBackoff    = 300 * time.Millisecond
)

// Options 控制 client 的网络策略。零值可用：直连、默认超时、默认重试。
type Options struct {
	ProxyURL string
	Timeout  time.Duration
	// RetryMax < 0 表示不重试；0 使用默认值。
	RetryMax int
	// PerHostRPS > 0 时按 host 限速，所有 worker 共享同一个 client。
	PerHostRPS float64
}

// Transport 是所有 provider 共用的出站策略：UA、代理、限速、有界重试。
type Transport struct {
	Base *http.Transport

	// RetryMax 不含首次尝试。
	RetryMax int

	DisableKeepAlives bool

	limits *hostLimiter

	// 测试里替换掉退避等待。
	sleep func(time.Duration)
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil || t.Base == nil {
		return nil, errors.New("httpx: nil request or base transport")
	}

	tries := 1 + t.retries(req)
	var lastErr error
	for i := 0; i < tries; i++ {
		if i > 0 {
			t.backoff(time.Duration(i) * retryBackoff)
		}
		if err := t.limits.wait(req); err != nil {
			return nil, err
		}

		resp, err := t.Base.RoundTrip(t.prepare(req))
		switch {
		case err != nil:
			lastErr = err
			if req.Context().Err() != nil {
				return nil, err
			}
		case transient(resp.StatusCode) && i < tries-1:
			// 限流或网关抖动：丢弃响应后再来；最后一次的响应原样交给调用方。
			drain(resp)
			lastErr = errors.New(resp.Status)
		default:
			return resp, nil
		}
	}
	return nil, lastErr
}

// retries：只有可重放的请求（GET/HEAD 且无 body）才重试。
func (t *Transport) retries(req *http.Request) int {
	if req.Body != nil || (req.Method != http.MethodGet && req.Method != http.MethodHead) {
		return 0
	}
	return max(t.RetryMax, 0)
}

// prepare 复制请求并补上 UA；调用方显式设置的 UA 保留。
func (t *Transport) prepare(req *http.Request) *http.Request {
	r := req.Clone(req.Context())
	if r.Header.Get("User-Agent") == "" {
		r.Header.Set("User-Agent", pickUserAgent())
	}
	if t.DisableKeepAlives {
		r.Close = true
	}
	return r
}

func (t *Transport) backoff(d time.Duration) {
	if t.sleep != nil {
		t.sleep(d)
		return
	}
	time.Sleep(d)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

func transient(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable ||
		code == http.StatusGatewayTimeout
}

// NewMetaClient 构造抓元数据页面 / API 用的 client。
// 配了代理时禁用 keep-alive，每个请求新建连接。
func NewMetaClient(opt Options) (*http.Client, error) {
	return newClient(opt)
}

// NewImageClient 构造下载图片用的 client；imageProxy=false 时图片直连。
func NewImageClient(opt Options, imageProxy bool) (*http.Client, error) {
	switch {
	case !imageProxy:
		opt.ProxyURL = ""
	case strings.TrimSpace(opt.ProxyURL) == "":
		return nil, errors.New("image_proxy=true 但 proxy.url 为空")
	}
	return newClient(opt)
}

func newClient(opt Options) (*http.Client, error) {
	tr := &Transport{
		Base: &http.Transport{
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 15 * time.Second,
			MaxIdleConnsPerHost:   4,
		},
		RetryMax: opt.RetryMax,
		limits:   newHostLimiter(opt.PerHostRPS),
	}
	if tr.RetryMax == 0 {
		tr.RetryMax = defaultRetryMax
	}
	if p := strings.TrimSpace(opt.ProxyURL); p != "" {
		u, err := url.Parse(p)
		if err != nil {
			return nil, err
		}
		tr.Base.Proxy = http.ProxyURL(u)
		tr.Base.DisableKeepAlives = true
		tr.DisableKeepAlives = true
	}

	timeout := opt.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Transport: tr, Timeout: timeout}, nil
}

// hostLimiter 为每个 host 维护一个令牌桶；nil 表示不限速。
type hostLimiter struct {
	mu     sync.Mutex
	rps    float64
	byHost map[string]*rate.Limiter
}

func newHostLimiter(rps float64) *hostLimiter {
	if rps <= 0 {
		return nil
	}
	return &hostLimiter{rps: rps, byHost: map[string]*rate.Limiter{}}
}

func (h *hostLimiter) wait(req *http.Request) error {
	if h == nil || req.URL == nil {
		return nil
	}
	h.mu.Lock()
	l, ok := h.byHost[req.URL.Host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(h.rps), 1)
		h.byHost[req.URL.Host] = l
	}
	h.mu.Unlock()
	return l.Wait(req.Context())
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_5) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:127.0) Gecko/20100101 Firefox/127.0",
}

func pickUserAgent() string {
	return userAgents[rand.IntN(len(userAgents))]
}
