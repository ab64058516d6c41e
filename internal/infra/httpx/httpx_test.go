package httpx

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewMetaClient_ProxyDisablesKeepAlive(t *testing.T) {
	c, err := NewMetaClient(Options{ProxyURL: "http://127.0.0.1:8080"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr, ok := c.Transport.(*Transport)
	if !ok {
		t.Fatalf("期望 *Transport，实际 %T", c.Transport)
	}
	if tr.Base.Proxy == nil || !tr.Base.DisableKeepAlives || !tr.DisableKeepAlives {
		t.Fatalf("代理模式应启用代理并禁用 keep-alive：%+v", tr)
	}
}

func TestNewMetaClient_Defaults(t *testing.T) {
	c, err := NewMetaClient(Options{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr := c.Transport.(*Transport)
	if tr.Base.Proxy != nil || tr.Base.DisableKeepAlives {
		t.Fatalf("默认不应走代理/禁用 keep-alive")
	}
	if c.Timeout != DefaultTimeout || tr.RetryMax != defaultRetryMax {
		t.Fatalf("默认超时/重试不正确：%v %d", c.Timeout, tr.RetryMax)
	}

	c2, _ := NewMetaClient(Options{Timeout: 3 * time.Second, RetryMax: -1})
	if c2.Timeout != 3*time.Second || c2.Transport.(*Transport).RetryMax != -1 {
		t.Fatalf("自定义超时/重试未生效")
	}
}

func TestNewImageClient_ImageProxySwitch(t *testing.T) {
	c1, err := NewImageClient(Options{ProxyURL: "http://127.0.0.1:8080"}, false)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if c1.Transport.(*Transport).Base.Proxy != nil {
		t.Fatalf("image_proxy=false 时不应走代理")
	}

	c2, err := NewImageClient(Options{ProxyURL: "http://127.0.0.1:8080"}, true)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if c2.Transport.(*Transport).Base.Proxy == nil {
		t.Fatalf("image_proxy=true 时应走代理")
	}

	if _, err := NewImageClient(Options{}, true); err == nil {
		t.Fatalf("image_proxy=true 且没有代理地址时应报错")
	}
}

func TestNewMetaClient_InvalidProxyURL(t *testing.T) {
	if _, err := NewMetaClient(Options{ProxyURL: "http://[::1"}); err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
}

func TestTransport_RetriesTransientStatus(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Errorf("请求缺少 User-Agent")
		}
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c, err := NewMetaClient(Options{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	c.Transport.(*Transport).sleep = func(time.Duration) {}

	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || atomic.LoadInt32(&hits) != 3 {
		t.Fatalf("期望第 3 次成功，实际 status=%d hits=%d", resp.StatusCode, hits)
	}
}

func TestTransport_GivesUpAfterRetryMax(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, _ := NewMetaClient(Options{RetryMax: 1})
	c.Transport.(*Transport).sleep = func(time.Duration) {}

	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests || atomic.LoadInt32(&hits) != 2 {
		t.Fatalf("期望 2 次尝试后返回 429，实际 status=%d hits=%d", resp.StatusCode, hits)
	}
}

func TestHostLimiter_NilWhenDisabled(t *testing.T) {
	if newHostLimiter(0) != nil {
		t.Fatalf("rps<=0 时不应创建限速器")
	}
	var h *hostLimiter
	if err := h.wait(httptest.NewRequest(http.MethodGet, "http://x/", nil)); err != nil {
		t.Fatalf("nil 限速器应直接放行：%v", err)
	}
	c, _ := NewMetaClient(Options{PerHostRPS: 5})
	if c.Transport.(*Transport).limits == nil {
		t.Fatalf("PerHostRPS>0 时应启用限速")
	}
}
