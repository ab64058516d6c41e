package provider

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// HTTPStatusError 是站点返回的非 2xx 响应。
// 约束：URL 不能带凭据（tmdb 会在返回前把它换成不含 api_key 的地址）。
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Location   string // 3xx 的跳转目标
}

func (e *HTTPStatusError) Error() string {
	msg := fmt.Sprintf("HTTP %d", e.StatusCode)
	if loc := strings.TrimSpace(e.Location); loc != "" {
		msg += " -> " + loc
	}
	return msg
}

// IsNotFound：外部 id 已失效或页面不存在。provider 按“没找到”返回 (false, nil)，不算失败。
func IsNotFound(err error) bool {
	var se *HTTPStatusError
	return errors.As(err, &se) && (se.StatusCode == http.StatusNotFound || se.StatusCode == http.StatusGone)
}

// BlockedError 表示拿到的是 WAF / 验证码页而不是内容页。
// 不尝试绕过；这类页面也不写入页面缓存。
type BlockedError struct {
	URL    string
	Marker string // 命中的页面特征，例如 "captcha"
}

func (e *BlockedError) Error() string {
	if e.Marker == "" {
		return "被站点拦截"
	}
	return "被站点拦截：" + e.Marker
}
