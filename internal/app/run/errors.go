package run

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/John-Robertt/jukebox/internal/provider"
)

// describeProviderError 把 provider 错误转成可操作的提示（report 的 attempt.error）。
func describeProviderError(providerName string, err error) string {
	if err == nil {
		return providerName + " 失败"
	}

	var pe *provider.PanicError
	if errors.As(err, &pe) {
		return fmt.Sprintf("%s 内部错误（panic：%v），已跳过该来源。", providerName, pe.Value)
	}

	if errors.Is(err, provider.ErrTimeout) {
		return fmt.Sprintf("%s 调用超时。建议检查网络/代理，或调大 provider_timeout_seconds。", providerName)
	}

	var be *provider.BlockedError
	if errors.As(err, &be) {
		return fmt.Sprintf("%s 被站点拦截（%s）。当前不支持绕过；建议配置 proxy.url、降低 per_host_rps 或稍后重试。", providerName, be.Marker)
	}

	// HTTP 非 2xx：尽量给出可操作提示（反爬/限流是最常见问题）。
	var hs *provider.HTTPStatusError
	if errors.As(err, &hs) {
		loc := strings.TrimSpace(hs.Location)
		switch hs.StatusCode {
		case 401:
			return fmt.Sprintf("%s 返回 HTTP 401（api_key 无效或缺失）。", providerName)
		case 403, 429:
			return fmt.Sprintf("%s 返回 HTTP %d（可能触发反爬/限流）。建议降低并发或配置 proxy.url。", providerName, hs.StatusCode)
		case 404:
			return fmt.Sprintf("%s 返回 HTTP 404（外部 id 可能已失效）。", providerName)
		default:
			if loc != "" {
				return fmt.Sprintf("%s 返回 HTTP %d（重定向）：%s", providerName, hs.StatusCode, loc)
			}
			return fmt.Sprintf("%s 返回 HTTP %d。", providerName, hs.StatusCode)
		}
	}

	low := strings.ToLower(err.Error())
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(low, "timeout") {
		return fmt.Sprintf("%s 请求超时。建议检查网络/代理，或降低并发后重试。", providerName)
	}
	if strings.Contains(low, "tls") || strings.Contains(low, "handshake") || strings.Contains(low, "ssl") {
		return fmt.Sprintf("%s 连接失败（TLS/SSL）。可在配置中改 base_url 指向可用域名，或配置 proxy.url。", providerName)
	}

	return fmt.Sprintf("%s 失败：%v", providerName, err)
}
