package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/John-Robertt/jukebox/internal/infra/fsx"
)

// Pages 缓存 provider 抓到的原始页面：<dir>/pages/<provider>/<hash>.<ext>。
// 源文件更新后记录会被全量重扫，但远端页面通常没变，这里避免重复请求。
//
// 约束：
// - dry-run：只允许读（ReadOnly=true）
// - 写失败不影响抓取结果（由调用方忽略错误）
// - MaxAge > 0 时，比它旧的页面按未命中处理，下次抓取成功后被覆盖
type Pages struct {
	Root     string
	ReadOnly bool
	MaxAge   time.Duration
}

func NewPages(dir string, readOnly bool) *Pages {
	return &Pages{Root: filepath.Join(filepath.Clean(strings.TrimSpace(dir)), "pages"), ReadOnly: readOnly}
}

// WithMaxAge 设置页面有效期；d <= 0 表示永不过期。
func (p *Pages) WithMaxAge(d time.Duration) *Pages {
	p.MaxAge = max(d, 0)
	return p
}

// Path 返回页面缓存的绝对路径。ref 可以是 URL 或外部 id，统一哈希成文件名。
func (p *Pages) Path(provider, ref, ext string) (string, error) {
	name, err := cleanProvider(provider)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(ref) == "" {
		return "", fmt.Errorf("ref 不能为空")
	}
	sum := sha1.Sum([]byte(ref))
	return filepath.Join(p.Root, name, hex.EncodeToString(sum[:])+"."+strings.TrimPrefix(ext, ".")), nil
}

func (p *Pages) Read(provider, ref, ext string) ([]byte, bool, error) {
	if p == nil {
		return nil, false, nil
	}
	path, err := p.Path(provider, ref, ext)
	if err != nil {
		return nil, false, err
	}
	fi, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if p.MaxAge > 0 && time.Since(fi.ModTime()) > p.MaxAge {
		return nil, false, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (p *Pages) Write(provider, ref, ext string, data []byte) error {
	if p == nil || p.ReadOnly {
		return ErrReadOnly
	}
	path, err := p.Path(provider, ref, ext)
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomic(filepath.Dir(path), filepath.Base(path), data)
}

var providerNameRE = regexp.MustCompile(`^[a-z0-9_]+$`)

func cleanProvider(p string) (string, error) {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return "", fmt.Errorf("provider 不能为空")
	}
	if !providerNameRE.MatchString(p) {
		return "", fmt.Errorf("非法 provider：%q", p)
	}
	return p, nil
}
