package main

import (
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/jukebox/internal/app/run"
	"github.com/John-Robertt/jukebox/internal/config"
	"github.com/John-Robertt/jukebox/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的进度输出。
//
// 约束：
// - 只写 w（通常是 stderr），不碰 stdout 的 JSON 输出
// - run 层只发事件，展示方式由这里决定
// - 长时间没有条目完成时，每隔一段时间输出一行 keepalive（带正在处理的 key）
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	workers int
	total   int
	done    int
	ok      int
	cached  int
	fail    int
	active  map[string]time.Time

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		active:             make(map[string]time.Time),
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	mode := "dry-run"
	modeHint := " (不写 jukebox/缓存/图片)"
	if eff.Apply {
		mode = "apply"
		modeHint = ""
	}

	fmt.Fprintf(p.w, "[%s] jukebox run (%s)\n", now.Format("15:04:05"), mode)
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  path: %s\n", eff.Path)
	if eff.ConfigFile != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigFile)
	}
	fmt.Fprintf(p.w, "  mode: %s%s\n", mode, modeHint)
	fmt.Fprintf(p.w, "  libraries: %d\n", len(eff.Libraries))
	fmt.Fprintf(p.w, "  metadata: %s\n", providerChain(eff.Providers.Metadata))
	fmt.Fprintf(p.w, "  poster: %s\n", providerChain(eff.Providers.Poster))
	fmt.Fprintf(p.w, "  fanart: %s\n", providerChain(eff.Providers.Fanart))
	fmt.Fprintf(p.w, "  concurrency: %d\n", eff.Concurrency)
	fmt.Fprintf(p.w, "  cache: %s (%s)\n", eff.Cache, eff.CacheDir)
	fmt.Fprintf(p.w, "  export_nfo: %s\n", onOff(eff.ExportNFO))
	fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(eff.ProxyURL))
	fmt.Fprintf(p.w, "  image_proxy: %s\n", onOff(eff.ImageProxy))
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "scan":
		fmt.Fprintf(p.w, "扫描: libraries=%d files=%d unmatched=%d (%s)\n",
			intField(fields, "libraries"), intField(fields, "files"), intField(fields, "unmatched"), formatShortDuration(dur),
		)
	case "group":
		fmt.Fprintf(p.w, "分组: records=%d (%s)\n",
			intField(fields, "records"), formatShortDuration(dur),
		)
	case "plan":
		fmt.Fprintf(p.w, "规划: items=%d local_nfo=%d need_nfo=%d need_poster=%d need_fanart=%d (%s)\n",
			intField(fields, "items"),
			intField(fields, "local_nfo"),
			intField(fields, "need_nfo"),
			intField(fields, "need_poster"),
			intField(fields, "need_fanart"),
			formatShortDuration(dur),
		)
	case "exec":
		p.workers = intField(fields, "workers")
		p.total = intField(fields, "total_items")
		fmt.Fprintf(p.w, "执行: workers=%d total_items=%d\n\n", p.workers, p.total)
		if p.total > 0 && !p.tickerStarted {
			p.startTickerLocked()
		}
	default:
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnItemStart(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active[key] = time.Now()
}

func (p *progressUI) OnItemDone(idx, total int, key string, res domain.ItemResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = idx
	p.total = total
	delete(p.active, key)

	status := strings.ToUpper(res.Status)
	switch res.Status {
	case domain.StatusProcessed:
		p.ok++
		status = "OK"
	case domain.StatusCached:
		p.cached++
		status = "CACHED"
	case domain.StatusFailed:
		p.fail++
		status = "FAIL"
	}

	switch res.Status {
	case domain.StatusFailed:
		chain := formatAttemptChain(res.Attempts, 2)
		if chain != "" {
			chain = " attempts=" + chain
		}
		fmt.Fprintf(p.w, "[%d/%d] %s %s %s: %s%s (%s)\n",
			idx, total, key, status, res.ErrorCode, truncate(res.ErrorMsg, 160), chain, formatShortDuration(dur),
		)
	case domain.StatusCached:
		fmt.Fprintf(p.w, "[%d/%d] %s %s (%s)\n", idx, total, key, status, formatShortDuration(dur))
	default:
		fmt.Fprintf(p.w, "[%d/%d] %s %s kind=%s fields=%d%s%s (%s)\n",
			idx, total, key, status, res.Kind, contributedCount(res.Attempts),
			formatArtworkNote(res.Artwork), formatFailedAttempts(res.Attempts), formatShortDuration(dur),
		)
	}

	p.lastPrinted = time.Now()

	// 最后一条完成：停止 ticker，避免在结束打印后又冒出 keepalive。
	if p.tickerStarted && p.done >= p.total {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

// Stop 在 run 返回后调用（canceled 时不一定每条都会触发 OnItemDone）。
func (p *progressUI) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tickerStarted {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true
	stopCh := p.stopCh

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if p.total > 0 && time.Since(p.lastPrinted) > threshold {
					p.printKeepaliveLocked()
				}
				p.mu.Unlock()
			case <-stopCh:
				return
			}
		}
	}()
}

func (p *progressUI) printKeepaliveLocked() {
	fmt.Fprintf(p.w, "进度: done=%d/%d ok=%d cached=%d fail=%d active=%d elapsed=%s%s\n",
		p.done, p.total, p.ok, p.cached, p.fail, len(p.active), formatElapsed(time.Since(p.startedAt)), p.activeNoteLocked(3),
	)
	p.lastPrinted = time.Now()
}

// activeNoteLocked 列出最久未完成的 max 个 key。
func (p *progressUI) activeNoteLocked(max int) string {
	if len(p.active) == 0 {
		return ""
	}
	keys := make([]string, 0, len(p.active))
	for k := range p.active {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ti, tj := p.active[keys[i]], p.active[keys[j]]
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return keys[i] < keys[j]
	})
	more := ""
	if len(keys) > max {
		more = fmt.Sprintf(" +%d", len(keys)-max)
		keys = keys[:max]
	}
	return " [" + strings.Join(keys, ", ") + more + "]"
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func providerChain(ids []string) string {
	if len(ids) == 0 {
		return "(none)"
	}
	return strings.Join(ids, " -> ")
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func contributedCount(attempts []domain.ProviderAttempt) int {
	n := 0
	for _, a := range attempts {
		n += len(a.Contributed)
	}
	return n
}

func formatArtworkNote(art map[domain.ArtKind]domain.Image) string {
	if len(art) == 0 {
		return ""
	}
	kinds := make([]string, 0, len(art))
	for k := range art {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		src := strings.TrimSpace(art[domain.ArtKind(k)].Source)
		if src == "" {
			src = "-"
		}
		parts = append(parts, k+"="+src)
	}
	return " " + strings.Join(parts, " ")
}

// formatFailedAttempts 只展示出错的 provider；成功条目里的失败也值得一眼看到。
func formatFailedAttempts(attempts []domain.ProviderAttempt) string {
	var failed []domain.ProviderAttempt
	for _, a := range attempts {
		if strings.TrimSpace(a.Error) != "" {
			failed = append(failed, a)
		}
	}
	if len(failed) == 0 {
		return ""
	}
	return " errors=" + formatAttemptChain(failed, 2)
}

func formatAttemptChain(attempts []domain.ProviderAttempt, max int) string {
	if len(attempts) == 0 || max == 0 {
		return ""
	}
	if max < 0 {
		max = len(attempts)
	}
	parts := make([]string, 0, len(attempts))
	for _, a := range attempts {
		s := strings.TrimSpace(a.Provider) + ":" + strings.TrimSpace(a.Stage)
		if em := strings.TrimSpace(a.Error); em != "" {
			s += ":" + truncate(em, 80)
		}
		parts = append(parts, s)
		if len(parts) >= max {
			break
		}
	}
	if len(attempts) > max {
		parts = append(parts, fmt.Sprintf("+%d", len(attempts)-max))
	}
	return strings.Join(parts, ";")
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	switch x := fields[key].(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	case uint:
		return int(x)
	case uint32:
		return int(x)
	case uint64:
		return int(x)
	default:
		return 0
	}
}
