package planner

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/John-Robertt/jukebox/internal/domain"
)

const (
	PosterName = "poster.jpg"
	FanartName = "fanart.jpg"
)

// JukeboxState 是 <jukebox>/<key>/ 的现状。
type JukeboxState struct {
	Dir       string
	HasNFO    bool
	HasPoster bool
	HasFanart bool
}

// ItemDir 返回记录在 jukebox 中的输出目录。
func ItemDir(jukebox, key string) string {
	return filepath.Join(jukebox, key)
}

func NFOName(key string) string { return key + ".nfo" }

// ReadJukeboxState 读取 <jukebox>/<key>/ 的现状（只做 ReadDir，不读文件内容）。
// 目录不存在时返回空状态且不报错。
func ReadJukeboxState(jukebox, key string) (JukeboxState, error) {
	st := JukeboxState{Dir: ItemDir(jukebox, key)}

	entries, err := os.ReadDir(st.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return JukeboxState{}, err
	}
	for _, e := range entries {
		switch e.Name() {
		case NFOName(key):
			st.HasNFO = true
		case PosterName:
			st.HasPoster = true
		case FanartName:
			st.HasFanart = true
		}
	}
	return st, nil
}

// FindLocalNFO 在视频旁边查找 NFO：<base>.nfo 优先，其次同目录的 movie.nfo / tvshow.nfo。
// 只做 stat；找不到返回空字符串。
func FindLocalNFO(kind domain.Kind, files []domain.VideoFile) string {
	var cands []string
	for _, f := range files {
		dir := filepath.Dir(f.AbsPath)
		cands = append(cands, filepath.Join(dir, f.Base+".nfo"))
	}
	shared := "movie.nfo"
	if kind.IsTV() {
		shared = "tvshow.nfo"
	}
	for _, f := range files {
		dir := filepath.Dir(f.AbsPath)
		cands = append(cands, filepath.Join(dir, shared))
		if kind.IsTV() {
			// 剧集常见布局：<show>/Season N/xxx.mkv，tvshow.nfo 在上一层。
			cands = append(cands, filepath.Join(filepath.Dir(dir), shared))
		}
	}
	for _, c := range cands {
		if fi, err := os.Stat(c); err == nil && fi.Mode().IsRegular() {
			return c
		}
	}
	return ""
}

// PlanItem 基于分组结果与 jukebox 现状生成确定性的执行计划（不做任何写入）。
// 本地 NFO 也是来源：它的 mtime 计入 SourceMod，改了 NFO 就会让缓存失效。
func PlanItem(key string, kind domain.Kind, files []domain.VideoFile, sourceMod int64, st JukeboxState, localNFO string) domain.ItemPlan {
	if localNFO != "" {
		if fi, err := os.Stat(localNFO); err == nil {
			sourceMod = max(sourceMod, fi.ModTime().Unix())
		}
	}
	return domain.ItemPlan{
		Key:       key,
		Kind:      kind,
		Files:     append([]domain.VideoFile(nil), files...),
		SourceMod: sourceMod,
		LocalNFO:  localNFO,
		Need: domain.SidecarNeed{
			NeedNFO:    !st.HasNFO,
			NeedPoster: !st.HasPoster,
			NeedFanart: !st.HasFanart,
		},
	}
}

// SafeKey 判断 key 能否直接作为文件/目录名使用。
func SafeKey(key string) bool {
	if strings.TrimSpace(key) == "" || key == "." || key == ".." {
		return false
	}
	return !strings.ContainsAny(key, `/\`) && !strings.Contains(key, "..") && !strings.ContainsRune(key, 0)
}

// SortPlans 让上层在需要时可显式保证稳定顺序。
func SortPlans(plans []domain.ItemPlan) {
	sort.Slice(plans, func(i, j int) bool { return plans[i].Key < plans[j].Key })
}
