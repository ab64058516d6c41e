package scan

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/John-Robertt/jukebox/internal/domain"
)

// Root 是一个扫描根及其排除目录。
type Root struct {
	Path    string
	Exclude []string // 相对 Path；绝对路径按绝对路径处理
}

// ScanLibraries 依次扫描所有根目录并合并结果。
//
// 规则：
// - skip 中的目录（jukebox 输出目录、缓存目录）在每个根下都永久排除
// - 多个根互相重叠时，同一个 AbsPath 只保留第一次出现
// - 输出按 (Library, RelPath) 稳定排序
func ScanLibraries(roots []Root, skip []string) ([]domain.VideoFile, error) {
	seen := make(map[string]struct{}, 256)
	out := make([]domain.VideoFile, 0, 256)
	for _, r := range roots {
		files, err := ScanVideos(r.Path, r.Exclude, skip...)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if _, dup := seen[f.AbsPath]; dup {
				continue
			}
			seen[f.AbsPath] = struct{}{}
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Library != out[j].Library {
			return out[i].Library < out[j].Library
		}
		return out[i].RelPath < out[j].RelPath
	})
	return out, nil
}

// ScanVideos 扫描单个库根下的视频文件。
//
// 规则：
// - skip 为绝对路径，jukebox 输出目录位于库内时靠它避开
// - excludeDirs 来自配置，相对 root；写成绝对路径的按原样处理
// - 隐藏目录（"." 开头）不进入；root 本身除外
// - 只读 DirEntry.Info，不打开文件
func ScanVideos(root string, excludeDirs []string, skip ...string) ([]domain.VideoFile, error) {
	w := &walker{
		root: filepath.Clean(root),
		out:  make([]domain.VideoFile, 0, 128),
	}
	w.excl = newExcludeSet(w.root, excludeDirs, skip)

	if err := filepath.WalkDir(w.root, w.visit); err != nil {
		return nil, err
	}
	sort.Slice(w.out, func(i, j int) bool { return w.out[i].RelPath < w.out[j].RelPath })
	return w.out, nil
}

type walker struct {
	root string
	excl excludeSet
	out  []domain.VideoFile
}

func (w *walker) visit(path string, d fs.DirEntry, walkErr error) error {
	if walkErr != nil {
		return walkErr
	}
	if d.IsDir() {
		if w.excl.covers(path) {
			return filepath.SkipDir
		}
		if path != w.root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return nil
	}
	if w.excl.covers(path) {
		return nil
	}

	f, ok, err := w.video(path, d)
	if err != nil || !ok {
		return err
	}
	w.out = append(w.out, f)
	return nil
}

func (w *walker) video(path string, d fs.DirEntry) (domain.VideoFile, bool, error) {
	name := d.Name()
	dot := filepath.Ext(name)
	ext := strings.ToLower(dot)
	if !IsVideoExt(ext) {
		return domain.VideoFile{}, false, nil
	}
	info, err := d.Info()
	if err != nil {
		return domain.VideoFile{}, false, err
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return domain.VideoFile{}, false, err
	}
	return domain.VideoFile{
		Library: w.root,
		AbsPath: path,
		RelPath: rel,
		Base:    name[:len(name)-len(dot)],
		Ext:     ext,
		Size:    info.Size(),
		ModUnix: info.ModTime().Unix(),
	}, true, nil
}

var videoExts = map[string]struct{}{
	".mp4": {}, ".m4v": {}, ".mkv": {}, ".avi": {}, ".mov": {}, ".wmv": {},
	".mpg": {}, ".mpeg": {}, ".ts": {}, ".m2ts": {}, ".vob": {}, ".iso": {},
	".divx": {}, ".flv": {}, ".ogm": {}, ".webm": {},
}

// IsVideoExt 判断扩展名（带点、小写）是否是视频文件。
func IsVideoExt(ext string) bool {
	_, ok := videoExts[ext]
	return ok
}

// excludeSet 是已 Clean 的绝对目录列表；命中目录本身或其任意后代。
type excludeSet []string

func newExcludeSet(root string, rel, abs []string) excludeSet {
	set := make(excludeSet, 0, len(rel)+len(abs))
	add := func(p string) {
		if p = strings.TrimSpace(p); p == "" {
			return
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		set = append(set, filepath.Clean(p))
	}
	for _, p := range abs {
		add(p)
	}
	for _, p := range rel {
		add(p)
	}
	sort.Strings(set)
	return set
}

func (s excludeSet) covers(path string) bool {
	path = filepath.Clean(path)
	prefix := string(filepath.Separator)
	for _, dir := range s {
		if path == dir || strings.HasPrefix(path, dir+prefix) {
			return true
		}
	}
	return false
}
