package app

import (
	"errors"
	"sort"

	"github.com/John-Robertt/jukebox/internal/domain"
	"github.com/John-Robertt/jukebox/internal/naming"
)

// Group 是同一个 Key 下的全部视频文件（电影的多段文件，或剧集同一季的所有集）。
type Group struct {
	Identity  naming.Identity // 取自排序后的第一个文件
	Files     []domain.VideoFile
	SourceMod int64
}

func (g Group) Key() string { return g.Identity.Key }

// Unmatched 是无法从文件名得到标题的文件。
type Unmatched struct {
	File   domain.VideoFile
	Reason string
}

// GroupRecords 把视频文件按 Key 分组。
//
// - groups 稳定排序：按 Key 字典序
// - group 内文件稳定排序：按 RelPath 字典序
// - SourceMod 为组内文件的最大 mtime
func GroupRecords(files []domain.VideoFile) (groups []Group, unmatched []Unmatched, err error) {
	index := make(map[string]int, 128)
	groups = make([]Group, 0, 128)
	idents := make(map[string][]naming.Identity, 128)

	for i := range files {
		id, e := naming.Extract(files[i])
		if e != nil {
			var ue *naming.UnmatchedError
			if errors.As(e, &ue) {
				unmatched = append(unmatched, Unmatched{File: files[i], Reason: ue.Error()})
				continue
			}
			return nil, nil, e
		}

		idx, ok := index[id.Key]
		if !ok {
			idx = len(groups)
			index[id.Key] = idx
			groups = append(groups, Group{Identity: id})
		}
		groups[idx].Files = append(groups[idx].Files, files[i])
		idents[id.Key] = append(idents[id.Key], id)
		if files[i].ModUnix > groups[idx].SourceMod {
			groups[idx].SourceMod = files[i].ModUnix
		}
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].Key() < groups[j].Key() })
	for i := range groups {
		g := &groups[i]
		ids := idents[g.Key()]
		order := make([]int, len(g.Files))
		for k := range order {
			order[k] = k
		}
		sort.SliceStable(order, func(a, b int) bool { return g.Files[order[a]].RelPath < g.Files[order[b]].RelPath })
		sorted := make([]domain.VideoFile, len(order))
		for k, o := range order {
			sorted[k] = g.Files[o]
		}
		g.Files = sorted
		g.Identity = ids[order[0]]
	}
	return groups, unmatched, nil
}
