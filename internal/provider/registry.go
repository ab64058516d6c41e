package provider

import (
	"fmt"
	"sort"
	"strings"

	"github.com/John-Robertt/jukebox/internal/domain"
)

// Factory 描述一个 provider id 能扮演的角色；nil 表示不支持该角色。
type Factory struct {
	Metadata func(d Deps) (MetadataProvider, error)
	Poster   func(d Deps) (ArtworkProvider, error)
	Fanart   func(d Deps) (ArtworkProvider, error)
}

// Table 是静态工厂表：id -> Factory。id 统一小写。
type Table map[string]Factory

// Reserved 是不对应任何 provider、但可以出现在优先级列表里的来源（例如 mediainfo 由外部工具写入）。
var Reserved = []string{"mediainfo"}

// Sources 返回所有合法的来源标识（可作为 metadata 来源的 id + Reserved），按字典序。
func (t Table) Sources() []string {
	out := append([]string(nil), Reserved...)
	for id, f := range t {
		if f.Metadata != nil {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Selection 是配置里三条 provider 列表（按顺序调用）。
type Selection struct {
	Metadata []string
	Poster   []string
	Fanart   []string
}

// Registry 是构造完成的只读 provider 集合。
type Registry struct {
	metadata []MetadataProvider
	posters  []ArtworkProvider
	fanarts  []ArtworkProvider
	sources  []string
}

// Build 按 Selection 从工厂表构造 provider。
//
// 规则：
// - 未知 id 或 id 不支持该角色：返回 error（上层归类为 config_invalid）
// - 同一列表内重复 id：返回 error
func Build(t Table, sel Selection, d Deps) (*Registry, error) {
	r := &Registry{sources: t.Sources()}
	seen := map[string]bool{}
	for _, id := range sel.Metadata {
		id, f, err := lookup(t, id, "metadata", seen)
		if err != nil {
			return nil, err
		}
		if f.Metadata == nil {
			return nil, fmt.Errorf("provider %q 不能作为 metadata 来源", id)
		}
		p, err := f.Metadata(d)
		if err != nil {
			return nil, fmt.Errorf("构造 provider %q：%w", id, err)
		}
		r.metadata = append(r.metadata, p)
	}

	build := func(ids []string, role string, pick func(Factory) func(Deps) (ArtworkProvider, error)) ([]ArtworkProvider, error) {
		seen := map[string]bool{}
		var out []ArtworkProvider
		for _, id := range ids {
			id, f, err := lookup(t, id, role, seen)
			if err != nil {
				return nil, err
			}
			ctor := pick(f)
			if ctor == nil {
				return nil, fmt.Errorf("provider %q 不能作为 %s 来源", id, role)
			}
			p, err := ctor(d)
			if err != nil {
				return nil, fmt.Errorf("构造 provider %q：%w", id, err)
			}
			out = append(out, p)
		}
		return out, nil
	}

	var err error
	if r.posters, err = build(sel.Poster, "poster", func(f Factory) func(Deps) (ArtworkProvider, error) { return f.Poster }); err != nil {
		return nil, err
	}
	if r.fanarts, err = build(sel.Fanart, "fanart", func(f Factory) func(Deps) (ArtworkProvider, error) { return f.Fanart }); err != nil {
		return nil, err
	}
	return r, nil
}

func lookup(t Table, id, role string, seen map[string]bool) (string, Factory, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	f, ok := t[id]
	if !ok {
		return id, Factory{}, fmt.Errorf("未知 provider：%q（%s）", id, role)
	}
	if seen[id] {
		return id, Factory{}, fmt.Errorf("重复的 %s provider：%q", role, id)
	}
	seen[id] = true
	return id, f, nil
}

func (r *Registry) Metadata() []MetadataProvider { return append([]MetadataProvider(nil), r.metadata...) }
func (r *Registry) Posters() []ArtworkProvider   { return append([]ArtworkProvider(nil), r.posters...) }
func (r *Registry) Fanarts() []ArtworkProvider   { return append([]ArtworkProvider(nil), r.fanarts...) }
func (r *Registry) Sources() []string            { return append([]string(nil), r.sources...) }

// Artwork 按图片类型返回对应的 provider 列表。
func (r *Registry) Artwork(kind domain.ArtKind) []ArtworkProvider {
	if kind == domain.ArtFanart {
		return r.Fanarts()
	}
	return r.Posters()
}
