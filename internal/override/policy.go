// Package override 决定某个来源能否覆盖记录上某个字段的现值。
package override

import (
	"fmt"
	"sort"
	"strings"

	"github.com/John-Robertt/jukebox/internal/domain"
)

// Settings 是构造 Policy 的输入（来自配置文件）。
//
// Movie/TV：field 名 -> "src1,src2"；缺席的字段使用默认表。
// 值为空字符串表示该字段没有声明顺序（只允许填空与自覆盖）。
type Settings struct {
	Movie map[string]string
	TV    map[string]string

	SkipNotInList bool

	MaxDirector int
	MaxWriter   int
	MaxActor    int
}

// Policy 是只读的覆盖决策器：构造后可被多个 worker 并发使用。
type Policy struct {
	tables        map[domain.Kind]map[domain.Field][]string
	skipNotInList bool
	maxCount      map[domain.Role]int
}

// New 按 Settings 构造 Policy。未知字段名返回 error（由配置层包装成 config_invalid）。
func New(s Settings) (*Policy, error) {
	p := &Policy{
		tables:        map[domain.Kind]map[domain.Field][]string{},
		skipNotInList: s.SkipNotInList,
		maxCount: map[domain.Role]int{
			domain.RoleDirector: s.MaxDirector,
			domain.RoleWriter:   s.MaxWriter,
			domain.RoleActor:    s.MaxActor,
		},
	}
	for _, kind := range []domain.Kind{domain.KindMovie, domain.KindTV} {
		tbl := make(map[domain.Field][]string, len(defaultPriorities))
		for f, v := range defaultPriorities {
			tbl[f] = splitSources(v)
		}
		overrides := s.Movie
		if kind.IsTV() {
			overrides = s.TV
		}
		for name, v := range overrides {
			f, ok := domain.ParseField(name)
			if !ok {
				return nil, fmt.Errorf("priority.%s.%s：未知字段", kind, name)
			}
			tbl[f] = splitSources(v)
		}
		p.tables[kind] = tbl
	}
	return p, nil
}

// MustDefault 返回默认设置下的 Policy（测试与 priorities 命令使用）。
func MustDefault() *Policy {
	p, err := New(DefaultSettings())
	if err != nil {
		panic(err)
	}
	return p
}

func splitSources(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Priorities 返回 (kind, field) 的有序来源列表副本；没有声明返回 nil。
func (p *Policy) Priorities(kind domain.Kind, f domain.Field) []string {
	return append([]string(nil), p.table(kind)[f]...)
}

// MaxCount 返回 role 的上限；RoleNone 不受约束，返回 -1。
func (p *Policy) MaxCount(role domain.Role) int {
	if role == domain.RoleNone {
		return -1
	}
	return p.maxCount[role]
}

func (p *Policy) SkipNotInList() bool { return p.skipNotInList }

func (p *Policy) table(kind domain.Kind) map[domain.Field][]string {
	if kind.IsTV() {
		return p.tables[domain.KindTV]
	}
	return p.tables[domain.KindMovie]
}

func (p *Policy) rank(kind domain.Kind, f domain.Field, source string) int {
	source = strings.ToLower(strings.TrimSpace(source))
	for i, s := range p.table(kind)[f] {
		if s == source {
			return i
		}
	}
	return -1
}

// MayOverwrite 判断 source 能否写入 rec 的字段 f。
//
// 判定顺序（固定）：
// 1) skip_not_in_list 打开且 source 不在列表 -> 拒绝（不看当前状态）
// 2) 字段有 role 且 max-count <= 0 -> 拒绝
// 3) 字段未设置 -> 允许
// 4) 比较当前来源与新来源的优先级
func (p *Policy) MayOverwrite(rec *domain.Record, f domain.Field, source string) bool {
	if p.skipNotInList && p.rank(rec.Kind, f, source) < 0 {
		return false
	}
	if role := f.Spec().Role; role != domain.RoleNone && p.maxCount[role] <= 0 {
		return false
	}
	if !rec.HasValue(f) {
		return true
	}
	return p.hasHigherPriority(rec.Kind, f, rec.Source(f), source)
}

// hasHigherPriority：
// - 两者都无效 / 只有新来源无效 -> false；只有当前来源无效 -> true
// - 同一来源（忽略大小写）-> true
// - 新来源未登记 -> false；否则 newRank <= actualRank
//
// 规则：当前来源未登记（actualRank=-1）时，任何已登记来源都满足不了 newRank <= -1，
// 所以未登记来源写入的值只能被它自己覆盖。
func (p *Policy) hasHigherPriority(kind domain.Kind, f domain.Field, actual, next string) bool {
	actualOK := domain.IsValid(actual)
	nextOK := domain.IsValid(next)
	switch {
	case !actualOK && !nextOK:
		return false
	case actualOK && !nextOK:
		return false
	case !actualOK && nextOK:
		return true
	}
	if strings.EqualFold(strings.TrimSpace(actual), strings.TrimSpace(next)) {
		return true
	}
	newRank := p.rank(kind, f, next)
	if newRank < 0 {
		return false
	}
	return newRank <= p.rank(kind, f, actual)
}

// CheckOneOverwrite 按顺序检查，任一字段允许即返回 true。
// provider 用它在发网络请求前判断“这次抓取是否可能有用”。
func (p *Policy) CheckOneOverwrite(rec *domain.Record, source string, fields ...domain.Field) bool {
	for _, f := range fields {
		if p.MayOverwrite(rec, f, source) {
			return true
		}
	}
	return false
}

// UnknownSources 列出优先级表中引用、但 known 里没有的来源（"kind.field:source"，稳定排序）。
// 这类来源在排名中等同 unranked；调用方只记 warn，不视为致命错误。
func (p *Policy) UnknownSources(known []string) []string {
	ok := map[string]bool{MediaInfoSource: true}
	for _, k := range known {
		ok[strings.ToLower(strings.TrimSpace(k))] = true
	}
	var out []string
	for kind, tbl := range p.tables {
		for f, list := range tbl {
			for _, s := range list {
				if !ok[s] {
					out = append(out, fmt.Sprintf("%s.%s:%s", kind, f, s))
				}
			}
		}
	}
	sort.Strings(out)
	return out
}
