package domain

import (
	"sort"
	"strconv"
	"strings"
)

// Unknown 是“未设置”的显式哨兵：对外输出时字段永远不是空/缺失。
const Unknown = "UNKNOWN"

// IsValid 判断一个值/来源是否“可用”：非空白，且不是 Unknown。
func IsValid(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && !strings.EqualFold(s, Unknown)
}

// Person 是 people.* 字段的元素（比纯名字更丰富的 filmography 数据）。
type Person struct {
	Name      string `json:"name" xml:"name"`
	Character string `json:"character,omitempty" xml:"character,omitempty"`
	ID        string `json:"id,omitempty" xml:"id,omitempty"`
	URL       string `json:"url,omitempty" xml:"url,omitempty"`
	Photo     string `json:"photo,omitempty" xml:"photo,omitempty"`
}

type ArtKind string

const (
	ArtPoster ArtKind = "poster"
	ArtFanart ArtKind = "fanart"
)

// Image 记录一张图片的 URL 以及提供它的来源。
type Image struct {
	URL    string `json:"url" xml:"url"`
	Source string `json:"source" xml:"source,attr"`
}

// Record 是一个媒体条目（电影，或按季聚合的剧集）。
//
// 不变量：
// - 每个有值的字段恰有一个 attribution；未设置字段的 Source() 返回 Unknown
// - 字段只能经由 override.Writer（策略检查后）或 Restore（缓存快照恢复）修改
// - 同一时刻只被一个 worker 持有，本身不加锁
type Record struct {
	Key       string // 稳定身份（文件 base name / <show>.S<nn>），也是缓存键
	Kind      Kind
	Files     []VideoFile
	SourceMod int64 // 源文件的最大 mtime（unix 秒），用于判断缓存是否新鲜
	NFOPath   string // 视频旁边的本地 NFO；没有为空

	IDs     map[string]string // provider -> 外部 id（例如 imdb -> tt0111161）
	Artwork map[ArtKind]Image

	scalars     map[Field]string
	lists       map[Field][]string
	people      map[Field][]Person
	attribution map[Field]string
}

func NewRecord(key string, kind Kind) *Record {
	return &Record{
		Key:         key,
		Kind:        kind,
		IDs:         map[string]string{},
		Artwork:     map[ArtKind]Image{},
		scalars:     map[Field]string{},
		lists:       map[Field][]string{},
		people:      map[Field][]Person{},
		attribution: map[Field]string{},
	}
}

// Value 返回标量字段的值；未设置返回 Unknown。
func (r *Record) Value(f Field) string {
	if v, ok := r.scalars[f]; ok && IsValid(v) {
		return v
	}
	return Unknown
}

// IntValue 把标量字段解析为整数（例如 year / runtime）；无效返回 0。
func (r *Record) IntValue(f Field) int {
	n, err := strconv.Atoi(strings.TrimSpace(r.Value(f)))
	if err != nil {
		return 0
	}
	return n
}

func (r *Record) List(f Field) []string {
	return append([]string(nil), r.lists[f]...)
}

func (r *Record) People(f Field) []Person {
	return append([]Person(nil), r.people[f]...)
}

// HasValue 判断字段当前是否持有有效值（list 非空即有效）。
func (r *Record) HasValue(f Field) bool {
	spec := f.Spec()
	switch {
	case spec.People:
		return len(r.people[f]) > 0
	case spec.IsList():
		return len(r.lists[f]) > 0
	default:
		return IsValid(r.scalars[f])
	}
}

// Source 返回字段的 attribution；未设置返回 Unknown。
func (r *Record) Source(f Field) string {
	if s, ok := r.attribution[f]; ok && IsValid(s) {
		return s
	}
	return Unknown
}

func (r *Record) ID(provider string) string {
	return strings.TrimSpace(r.IDs[strings.ToLower(strings.TrimSpace(provider))])
}

// SetID 记录外部 id。id 不受覆盖策略控制：后发现的有效 id 直接替换。
func (r *Record) SetID(provider, id string) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	id = strings.TrimSpace(id)
	if provider == "" || !IsValid(id) {
		return
	}
	if r.IDs == nil {
		r.IDs = map[string]string{}
	}
	r.IDs[provider] = id
}

// Title 返回用于查询外部站点的标题：title 优先，回退 originaltitle，再回退 Key。
func (r *Record) Title() string {
	if v := r.Value(FieldTitle); IsValid(v) {
		return v
	}
	if v := r.Value(FieldOriginalTitle); IsValid(v) {
		return v
	}
	return r.Key
}

func (r *Record) Year() int { return r.IntValue(FieldYear) }

// Assign 写入标量值并更新 attribution（二者同时生效）。
// 约束：只由 override.Writer 在策略放行后调用。
func (r *Record) Assign(f Field, value, source string) {
	r.scalars[f] = strings.TrimSpace(value)
	r.attribution[f] = source
}

// ResetList 清空 list/people 字段并把 attribution 交给 source。
// 约束：只由 override.Writer 在本 pass 首次接受写入时调用。
func (r *Record) ResetList(f Field, source string) {
	if f.Spec().People {
		r.people[f] = nil
	} else {
		r.lists[f] = nil
	}
	r.attribution[f] = source
}

func (r *Record) AppendItem(f Field, item string) {
	r.lists[f] = append(r.lists[f], item)
}

func (r *Record) AppendPerson(f Field, p Person) {
	r.people[f] = append(r.people[f], p)
}

// FieldEntry 是单个字段的完整快照（值 + 来源），用于缓存序列化。
type FieldEntry struct {
	Field  Field
	Source string
	Value  string
	Items  []string
	People []Person
}

// Entries 按 Fields() 的稳定顺序返回所有已设置字段。
func (r *Record) Entries() []FieldEntry {
	out := make([]FieldEntry, 0, len(r.attribution))
	for _, f := range Fields() {
		if !r.HasValue(f) {
			continue
		}
		e := FieldEntry{Field: f, Source: r.Source(f)}
		spec := f.Spec()
		switch {
		case spec.People:
			e.People = r.People(f)
		case spec.IsList():
			e.Items = r.List(f)
		default:
			e.Value = r.Value(f)
		}
		out = append(out, e)
	}
	return out
}

// Restore 按快照原样恢复一个字段（不经过覆盖策略）。仅用于缓存 fast-path。
func (r *Record) Restore(e FieldEntry) {
	spec := e.Field.Spec()
	switch {
	case spec.People:
		r.people[e.Field] = append([]Person(nil), e.People...)
	case spec.IsList():
		r.lists[e.Field] = append([]string(nil), e.Items...)
	default:
		r.scalars[e.Field] = e.Value
	}
	r.attribution[e.Field] = e.Source
}

// Contributions 统计每个来源当前拥有的字段数（report/priorities 命令展示用）。
func (r *Record) Contributions() map[string]int {
	out := map[string]int{}
	for f := range r.attribution {
		if r.HasValue(f) {
			out[r.Source(f)]++
		}
	}
	return out
}

// SortedIDs 返回 provider 名按字典序排序的 id 列表（稳定输出）。
func (r *Record) SortedIDs() []string {
	keys := make([]string, 0, len(r.IDs))
	for k := range r.IDs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone 深拷贝记录的字段、attribution、ids 与 artwork；Files 共享（只读）。
func (r *Record) Clone() *Record {
	c := NewRecord(r.Key, r.Kind)
	c.Files = r.Files
	c.SourceMod = r.SourceMod
	c.NFOPath = r.NFOPath
	for k, v := range r.IDs {
		c.IDs[k] = v
	}
	for k, v := range r.Artwork {
		c.Artwork[k] = v
	}
	for _, f := range Fields() {
		c.CopyField(r, f)
	}
	return c
}

// CopyField 用 src 中 f 的值与 attribution 整体替换本记录的同名字段。
// src 中未设置的字段在本记录里也被清除。
func (r *Record) CopyField(src *Record, f Field) {
	delete(r.scalars, f)
	delete(r.lists, f)
	delete(r.people, f)
	delete(r.attribution, f)
	if v, ok := src.scalars[f]; ok {
		r.scalars[f] = v
	}
	if v, ok := src.lists[f]; ok {
		r.lists[f] = append([]string(nil), v...)
	}
	if v, ok := src.people[f]; ok {
		r.people[f] = append([]Person(nil), v...)
	}
	if s, ok := src.attribution[f]; ok {
		r.attribution[f] = s
	}
}
