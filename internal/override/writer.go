package override

import (
	"strings"

	"github.com/John-Robertt/jukebox/internal/domain"
)

// Writer 是修改 Record 字段的唯一入口，生命周期为一个 scan pass
// （一次 provider 对一条记录的调用）。不可跨 goroutine 使用。
//
// 约束：
// - 每次写入先问 Policy，放行后值与 attribution 同时更新
// - list 字段在本 pass 内首次被某来源接受写入时清空旧值，之后同来源的写入追加
// - NewPass 创建的 Writer 写在草稿上，Commit 之前记录本身不变；Discard 或不提交即丢弃
type Writer struct {
	policy  *Policy
	rec     *domain.Record          // 最终落到的记录
	draft   *domain.Record          // 读写与策略判定都基于它；直写模式下就是 rec
	cleared map[domain.Field]string // field -> 本 pass 内已清空它的来源
	written map[domain.Field]bool
}

// NewWriter 直接写 rec，不需要 Commit。
func NewWriter(p *Policy, rec *domain.Record) *Writer {
	return &Writer{
		policy:  p,
		rec:     rec,
		draft:   rec,
		cleared: map[domain.Field]string{},
		written: map[domain.Field]bool{},
	}
}

// NewPass 在 rec 的副本上暂存写入；只有 Commit 才把本 pass 的结果交给 rec。
// provider 调用边界用它：失败（error / panic / 超时）的 pass 不留下任何字段或 id。
func NewPass(p *Policy, rec *domain.Record) *Writer {
	w := NewWriter(p, rec)
	w.draft = rec.Clone()
	return w
}

// Record 返回本 pass 看到的记录（暂存模式下是草稿，含本 pass 已写入的值）。
func (w *Writer) Record() *domain.Record { return w.draft }

func (w *Writer) Policy() *Policy { return w.policy }

// Commit 把本 pass 写入的字段与发现的 id 交给记录。直写模式下无事可做。
func (w *Writer) Commit() {
	if w.draft == w.rec {
		return
	}
	for f := range w.written {
		w.rec.CopyField(w.draft, f)
	}
	for p, id := range w.draft.IDs {
		w.rec.SetID(p, id)
	}
	w.draft = w.rec
}

// Discard 丢弃暂存的写入；之后 Written 为空。
func (w *Writer) Discard() {
	if w.draft == w.rec {
		return
	}
	w.draft = w.rec.Clone()
	w.written = map[domain.Field]bool{}
	w.cleared = map[domain.Field]string{}
}

// TrySet 写入标量字段。值无效（空白 / UNKNOWN）或策略拒绝时返回 false。
func (w *Writer) TrySet(f domain.Field, value, source string) bool {
	value = domain.CleanText(value)
	if !domain.IsValid(value) {
		return false
	}
	if !w.policy.MayOverwrite(w.draft, f, source) {
		return false
	}
	w.draft.Assign(f, value, normSource(source))
	w.written[f] = true
	return true
}

// BeginList 为 list 字段开启一次写入；策略拒绝返回 nil。
// 此时不动记录：旧值要等到第一次 Add 才被清空。
func (w *Writer) BeginList(f domain.Field, source string) *ListWriter {
	if !w.policy.MayOverwrite(w.draft, f, source) {
		return nil
	}
	return &ListWriter{w: w, field: f, source: normSource(source), max: w.policy.MaxCount(f.Spec().Role)}
}

// TrySetList 是 BeginList + 逐个 Add 的封装。全部值无效时不清空、不改 attribution。
func (w *Writer) TrySetList(f domain.Field, values []string, source string) bool {
	valid := values[:0:0]
	for _, v := range values {
		if v = domain.CleanText(v); domain.IsValid(v) {
			valid = append(valid, v)
		}
	}
	if len(valid) == 0 {
		return false
	}
	lw := w.BeginList(f, source)
	if lw == nil {
		return false
	}
	added := false
	for _, v := range valid {
		if lw.Add(v) {
			added = true
		}
	}
	return added
}

// TrySetPeople 同 TrySetList，元素为 Person（Name 无效的元素被跳过）。
func (w *Writer) TrySetPeople(f domain.Field, people []domain.Person, source string) bool {
	var valid []domain.Person
	for _, p := range people {
		if p = cleanPerson(p); domain.IsValid(p.Name) {
			valid = append(valid, p)
		}
	}
	if len(valid) == 0 {
		return false
	}
	lw := w.BeginList(f, source)
	if lw == nil {
		return false
	}
	added := false
	for _, p := range valid {
		if lw.AddPerson(p) {
			added = true
		}
	}
	return added
}

func (w *Writer) CheckOneOverwrite(source string, fields ...domain.Field) bool {
	return w.policy.CheckOneOverwrite(w.draft, source, fields...)
}

// SetID 记录外部 id（不受覆盖策略控制）；暂存模式下随 Commit 生效。
func (w *Writer) SetID(provider, id string) { w.draft.SetID(provider, id) }

// Written 返回本 pass 实际写入的字段（按字段表的稳定顺序）。
func (w *Writer) Written() []domain.Field {
	var out []domain.Field
	for _, f := range domain.Fields() {
		if w.written[f] {
			out = append(out, f)
		}
	}
	return out
}

// ListWriter 是单个 list 字段在一个 pass 内的写入游标。
type ListWriter struct {
	w      *Writer
	field  domain.Field
	source string
	max    int // -1 表示不受约束
}

// Add 追加一个纯字符串元素；超出 role 的上限时丢弃并返回 false。
func (lw *ListWriter) Add(item string) bool {
	if lw == nil || lw.field.Spec().People {
		return false
	}
	if item = domain.CleanText(item); !domain.IsValid(item) {
		return false
	}
	if !lw.prepare() {
		return false
	}
	lw.w.draft.AppendItem(lw.field, item)
	return true
}

func (lw *ListWriter) AddPerson(p domain.Person) bool {
	if lw == nil || !lw.field.Spec().People {
		return false
	}
	if p = cleanPerson(p); !domain.IsValid(p.Name) {
		return false
	}
	if !lw.prepare() {
		return false
	}
	lw.w.draft.AppendPerson(lw.field, p)
	return true
}

// prepare：本 pass 首次写入时清空旧值并转移 attribution；随后检查上限。
func (lw *ListWriter) prepare() bool {
	w := lw.w
	if w.cleared[lw.field] != lw.source {
		w.draft.ResetList(lw.field, lw.source)
		w.cleared[lw.field] = lw.source
		w.written[lw.field] = true
	}
	if lw.max >= 0 && lw.len() >= lw.max {
		return false
	}
	return true
}

func (lw *ListWriter) len() int {
	if lw.field.Spec().People {
		return len(lw.w.draft.People(lw.field))
	}
	return len(lw.w.draft.List(lw.field))
}

func cleanPerson(p domain.Person) domain.Person {
	p.Name = domain.CleanText(p.Name)
	p.Character = domain.CleanText(p.Character)
	p.ID = domain.CleanText(p.ID)
	p.URL = domain.CleanText(p.URL)
	p.Photo = domain.CleanText(p.Photo)
	return p
}

func normSource(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
