// Package cache 持久化记录快照（字段值 + 来源 + 外部 id + 图片），供下次运行走 fast-path。
package cache

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/John-Robertt/jukebox/internal/domain"
)

// Store 是记录快照的读写接口。
//
// 约束：
// - dry-run：只允许读，Save 返回 ErrReadOnly
// - Load 找不到返回 (_, false, nil)；快照无法解码返回 *CorruptError
// - Save 必须是原子的：读者要么看到旧快照，要么看到完整的新快照
type Store interface {
	Load(ctx context.Context, key string) (Snapshot, bool, error)
	Save(ctx context.Context, s Snapshot) error
	Close() error
}

var ErrReadOnly = errors.New("cache: read-only")

// CorruptError 表示快照存在但无法还原（上层按“无缓存”处理并全量重扫）。
type CorruptError struct {
	Key string
	Err error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("缓存快照损坏：%q：%v", e.Key, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

func IsCorrupt(err error) bool {
	var ce *CorruptError
	return errors.As(err, &ce)
}

const (
	BackendXML    = "xml"
	BackendSQLite = "sqlite"
)

// Open 按 backend 打开 <dir> 下的缓存。
func Open(backend, dir string, readOnly bool) (Store, error) {
	dir = filepath.Clean(strings.TrimSpace(dir))
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendXML:
		return OpenXML(filepath.Join(dir, "records"), readOnly)
	case BackendSQLite:
		return OpenSQLite(filepath.Join(dir, "library.db"), readOnly)
	default:
		return nil, fmt.Errorf("未知缓存后端：%q（只能是 xml 或 sqlite）", backend)
	}
}

// Snapshot 是一条记录的完整、无损序列化形式。
type Snapshot struct {
	XMLName   xml.Name    `xml:"record" json:"-"`
	Key       string      `xml:"key,attr" json:"key"`
	Kind      domain.Kind `xml:"kind,attr" json:"kind"`
	SourceMod int64       `xml:"sourceMod,attr" json:"source_mod"`
	ScannedAt time.Time   `xml:"scannedAt,attr" json:"scanned_at"`

	Files   []string     `xml:"file" json:"files,omitempty"`
	Fields  []FieldValue `xml:"field" json:"fields"`
	IDs     []ExternalID `xml:"id" json:"ids,omitempty"`
	Artwork []Artwork    `xml:"artwork" json:"artwork,omitempty"`
}

type FieldValue struct {
	Name   string          `xml:"name,attr" json:"name"`
	Source string          `xml:"source,attr" json:"source"`
	Value  string          `xml:"value,omitempty" json:"value,omitempty"`
	Items  []string        `xml:"item" json:"items,omitempty"`
	People []domain.Person `xml:"person" json:"people,omitempty"`
}

type ExternalID struct {
	Provider string `xml:"provider,attr" json:"provider"`
	Value    string `xml:",chardata" json:"value"`
}

type Artwork struct {
	Kind   domain.ArtKind `xml:"kind,attr" json:"kind"`
	Source string         `xml:"source,attr" json:"source"`
	URL    string         `xml:",chardata" json:"url"`
}

// Fresh 判断快照是否仍然有效：没有比它更新的源文件。
func (s Snapshot) Fresh(sourceMod int64) bool {
	return s.SourceMod >= sourceMod
}

// FromRecord 把记录转成快照（稳定顺序，便于 diff）。
func FromRecord(rec *domain.Record, scannedAt time.Time) Snapshot {
	s := Snapshot{
		Key:       rec.Key,
		Kind:      rec.Kind,
		SourceMod: rec.SourceMod,
		ScannedAt: scannedAt.UTC(),
	}
	for _, f := range rec.Files {
		s.Files = append(s.Files, f.RelPath)
	}
	for _, e := range rec.Entries() {
		s.Fields = append(s.Fields, FieldValue{
			Name:   string(e.Field),
			Source: e.Source,
			Value:  e.Value,
			Items:  e.Items,
			People: e.People,
		})
	}
	for _, p := range rec.SortedIDs() {
		s.IDs = append(s.IDs, ExternalID{Provider: p, Value: rec.IDs[p]})
	}
	for _, k := range []domain.ArtKind{domain.ArtPoster, domain.ArtFanart} {
		if img, ok := rec.Artwork[k]; ok {
			s.Artwork = append(s.Artwork, Artwork{Kind: k, Source: img.Source, URL: img.URL})
		}
	}
	return s
}

// Apply 把快照中的字段原样恢复到 rec（不经过覆盖策略）。
// 快照里出现未知字段或非法 kind 视为损坏，rec 不被修改。
func (s Snapshot) Apply(rec *domain.Record) error {
	kind, err := domain.ParseKind(string(s.Kind))
	if err != nil {
		return &CorruptError{Key: s.Key, Err: err}
	}
	entries := make([]domain.FieldEntry, 0, len(s.Fields))
	for _, fv := range s.Fields {
		f, ok := domain.ParseField(fv.Name)
		if !ok {
			return &CorruptError{Key: s.Key, Err: fmt.Errorf("未知字段 %q", fv.Name)}
		}
		entries = append(entries, domain.FieldEntry{
			Field:  f,
			Source: fv.Source,
			Value:  fv.Value,
			Items:  fv.Items,
			People: fv.People,
		})
	}

	rec.Kind = kind
	for _, e := range entries {
		rec.Restore(e)
	}
	for _, id := range s.IDs {
		rec.SetID(id.Provider, id.Value)
	}
	for _, a := range s.Artwork {
		rec.Artwork[a.Kind] = domain.Image{URL: a.URL, Source: a.Source}
	}
	return nil
}

// checkKey：key 直接作为文件名 / 主键使用，不允许路径穿越。
func checkKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("cache key 不能为空")
	}
	if strings.ContainsAny(key, `/\`) || key == "." || strings.Contains(key, "..") {
		return fmt.Errorf("非法 cache key：%q", key)
	}
	return nil
}

// Lister 由两个后端实现，供 `cache list` 使用。
type Lister interface {
	Keys(ctx context.Context) ([]string, error)
}
