// Package filename 把文件名里能推出来的信息（标题、年份、技术标签）作为 filename 来源写入记录。
package filename

import (
	"context"
	"strconv"

	"github.com/John-Robertt/jukebox/internal/domain"
	"github.com/John-Robertt/jukebox/internal/naming"
	"github.com/John-Robertt/jukebox/internal/override"
)

const Name = "filename"

type Provider struct{}

func New() Provider { return Provider{} }

func (Provider) Name() string { return Name }

// Scan 只看记录的第一个文件（分组时已按 RelPath 排序）。不访问网络。
func (Provider) Scan(_ context.Context, rec *domain.Record, w *override.Writer) (bool, error) {
	if len(rec.Files) == 0 {
		return false, nil
	}
	id, err := naming.Extract(rec.Files[0])
	if err != nil {
		return false, nil
	}
	w.TrySet(domain.FieldTitle, id.Title, Name)
	if id.Year > 0 {
		w.TrySet(domain.FieldYear, strconv.Itoa(id.Year), Name)
	}
	w.TrySet(domain.FieldContainer, id.Container, Name)
	w.TrySet(domain.FieldVideoSource, id.VideoSource, Name)
	w.TrySet(domain.FieldResolution, id.Resolution, Name)
	return true, nil
}

func (Provider) ScanNFO(string, *domain.Record) bool { return false }
