// Package nfo 把视频旁边的本地 NFO 作为 nfo 来源写入记录。
package nfo

import (
	"context"
	"os"
	"strings"

	"github.com/John-Robertt/jukebox/internal/domain"
	kodi "github.com/John-Robertt/jukebox/internal/nfo"
	"github.com/John-Robertt/jukebox/internal/override"
)

const Name = "nfo"

type Provider struct{}

func New() Provider { return Provider{} }

func (Provider) Name() string { return Name }

// Scan 读取 rec.NFOPath；没有 NFO 或 NFO 只是一段文本（没有 XML）时返回 (false, nil)。
func (Provider) Scan(ctx context.Context, rec *domain.Record, w *override.Writer) (bool, error) {
	if rec.NFOPath == "" {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	b, err := os.ReadFile(rec.NFOPath)
	if err != nil {
		return false, err
	}
	doc, err := kodi.Decode(b)
	if err != nil || doc == nil {
		return false, err
	}
	apply(doc, w)
	return true, nil
}

func apply(d *kodi.Document, w *override.Writer) {
	w.TrySet(domain.FieldTitle, d.Title, Name)
	w.TrySet(domain.FieldOriginalTitle, d.OriginalTitle, Name)
	w.TrySet(domain.FieldPlot, d.Plot, Name)
	w.TrySet(domain.FieldOutline, d.Outline, Name)
	w.TrySet(domain.FieldTagline, d.Tagline, Name)
	w.TrySet(domain.FieldQuote, d.Quote, Name)
	w.TrySet(domain.FieldYear, d.Year, Name)
	w.TrySet(domain.FieldReleaseDate, d.Premiered, Name)
	w.TrySet(domain.FieldRuntime, d.Runtime, Name)
	w.TrySet(domain.FieldCertification, d.MPAA, Name)
	w.TrySet(domain.FieldCountry, strings.Join(d.Countries, " / "), Name)
	if len(d.Studios) > 0 {
		w.TrySet(domain.FieldCompany, d.Studios[0], Name)
	}
	w.TrySet(domain.FieldResolution, d.Resolution(), Name)
	w.TrySet(domain.FieldAspectRatio, d.AspectRatio(), Name)
	w.TrySet(domain.FieldLanguage, strings.Join(d.AudioLanguages(), " / "), Name)

	w.TrySetList(domain.FieldGenres, d.Genres, Name)
	w.TrySetList(domain.FieldDirectors, d.Directors, Name)
	w.TrySetList(domain.FieldWriters, d.Credits, Name)

	names := make([]string, 0, len(d.Actors))
	people := make([]domain.Person, 0, len(d.Actors))
	for _, a := range d.Actors {
		names = append(names, a.Name)
		people = append(people, domain.Person{Name: a.Name, Character: a.Role, Photo: a.Thumb})
	}
	w.TrySetList(domain.FieldActors, names, Name)
	w.TrySetPeople(domain.FieldPeopleActors, people, Name)
	w.TrySetPeople(domain.FieldPeopleDirectors, namesToPeople(d.Directors), Name)
	w.TrySetPeople(domain.FieldPeopleWriters, namesToPeople(d.Credits), Name)

	for p, id := range d.IDs() {
		w.SetID(p, id)
	}
}

func namesToPeople(names []string) []domain.Person {
	out := make([]domain.Person, 0, len(names))
	for _, n := range names {
		out = append(out, domain.Person{Name: n})
	}
	return out
}

// ScanNFO 读取 <uniqueid> / <id> 声明的外部 id。
func (Provider) ScanNFO(text string, rec *domain.Record) bool {
	doc, err := kodi.Decode([]byte(text))
	if err != nil || doc == nil {
		return false
	}
	ids := doc.IDs()
	for p, id := range ids {
		rec.SetID(p, id)
	}
	return len(ids) > 0
}
