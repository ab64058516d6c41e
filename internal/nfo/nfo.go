// Package nfo 读写 Kodi/Jellyfin/Emby 风格的 NFO（<movie> / <tvshow> XML）。
package nfo

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/John-Robertt/jukebox/internal/domain"
)

// Document 是 NFO 中本项目关心的子集。根元素名（movie / tvshow / episodedetails）不做限制。
type Document struct {
	XMLName xml.Name

	Title         string     `xml:"title,omitempty"`
	OriginalTitle string     `xml:"originaltitle,omitempty"`
	Plot          string     `xml:"plot,omitempty"`
	Outline       string     `xml:"outline,omitempty"`
	Tagline       string     `xml:"tagline,omitempty"`
	Quote         string     `xml:"quote,omitempty"`
	Year          string     `xml:"year,omitempty"`
	Premiered     string     `xml:"premiered,omitempty"`
	Runtime       string     `xml:"runtime,omitempty"`
	MPAA          string     `xml:"mpaa,omitempty"`
	Countries     []string   `xml:"country,omitempty"`
	Studios       []string   `xml:"studio,omitempty"`
	Genres        []string   `xml:"genre,omitempty"`
	Directors     []string   `xml:"director,omitempty"`
	Credits       []string   `xml:"credits,omitempty"`
	Actors        []Actor    `xml:"actor,omitempty"`
	UniqueIDs     []UniqueID `xml:"uniqueid,omitempty"`
	ID            string     `xml:"id,omitempty"`
	Thumbs        []string   `xml:"thumb,omitempty"`
	Fanart        *Fanart    `xml:"fanart,omitempty"`
	FileInfo      *FileInfo  `xml:"fileinfo,omitempty"`
}

type Actor struct {
	Name  string `xml:"name"`
	Role  string `xml:"role,omitempty"`
	Thumb string `xml:"thumb,omitempty"`
}

type UniqueID struct {
	Type    string `xml:"type,attr,omitempty"`
	Default bool   `xml:"default,attr,omitempty"`
	Value   string `xml:",chardata"`
}

type Fanart struct {
	Thumbs []string `xml:"thumb"`
}

type FileInfo struct {
	Video []VideoStream `xml:"streamdetails>video"`
	Audio []AudioStream `xml:"streamdetails>audio"`
}

type VideoStream struct {
	Codec  string `xml:"codec,omitempty"`
	Aspect string `xml:"aspect,omitempty"`
	Width  int    `xml:"width,omitempty"`
	Height int    `xml:"height,omitempty"`
}

type AudioStream struct {
	Language string `xml:"language,omitempty"`
}

// Decode 解析 NFO 文本。编码声明非 UTF-8（例如 windows-1250）时按声明解码。
//
// 规则：
// - 文本里没有 XML 根元素（有些库只在 NFO 里放一个 IMDb 链接）时返回 (nil, nil)
// - XML 损坏返回 error
func Decode(text []byte) (*Document, error) {
	trimmed := bytes.TrimSpace(text)
	start := bytes.IndexByte(trimmed, '<')
	if start < 0 {
		return nil, nil
	}
	dec := xml.NewDecoder(bytes.NewReader(trimmed[start:]))
	dec.CharsetReader = charset.NewReaderLabel
	dec.Strict = false

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode nfo: %w", err)
	}
	return &doc, nil
}

// IDs 返回 NFO 中声明的外部 id（provider -> id）。
// <uniqueid type="imdb"> 优先；裸 <id> 以 tt 开头时视为 imdb，纯数字视为 tmdb。
func (d *Document) IDs() map[string]string {
	out := map[string]string{}
	if d == nil {
		return out
	}
	for _, u := range d.UniqueIDs {
		t := strings.ToLower(strings.TrimSpace(u.Type))
		v := strings.TrimSpace(u.Value)
		if t == "" || v == "" {
			continue
		}
		if _, ok := out[t]; !ok {
			out[t] = v
		}
	}
	if id := strings.TrimSpace(d.ID); id != "" {
		switch {
		case strings.HasPrefix(id, "tt"):
			if _, ok := out["imdb"]; !ok {
				out["imdb"] = id
			}
		case isDigits(id):
			if _, ok := out["tmdb"]; !ok {
				out["tmdb"] = id
			}
		}
	}
	return out
}

// Resolution 从第一条视频流推出 "1080p" 风格的分辨率；未知返回空串。
func (d *Document) Resolution() string {
	if d == nil || d.FileInfo == nil || len(d.FileInfo.Video) == 0 {
		return ""
	}
	v := d.FileInfo.Video[0]
	switch {
	case v.Height >= 2000 || v.Width >= 3800:
		return "2160p"
	case v.Height >= 1000 || v.Width >= 1900:
		return "1080p"
	case v.Height >= 700 || v.Width >= 1270:
		return "720p"
	case v.Height > 0:
		return strconv.Itoa(v.Height) + "p"
	default:
		return ""
	}
}

func (d *Document) AspectRatio() string {
	if d == nil || d.FileInfo == nil || len(d.FileInfo.Video) == 0 {
		return ""
	}
	return strings.TrimSpace(d.FileInfo.Video[0].Aspect)
}

func (d *Document) AudioLanguages() []string {
	if d == nil || d.FileInfo == nil {
		return nil
	}
	var out []string
	for _, a := range d.FileInfo.Audio {
		if l := strings.TrimSpace(a.Language); l != "" {
			out = append(out, l)
		}
	}
	return normList(out)
}

// Encode 把 Record 转成 Kodi/Jellyfin/Emby 可读取的 NFO（XML）。
//
// 规则：
// - movie 根元素为 <movie>，tv 为 <tvshow>
// - 值为 UNKNOWN 的字段不输出（媒体服务器会把它当成真实值展示）
// - people.* 有值时优先用于 <actor>（带 role/thumb），否则退回纯名字列表
// - 图片固定引用 jukebox 目录中的 poster.jpg / fanart.jpg
func Encode(rec *domain.Record) ([]byte, error) {
	root := "movie"
	if rec.Kind.IsTV() {
		root = "tvshow"
	}
	d := Document{
		XMLName:       xml.Name{Local: root},
		Title:         known(rec.Value(domain.FieldTitle)),
		OriginalTitle: known(rec.Value(domain.FieldOriginalTitle)),
		Plot:          known(rec.Value(domain.FieldPlot)),
		Outline:       known(rec.Value(domain.FieldOutline)),
		Tagline:       known(rec.Value(domain.FieldTagline)),
		Quote:         known(rec.Value(domain.FieldQuote)),
		Year:          known(rec.Value(domain.FieldYear)),
		Premiered:     known(rec.Value(domain.FieldReleaseDate)),
		Runtime:       known(rec.Value(domain.FieldRuntime)),
		MPAA:          known(rec.Value(domain.FieldCertification)),
		Countries:     nonEmpty(known(rec.Value(domain.FieldCountry))),
		Studios:       nonEmpty(known(rec.Value(domain.FieldCompany))),
		Genres:        normList(rec.List(domain.FieldGenres)),
		Thumbs:        []string{"poster.jpg"},
		Fanart:        &Fanart{Thumbs: []string{"fanart.jpg"}},
	}
	if d.Title == "" {
		d.Title = rec.Key
	}

	d.Directors = personNames(rec, domain.FieldPeopleDirectors, domain.FieldDirectors)
	d.Credits = personNames(rec, domain.FieldPeopleWriters, domain.FieldWriters)
	if people := rec.People(domain.FieldPeopleActors); len(people) > 0 {
		for _, p := range people {
			d.Actors = append(d.Actors, Actor{Name: p.Name, Role: p.Character, Thumb: p.Photo})
		}
	} else {
		for _, a := range normList(rec.List(domain.FieldActors)) {
			d.Actors = append(d.Actors, Actor{Name: a})
		}
	}

	for i, p := range rec.SortedIDs() {
		d.UniqueIDs = append(d.UniqueIDs, UniqueID{Type: p, Default: i == 0, Value: rec.IDs[p]})
	}

	if a, r := known(rec.Value(domain.FieldAspectRatio)), known(rec.Value(domain.FieldResolution)); a != "" || r != "" {
		d.FileInfo = &FileInfo{Video: []VideoStream{{Aspect: a, Height: heightOf(r)}}}
	}

	b, err := xml.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, err
	}
	// 约定：输出带 standalone="yes" 的 XML 头，便于与常见刮削器产物兼容。
	const header = `<?xml version="1.0" encoding="UTF-8" standalone="yes" ?>` + "\n"
	return append([]byte(header), b...), nil
}

func personNames(rec *domain.Record, people, plain domain.Field) []string {
	if ps := rec.People(people); len(ps) > 0 {
		names := make([]string, 0, len(ps))
		for _, p := range ps {
			names = append(names, p.Name)
		}
		return normList(names)
	}
	return normList(rec.List(plain))
}

func heightOf(res string) int {
	n, _ := strconv.Atoi(strings.TrimSuffix(strings.ToLower(res), "p"))
	return n
}

func known(v string) string {
	if !domain.IsValid(v) {
		return ""
	}
	return strings.TrimSpace(v)
}

func nonEmpty(v string) []string {
	if v == "" {
		return nil
	}
	return []string{v}
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func normList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	m := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := m[s]; ok {
			continue
		}
		m[s] = struct{}{}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
