// Package naming 从视频文件名推出记录身份（Key / Kind / 标题 / 年份 / 季集）以及少量技术标签。
package naming

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/John-Robertt/jukebox/internal/domain"
)

var (
	episodeRE = regexp.MustCompile(`(?i)^(.*?)[\s._-]*s(\d{1,2})[\s._-]*e(\d{1,3})`)
	crossRE   = regexp.MustCompile(`(?i)^(.*?)[\s._-]+(\d{1,2})x(\d{2,3})(?:[\s._-]|$)`)
	yearRE    = regexp.MustCompile(`[\s._(\[-]((?:19|20)\d{2})\b`)
	partRE    = regexp.MustCompile(`(?i)[\s._-]+(?:cd|part|pt|disc|disk)[\s._-]*(\d{1,2})$`)
	resRE     = regexp.MustCompile(`(?i)(?:^|[\s._-])(2160p|1080[pi]|720p|576p|480p|4k)(?:[\s._-]|$)`)
	sepRE     = regexp.MustCompile(`[\s._]+`)
)

// 识别为“技术标签”的片段：遇到它们时标题到此为止。
var sourceTags = []struct {
	re    *regexp.Regexp
	label string
}{
	{regexp.MustCompile(`(?i)(?:^|[\s._-])(blu-?ray|bdrip|brrip|bdremux)(?:[\s._-]|$)`), "BluRay"},
	{regexp.MustCompile(`(?i)(?:^|[\s._-])(web-?dl|webrip|web)(?:[\s._-]|$)`), "WEB-DL"},
	{regexp.MustCompile(`(?i)(?:^|[\s._-])(hdtv)(?:[\s._-]|$)`), "HDTV"},
	{regexp.MustCompile(`(?i)(?:^|[\s._-])(dvdrip|dvd5|dvd9|dvd)(?:[\s._-]|$)`), "DVD"},
	{regexp.MustCompile(`(?i)(?:^|[\s._-])(hddvd)(?:[\s._-]|$)`), "HDDVD"},
}

var noiseRE = regexp.MustCompile(`(?i)(?:^|[\s._-])(x26[45]|h\.?26[45]|hevc|xvid|divx|aac|ac3|dts|remux|proper|repack|extended|unrated)(?:[\s._-]|$)`)

// Identity 是从文件名得到的全部信息。
type Identity struct {
	Key     string
	Kind    domain.Kind
	Title   string
	Year    int
	Season  int
	Episode int
	Part    int

	Resolution  string // 例如 1080p
	VideoSource string // 例如 BluRay
	Container   string // 例如 MKV
}

type UnmatchedError struct {
	Base string
}

func (e *UnmatchedError) Error() string {
	return fmt.Sprintf("无法从文件名解析出标题：%q", e.Base)
}

// Extract 从 VideoFile 的文件名（必要时参考父目录名）提取身份。
//
// 规则：
// - SxxEyy / NxMM 视为剧集，Key 为 "<Show>.S<nn>"（同一季的所有集聚合为一条记录）
// - 电影的 Key 为去掉 CD/Part 后缀的 base name（多段文件聚合为一条记录）
// - 标题在年份或第一个技术标签处截断；全大写/全小写的标题做 Title Case
func Extract(v domain.VideoFile) (Identity, error) {
	base := strings.TrimSpace(v.Base)
	id := Identity{
		Kind:      domain.KindMovie,
		Container: strings.ToUpper(strings.TrimPrefix(v.Ext, ".")),
	}
	if m := resRE.FindStringSubmatch(base); m != nil {
		id.Resolution = strings.ToLower(m[1])
		if id.Resolution == "4k" {
			id.Resolution = "2160p"
		}
	}
	for _, t := range sourceTags {
		if t.re.MatchString(base) {
			id.VideoSource = t.label
			break
		}
	}

	if show, season, episode, ok := matchEpisode(base); ok {
		if show == "" {
			// "S01E02.mkv" 这种：剧名取父目录（跳过 "Season 1" 这一层）。
			show = showFromDir(v.AbsPath)
		}
		title := cleanTitle(show)
		if title == "" {
			return Identity{}, &UnmatchedError{Base: base}
		}
		id.Kind = domain.KindTV
		id.Title = title
		id.Season = season
		id.Episode = episode
		id.Year = findYear(show)
		id.Key = fmt.Sprintf("%s.S%02d", keyPart(title), season)
		return id, nil
	}

	stem := base
	if m := partRE.FindStringSubmatchIndex(stem); m != nil {
		id.Part, _ = strconv.Atoi(stem[m[2]:m[3]])
		stem = strings.TrimSpace(stem[:m[0]])
	}
	id.Key = stem
	id.Year = findYear(stem)

	id.Title = cleanTitle(stem)
	if id.Title == "" {
		return Identity{}, &UnmatchedError{Base: base}
	}
	return id, nil
}

func matchEpisode(base string) (show string, season, episode int, ok bool) {
	m := episodeRE.FindStringSubmatch(base)
	if m == nil {
		m = crossRE.FindStringSubmatch(base)
	}
	if m == nil {
		return "", 0, 0, false
	}
	season, _ = strconv.Atoi(m[2])
	episode, _ = strconv.Atoi(m[3])
	return strings.TrimSpace(m[1]), season, episode, true
}

var seasonDirRE = regexp.MustCompile(`(?i)^(season|series|s)[\s._-]*\d+$`)

func showFromDir(abs string) string {
	dir := filepath.Dir(abs)
	name := filepath.Base(dir)
	if seasonDirRE.MatchString(name) {
		name = filepath.Base(filepath.Dir(dir))
	}
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	return name
}

func findYear(s string) int {
	padded := " " + s
	m := yearRE.FindAllStringSubmatchIndex(padded, -1)
	if len(m) == 0 {
		return 0
	}
	// 取最后一个：标题里本身带年份的电影（"2001 A Space Odyssey 1968"）以末尾为准。
	// 位于开头的唯一年份是片名（"1917"），不算发行年份。
	last := m[len(m)-1]
	if last[0] == 0 {
		return 0
	}
	y, _ := strconv.Atoi(padded[last[2]:last[3]])
	return y
}

// cleanTitle 在年份 / 技术标签处截断，并把分隔符还原为空格。
func cleanTitle(s string) string {
	cut := len(s)
	padded := " " + s
	if m := yearRE.FindAllStringSubmatchIndex(padded, -1); len(m) > 0 {
		// 年份位于开头时（片名就是年份）不截断。
		last := m[len(m)-1]
		if last[0] > 0 {
			cut = min(cut, last[0])
		}
	}
	for _, re := range append(tagPatterns(), resRE, noiseRE) {
		if loc := re.FindStringIndex(padded); loc != nil && loc[0] > 0 {
			cut = min(cut, loc[0])
		}
	}
	title := s[:max(0, min(cut, len(s)))]
	title = sepRE.ReplaceAllString(title, " ")
	title = strings.Trim(title, " -([")
	return normalizeCase(title)
}

func tagPatterns() []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(sourceTags))
	for _, t := range sourceTags {
		out = append(out, t.re)
	}
	return out
}

// normalizeCase 只处理“明显没有大小写信息”的标题，保留 "McDonald" 这类原样写法。
func normalizeCase(s string) string {
	if s == "" {
		return s
	}
	if s == strings.ToLower(s) || s == strings.ToUpper(s) {
		// cases.Caser 有状态，不能跨 goroutine 共享。
		return cases.Title(language.Und).String(strings.ToLower(s))
	}
	return s
}

func keyPart(title string) string {
	return strings.ReplaceAll(title, " ", ".")
}
