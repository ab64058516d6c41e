package naming

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/John-Robertt/jukebox/internal/domain"
)

func video(dir, name string) domain.VideoFile {
	ext := filepath.Ext(name)
	return domain.VideoFile{
		AbsPath: filepath.Join(string(filepath.Separator), "lib", dir, name),
		Base:    name[:len(name)-len(ext)],
		Ext:     ext,
	}
}

func TestExtract_MovieWithYearAndTags(t *testing.T) {
	id, err := Extract(video("movies", "heat.1995.1080p.BluRay.x264.mkv"))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if id.Kind != domain.KindMovie || id.Title != "Heat" || id.Year != 1995 {
		t.Fatalf("解析结果不正确：%+v", id)
	}
	if id.Resolution != "1080p" || id.VideoSource != "BluRay" || id.Container != "MKV" {
		t.Fatalf("技术标签不正确：%+v", id)
	}
	if id.Key != "heat.1995.1080p.BluRay.x264" {
		t.Fatalf("Key 应为 base name，实际 %q", id.Key)
	}
}

func TestExtract_MovieParenthesizedYearKeepsCase(t *testing.T) {
	id, err := Extract(video("movies", "The McDonald Story (2004).avi"))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if id.Title != "The McDonald Story" || id.Year != 2004 {
		t.Fatalf("解析结果不正确：%+v", id)
	}
}

func TestExtract_TitleThatIsAYear(t *testing.T) {
	id, err := Extract(video("movies", "1917.2019.2160p.WEB-DL.mkv"))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if id.Title != "1917" || id.Year != 2019 || id.Resolution != "2160p" || id.VideoSource != "WEB-DL" {
		t.Fatalf("解析结果不正确：%+v", id)
	}
}

func TestExtract_MultiPartSharesKey(t *testing.T) {
	a, err := Extract(video("movies", "Seven Samurai 1954 CD1.mkv"))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	b, err := Extract(video("movies", "Seven Samurai 1954 cd2.mkv"))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if a.Key != b.Key || a.Key != "Seven Samurai 1954" {
		t.Fatalf("多段文件应共享 Key：%q vs %q", a.Key, b.Key)
	}
	if a.Part != 1 || b.Part != 2 {
		t.Fatalf("part 不正确：%d %d", a.Part, b.Part)
	}
}

func TestExtract_EpisodeGroupsBySeason(t *testing.T) {
	id, err := Extract(video("tv", "breaking.bad.S02E05.720p.HDTV.mkv"))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if id.Kind != domain.KindTV || id.Title != "Breaking Bad" || id.Season != 2 || id.Episode != 5 {
		t.Fatalf("解析结果不正确：%+v", id)
	}
	if id.Key != "Breaking.Bad.S02" {
		t.Fatalf("剧集 Key 不正确：%q", id.Key)
	}
}

func TestExtract_EpisodeShowFromDirectory(t *testing.T) {
	v := domain.VideoFile{
		AbsPath: filepath.Join(string(filepath.Separator), "lib", "The Wire", "Season 3", "S03E01.mkv"),
		Base:    "S03E01",
		Ext:     ".mkv",
	}
	id, err := Extract(v)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if id.Title != "The Wire" || id.Key != "The.Wire.S03" {
		t.Fatalf("解析结果不正确：%+v", id)
	}
}

func TestExtract_CrossNotation(t *testing.T) {
	id, err := Extract(video("tv", "Firefly 1x03.avi"))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if id.Kind != domain.KindTV || id.Season != 1 || id.Episode != 3 || id.Title != "Firefly" {
		t.Fatalf("解析结果不正确：%+v", id)
	}
}

func TestExtract_NoTitle(t *testing.T) {
	_, err := Extract(video("x", ".1080p.mkv"))
	var ue *UnmatchedError
	if !errors.As(err, &ue) {
		t.Fatalf("期望 UnmatchedError，实际 %v", err)
	}
}
