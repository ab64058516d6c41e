package override

import "github.com/John-Robertt/jukebox/internal/domain"

// 默认优先级（movie 与 tv 共用同一张表）。
// 约束：这里的 source 必须是小写；mediainfo 是内置来源名，即使没有注册 provider 也保留在表中。
var defaultPriorities = map[domain.Field]string{
	domain.FieldActors:        "nfo,imdb",
	domain.FieldCertification: "nfo,imdb",
	domain.FieldCompany:       "nfo,imdb",
	domain.FieldCountry:       "nfo,imdb",
	domain.FieldDirectors:     "nfo,imdb",
	domain.FieldGenres:        "nfo,imdb",
	domain.FieldOriginalTitle: "nfo,imdb",
	domain.FieldOutline:       "nfo,imdb",
	domain.FieldPlot:          "nfo,imdb",
	domain.FieldQuote:         "nfo,imdb",
	domain.FieldReleaseDate:   "nfo,imdb",
	domain.FieldTagline:       "nfo,imdb",

	domain.FieldAspectRatio: "nfo,mediainfo,imdb",

	domain.FieldContainer:   "nfo,mediainfo,filename",
	domain.FieldFPS:         "nfo,mediainfo,filename",
	domain.FieldLanguage:    "nfo,mediainfo,filename",
	domain.FieldVideoOutput: "nfo,mediainfo,filename",

	domain.FieldResolution:  "nfo,mediainfo",
	domain.FieldRuntime:     "nfo,mediainfo,filename,imdb",
	domain.FieldTitle:       "nfo,imdb,filename",
	domain.FieldYear:        "nfo,imdb,filename",
	domain.FieldVideoSource: "nfo,filename,mediainfo",
	domain.FieldWriters:     "nfo,filename",

	domain.FieldPeopleActors:    "imdb,nfo",
	domain.FieldPeopleDirectors: "imdb,nfo",
	domain.FieldPeopleWriters:   "imdb,nfo",
}

const (
	DefaultMaxDirector = 2
	DefaultMaxWriter   = 3
	DefaultMaxActor    = 10
)

// DefaultSettings 返回未做任何配置时的设置。
func DefaultSettings() Settings {
	return Settings{
		MaxDirector: DefaultMaxDirector,
		MaxWriter:   DefaultMaxWriter,
		MaxActor:    DefaultMaxActor,
	}
}

// MediaInfoSource 是本地媒体探测的来源名（本仓库不实现该 provider，但优先级表引用它）。
const MediaInfoSource = "mediainfo"
