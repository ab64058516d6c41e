// Package builtin 是内置 provider 的静态工厂表（id -> 构造函数）。
package builtin

import (
	"github.com/John-Robertt/jukebox/internal/provider"
	"github.com/John-Robertt/jukebox/internal/provider/filename"
	"github.com/John-Robertt/jukebox/internal/provider/filmweb"
	"github.com/John-Robertt/jukebox/internal/provider/imdb"
	"github.com/John-Robertt/jukebox/internal/provider/nfo"
	"github.com/John-Robertt/jukebox/internal/provider/tmdb"
)

// Table 返回全部内置 provider。
//
// 约束：filmweb 的 fallback 固定为 imdb（独立实例，与 metadata 列表里的 imdb 无关）。
func Table() provider.Table {
	return provider.Table{
		filename.Name: {
			Metadata: func(provider.Deps) (provider.MetadataProvider, error) { return filename.New(), nil },
		},
		nfo.Name: {
			Metadata: func(provider.Deps) (provider.MetadataProvider, error) { return nfo.New(), nil },
		},
		imdb.Name: {
			Metadata: func(d provider.Deps) (provider.MetadataProvider, error) { return imdb.New(d), nil },
			Poster:   func(d provider.Deps) (provider.ArtworkProvider, error) { return imdb.NewPoster(d), nil },
		},
		filmweb.Name: {
			Metadata: func(d provider.Deps) (provider.MetadataProvider, error) {
				return filmweb.New(d, imdb.New(d)), nil
			},
		},
		tmdb.Name: {
			Poster: func(d provider.Deps) (provider.ArtworkProvider, error) { return tmdb.NewPoster(d), nil },
			Fanart: func(d provider.Deps) (provider.ArtworkProvider, error) { return tmdb.NewFanart(d), nil },
		},
	}
}
