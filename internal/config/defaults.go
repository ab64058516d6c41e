package config

import "time"

const (
	DefaultConcurrency     = 4
	MaxConcurrency         = 32
	DefaultJukeboxDir      = "Jukebox"
	DefaultCache           = "xml"
	DefaultProviderTimeout = 60 * time.Second
	DefaultPageCacheTTL    = 7 * 24 * time.Hour

	defaultIMDbBaseURL    = "https://www.imdb.com"
	defaultFilmwebBaseURL = "https://www.filmweb.pl"
	defaultTMDbBaseURL    = "https://api.themoviedb.org/3"
	defaultTMDbImageURL   = "https://image.tmdb.org/t/p/original"
	defaultTMDbLanguage   = "en-US"
	defaultLogLevel       = "info"
	defaultLogFormat      = "console"
	tmdbAPIKeyEnv         = "TMDB_API_KEY"
	defaultPerHostRPS     = 2.0
)

func defaultMetadataProviders() []string { return []string{"nfo", "filename", "imdb"} }
func defaultPosterProviders() []string   { return []string{"tmdb", "imdb"} }
func defaultFanartProviders() []string   { return []string{"tmdb"} }
func defaultSearchEngines() []string     { return []string{"duckduckgo", "bing"} }
