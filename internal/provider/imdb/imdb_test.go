package imdb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/jukebox/internal/domain"
	"github.com/John-Robertt/jukebox/internal/infra/cache"
	"github.com/John-Robertt/jukebox/internal/override"
	"github.com/John-Robertt/jukebox/internal/provider"
)

const titlePage = `<html><head>
<script type="application/ld+json">{
  "@type": "Movie",
  "name": "Heat",
  "description": "A group of high-end professional thieves start to feel the heat from the LAPD.",
  "image": "https://m.media-amazon.com/images/M/heat.jpg",
  "datePublished": "1995-12-15",
  "duration": "PT2H50M",
  "contentRating": "R",
  "genre": ["Action", "Crime", "Drama"],
  "actor": [
    {"@type": "Person", "name": "Al Pacino", "url": "/name/nm0000199/"},
    {"@type": "Person", "name": "Robert De Niro", "url": "/name/nm0000134/"}
  ],
  "director": {"@type": "Person", "name": "Michael Mann", "url": "/name/nm0000520/"},
  "creator": [
    {"@type": "Organization", "url": "/company/co0002663/"},
    {"@type": "Person", "name": "Michael Mann", "url": "/name/nm0000520/"}
  ]
}</script></head><body>
<li data-testid="title-details-origin"><ul><li class="ipc-metadata-list-item__list-content-item">United States</li></ul></li>
<li data-testid="title-details-companies"><ul><li class="ipc-metadata-list-item__list-content-item">Warner Bros.</li><li class="ipc-metadata-list-item__list-content-item">Regency Enterprises</li></ul></li>
<li data-testid="title-details-languages"><ul><li class="ipc-metadata-list-item__list-content-item">English</li><li class="ipc-metadata-list-item__list-content-item">Spanish</li></ul></li>
<li data-testid="storyline-taglines"><ul><li class="ipc-metadata-list-item__list-content-item">A Los Angeles crime saga</li></ul></li>
</body></html>`

const findPage = `<html><body><ul>
<li class="find-result-item"><a href="/title/tt9999999/">Heat</a> 2013</li>
<li class="find-result-item"><a href="/title/tt0113277/?ref_=fn_al_tt_1">Heat</a> 1995</li>
</ul></body></html>`

type site struct {
	srv       *httptest.Server
	titleHits atomic.Int32
	titleBody string
	findBody  string
}

func newSite(t *testing.T) *site {
	s := &site{titleBody: titlePage, findBody: findPage}
	mux := http.NewServeMux()
	mux.HandleFunc("/find/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(s.findBody))
	})
	mux.HandleFunc("/title/tt0113277/", func(w http.ResponseWriter, r *http.Request) {
		s.titleHits.Add(1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(s.titleBody))
	})
	s.srv = httptest.NewServer(mux)
	t.Cleanup(s.srv.Close)
	return s
}

func (s *site) deps(t *testing.T) provider.Deps {
	return provider.Deps{Client: s.srv.Client(), IMDbBaseURL: s.srv.URL, Pages: cache.NewPages(t.TempDir(), false)}
}

func TestScan_FindThenParse(t *testing.T) {
	s := newSite(t)
	p := New(s.deps(t))

	rec := domain.NewRecord("Heat (1995)", domain.KindMovie)
	w := override.NewWriter(override.MustDefault(), rec)
	w.TrySet(domain.FieldTitle, "Heat", "filename")
	w.TrySet(domain.FieldYear, "1995", "filename")

	found, err := p.Scan(context.Background(), rec, override.NewWriter(override.MustDefault(), rec))
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, "tt0113277", rec.ID(Name), "应选择年份匹配的结果")
	assert.Equal(t, "Heat", rec.Value(domain.FieldTitle))
	assert.Equal(t, Name, rec.Source(domain.FieldTitle), "imdb 排在 filename 之前，应覆盖")
	assert.Equal(t, "170", rec.Value(domain.FieldRuntime))
	assert.Equal(t, "1995-12-15", rec.Value(domain.FieldReleaseDate))
	assert.Equal(t, "R", rec.Value(domain.FieldCertification))
	assert.Equal(t, "United States", rec.Value(domain.FieldCountry))
	assert.Equal(t, "Warner Bros.", rec.Value(domain.FieldCompany))
	assert.Equal(t, "English / Spanish", rec.Value(domain.FieldLanguage))
	assert.Equal(t, "A Los Angeles crime saga", rec.Value(domain.FieldTagline))
	assert.Equal(t, []string{"Action", "Crime", "Drama"}, rec.List(domain.FieldGenres))
	assert.Equal(t, []string{"Michael Mann"}, rec.List(domain.FieldWriters), "Organization 应被过滤")

	people := rec.People(domain.FieldPeopleActors)
	require.Len(t, people, 2)
	assert.Equal(t, "nm0000199", people[0].ID)
	assert.Equal(t, s.srv.URL+"/name/nm0000199/", people[0].URL)
}

func TestScan_UsesPageCache(t *testing.T) {
	s := newSite(t)
	d := s.deps(t)
	p := New(d)

	for i := 0; i < 2; i++ {
		rec := domain.NewRecord("Heat", domain.KindMovie)
		rec.SetID(Name, "tt0113277")
		_, err := p.Scan(context.Background(), rec, override.NewWriter(override.MustDefault(), rec))
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, s.titleHits.Load(), "第二次应命中页面缓存")
}

func TestScan_BlockedPageNotCached(t *testing.T) {
	s := newSite(t)
	s.titleBody = `<html><script>window.awsWafIntegration = {}</script></html>`
	p := New(s.deps(t))

	rec := domain.NewRecord("Heat", domain.KindMovie)
	rec.SetID(Name, "tt0113277")
	_, err := p.Scan(context.Background(), rec, override.NewWriter(override.MustDefault(), rec))
	var be *provider.BlockedError
	require.True(t, errors.As(err, &be), "期望 BlockedError，实际 %v", err)

	s.titleBody = titlePage
	found, err := p.Scan(context.Background(), rec, override.NewWriter(override.MustDefault(), rec))
	require.NoError(t, err)
	assert.True(t, found)
	assert.EqualValues(t, 2, s.titleHits.Load(), "拦截页不应进入缓存")
}

func TestScan_StaleIDIsNotFound(t *testing.T) {
	s := newSite(t)
	rec := domain.NewRecord("Heat", domain.KindMovie)
	rec.SetID(Name, "tt0000001")

	found, err := New(s.deps(t)).Scan(context.Background(), rec, override.NewWriter(override.MustDefault(), rec))
	require.NoError(t, err, "404 应按没找到处理")
	assert.False(t, found)
	assert.Equal(t, domain.Unknown, rec.Value(domain.FieldTitle))
}

type fakeSearch struct{ url string }

func (f fakeSearch) Find(context.Context, string, string) (string, error) { return f.url, nil }

func TestResolveID_SearchFallback(t *testing.T) {
	s := newSite(t)
	s.findBody = `<html><body>No results</body></html>`
	d := s.deps(t)
	d.Search = fakeSearch{url: "https://www.imdb.com/title/tt0113277/"}

	id, err := New(d).ResolveID(context.Background(), "Heat", 1995)
	require.NoError(t, err)
	assert.Equal(t, "tt0113277", id)

	d.Search = fakeSearch{}
	id, err = New(d).ResolveID(context.Background(), "Heat", 1995)
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestScan_SkipsNetworkWhenNothingWritable(t *testing.T) {
	s := newSite(t)
	settings := override.DefaultSettings()
	settings.SkipNotInList = true
	settings.Movie = map[string]string{}
	for _, f := range domain.Fields() {
		settings.Movie[string(f)] = "nfo"
	}
	pol, err := override.New(settings)
	require.NoError(t, err)

	rec := domain.NewRecord("Heat", domain.KindMovie)
	rec.SetID(Name, "tt0113277")
	found, err := New(s.deps(t)).Scan(context.Background(), rec, override.NewWriter(pol, rec))
	require.NoError(t, err)
	assert.False(t, found)
	assert.EqualValues(t, 0, s.titleHits.Load())
}

func TestScanNFO(t *testing.T) {
	p := New(provider.Deps{})
	rec := domain.NewRecord("Heat", domain.KindMovie)
	assert.True(t, p.ScanNFO("https://www.imdb.com/title/tt0113277/", rec))
	assert.Equal(t, "tt0113277", rec.ID(Name))
	assert.False(t, p.ScanNFO("nothing", domain.NewRecord("x", domain.KindMovie)))
}

func TestPoster_ImageURL(t *testing.T) {
	s := newSite(t)
	u, err := NewPoster(s.deps(t)).ImageURL(context.Background(), "tt0113277")
	require.NoError(t, err)
	assert.Equal(t, "https://m.media-amazon.com/images/M/heat.jpg", u)
}

func TestParse_NoJSONLD(t *testing.T) {
	_, err := Parse("tt0113277", []byte("<html></html>"), DefaultBaseURL)
	assert.ErrorIs(t, err, ErrNoData)
}
