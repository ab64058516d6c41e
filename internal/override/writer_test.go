package override

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/jukebox/internal/domain"
)

func TestWriter_ActorListTruncatedAndClearedOnce(t *testing.T) {
	p := MustDefault()
	r := domain.NewRecord("r", domain.KindMovie)

	names := make([]string, 15)
	for i := range names {
		names[i] = fmt.Sprintf("Actor %02d", i+1)
	}
	w := NewWriter(p, r)
	require.True(t, w.TrySetList(domain.FieldActors, names, "nfo"))

	got := r.List(domain.FieldActors)
	require.Len(t, got, 10)
	assert.Equal(t, "Actor 01", got[0])
	assert.Equal(t, "Actor 10", got[9])
	assert.Equal(t, "nfo", r.Source(domain.FieldActors))
}

func TestWriter_ListReplacedNotMerged(t *testing.T) {
	p := MustDefault()
	r := domain.NewRecord("r", domain.KindMovie)

	require.True(t, NewWriter(p, r).TrySetList(domain.FieldGenres, []string{"Crime", "Thriller", "Drama"}, "imdb"))
	require.True(t, NewWriter(p, r).TrySetList(domain.FieldGenres, []string{"Action"}, "nfo"))

	assert.Equal(t, []string{"Action"}, r.List(domain.FieldGenres))
	assert.Equal(t, "nfo", r.Source(domain.FieldGenres))
}

func TestWriter_SamePassAppends(t *testing.T) {
	p := MustDefault()
	r := domain.NewRecord("r", domain.KindMovie)
	w := NewWriter(p, r)

	lw := w.BeginList(domain.FieldDirectors, "imdb")
	require.NotNil(t, lw)
	assert.True(t, lw.Add("Michael Mann"))

	lw2 := w.BeginList(domain.FieldDirectors, "imdb")
	require.NotNil(t, lw2)
	assert.True(t, lw2.Add("Someone Else"))
	assert.False(t, lw2.Add("Third"), "director 上限为 2")

	assert.Equal(t, []string{"Michael Mann", "Someone Else"}, r.List(domain.FieldDirectors))

	// 下一个 pass：同来源重写会先清空。
	w2 := NewWriter(p, r)
	require.True(t, w2.TrySetList(domain.FieldDirectors, []string{"Ridley Scott"}, "imdb"))
	assert.Equal(t, []string{"Ridley Scott"}, r.List(domain.FieldDirectors))
}

func TestWriter_BeginListDoesNotClearUntilAdd(t *testing.T) {
	p := MustDefault()
	r := domain.NewRecord("r", domain.KindMovie)
	require.True(t, NewWriter(p, r).TrySetList(domain.FieldGenres, []string{"Crime"}, "imdb"))

	w := NewWriter(p, r)
	lw := w.BeginList(domain.FieldGenres, "nfo")
	require.NotNil(t, lw)
	assert.Equal(t, []string{"Crime"}, r.List(domain.FieldGenres))
	assert.Equal(t, "imdb", r.Source(domain.FieldGenres))
	assert.Empty(t, w.Written())

	assert.False(t, w.TrySetList(domain.FieldGenres, []string{" ", domain.Unknown}, "nfo"))
	assert.Equal(t, "imdb", r.Source(domain.FieldGenres), "全部无效值不应清空旧列表")
}

func TestWriter_DeniedListReturnsNil(t *testing.T) {
	p := MustDefault()
	r := domain.NewRecord("r", domain.KindMovie)
	require.True(t, NewWriter(p, r).TrySetList(domain.FieldGenres, []string{"Crime"}, "nfo"))

	w := NewWriter(p, r)
	assert.Nil(t, w.BeginList(domain.FieldGenres, "imdb"))
	var lw *ListWriter
	assert.False(t, lw.Add("x"), "nil ListWriter 的 Add 必须安全")
}

func TestWriter_PeopleSeparateFromNames(t *testing.T) {
	p := MustDefault()
	r := domain.NewRecord("r", domain.KindMovie)

	require.True(t, NewWriter(p, r).TrySetList(domain.FieldActors, []string{"Al Pacino"}, "nfo"))
	require.True(t, NewWriter(p, r).TrySetPeople(domain.FieldPeopleActors, []domain.Person{
		{Name: "Al Pacino", ID: "nm0000199"},
		{Name: ""},
	}, "imdb"))

	assert.Equal(t, "nfo", r.Source(domain.FieldActors))
	assert.Equal(t, "imdb", r.Source(domain.FieldPeopleActors))
	people := r.People(domain.FieldPeopleActors)
	require.Len(t, people, 1)
	assert.Equal(t, "nm0000199", people[0].ID)

	// nfo 在 people.* 上排在 imdb 之后。
	assert.False(t, NewWriter(p, r).TrySetPeople(domain.FieldPeopleActors, []domain.Person{{Name: "X"}}, "nfo"))
}

func TestWriter_TrySetRejectsInvalidValues(t *testing.T) {
	p := MustDefault()
	r := domain.NewRecord("r", domain.KindMovie)
	w := NewWriter(p, r)

	assert.False(t, w.TrySet(domain.FieldPlot, "  ", "nfo"))
	assert.False(t, w.TrySet(domain.FieldPlot, "unknown", "nfo"))
	assert.Equal(t, domain.Unknown, r.Source(domain.FieldPlot))

	assert.True(t, w.TrySet(domain.FieldPlot, "text", "NFO"))
	assert.Equal(t, "nfo", r.Source(domain.FieldPlot), "来源统一小写")
	assert.Equal(t, []domain.Field{domain.FieldPlot}, w.Written())
}

func TestWriter_PassCommitAndDiscard(t *testing.T) {
	p := MustDefault()
	r := domain.NewRecord("r", domain.KindMovie)
	require.True(t, NewWriter(p, r).TrySetList(domain.FieldActors, []string{"Al Pacino", "Robert De Niro"}, "imdb"))

	w := NewPass(p, r)
	require.True(t, w.TrySet(domain.FieldPlot, "draft", "nfo"))
	require.True(t, w.TrySetList(domain.FieldActors, []string{"Someone"}, "nfo"))
	w.SetID("nfo", "42")

	// 提交前记录不变，草稿里能看到本 pass 的写入。
	assert.Equal(t, domain.Unknown, r.Value(domain.FieldPlot))
	assert.Equal(t, []string{"Al Pacino", "Robert De Niro"}, r.List(domain.FieldActors))
	assert.Equal(t, "draft", w.Record().Value(domain.FieldPlot))

	w.Discard()
	assert.Empty(t, w.Written())
	assert.Equal(t, "imdb", r.Source(domain.FieldActors))
	assert.Empty(t, r.ID("nfo"))

	w2 := NewPass(p, r)
	require.True(t, w2.TrySetList(domain.FieldActors, []string{"Someone"}, "nfo"))
	w2.SetID("nfo", "42")
	w2.Commit()
	assert.Equal(t, []string{"Someone"}, r.List(domain.FieldActors))
	assert.Equal(t, "nfo", r.Source(domain.FieldActors))
	assert.Equal(t, "42", r.ID("nfo"))
	assert.Equal(t, []domain.Field{domain.FieldActors}, w2.Written())
}

func TestWriter_CleansScrapedText(t *testing.T) {
	p := MustDefault()
	r := domain.NewRecord("r", domain.KindMovie)
	w := NewWriter(p, r)

	assert.True(t, w.TrySet(domain.FieldPlot, "a\vb\x01c", "imdb"))
	assert.Equal(t, "abc", r.Value(domain.FieldPlot))
	assert.True(t, w.TrySet(domain.FieldTagline, "x\xffy", "imdb"))
	assert.Equal(t, "xy", r.Value(domain.FieldTagline))
	assert.False(t, w.TrySet(domain.FieldOutline, "\x01\x02", "imdb"), "清理后为空的值不写入")

	require.True(t, w.TrySetPeople(domain.FieldPeopleActors, []domain.Person{{Name: "Al\x00 Pacino", Character: "Vincent\x1f Hanna"}}, "imdb"))
	assert.Equal(t, []domain.Person{{Name: "Al Pacino", Character: "Vincent Hanna"}}, r.People(domain.FieldPeopleActors))
}
