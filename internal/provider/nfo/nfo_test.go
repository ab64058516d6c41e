package nfo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/jukebox/internal/domain"
	"github.com/John-Robertt/jukebox/internal/override"
)

const heatNFO = `<movie>
  <title>Heat</title>
  <year>1995</year>
  <plot>Cops and robbers.</plot>
  <country>USA</country>
  <studio>Warner Bros.</studio>
  <genre>Crime</genre>
  <director>Michael Mann</director>
  <actor><name>Al Pacino</name><role>Vincent Hanna</role></actor>
  <actor><name>Robert De Niro</name><role>Neil McCauley</role></actor>
  <actor><name>Val Kilmer</name></actor>
  <uniqueid type="imdb">tt0113277</uniqueid>
</movie>`

func writeNFO(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "Heat.nfo")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestScan_WritesNFOFields(t *testing.T) {
	rec := domain.NewRecord("Heat", domain.KindMovie)
	rec.NFOPath = writeNFO(t, heatNFO)

	found, err := New().Scan(context.Background(), rec, override.NewWriter(override.MustDefault(), rec))
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, "Heat", rec.Value(domain.FieldTitle))
	assert.Equal(t, "nfo", rec.Source(domain.FieldTitle))
	assert.Equal(t, "1995", rec.Value(domain.FieldYear))
	assert.Equal(t, "USA", rec.Value(domain.FieldCountry))
	assert.Equal(t, "Warner Bros.", rec.Value(domain.FieldCompany))
	assert.Equal(t, []string{"Crime"}, rec.List(domain.FieldGenres))
	assert.Equal(t, []string{"Al Pacino", "Robert De Niro", "Val Kilmer"}, rec.List(domain.FieldActors))
	assert.Equal(t, "Vincent Hanna", rec.People(domain.FieldPeopleActors)[0].Character)
	assert.Equal(t, "tt0113277", rec.ID("imdb"))
	assert.Equal(t, domain.Unknown, rec.Value(domain.FieldTagline))
}

func TestScan_ActorMaxTruncates(t *testing.T) {
	s := override.DefaultSettings()
	s.MaxActor = 2
	p, err := override.New(s)
	require.NoError(t, err)

	rec := domain.NewRecord("Heat", domain.KindMovie)
	rec.NFOPath = writeNFO(t, heatNFO)
	_, err = New().Scan(context.Background(), rec, override.NewWriter(p, rec))
	require.NoError(t, err)
	assert.Len(t, rec.List(domain.FieldActors), 2)
	assert.Len(t, rec.People(domain.FieldPeopleActors), 2)
}

func TestScan_NoNFOOrPlainText(t *testing.T) {
	rec := domain.NewRecord("Heat", domain.KindMovie)
	found, err := New().Scan(context.Background(), rec, override.NewWriter(override.MustDefault(), rec))
	require.NoError(t, err)
	assert.False(t, found)

	rec.NFOPath = writeNFO(t, "https://www.imdb.com/title/tt0113277/")
	found, err = New().Scan(context.Background(), rec, override.NewWriter(override.MustDefault(), rec))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestScanNFO_IDs(t *testing.T) {
	rec := domain.NewRecord("Heat", domain.KindMovie)
	assert.True(t, New().ScanNFO(heatNFO, rec))
	assert.Equal(t, "tt0113277", rec.ID("imdb"))
	assert.False(t, New().ScanNFO("no xml here", rec))
}
