package dataset

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStore_SetThenGetIfRecent(t *testing.T) {
	s := NewMemStore()
	require.NoError(t, s.Set("pdf", "example.org/a", 0.9, time.Now()))

	p, fresh, err := s.GetIfRecent("pdf", "example.org/a", time.Hour)
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.Equal(t, 0.9, p)
}

func TestMemStore_GetIfRecent_StaleIsMissing(t *testing.T) {
	s := NewMemStore()
	require.NoError(t, s.Set("pdf", "example.org/a", 0.9, time.Now().Add(-48*time.Hour)))

	_, fresh, err := s.GetIfRecent("pdf", "example.org/a", time.Hour)
	require.NoError(t, err)
	assert.False(t, fresh)
}

func TestMemStore_IterClassAndIterClasses(t *testing.T) {
	s := NewMemStore()
	require.NoError(t, s.Set("pdf", "a", 1, time.Now()))
	require.NoError(t, s.Set("pdf", "b", 0, time.Now()))
	require.NoError(t, s.Set("ham", "c", 1, time.Now()))

	recs, err := s.IterClass("pdf")
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	classes, err := s.IterClasses()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"pdf", "ham"}, classes)
}

func TestTSVStore_RoundTripsThroughFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dataset.tsv")

	s, err := OpenTSVStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Set("pdf", "arxiv.org/pdf/1", 1.0, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, s.Set("pdf", "gnu.org/about.html", 0.0, time.Date(2026, 7, 2, 0, 0, 0, 0, time.UTC)))

	reopened, err := OpenTSVStore(path)
	require.NoError(t, err)

	recs, err := reopened.IterClass("pdf")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "arxiv.org/pdf/1", recs[0].URL)
	assert.Equal(t, 1.0, recs[0].Probability)
	assert.Equal(t, "gnu.org/about.html", recs[1].URL)
}

func TestTSVStore_OpenMissingFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenTSVStore(filepath.Join(dir, "missing.tsv"))
	require.NoError(t, err)
	classes, err := s.IterClasses()
	require.NoError(t, err)
	assert.Empty(t, classes)
}
