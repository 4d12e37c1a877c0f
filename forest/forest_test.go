package forest

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dissemin/urltheory/urlfilter"
)

func newTestFilter() *urlfilter.URLFilter {
	return urlfilter.New(urlfilter.WithConfig(urlfilter.Config{
		ConfidenceThreshold: 0.05,
		MinURLsPrediction:   1,
	}))
}

func TestInsertAndPredict_RouteToNamedClass(t *testing.T) {
	f := New(newTestFilter)
	require.NoError(t, f.Insert("spam", "example.org/a", 1))

	outcome, err := f.Predict("spam", "example.org/a")
	require.NoError(t, err)
	assert.Equal(t, urlfilter.Success, outcome)

	outcome, err = f.Predict("ham", "example.org/a")
	require.NoError(t, err)
	assert.Equal(t, urlfilter.Unknown, outcome)
}

func TestClear_FailsWhileLockHeld(t *testing.T) {
	f := New(newTestFilter)
	require.NoError(t, f.Insert("spam", "example.org/a", 1))

	lock, _ := f.acquire("spam")
	err := f.Clear()
	assert.ErrorIs(t, err, ErrBusy)
	lock.Unlock()

	require.NoError(t, f.Clear())
}

// Scenario 6: inserting into distinct classes proceeds in parallel;
// inserting into the same class serializes; afterward, match reflects
// every insertion.
func TestScenario_ConcurrentForestAccess(t *testing.T) {
	f := New(newTestFilter)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			_ = f.Insert("classA", "example.org/a", 1)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			_ = f.Insert("classB", "example.org/b", 0)
		}
	}()
	wg.Wait()

	uA, sA, _, err := f.Match("classA", "example.org/a")
	require.NoError(t, err)
	assert.Equal(t, 20.0, uA)
	assert.Equal(t, 20.0, sA)

	uB, sB, _, err := f.Match("classB", "example.org/b")
	require.NoError(t, err)
	assert.Equal(t, 20.0, uB)
	assert.Equal(t, 0.0, sB)

	var wg2 sync.WaitGroup
	wg2.Add(2)
	for i := 0; i < 2; i++ {
		go func() {
			defer wg2.Done()
			for j := 0; j < 50; j++ {
				_ = f.Insert("shared", "example.org/c", 1)
			}
		}()
	}
	wg2.Wait()

	uC, _, _, err := f.Match("shared", "example.org/c")
	require.NoError(t, err)
	assert.Equal(t, 100.0, uC)
}

func TestSaveLoad_RoundTripsWholeForest(t *testing.T) {
	f := New(newTestFilter)
	require.NoError(t, f.Insert("spam", "example.org/a", 1))
	require.NoError(t, f.Insert("ham", "example.org/b", 0))

	dir := t.TempDir()
	treePath := filepath.Join(dir, "forest.gob")
	configPath := filepath.Join(dir, "forest.yaml")
	require.NoError(t, f.Save(treePath, configPath))

	loaded := New(newTestFilter)
	require.NoError(t, loaded.Load(treePath))

	outcome, err := loaded.Predict("spam", "example.org/a")
	require.NoError(t, err)
	assert.Equal(t, urlfilter.Success, outcome)

	assert.ElementsMatch(t, []string{"spam", "ham"}, loaded.Classes())
}
