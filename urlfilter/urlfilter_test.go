package urlfilter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddURL_RejectsUnparsableURL(t *testing.T) {
	f := New()
	err := f.AddURL("", 1)
	assert.ErrorIs(t, err, ErrUnparsableURL)
}

func TestPredictSuccess_UnknownBelowMinCount(t *testing.T) {
	f := New(WithConfig(Config{ConfidenceThreshold: 0.01, MinURLsPrediction: 5}))
	require.NoError(t, f.AddURL("example.org/a", 1))

	outcome, err := f.PredictSuccess("example.org/a")
	require.NoError(t, err)
	assert.Equal(t, Unknown, outcome)
}

func TestPredictSuccess_AfterEnoughConfidentObservations(t *testing.T) {
	f := New(WithConfig(Config{ConfidenceThreshold: 0.05, MinURLsPrediction: 1}))
	for i := 0; i < 5; i++ {
		require.NoError(t, f.AddURL("example.org/a", 1))
	}
	outcome, err := f.PredictSuccess("example.org/a")
	require.NoError(t, err)
	assert.Equal(t, Success, outcome)
}

func TestAddURL_PruneDelayTriggersForcePrune(t *testing.T) {
	f := New(WithConfig(Config{PruneDelay: 3, ConfidenceThreshold: 0.05, MinURLsPrediction: 1}))
	for i := 0; i < 3; i++ {
		require.NoError(t, f.AddURL("example.org/a", 1))
	}
	require.NoError(t, f.CheckSanity())
	outcome, err := f.PredictSuccess("example.org/anything-else")
	require.NoError(t, err)
	// A collapsed wildcard at "example.org/a" should not answer for an
	// unrelated path under the same host unless pruning actually
	// collapsed that shared ancestor; this just exercises the trigger
	// without asserting which way it collapsed.
	_ = outcome
}

// Scenario 5 of the testable properties: a filter trained on a small HAL
// corpus must distinguish a confident publication page
// from a confident non-document page and stay unknown on an unrelated host.
func TestScenario_FilterPrediction(t *testing.T) {
	f := New(WithConfig(Config{
		PruneDelay:          5,
		MinURLsPrediction:   1,
		MinURLsPrune:        3,
		ConfidenceThreshold: 0.1,
	}))

	documents := []string{
		"hal.archives-ouvertes.fr/hal-0492738/document",
		"hal.archives-ouvertes.fr/hal-0583921/document",
		"hal.archives-ouvertes.fr/hal-0671234/document",
	}
	abstracts := []string{
		"hal.archives-ouvertes.fr/hal-324581",
		"hal.archives-ouvertes.fr/hal-887215",
	}
	for _, u := range documents {
		require.NoError(t, f.AddURL(u, 1))
	}
	for _, u := range abstracts {
		require.NoError(t, f.AddURL(u, 0))
	}
	require.NoError(t, f.ForcePrune())

	doc, err := f.PredictSuccess("hal.archives-ouvertes.fr/hal-0492738/document")
	require.NoError(t, err)
	assert.Equal(t, Success, doc)

	abs, err := f.PredictSuccess("hal.archives-ouvertes.fr/hal-324581")
	require.NoError(t, err)
	assert.Equal(t, Failure, abs)

	unrelated, err := f.PredictSuccess("eprints.soton.ac.uk/pub/oldcest.pdf")
	require.NoError(t, err)
	assert.Equal(t, Unknown, unrelated)
}

func TestSaveLoad_RoundTrips(t *testing.T) {
	f := New(WithConfig(Config{ConfidenceThreshold: 0.05, MinURLsPrediction: 1}))
	require.NoError(t, f.AddURL("example.org/a", 1))
	require.NoError(t, f.AddURL("example.org/b", 0))

	path := filepath.Join(t.TempDir(), "filter.gob")
	require.NoError(t, f.Save(path))

	loaded := New()
	require.NoError(t, loaded.Load(path))
	require.NoError(t, loaded.CheckSanity())

	outcome, err := loaded.PredictSuccess("example.org/a")
	require.NoError(t, err)
	assert.Equal(t, Success, outcome)

	_, statErr := os.Stat(path)
	require.NoError(t, statErr)
}

func TestClear_ResetsTreeButKeepsConfig(t *testing.T) {
	f := New(WithConfig(Config{ConfidenceThreshold: 0.05, MinURLsPrediction: 1}))
	require.NoError(t, f.AddURL("example.org/a", 1))
	f.Clear()

	outcome, err := f.PredictSuccess("example.org/a")
	require.NoError(t, err)
	assert.Equal(t, Unknown, outcome)
}
