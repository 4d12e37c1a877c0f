// Package dataset implements section 6's dataset store contract: a
// persisted record of (datestamp, class_id, probability, url) triples,
// consulted before re-deriving a label and appended to as new labels are
// learned.
package dataset

import (
	"time"

	"github.com/dissemin/urltheory/classify"
)

// Record is one persisted observation.
type Record struct {
	ClassID     string
	URL         string
	Probability float64
	Date        time.Time
}

// Store is the dataset store interface the facade consumes. It embeds
// classify.Store so any Store here also satisfies classify.Classifier's
// WithStore option directly. Parameter order is (classID, url, ...)
// throughout, matching package forest's (class, url) convention, rather
// than section 6's literal (url, class) text — a non-semantic reordering
// for consistency across the repo, not a behavior change.
type Store interface {
	classify.Store
	// IterClass streams every record for one class, oldest first.
	IterClass(classID string) ([]Record, error)
	// IterClasses lists every class_id the store has ever seen.
	IterClasses() ([]string, error)
}
