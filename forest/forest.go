// Package forest collects per-class URLFilters behind one mutex per class,
// so insertion and prediction on different classes proceed concurrently
// while operations on the same class serialize.
package forest

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/dissemin/urltheory/preftree"
	"github.com/dissemin/urltheory/token"
	"github.com/dissemin/urltheory/urlfilter"
)

// ErrBusy is returned by Clear when any class's lock is currently held.
var ErrBusy = errors.New("forest: clear: a class lock is held")

// Forest maps class_id to URLFilter. The bootstrap mutex is held only long
// enough to look up or create a class's lock and filter, never across a
// tree operation, matching the teacher's pattern of narrow, short-held
// locks rather than one coarse lock.
type Forest struct {
	newFilter func() *urlfilter.URLFilter

	bootstrap sync.Mutex
	locks     map[string]*sync.Mutex
	filters   map[string]*urlfilter.URLFilter
}

// New builds an empty Forest. newFilter is called once per class, the first
// time that class is touched, to construct its URLFilter.
func New(newFilter func() *urlfilter.URLFilter) *Forest {
	return &Forest{
		newFilter: newFilter,
		locks:     make(map[string]*sync.Mutex),
		filters:   make(map[string]*urlfilter.URLFilter),
	}
}

func (f *Forest) acquire(class string) (*sync.Mutex, *urlfilter.URLFilter) {
	f.bootstrap.Lock()
	lock, ok := f.locks[class]
	if !ok {
		lock = &sync.Mutex{}
		f.locks[class] = lock
		f.filters[class] = f.newFilter()
	}
	filter := f.filters[class]
	f.bootstrap.Unlock()

	lock.Lock()
	return lock, filter
}

// Insert adds one observation to class's filter. outcome is a probability in
// [0,1]; a plain boolean promotes to 1 or 0.
func (f *Forest) Insert(class, url string, outcome float64) error {
	lock, filter := f.acquire(class)
	defer lock.Unlock()
	return filter.AddURL(url, outcome)
}

// Predict asks class's filter for a prediction on url.
func (f *Forest) Predict(class, url string) (urlfilter.Outcome, error) {
	lock, filter := f.acquire(class)
	defer lock.Unlock()
	return filter.PredictSuccess(url)
}

// Match performs a raw tree match against class's filter, bypassing the
// prediction confidence gate.
func (f *Forest) Match(class, url string) (urlCount, successCount float64, branch token.Sequence, err error) {
	lock, filter := f.acquire(class)
	defer lock.Unlock()
	return filter.Match(url)
}

// Prune forces a prune on class's filter.
func (f *Forest) Prune(class string) error {
	lock, filter := f.acquire(class)
	defer lock.Unlock()
	return filter.ForcePrune()
}

// GenerateRegex synthesizes a matching regular expression from class's
// current tree.
func (f *Forest) GenerateRegex(class string) string {
	lock, filter := f.acquire(class)
	defer lock.Unlock()
	return filter.GenerateRegex()
}

// Clear resets every class's filter to empty. It fails without touching
// anything if any class's lock is currently held elsewhere.
func (f *Forest) Clear() error {
	f.bootstrap.Lock()
	defer f.bootstrap.Unlock()

	acquired := make([]*sync.Mutex, 0, len(f.locks))
	for _, lock := range f.locks {
		if !lock.TryLock() {
			for _, a := range acquired {
				a.Unlock()
			}
			return ErrBusy
		}
		acquired = append(acquired, lock)
	}
	for _, filter := range f.filters {
		filter.Clear()
	}
	for _, a := range acquired {
		a.Unlock()
	}
	return nil
}

// Classes returns the set of class_ids the forest currently knows about.
func (f *Forest) Classes() []string {
	f.bootstrap.Lock()
	defer f.bootstrap.Unlock()
	out := make([]string, 0, len(f.filters))
	for class := range f.filters {
		out = append(out, class)
	}
	return out
}

// classRecord is the gob-encoded per-class payload in a whole-forest save.
type classRecord struct {
	Config   urlfilter.Config
	Snapshot preftree.Snapshot
}

// Save serializes every class's tree to treePath with encoding/gob, and a
// human-inspectable YAML sidecar of every class's configuration to
// configPath, so a saved forest can be understood without decoding the
// binary blob.
func (f *Forest) Save(treePath, configPath string) error {
	f.bootstrap.Lock()
	defer f.bootstrap.Unlock()

	records := make(map[string]classRecord, len(f.filters))
	configs := make(map[string]urlfilter.Config, len(f.filters))
	for class, filt := range f.filters {
		cfg := filt.Config()
		records[class] = classRecord{Config: cfg, Snapshot: filt.Snapshot()}
		configs[class] = cfg
	}

	treeFile, err := os.Create(treePath)
	if err != nil {
		return fmt.Errorf("forest: save: %w", err)
	}
	defer treeFile.Close()
	if err := gob.NewEncoder(treeFile).Encode(records); err != nil {
		return fmt.Errorf("forest: save: %w", err)
	}

	configFile, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("forest: save: %w", err)
	}
	defer configFile.Close()
	return yaml.NewEncoder(configFile).Encode(configs)
}

// Load replaces the forest's classes with whatever was saved at treePath.
// Per-entry locks are re-created fresh; configPath is not read back (the
// gob blob is the authoritative copy, the YAML sidecar exists for humans).
func (f *Forest) Load(treePath string) error {
	treeFile, err := os.Open(treePath)
	if err != nil {
		return fmt.Errorf("forest: load: %w", err)
	}
	defer treeFile.Close()

	var records map[string]classRecord
	if err := gob.NewDecoder(treeFile).Decode(&records); err != nil {
		return fmt.Errorf("forest: load: %w", err)
	}

	f.bootstrap.Lock()
	defer f.bootstrap.Unlock()
	f.locks = make(map[string]*sync.Mutex, len(records))
	f.filters = make(map[string]*urlfilter.URLFilter, len(records))
	for class, rec := range records {
		filt := f.newFilter()
		filt.Restore(rec.Config, rec.Snapshot)
		f.filters[class] = filt
		f.locks[class] = &sync.Mutex{}
	}
	return nil
}
