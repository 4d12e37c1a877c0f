package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"
)

// dateLayout is section 6's "ISO-8601 date" — a bare date, no time-of-day.
const dateLayout = "2006-01-02"

// TSVStore implements Store against section 6's dataset file format:
// UTF-8, tab-separated, one record per line, `datestamp class_id
// probability url`. It loads the whole file into memory on open and
// appends a line per Set, using encoding/csv with Comma='\t' in both
// directions per SPEC_FULL 4.6's chosen serializer.
type TSVStore struct {
	path string
	mu   sync.Mutex
	recs []Record
}

var _ Store = (*TSVStore)(nil)

// OpenTSVStore loads path if it exists, or starts empty if it doesn't.
func OpenTSVStore(path string) (*TSVStore, error) {
	s := &TSVStore{path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *TSVStore) load() error {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("dataset: open: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.FieldsPerRecord = 4
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("dataset: parse %s: %w", s.path, err)
		}
		rec, err := parseRow(row)
		if err != nil {
			return err
		}
		s.recs = append(s.recs, rec)
	}
	return nil
}

func parseRow(row []string) (Record, error) {
	when, err := time.Parse(dateLayout, row[0])
	if err != nil {
		return Record{}, fmt.Errorf("dataset: bad datestamp %q: %w", row[0], err)
	}
	p, err := strconv.ParseFloat(row[2], 64)
	if err != nil {
		return Record{}, fmt.Errorf("dataset: bad probability %q: %w", row[2], err)
	}
	return Record{ClassID: row[1], Probability: p, URL: row[3], Date: when}, nil
}

func (s *TSVStore) GetIfRecent(classID, url string, maxAge time.Duration) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *Record
	for i := range s.recs {
		r := &s.recs[i]
		if r.ClassID != classID || r.URL != url {
			continue
		}
		if best == nil || r.Date.After(best.Date) {
			best = r
		}
	}
	if best == nil || time.Since(best.Date) > maxAge {
		return 0, false, nil
	}
	return best.Probability, true, nil
}

// Set appends the new record both to the in-memory index and to the file
// on disk, so a long-running process never needs to reread the whole file.
func (s *TSVStore) Set(classID, url string, probability float64, when time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, Record{ClassID: classID, URL: url, Probability: probability, Date: when})

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("dataset: append: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = '\t'
	row := []string{when.Format(dateLayout), classID, strconv.FormatFloat(probability, 'f', -1, 64), url}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("dataset: append: %w", err)
	}
	w.Flush()
	return w.Error()
}

func (s *TSVStore) IterClass(classID string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Record
	for _, r := range s.recs {
		if r.ClassID == classID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *TSVStore) IterClasses() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, r := range s.recs {
		if !seen[r.ClassID] {
			seen[r.ClassID] = true
			out = append(out, r.ClassID)
		}
	}
	sort.Strings(out)
	return out, nil
}
