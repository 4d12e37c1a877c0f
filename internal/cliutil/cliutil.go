// Package cliutil holds small helpers shared by the cobra commands in
// internal/cmd: logger construction and the forest save/load path
// conventions, split out of internal/cmd the way the teacher splits
// reusable pieces out of its top-level packages.
package cliutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/dissemin/urltheory/forest"
	"github.com/dissemin/urltheory/smoothing"
	"github.com/dissemin/urltheory/urlfilter"
)

// NewLogger builds the CLI's structured logger: development (human-readable,
// colorized) when verbose is set, production (JSON) otherwise.
func NewLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// ForestPaths returns the conventional tree-blob and config-sidecar paths
// for a forest rooted at dir, matching forest.Save's two-file signature.
func ForestPaths(dir string) (treePath, configPath string) {
	return filepath.Join(dir, "forest.gob"), filepath.Join(dir, "forest.yaml")
}

// NewFilterFactory returns the constructor forest.New expects, binding the
// confidence threshold and smoothing strategy every class's filter starts
// with.
func NewFilterFactory(threshold float64, strat smoothing.Strategy) func() *urlfilter.URLFilter {
	return func() *urlfilter.URLFilter {
		cfg := urlfilter.DefaultConfig()
		cfg.ConfidenceThreshold = threshold
		return urlfilter.New(urlfilter.WithConfig(cfg), urlfilter.WithSmoothing(strat))
	}
}

// LoadOrNewForest loads dir's saved forest if present, or returns a fresh
// empty one built from newFilter if no save exists yet at treePath.
func LoadOrNewForest(dir string, newFilter func() *urlfilter.URLFilter) (*forest.Forest, error) {
	f := forest.New(newFilter)
	treePath, _ := ForestPaths(dir)
	if err := f.Load(treePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return f, nil
		}
		return nil, fmt.Errorf("cliutil: load forest: %w", err)
	}
	return f, nil
}
