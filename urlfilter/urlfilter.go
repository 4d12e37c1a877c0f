// Package urlfilter wraps one preftree.Tree with the configuration and
// prune policy needed to serve one class's predictions: when to prune, by
// which rule, and how confident a prediction must be before it is trusted.
package urlfilter

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"

	"github.com/dissemin/urltheory/preftree"
	"github.com/dissemin/urltheory/smoothing"
	"github.com/dissemin/urltheory/token"
)

// Outcome is the three-valued result of a prediction.
type Outcome int

const (
	Unknown Outcome = iota
	Success
	Failure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return "unknown"
	}
}

// Config holds a URLFilter's tunables. Field names carry `mapstructure` tags
// so the CLI can bind them straight out of a Viper-loaded YAML file.
type Config struct {
	// PruneDelay is the number of insertions between forced prunes; 0
	// disables the delay and relies on the insert-time prune hook instead.
	PruneDelay int `mapstructure:"prune_delay"`
	// Reverse enables suffix-pattern detection during prune.
	Reverse bool `mapstructure:"reverse"`

	// MinURLsPrune, MinChildren and MinRate are the legacy frequentist
	// prune gate: prune only nodes with at least MinURLsPrune
	// observations, at least MinChildren children, and a success rate at
	// or beyond MinRate in either direction. They are kept in the
	// configuration and persisted with it, but ForcePrune and the
	// insert-time hook never read them: pruning always uses the Bayesian
	// confidence gate below.
	MinURLsPrune int     `mapstructure:"min_urls_prune"`
	MinChildren  int     `mapstructure:"min_children"`
	MinRate      float64 `mapstructure:"min_rate"`

	// ConfidenceThreshold gates both the Bayesian prune and prediction.
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	// MinURLsPrediction: never answer a prediction below this many
	// observations at the matched node.
	MinURLsPrediction int `mapstructure:"min_urls_prediction"`
}

// DefaultConfig mirrors the Bayesian-gate defaults used across the scenarios
// in section 8: a mild Dirichlet(1,1) prior and no legacy frequentist gate.
func DefaultConfig() Config {
	return Config{
		PruneDelay:          0,
		Reverse:             false,
		ConfidenceThreshold: 0.2,
		MinURLsPrediction:   1,
	}
}

// Option configures a URLFilter, matching the teacher's functional-option
// idiom (MiddlewareOptionFunc).
type Option func(*URLFilter)

// WithConfig replaces the filter's configuration wholesale.
func WithConfig(cfg Config) Option {
	return func(f *URLFilter) { f.cfg = cfg }
}

// WithSmoothing overrides the smoothing strategy used for both pruning and
// prediction confidence.
func WithSmoothing(strat smoothing.Strategy) Option {
	return func(f *URLFilter) { f.smoothing = strat }
}

// WithTokenizer overrides the tokenizer (e.g. to customize resolver hosts).
func WithTokenizer(tok *token.Tokenizer) Option {
	return func(f *URLFilter) { f.tokenizer = tok }
}

// URLFilter predicts one class's outcome from a URL, backed by a PrefTree
// that it trains incrementally via add_url.
type URLFilter struct {
	cfg       Config
	smoothing smoothing.Strategy
	tokenizer *token.Tokenizer
	tree      *preftree.Tree

	sinceLastPrune int
}

var ErrUnparsableURL = errors.New("urlfilter: url could not be tokenized")

// New builds an empty URLFilter.
func New(opts ...Option) *URLFilter {
	f := &URLFilter{
		cfg:       DefaultConfig(),
		smoothing: smoothing.NewConstantDirichlet(1, 1),
		tokenizer: token.New(),
		tree:      preftree.New(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// AddURL tokenizes url and inserts one observation of the given outcome
// probability (booleans promote: true is 1, false is 0), triggering a forced
// prune once PruneDelay insertions have accumulated.
func (f *URLFilter) AddURL(url string, outcome float64) error {
	tokens, ok := f.tokenizer.Tokenize(url)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnparsableURL, url)
	}

	var hook *preftree.PruneHook
	if f.cfg.PruneDelay == 0 {
		hook = &preftree.PruneHook{Threshold: f.cfg.ConfidenceThreshold, Smoothing: f.smoothing}
	}
	if err := f.tree.Insert(tokens, 1, outcome, hook); err != nil {
		return err
	}

	if f.cfg.PruneDelay > 0 {
		f.sinceLastPrune++
		if f.sinceLastPrune >= f.cfg.PruneDelay {
			f.ForcePrune()
		}
	}
	return nil
}

// ForcePrune runs a recursive prune with the filter's configured policy and
// resets the between-prune counter.
func (f *URLFilter) ForcePrune() error {
	f.sinceLastPrune = 0
	return f.tree.Prune(f.cfg.ConfidenceThreshold, f.smoothing, f.cfg.Reverse, true)
}

// PredictSuccess tokenizes url, matches it against the tree, and returns
// Success/Failure if the matched node clears MinURLsPrediction observations
// and ConfidenceThreshold confidence, Unknown otherwise.
func (f *URLFilter) PredictSuccess(url string) (Outcome, error) {
	tokens, ok := f.tokenizer.Tokenize(url)
	if !ok {
		return Unknown, fmt.Errorf("%w: %q", ErrUnparsableURL, url)
	}
	urlCount, successCount, _ := f.tree.Match(tokens)
	if urlCount < float64(f.cfg.MinURLsPrediction) {
		return Unknown, nil
	}
	p := f.smoothing.Evaluate(urlCount, successCount, 0)
	if smoothing.Confidence(p) < f.cfg.ConfidenceThreshold {
		return Unknown, nil
	}
	if 2*successCount >= urlCount {
		return Success, nil
	}
	return Failure, nil
}

// Match tokenizes url and returns the raw counts and matched branch from
// the underlying tree, bypassing the confidence/min-count prediction gate.
// Package forest uses this to route a bare match call to a class's filter.
func (f *URLFilter) Match(url string) (urlCount, successCount float64, branch token.Sequence, err error) {
	tokens, ok := f.tokenizer.Tokenize(url)
	if !ok {
		return 0, 0, nil, fmt.Errorf("%w: %q", ErrUnparsableURL, url)
	}
	u, s, b := f.tree.Match(tokens)
	return u, s, b, nil
}

// Config returns a copy of the filter's current configuration.
func (f *URLFilter) Config() Config { return f.cfg }

// Snapshot captures the filter's current tree for persistence alongside its
// configuration.
func (f *URLFilter) Snapshot() preftree.Snapshot { return f.tree.Snapshot() }

// Restore replaces the filter's configuration and tree, as Load does, but
// from already-decoded values rather than a file. Package forest uses this
// to rebuild every class's filter from one whole-forest save file.
func (f *URLFilter) Restore(cfg Config, snap preftree.Snapshot) {
	f.cfg = cfg
	f.tree = preftree.FromSnapshot(snap)
	f.sinceLastPrune = 0
}

// GenerateRegex synthesizes a matching regular expression from the filter's
// current tree, using its own confidence threshold and smoothing strategy.
func (f *URLFilter) GenerateRegex() string {
	return f.tree.GenerateRegex(f.cfg.ConfidenceThreshold, f.smoothing)
}

// Clear resets the filter to an empty tree, keeping its configuration.
func (f *URLFilter) Clear() {
	f.tree = preftree.New()
	f.sinceLastPrune = 0
}

// CheckSanity delegates to the underlying tree.
func (f *URLFilter) CheckSanity() error {
	return f.tree.CheckSanity()
}

// persisted is the on-disk shape: configuration plus the tree snapshot.
type persisted struct {
	Config   Config
	Snapshot preftree.Snapshot
}

// Save serializes the filter's configuration and tree to path using gob.
func (f *URLFilter) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("urlfilter: save: %w", err)
	}
	defer file.Close()
	return gob.NewEncoder(file).Encode(persisted{Config: f.cfg, Snapshot: f.tree.Snapshot()})
}

// Load replaces the filter's configuration and tree with what was saved at
// path, keeping its smoothing strategy and tokenizer.
func (f *URLFilter) Load(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("urlfilter: load: %w", err)
	}
	defer file.Close()
	var p persisted
	if err := gob.NewDecoder(file).Decode(&p); err != nil {
		return fmt.Errorf("urlfilter: load: %w", err)
	}
	f.cfg = p.Config
	f.tree = preftree.FromSnapshot(p.Snapshot)
	f.sinceLastPrune = 0
	return nil
}
