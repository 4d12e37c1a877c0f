// Package classify implements the classifier facade: given (class_id, url,
// referer, min_confidence), it answers with a probability by checking
// progressively more expensive collaborators — a recent persisted label,
// a cheap pre-filter hook, the forest's own prediction, a heavier pre-fetch
// hook, and finally an external fetch — stopping at the first one that is
// confident enough.
package classify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dissemin/urltheory/forest"
	"github.com/dissemin/urltheory/smoothing"
	"github.com/dissemin/urltheory/token"
	"github.com/dissemin/urltheory/urlfilter"
)

// Response is what an external Fetcher returns for one hop.
type Response struct {
	URL        string
	StatusCode int
	// Redirect is the target URL if this hop was a redirect, empty otherwise.
	Redirect string
	Body     []byte
	Header   map[string][]string
}

// Fetcher performs the out-of-scope HTTP fetch. Implementations must return
// promptly on ctx cancellation.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

// CategoryClassifier inspects a fetched Response and, if it recognizes the
// category, returns the outcome probability. Per section 6's external
// classifier interface, every classifier also advertises whether the
// fetcher should avoid buffering its body (StreamMode) and whether a HEAD
// request suffices (HeadMode). The reference fetcher in package fetch does
// not read these flags: it always issues a GET and reads the body.
type CategoryClassifier interface {
	PredictAfterFetch(resp *Response, url string, tokens token.Sequence, minConfidence float64) (probability float64, ok bool)
	StreamMode() bool
	HeadMode() bool
}

// PreFilterHook runs cheap, URL-only rules before the forest prediction is
// even consulted.
type PreFilterHook interface {
	PredictBeforeFilter(classID, url string, tokens token.Sequence, minConfidence float64) (probability float64, ok bool)
}

// PreFetchHook runs heavier, URL-only rules after the forest was
// inconclusive but before paying for an external fetch.
type PreFetchHook interface {
	PredictBeforeFetch(classID, url string, tokens token.Sequence, minConfidence float64) (probability float64, ok bool)
}

// Store is the persisted-label collaborator: a prior decision for
// (url, class_id), recent enough to trust without recomputing it.
type Store interface {
	GetIfRecent(classID, url string, maxAge time.Duration) (probability float64, fresh bool, err error)
	Set(classID, url string, probability float64, when time.Time) error
}

var (
	ErrRedirectCycle = errors.New("classify: redirect cycle detected")
	ErrRedirectLimit = errors.New("classify: redirect history exceeded 15 hops")
	ErrUnparsableURL = errors.New("classify: url could not be tokenized")
)

const maxRedirectHistory = 15

// Decision is the facade's answer to one Classify call.
type Decision struct {
	Probability float64
	Outcome     urlfilter.Outcome
	// Source names which collaborator produced the decision, for logging
	// and tests: "store", "pre_filter", "forest", "pre_fetch", or "fetch".
	Source string
}

// Classifier is the facade. The zero value is not usable; build one with
// New.
type Classifier struct {
	forest    *forest.Forest
	fetcher   Fetcher
	preFilter PreFilterHook
	preFetch  PreFetchHook
	store     Store
	tokenizer *token.Tokenizer
	logger    *zap.Logger

	classifiers []CategoryClassifier
	storeMaxAge time.Duration
}

// Option configures a Classifier.
type Option func(*Classifier)

func WithFetcher(f Fetcher) Option             { return func(c *Classifier) { c.fetcher = f } }
func WithPreFilterHook(h PreFilterHook) Option { return func(c *Classifier) { c.preFilter = h } }
func WithPreFetchHook(h PreFetchHook) Option   { return func(c *Classifier) { c.preFetch = h } }
func WithStore(s Store) Option                 { return func(c *Classifier) { c.store = s } }
func WithLogger(l *zap.Logger) Option          { return func(c *Classifier) { c.logger = l } }
func WithStoreMaxAge(d time.Duration) Option   { return func(c *Classifier) { c.storeMaxAge = d } }
func WithCategoryClassifiers(cs ...CategoryClassifier) Option {
	return func(c *Classifier) { c.classifiers = append(c.classifiers, cs...) }
}

// New builds a Classifier around f, following the teacher's functional
// option idiom.
func New(f *forest.Forest, opts ...Option) *Classifier {
	c := &Classifier{
		forest:      f,
		tokenizer:   token.New(),
		logger:      zap.NewNop(),
		storeMaxAge: 30 * 24 * time.Hour,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Classify answers (class_id, url, referer, min_confidence), threading ctx
// through the one genuinely blocking step, the external fetch, the same way
// the teacher's Router.ListenWithContext threads a context through its one
// blocking operation.
func (c *Classifier) Classify(ctx context.Context, classID, url, referer string, minConfidence float64) (Decision, error) {
	log := c.logger.With(zap.String("class_id", classID), zap.String("url", url))

	if c.store != nil {
		if p, fresh, err := c.store.GetIfRecent(classID, url, c.storeMaxAge); err == nil && fresh {
			if smoothing.Confidence(p) >= minConfidence {
				log.Debug("served from store", zap.Float64("probability", p))
				return Decision{Probability: p, Outcome: outcomeFromProbability(p), Source: "store"}, nil
			}
		}
	}

	tokens, ok := c.tokenizer.Tokenize(url)
	if !ok {
		return Decision{}, fmt.Errorf("%w: %q", ErrUnparsableURL, url)
	}

	if c.preFilter != nil {
		if p, ok := c.preFilter.PredictBeforeFilter(classID, url, tokens, minConfidence); ok {
			log.Debug("served from pre-filter hook", zap.Float64("probability", p))
			c.record(classID, []string{url}, p)
			return Decision{Probability: p, Outcome: outcomeFromProbability(p), Source: "pre_filter"}, nil
		}
	}

	if outcome, err := c.forest.Predict(classID, url); err == nil && outcome != urlfilter.Unknown {
		p := 0.0
		if outcome == urlfilter.Success {
			p = 1.0
		}
		log.Debug("served from forest", zap.Float64("probability", p))
		return Decision{Probability: p, Outcome: outcome, Source: "forest"}, nil
	}

	if c.preFetch != nil {
		if p, ok := c.preFetch.PredictBeforeFetch(classID, url, tokens, minConfidence); ok {
			log.Debug("served from pre-fetch hook", zap.Float64("probability", p))
			c.record(classID, []string{url}, p)
			return Decision{Probability: p, Outcome: outcomeFromProbability(p), Source: "pre_fetch"}, nil
		}
	}

	if c.fetcher == nil {
		return Decision{Probability: 0, Outcome: urlfilter.Unknown, Source: "forest"}, nil
	}
	return c.fetchAndClassify(ctx, classID, url, minConfidence, []string{url}, log)
}

func (c *Classifier) fetchAndClassify(ctx context.Context, classID, url string, minConfidence float64, history []string, log *zap.Logger) (Decision, error) {
	if len(history) > maxRedirectHistory {
		return Decision{}, ErrRedirectLimit
	}

	resp, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		log.Warn("fetch failed, recording as failure", zap.Error(err))
		c.record(classID, history, 0)
		return Decision{Probability: 0, Outcome: urlfilter.Failure, Source: "fetch"}, nil
	}

	if resp.Redirect != "" {
		for _, seen := range history {
			if seen == resp.Redirect {
				return Decision{}, ErrRedirectCycle
			}
		}
		return c.fetchAndClassify(ctx, classID, resp.Redirect, minConfidence, append(history, resp.Redirect), log)
	}

	tokens, ok := c.tokenizer.Tokenize(url)
	if !ok {
		return Decision{}, fmt.Errorf("%w: %q", ErrUnparsableURL, url)
	}
	for _, cls := range c.classifiers {
		if p, ok := cls.PredictAfterFetch(resp, url, tokens, minConfidence); ok {
			log.Debug("served from category classifier", zap.Float64("probability", p))
			c.record(classID, history, p)
			return Decision{Probability: p, Outcome: outcomeFromProbability(p), Source: "fetch"}, nil
		}
	}

	c.record(classID, history, 0)
	return Decision{Probability: 0, Outcome: urlfilter.Failure, Source: "fetch"}, nil
}

// record persists the outcome against every URL in the redirect history and
// trains the forest with it, so future lookups of any hop benefit.
func (c *Classifier) record(classID string, history []string, probability float64) {
	for _, u := range history {
		if c.store != nil {
			_ = c.store.Set(classID, u, probability, time.Now())
		}
		_ = c.forest.Insert(classID, u, probability)
	}
}

func outcomeFromProbability(p float64) urlfilter.Outcome {
	if p >= 0.5 {
		return urlfilter.Success
	}
	return urlfilter.Failure
}
