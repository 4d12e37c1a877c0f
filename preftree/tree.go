// Package preftree implements the self-compacting URL prefix tree: a radix
// trie over token sequences that accumulates (url_count, success_count)
// observations, can collapse confident subtrees to wildcards, detect suffix
// patterns by rebuilding a subtree on reversed tokens, and synthesize a
// regular expression from whatever survived pruning.
//
// The node-splitting insertion is the direct generalization of the
// teacher's radix tree: longest-common-prefix search over children, split
// on partial match, same shape, different key type and leaf payload.
package preftree

import (
	"errors"
	"fmt"

	"github.com/dissemin/urltheory/smoothing"
	"github.com/dissemin/urltheory/token"
)

var (
	ErrInvalidCounts    = errors.New("preftree: url_count/success_count invalid")
	ErrInvalidThreshold = errors.New("preftree: threshold must be > 0")
	ErrEmptyInsert      = errors.New("preftree: cannot insert an empty token sequence at the root")
	ErrSanity           = errors.New("preftree: sanity check failed")
)

// Tree is a PrefTree for a single class. The zero value is not usable; use
// New.
type Tree struct {
	root *node
}

// New returns an empty Tree.
func New() *Tree {
	return &Tree{root: &node{}}
}

// Insert adds one observation of tokens, with the given counts, to the
// tree. If hook is non-nil, a non-recursive prune check runs at every node
// touched by the insertion except the root, from the deepest outward.
func (t *Tree) Insert(tokens token.Sequence, urlCount, successCount float64, hook *PruneHook) error {
	if len(tokens) == 0 {
		return ErrEmptyInsert
	}
	return t.root.insert(tokens, urlCount, successCount, hook, 0)
}

// Match descends tokens through the tree, returning the counts at the
// endpoint reached (residual counts for an internal node, full counts for a
// wildcard) and the token path actually matched. No match returns
// (0, 0, ["<unk>"]).
func (t *Tree) Match(tokens token.Sequence) (urlCount, successCount float64, branch token.Sequence) {
	return t.root.match(tokens)
}

// HasWildcard reports whether any node in the tree is a wildcard.
func (t *Tree) HasWildcard() bool {
	return t.root.hasWildcard()
}

func (n *node) hasWildcard() bool {
	if n.wildcard {
		return true
	}
	for _, e := range n.children {
		if e.node.hasWildcard() {
			return true
		}
	}
	return false
}

// Prune collapses confident subtrees to wildcards. If recursive, children
// are pruned before their parent (post-order, so collapses are maximal). If
// reverse, a node whose local confidence is insufficient is retried as a
// reverse prune: enumerate its URLs, rebuild on reversed tokens, prune that,
// and swap it in if it collapsed. The root itself is never collapsed.
func (t *Tree) Prune(threshold float64, strat smoothing.Strategy, reverse, recursive bool) error {
	if threshold <= 0 {
		return ErrInvalidThreshold
	}
	t.root.prune(threshold, strat, reverse, recursive, 0)
	return nil
}

// URLEntry is one row of a URLs() enumeration.
type URLEntry struct {
	Tokens       token.Sequence
	URLCount     float64
	SuccessCount float64
}

// URLs enumerates every leaf, wildcard, and residual-observation node with
// its accumulated token path from the root and its final counts.
func (t *Tree) URLs() []URLEntry {
	raw := t.root.urls(nil)
	out := make([]URLEntry, len(raw))
	for i, e := range raw {
		out[i] = URLEntry{Tokens: e.tokens, URLCount: e.urlCount, SuccessCount: e.successCount}
	}
	return out
}

// GenerateRegex synthesizes a regular expression matching the branches that
// qualify as majority-success under threshold and strat, depth-first,
// reversed subtrees emitted right-to-left. Returns "" if nothing qualifies.
func (t *Tree) GenerateRegex(threshold float64, strat smoothing.Strategy) string {
	cfg := regexConfig{threshold: threshold, smoothing: strat}
	res, ok := t.root.synth(cfg, 0)
	if !ok {
		return ""
	}
	return renderBranch(res.pending, res.tail)
}

// CheckSanity verifies every structural invariant: counts are
// non-negative, success never exceeds url, wildcards have no children,
// sibling keys share no prefix, and a node's counts dominate the sum of its
// children's.
func (t *Tree) CheckSanity() error {
	if err := t.root.checkSanity(); err != nil {
		return fmt.Errorf("preftree: %w", err)
	}
	return nil
}
