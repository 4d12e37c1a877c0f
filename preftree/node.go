package preftree

import (
	"fmt"

	"github.com/dissemin/urltheory/smoothing"
	"github.com/dissemin/urltheory/token"
)

// edge is the (key, child) pair the Design Notes call for: a slice, not a
// map, so iteration stays insertion-ordered and generate_regex/urls() are
// deterministic without a sort step.
type edge struct {
	key  token.Sequence
	node *node
}

// node is a PrefTree node. Leaf and internal are not distinct types: a node
// with no children is a leaf, one with the wildcard flag set is a wildcard
// (and, per invariant, has no children).
type node struct {
	urlCount     float64
	successCount float64
	wildcard     bool
	// reversed marks a subtree that reverse prune rebuilt from
	// reversed token paths. Insert, match, urls and regex synthesis all
	// flip the remaining tokens (or the enumerated paths) at this
	// boundary, since this subtree's keys are stored back to front.
	reversed bool
	children []edge
}

var unknownToken = token.Literal("<unk>")

// PruneHook, if supplied to Insert, is evaluated once per node touched by
// the insertion other than the root, from the deepest node back up, right
// after that node's counts are updated. A true return wildcards the node in
// place exactly as a non-recursive Prune call would.
type PruneHook struct {
	Threshold float64
	Smoothing smoothing.Strategy
}

func (n *node) insert(tokens token.Sequence, urlCount, successCount float64, hook *PruneHook, depth int) error {
	if urlCount < 0 || successCount < 0 || successCount > urlCount {
		return fmt.Errorf("%w: url=%g success=%g", ErrInvalidCounts, urlCount, successCount)
	}
	n.urlCount += urlCount
	n.successCount += successCount

	defer func() {
		// Depth 0 is the root, which is never a prune candidate.
		if hook != nil && depth > 0 {
			n.tryCollapse(hook.Threshold, hook.Smoothing, depth)
		}
	}()

	if len(tokens) == 0 {
		return nil
	}
	if n.reversed {
		tokens = reverseTokens(tokens)
	}
	if tokens[0].Kind == token.KindWildcard {
		// Case 4: the caller is explicitly growing a wildcard back; collapse
		// here too, dropping whatever children this node had.
		n.wildcard = true
		n.children = nil
		return nil
	}
	if n.wildcard {
		// Case 5: already a wildcard, the insertion is swallowed. Counts
		// above already accumulated.
		return nil
	}

	for i := range n.children {
		e := &n.children[i]
		lcp := e.key.CommonPrefixLen(tokens)
		if lcp == 0 {
			continue
		}
		if lcp == len(e.key) {
			// Case 2: key is a prefix of the remaining tokens.
			return e.node.insert(tokens[lcp:], urlCount, successCount, hook, depth+lcp)
		}

		// Case 3: split. The old subtree keeps its own accumulated
		// counts; the new intermediate node inherits them (it now
		// occupies the old subtree's position in the trie), and
		// inserting the rest of the tokens into it adds this
		// insertion's counts, since it sits on the insertion path too.
		intermediate := &node{
			urlCount:     e.node.urlCount,
			successCount: e.node.successCount,
			children:     []edge{{key: e.key[lcp:].Clone(), node: e.node}},
		}
		e.key = e.key[:lcp].Clone()
		e.node = intermediate
		return intermediate.insert(tokens[lcp:], urlCount, successCount, hook, depth+lcp)
	}

	// Case 1: no child shares a prefix with the remaining tokens. The new
	// key stops short of any wildcard marker, which the new leaf then
	// takes up as case 4.
	keyLen := 0
	for keyLen < len(tokens) && tokens[keyLen].Kind != token.KindWildcard {
		keyLen++
	}
	leaf := &node{}
	if err := leaf.insert(tokens[keyLen:], urlCount, successCount, hook, depth+keyLen); err != nil {
		return err
	}
	n.children = append(n.children, edge{key: tokens[:keyLen].Clone(), node: leaf})
	return nil
}

func (n *node) match(tokens token.Sequence) (float64, float64, token.Sequence) {
	if n.wildcard {
		return n.urlCount, n.successCount, token.Sequence{token.Wildcard}
	}
	if len(tokens) == 0 {
		url, success := n.urlCount, n.successCount
		for _, e := range n.children {
			url -= e.node.urlCount
			success -= e.node.successCount
		}
		return url, success, nil
	}

	search := tokens
	if n.reversed {
		search = reverseTokens(tokens)
	}
	for _, e := range n.children {
		if !search.HasPrefix(e.key) {
			continue
		}
		cu, cs, cbranch := e.node.match(search[len(e.key):])
		branch := append(e.key.Clone(), cbranch...)
		if n.reversed {
			branch = reverseTokens(branch)
		}
		return cu, cs, branch
	}
	return 0, 0, token.Sequence{unknownToken}
}

// pathCount is one entry of a urls() enumeration: the token path from
// whatever root the enumeration started at, and the counts terminating
// there.
type pathCount struct {
	tokens       token.Sequence
	urlCount     float64
	successCount float64
}

func (n *node) urls(prefix token.Sequence) []pathCount {
	if n.wildcard {
		return []pathCount{{tokens: append(prefix.Clone(), token.Wildcard), urlCount: n.urlCount, successCount: n.successCount}}
	}

	var out []pathCount
	childURL, childSuccess := 0.0, 0.0
	for _, e := range n.children {
		childURL += e.node.urlCount
		childSuccess += e.node.successCount
	}
	if len(n.children) == 0 {
		if n.urlCount > 0 {
			out = append(out, pathCount{tokens: prefix.Clone(), urlCount: n.urlCount, successCount: n.successCount})
		}
		return out
	}
	if n.urlCount > childURL {
		out = append(out, pathCount{
			tokens:       prefix.Clone(),
			urlCount:     n.urlCount - childURL,
			successCount: n.successCount - childSuccess,
		})
	}
	for _, e := range n.children {
		if n.reversed {
			for _, sub := range e.node.urls(e.key.Clone()) {
				sub.tokens = append(prefix.Clone(), reverseTokens(sub.tokens)...)
				out = append(out, sub)
			}
			continue
		}
		childPrefix := append(prefix.Clone(), e.key...)
		out = append(out, e.node.urls(childPrefix)...)
	}
	return out
}

// tryCollapse wildcards n in place when it qualifies as a prune candidate:
// at least one child, at least one observation, and confidence at or above
// threshold. It is the non-recursive building block both Prune and the
// insert-time PruneHook use.
func (n *node) tryCollapse(threshold float64, strat smoothing.Strategy, depth int) bool {
	if n.wildcard || len(n.children) == 0 || n.urlCount <= 0 {
		return false
	}
	p := strat.Evaluate(n.urlCount, n.successCount, depth)
	if smoothing.Confidence(p) < threshold {
		return false
	}
	n.wildcard = true
	n.children = nil
	return true
}

// prune applies Prune's algorithm at n. It returns whether any node in this
// subtree collapsed (directly or via reverse prune), which reverse prune's
// caller uses to decide whether a collapse actually happened deeper down.
func (n *node) prune(threshold float64, strat smoothing.Strategy, reverse, recursive bool, depth int) bool {
	if n.wildcard || len(n.children) == 0 {
		return false
	}

	collapsed := false
	if recursive {
		for _, e := range n.children {
			if e.node.prune(threshold, strat, reverse, true, depth+len(e.key)) {
				collapsed = true
			}
		}
	}

	// The root (depth 0) is never collapsed, so pruning a tree that holds
	// a single leaf leaves it unchanged.
	if depth > 0 && n.tryCollapse(threshold, strat, depth) {
		return true
	}
	if reverse && n.tryReversePrune(threshold, strat, depth) {
		collapsed = true
	}
	return collapsed
}

// tryReversePrune enumerates every observation under n, reinserts it with
// its token path reversed, recursively prunes that reversed tree, and swaps
// it in for n if something collapsed there. The reversed-tree flag is
// carried on n so match/urls/generate_regex know to un-reverse at this
// boundary.
func (n *node) tryReversePrune(threshold float64, strat smoothing.Strategy, depth int) bool {
	entries := n.urls(nil)
	if len(entries) == 0 {
		return false
	}
	rev := &node{}
	for _, e := range entries {
		reversed := reverseTokens(e.tokens)
		// Errors are impossible here: counts were already validated when
		// they were first inserted.
		_ = rev.insert(reversed, e.urlCount, e.successCount, nil, depth+len(reversed))
	}
	if !rev.prune(threshold, strat, false, true, depth) {
		return false
	}
	*n = *rev
	n.reversed = true
	return true
}

func (n *node) checkSanity() error {
	if n.urlCount < 0 || n.successCount < 0 || n.successCount > n.urlCount {
		return fmt.Errorf("%w: url=%g success=%g", ErrSanity, n.urlCount, n.successCount)
	}
	if n.wildcard && len(n.children) > 0 {
		return fmt.Errorf("%w: wildcard node has children", ErrSanity)
	}
	childURL, childSuccess := 0.0, 0.0
	for i, e := range n.children {
		for j, other := range n.children {
			if i != j && e.key.CommonPrefixLen(other.key) > 0 {
				return fmt.Errorf("%w: sibling keys %q and %q share a prefix", ErrSanity, e.key, other.key)
			}
		}
		if err := e.node.checkSanity(); err != nil {
			return err
		}
		childURL += e.node.urlCount
		childSuccess += e.node.successCount
	}
	if n.urlCount < childURL || n.successCount < childSuccess {
		return fmt.Errorf("%w: counts do not dominate children", ErrSanity)
	}
	return nil
}

func reverseTokens(seq token.Sequence) token.Sequence {
	out := make(token.Sequence, len(seq))
	for i, t := range seq {
		out[len(seq)-1-i] = t
	}
	return out
}
