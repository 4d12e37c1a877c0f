package preftree

import (
	"regexp"
	"strings"

	"github.com/dissemin/urltheory/smoothing"
	"github.com/dissemin/urltheory/token"
)

type regexConfig struct {
	threshold float64
	smoothing smoothing.Strategy
}

// synthResult is a partially-built regex branch: pending holds the tokens
// accumulated on the way up that have not been rendered to text yet (and so
// can still be reordered, which matters for the reversed host-label prefix
// every branch starts with), tail is whatever has already been rendered
// below this point.
type synthResult struct {
	pending token.Sequence
	tail    string
}

func (n *node) synth(cfg regexConfig, depth int) (synthResult, bool) {
	if n.wildcard {
		if n.urlCount > 0 && 2*n.successCount >= n.urlCount {
			p := cfg.smoothing.Evaluate(n.urlCount, n.successCount, depth)
			if smoothing.Confidence(p) >= cfg.threshold {
				return synthResult{tail: ".*"}, true
			}
		}
		return synthResult{}, false
	}
	if len(n.children) == 0 {
		// A true (unpruned) leaf never contributes: generate_regex only
		// ever speaks for branches a prune pass already collapsed.
		return synthResult{}, false
	}

	type qualifying struct {
		key token.Sequence
		res synthResult
	}
	var qs []qualifying
	for _, e := range n.children {
		childRes, ok := e.node.synth(cfg, depth+len(e.key))
		if !ok {
			continue
		}
		if e.node.reversed {
			childRes = reverseSynth(childRes)
		}
		qs = append(qs, qualifying{key: e.key, res: childRes})
	}
	if len(qs) == 0 {
		return synthResult{}, false
	}
	if len(qs) == 1 {
		q := qs[0]
		pending := append(q.key.Clone(), q.res.pending...)
		return synthResult{pending: pending, tail: q.res.tail}, true
	}

	rendered := make([]string, len(qs))
	for i, q := range qs {
		full := append(q.key.Clone(), q.res.pending...)
		rendered[i] = renderBranch(full, q.res.tail)
	}
	return synthResult{tail: "(" + strings.Join(rendered, "|") + ")"}, true
}

// reverseSynth un-reverses a reverse-pruned child's contribution back into
// the parent's forward token order. The clean case, a chain with nothing
// rendered below it yet (tail is empty or the wildcard ".*"), reverses at
// the token level, which is exact. If the reversed subtree already branched
// internally, what's below is opaque rendered text; un-reversing only the
// still-pending token run around it is a documented approximation rather
// than a fully faithful right-to-left replay of a nested alternation.
func reverseSynth(r synthResult) synthResult {
	switch r.tail {
	case ".*":
		rev := reverseTokens(r.pending)
		return synthResult{tail: ".*" + renderTokens(rev)}
	case "":
		return synthResult{pending: reverseTokens(r.pending)}
	default:
		rev := reverseTokens(r.pending)
		return synthResult{tail: renderTokens(rev) + r.tail}
	}
}

// renderBranch finalizes a branch to regex text. Tokens are rendered in
// their stored order, except for a leading run of host-label tokens: those
// are stored reversed (outermost label first, for trie sharing across
// hosts) and must be flipped back to natural reading order here, since
// nothing downstream of tokenization ever needs their reversed form again.
func renderBranch(pending token.Sequence, tail string) string {
	if len(pending) == 0 {
		return tail
	}
	i := 0
	for i < len(pending) && pending[i].Kind == token.KindHostLabel {
		i++
	}
	if i == 0 {
		return renderTokens(pending) + tail
	}
	labels := make([]string, i)
	for j := 0; j < i; j++ {
		labels[i-1-j] = regexp.QuoteMeta(strings.TrimPrefix(pending[j].Literal, "."))
	}
	return strings.Join(labels, `\.`) + renderTokens(pending[i:]) + tail
}

func renderTokens(seq token.Sequence) string {
	var b strings.Builder
	for _, t := range seq {
		if t.Kind == token.KindDigits {
			b.WriteString(`\d+`)
			continue
		}
		b.WriteString(regexp.QuoteMeta(t.Literal))
	}
	return b.String()
}
