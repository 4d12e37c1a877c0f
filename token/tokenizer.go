package token

import (
	"regexp"
	"strings"
)

var (
	protocolRe = regexp.MustCompile(`(?i)^[a-z][a-z0-9+.\-]*://`)
	authorityRe = regexp.MustCompile(`^([a-zA-Z0-9\-.]*)(?::([0-9]+))?(/.*)?$`)
	utmParamRe     = regexp.MustCompile(`(?i)^utm_`)
	sessionParamRe = regexp.MustCompile(`(?i).*sess(ion)?id.*`)
)

// defaultResolvers is the set of identifier-resolver hosts whose first path
// segment is kept as a single literal token instead of being tokenized
// character by character.
func defaultResolvers() map[string]struct{} {
	return map[string]struct{}{
		"dx.doi.org":    {},
		"doi.org":       {},
		"hdl.handle.net": {},
	}
}

// Tokenizer converts URLs into TokenSequences. The zero value is not usable;
// build one with New.
type Tokenizer struct {
	resolvers map[string]struct{}
}

// Option configures a Tokenizer.
type Option func(*Tokenizer)

// WithResolvers overrides the set of identifier-resolver hosts.
func WithResolvers(hosts ...string) Option {
	return func(t *Tokenizer) {
		set := make(map[string]struct{}, len(hosts))
		for _, h := range hosts {
			set[strings.ToLower(h)] = struct{}{}
		}
		t.resolvers = set
	}
}

// New builds a Tokenizer with the default resolver set, overridden by opts.
func New(opts ...Option) *Tokenizer {
	t := &Tokenizer{resolvers: defaultResolvers()}
	for _, o := range opts {
		o(t)
	}
	return t
}

var defaultTokenizer = New()

// Tokenize is a convenience wrapper around the default Tokenizer.
func Tokenize(url string) (Sequence, bool) {
	return defaultTokenizer.Tokenize(url)
}

// Tokenize implements the normalization and tokenization contract of
// section 4.1: strip scheme and fragment, drop tracking query parameters,
// lowercase and reverse the host, emit the port as its own token, and
// tokenize the path character by character with digit runs collapsed —
// except for resolver hosts, whose first path segment is kept literal.
//
// An empty or whitespace-only URL returns (nil, false).
func (t *Tokenizer) Tokenize(url string) (Sequence, bool) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, false
	}

	stripped := protocolRe.ReplaceAllString(url, "")
	// A protocol-relative URL ("//host/path") has no scheme to strip above.
	stripped = strings.TrimPrefix(stripped, "//")
	if idx := strings.IndexByte(stripped, '#'); idx >= 0 {
		stripped = stripped[:idx]
	}

	m := authorityRe.FindStringSubmatch(stripped)
	if m == nil {
		// Not authority-shaped: fall back to a sentinel plus a verbatim
		// per-character tokenization, mirroring the source pipeline's
		// handling of malformed hosts.
		return append(Sequence{Literal("_")}, tokenizePathChars(stripped)...), true
	}

	host, port, rest := strings.ToLower(m[1]), m[2], m[3]
	rest = filterTrackingParams(rest)

	seq := reverseHostLabels(host)
	if port != "" {
		seq = append(seq, Literal(":"+port))
	}

	if t.isResolver(host) {
		seq = append(seq, resolverPathTokens(rest)...)
	} else {
		seq = append(seq, tokenizePathChars(rest)...)
	}
	return seq, true
}

func (t *Tokenizer) isResolver(host string) bool {
	_, ok := t.resolvers[host]
	return ok
}

// reverseHostLabels splits host by '.' and emits each label, dot-prefixed,
// in reverse order: foo.example.com -> [".com", ".example", ".foo"]. Each
// token is tagged KindHostLabel so regex synthesis can later un-reverse this
// run back to reading order without mistaking it for path literals.
func reverseHostLabels(host string) Sequence {
	if host == "" {
		return nil
	}
	labels := strings.Split(host, ".")
	seq := make(Sequence, 0, len(labels))
	for i := len(labels) - 1; i >= 0; i-- {
		seq = append(seq, HostLabel("."+labels[i]))
	}
	return seq
}

// filterTrackingParams drops any query parameter whose name matches the
// session/tracking pattern or begins with utm_, leaving the path untouched.
func filterTrackingParams(rest string) string {
	if rest == "" {
		return rest
	}
	qIdx := strings.IndexByte(rest, '?')
	if qIdx < 0 {
		return rest
	}
	path, query := rest[:qIdx], rest[qIdx+1:]
	if query == "" {
		return path
	}

	var kept []string
	for _, param := range strings.Split(query, "&") {
		name := param
		if eq := strings.IndexByte(param, '='); eq >= 0 {
			name = param[:eq]
		}
		if utmParamRe.MatchString(name) || sessionParamRe.MatchString(name) {
			continue
		}
		kept = append(kept, param)
	}
	if len(kept) == 0 {
		return path
	}
	return path + "?" + strings.Join(kept, "&")
}

// resolverPathTokens keeps the first path segment literal (it is a
// significant identifier, not prose) and tokenizes the remainder normally.
func resolverPathTokens(rest string) Sequence {
	if rest == "" {
		return nil
	}
	parts := strings.SplitN(rest, "/", 3)
	// parts[0] is always "" because rest starts with '/'.
	seq := Sequence{Literal("/")}
	if len(parts) > 1 && parts[1] != "" {
		seq = append(seq, Literal(parts[1]), Literal("/"))
	}
	if len(parts) > 2 {
		seq = append(seq, tokenizePathChars(parts[2])...)
	}
	return seq
}

// tokenizePathChars emits one token per character, collapsing consecutive
// digit runs into a single KindDigits marker.
func tokenizePathChars(s string) Sequence {
	if s == "" {
		return nil
	}
	runes := []rune(s)
	seq := make(Sequence, 0, len(runes))
	i := 0
	for i < len(runes) {
		if runes[i] >= '0' && runes[i] <= '9' {
			j := i
			for j < len(runes) && runes[j] >= '0' && runes[j] <= '9' {
				j++
			}
			seq = append(seq, Digits)
			i = j
			continue
		}
		seq = append(seq, Literal(string(runes[i])))
		i++
	}
	return seq
}
