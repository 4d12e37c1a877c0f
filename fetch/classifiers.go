package fetch

import (
	"bytes"
	"regexp"

	"github.com/dissemin/urltheory/classify"
	"github.com/dissemin/urltheory/token"
)

// pdfMagic are the byte sequences that open a PDF or DjVu file, per
// section 1's "content sniffing (PDF/DjVu magic-byte detection)".
var pdfMagic = [][]byte{
	[]byte("%PDF-"),
	[]byte("AT&TFORM"), // DjVu's outer IFF container
}

// MagicByteClassifier recognizes a fetched body as a PDF or DjVu document by
// its leading magic bytes, grounded on trustleast/groupurl's
// RegexPathTokenClassifier: a single match-and-label rule, composable with
// others, no inheritance.
type MagicByteClassifier struct {
	head bool
}

var _ classify.CategoryClassifier = MagicByteClassifier{}

// NewMagicByteClassifier builds a MagicByteClassifier. It sniffs the
// body's leading bytes, so it needs the body and reports HeadMode() false.
func NewMagicByteClassifier() MagicByteClassifier {
	return MagicByteClassifier{}
}

func (c MagicByteClassifier) PredictAfterFetch(resp *classify.Response, url string, tokens token.Sequence, minConfidence float64) (float64, bool) {
	for _, magic := range pdfMagic {
		if bytes.HasPrefix(resp.Body, magic) {
			return 1.0, true
		}
	}
	return 0, false
}

func (c MagicByteClassifier) StreamMode() bool { return false }
func (c MagicByteClassifier) HeadMode() bool   { return false }

// alternatePDFLinkRe matches an HTML <link rel="alternate" ... type="...pdf">
// tag regardless of attribute order, the shape named in section 1's "HTML
// link extraction".
var alternatePDFLinkRe = regexp.MustCompile(`(?is)<link\b[^>]*\brel\s*=\s*["']alternate["'][^>]*\btype\s*=\s*["']application/pdf["']`)
var alternatePDFLinkReAttrSwap = regexp.MustCompile(`(?is)<link\b[^>]*\btype\s*=\s*["']application/pdf["'][^>]*\brel\s*=\s*["']alternate["']`)

// AlternateLinkClassifier recognizes an HTML landing page that advertises a
// PDF version of itself via a <link rel="alternate" type="application/pdf">
// tag, the "abstract page with full-text link" category from section 1's
// purpose statement.
type AlternateLinkClassifier struct{}

var _ classify.CategoryClassifier = AlternateLinkClassifier{}

func (c AlternateLinkClassifier) PredictAfterFetch(resp *classify.Response, url string, tokens token.Sequence, minConfidence float64) (float64, bool) {
	if alternatePDFLinkRe.Match(resp.Body) || alternatePDFLinkReAttrSwap.Match(resp.Body) {
		return 1.0, true
	}
	return 0, false
}

func (c AlternateLinkClassifier) StreamMode() bool { return false }
func (c AlternateLinkClassifier) HeadMode() bool   { return false }
