package sandbox

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Box model constants for height measurement. The executor has no real
// layout engine; this fixed model stands in for scrollHeight. What callers
// rely on is that height grows with content and reflects post-script DOM
// state.
const (
	// MinHeight is the floor the output region never shrinks below.
	MinHeight = 16

	lineHeight   = 20
	blockSpacing = 8
	charsPerLine = 80
)

// blockSelector matches elements that contribute their own vertical box.
const blockSelector = "p, div, h1, h2, h3, h4, h5, h6, ul, ol, li, pre, blockquote, table, tr, label, button, input, select, textarea"

// parseDocument builds the output document from already-sanitized markup.
// Parsing is lenient by design: the sanitizer has run, so whatever is left
// is displayed as-is.
func parseDocument(markup string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(markup))
}

// emptyDocument returns a document with no content.
func emptyDocument() *goquery.Document {
	doc, _ := parseDocument("")
	return doc
}

// measureHeight computes the content height of the document under the fixed
// box model: one line per charsPerLine characters of text plus spacing per
// block element, floored at MinHeight.
func measureHeight(doc *goquery.Document) int {
	if doc == nil {
		return MinHeight
	}

	body := doc.Find("body")

	lines := 0
	text := strings.TrimSpace(body.Text())
	if text != "" {
		lines = (len(text) + charsPerLine - 1) / charsPerLine
	}

	blocks := body.Find(blockSelector).Length()

	height := lines*lineHeight + blocks*blockSpacing
	if height < MinHeight {
		return MinHeight
	}
	return height
}
