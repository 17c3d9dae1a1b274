package extract

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"github.com/go-pkgz/lgr"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/umputun/xpath2rss/pkg/domain"
)

// Extractor runs XPath expressions against a parsed HTML document
type Extractor struct {
	doc *html.Node
}

// New makes an extractor for already parsed document
func New(doc *html.Node) *Extractor {
	return &Extractor{doc: doc}
}

// Parse reads an HTML page, decoding it to UTF-8 according to contentType and
// the page's own meta tags. The parser is permissive, broken markup is not an error.
func Parse(r io.Reader, contentType string) (*Extractor, error) {
	utf8Reader, err := charset.NewReader(r, contentType)
	if err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	doc, err := htmlquery.Parse(utf8Reader)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return New(doc), nil
}

// ParseBytes is a convenience wrapper for Parse
func ParseBytes(body []byte, contentType string) (*Extractor, error) {
	return Parse(bytes.NewReader(body), contentType)
}

// Extract returns the trimmed text of the first node matched by expression.
// If contextExpr is not empty it is resolved first and relative expressions are evaluated
// against the node it matched, absolute ones still start at the document root.
// Characters XML can't carry are dropped, so the text survives a feed file round trip.
func (e *Extractor) Extract(expression, contextExpr string) (string, error) {
	nav, err := e.first(expression, contextExpr)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(strings.Map(xmlChar, nav.Value()))
	lgr.Printf("[DEBUG] %q matched %q", expression, text)
	return text, nil
}

// Title returns the text of the page's <title>, empty if there is none
func (e *Extractor) Title() string {
	return strings.TrimSpace(goquery.NewDocumentFromNode(e.doc).Find("title").First().Text())
}

// first resolves the optional context and returns a navigator positioned at the first match
func (e *Extractor) first(expression, contextExpr string) (*htmlquery.NodeNavigator, error) {
	base := htmlquery.CreateXPathNavigator(e.doc)
	if contextExpr != "" {
		ctxNav, err := e.first(contextExpr, "")
		if err != nil {
			return nil, fmt.Errorf("resolve context: %w", err)
		}
		base = ctxNav
	}

	expr, err := xpath.Compile(expression)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidExpression, err, "invalid expression %q", expression)
	}

	iter, ok := expr.Evaluate(base).(*xpath.NodeIterator)
	if !ok {
		return nil, domain.NewError(domain.ErrInvalidExpression, "invalid expression %q, it doesn't select nodes", expression)
	}
	if !iter.MoveNext() {
		return nil, domain.NewError(domain.ErrNoMatch, "the expression %q didn't match anything", expression)
	}

	nav, ok := iter.Current().Copy().(*htmlquery.NodeNavigator)
	if !ok {
		return nil, domain.NewError(domain.ErrInvalidExpression, "invalid expression %q, unexpected node type", expression)
	}
	return nav, nil
}

// xmlChar keeps runes allowed by the XML Char production and drops the rest
func xmlChar(r rune) rune {
	switch {
	case r == '\t' || r == '\n' || r == '\r':
		return r
	case r >= 0x20 && r <= 0xD7FF, r >= 0xE000 && r <= 0xFFFD, r >= 0x10000 && r <= 0x10FFFF:
		return r
	default:
		return -1
	}
}
