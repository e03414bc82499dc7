package scrape

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"webharvest/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// Document is a parsed HTML page together with the URL it was fetched
// from, which is needed to resolve relative links.
type Document struct {
	doc  *goquery.Document
	base *url.URL
}

func ParseDocument(body []byte, pageUrl string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	base, err := url.Parse(pageUrl)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	return &Document{doc: doc, base: base}, nil
}

func (d *Document) SelectAll(selector string) []Selection {
	return wrapSelections(d.doc.Find(selector))
}

func (d *Document) SelectFirst(selector string) (Selection, bool) {
	return firstSelection(d.doc.Find(selector))
}

func (d *Document) Title() string {
	return htmlutil.CleanText(d.doc.Find("title").First().Text())
}

// Resolve makes href absolute against the document's page URL.
func (d *Document) Resolve(href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("parse href %q: %w", href, err)
	}
	return d.base.ResolveReference(ref).String(), nil
}

// Anchors returns the cleaned, absolute link targets of every element
// matched by selector.
func (d *Document) Anchors(selector string) []htmlutil.Anchor {
	return htmlutil.Anchors(d.base, d.doc.Find(selector))
}

// Selection is one matched element; selectors run on it are scoped to
// its subtree.
type Selection struct {
	sel *goquery.Selection
}

func wrapSelections(sel *goquery.Selection) []Selection {
	out := make([]Selection, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, Selection{sel: s})
	})
	return out
}

func firstSelection(sel *goquery.Selection) (Selection, bool) {
	first := sel.First()
	if first.Length() == 0 {
		return Selection{}, false
	}
	return Selection{sel: first}, true
}

func (s Selection) SelectAll(selector string) []Selection {
	return wrapSelections(s.sel.Find(selector))
}

func (s Selection) SelectFirst(selector string) (Selection, bool) {
	return firstSelection(s.sel.Find(selector))
}

// Text returns the concatenated descendant text of the selection,
// cleaned up for presentation.
func (s Selection) Text() string {
	return htmlutil.CleanText(s.sel.Text())
}

func (s Selection) Attr(name string) (string, bool) {
	return s.sel.Attr(name)
}

func (s Selection) AttrOr(name, fallback string) string {
	return s.sel.AttrOr(name, fallback)
}
