// Package document wraps the parsed HTML tree behind a small handle so the
// rest of the module never touches tokenizer or selector types directly.
package document

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/Sriram-PR/page-mirror/pkg/utils"
)

// Document is a mutable, in-memory HTML tree
type Document struct {
	doc *goquery.Document
}

// Element is one node of a Document. It stays valid as long as the Document does.
type Element struct {
	sel *goquery.Selection
}

// Parse builds a Document from UTF-8 markup
func Parse(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrParsing, err)
	}
	return &Document{doc: doc}, nil
}

// ParseEncoded decodes body according to contentType (and any <meta charset>)
// before parsing. The tree is always rendered as UTF-8, so a non-UTF-8 source
// gets its charset declarations rewritten to match.
func ParseEncoded(body []byte, contentType string) (*Document, error) {
	_, name, _ := charset.DetermineEncoding(body, contentType)
	decoded, err := charset.NewReaderLabel(name, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: charset %q: %v", utils.ErrParsing, name, err)
	}
	doc, err := Parse(decoded)
	if err != nil {
		return nil, err
	}
	if name != "utf-8" {
		doc.declareUTF8()
	}
	return doc, nil
}

// declareUTF8 points <meta charset> and <meta http-equiv="Content-Type"> at utf-8
func (d *Document) declareUTF8() {
	d.doc.Find("meta[charset]").SetAttr("charset", "utf-8")
	d.doc.Find("meta[http-equiv]").Each(func(_ int, s *goquery.Selection) {
		equiv, _ := s.Attr("http-equiv")
		if !strings.EqualFold(strings.TrimSpace(equiv), "content-type") {
			return
		}
		if content, ok := s.Attr("content"); ok && strings.Contains(strings.ToLower(content), "charset") {
			s.SetAttr("content", "text/html; charset=utf-8")
		}
	})
}

// FindAll returns every element with the given tag name in document order
func (d *Document) FindAll(tag string) []Element {
	sel := d.doc.Find(tag)
	elements := make([]Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		elements = append(elements, Element{sel: s})
	})
	return elements
}

// Render serializes the whole tree to w
func (d *Document) Render(w io.Writer) error {
	for _, node := range d.doc.Nodes {
		if err := html.Render(w, node); err != nil {
			return fmt.Errorf("%w: render: %v", utils.ErrParsing, err)
		}
	}
	return nil
}

// Bytes is Render into a buffer
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Title returns the trimmed <title> text, mostly for logging
func (d *Document) Title() string {
	return strings.TrimSpace(d.doc.Find("title").First().Text())
}

// Tag returns the element's tag name
func (e Element) Tag() string {
	return goquery.NodeName(e.sel)
}

// Attr returns the attribute value and whether it is present
func (e Element) Attr(name string) (string, bool) {
	return e.sel.Attr(name)
}

// SetAttr sets (or adds) an attribute
func (e Element) SetAttr(name, value string) {
	e.sel.SetAttr(name, value)
}
