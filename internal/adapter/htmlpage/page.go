// Package htmlpage implements repository.PageHandle over a static HTML
// snapshot using goquery.
package htmlpage

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Page is a parsed HTML document plus the URL it was loaded from.
type Page struct {
	url string
	doc *goquery.Document
}

// New parses htmlContent into a Page.
func New(url, htmlContent string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, err
	}
	// Script and style text is never page content.
	doc.Find("script, style, noscript").Remove()
	return &Page{url: url, doc: doc}, nil
}

func (p *Page) URL() string {
	return p.url
}

func (p *Page) Title() string {
	return collapse(p.doc.Find("title").First().Text())
}

func (p *Page) Text(selector string) (string, bool) {
	for _, s := range p.TextAll(selector) {
		if s != "" {
			return s, true
		}
	}
	return "", false
}

func (p *Page) TextAll(selector string) []string {
	var out []string
	p.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, collapse(s.Text()))
	})
	return out
}

func (p *Page) BlockText(selector string) (string, bool) {
	sel := p.doc.Find(selector)
	for i := range sel.Nodes {
		var b strings.Builder
		writeBlocks(&b, sel.Nodes[i])
		if text := tidyLines(b.String()); text != "" {
			return text, true
		}
	}
	return "", false
}

func (p *Page) Attr(selector, name string) []string {
	var out []string
	p.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr(name); ok && v != "" {
			out = append(out, v)
		}
	})
	return out
}

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "br": true,
	"dd": true, "div": true, "dl": true, "dt": true, "footer": true, "h1": true,
	"h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "header": true,
	"hr": true, "li": true, "main": true, "ol": true, "p": true, "pre": true,
	"section": true, "table": true, "tr": true, "ul": true,
}

// writeBlocks renders n's text, emitting a line break around block elements.
func writeBlocks(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if blockElements[n.Data] {
			b.WriteByte('\n')
			defer b.WriteByte('\n')
		}
		if n.Data == "li" {
			b.WriteString("• ")
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeBlocks(b, c)
	}
}

// tidyLines collapses whitespace inside each line and drops empty lines.
func tidyLines(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if l := collapse(line); l != "" && l != "•" {
			lines = append(lines, l)
		}
	}
	return strings.Join(lines, "\n")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
