package render

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/tldrprivacy/policyscout/internal/model"
)

// skippedElements never contribute visible text.
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"head":     true,
	"svg":      true,
}

// blockElements start a new line in the extracted text, approximating
// how a browser lays out innerText.
var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"br": true, "dd": true, "div": true, "dl": true, "dt": true,
	"footer": true, "form": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "header": true, "hr": true,
	"li": true, "main": true, "nav": true, "ol": true, "p": true,
	"pre": true, "section": true, "table": true, "tr": true, "ul": true,
}

// Parser extracts visible text and anchors from HTML.
//
// Design decision: We use golang.org/x/net/html rather than regex because
// it copes with the malformed markup common on the web and gives us a tree
// we can walk once for both text and links.
type Parser struct {
	// baseURL resolves relative hrefs.
	baseURL *url.URL
}

// NewParser creates a parser that resolves links against baseURL.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Parse reads an HTML document and returns its text and anchors
// in document order.
func (p *Parser) Parse(content io.Reader) (*model.Page, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	links := make([]model.Link, 0)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skippedElements[n.Data] {
				return
			}
			if n.Data == "a" {
				if href := p.resolveURL(getAttr(n, "href")); href != "" {
					links = append(links, model.Link{
						Text: collapseSpace(nodeText(n)),
						Href: href,
					})
				}
			}
			if blockElements[n.Data] {
				text.WriteString("\n")
			}
		}
		if n.Type == html.TextNode {
			if s := collapseSpace(n.Data); s != "" {
				text.WriteString(s)
				text.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode && blockElements[n.Data] {
			text.WriteString("\n")
		}
	}
	walk(doc)

	return &model.Page{
		URL:   p.baseURL.String(),
		Text:  tidyLines(text.String()),
		Links: links,
	}, nil
}

// resolveURL resolves href against the base URL.
// Non-navigational references (javascript:, mailto:, tel:, data:, bare "#")
// are dropped.
func (p *Parser) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" {
		return ""
	}
	lower := strings.ToLower(href)
	for _, scheme := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, scheme) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return p.baseURL.ResolveReference(u).String()
}

// nodeText returns the concatenated text of n's visible descendants.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedElements[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// collapseSpace folds runs of whitespace into single spaces and trims.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// tidyLines trims every line and drops empty ones.
func tidyLines(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
