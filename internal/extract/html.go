// Package extract turns raw page and file content into plain text ready
// for chunking.
package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// Page is the plain-text form of one fetched web page.
type Page struct {
	Title string
	Text  string
}

// FromHTML extracts readable text from an HTML document. Readability-style
// article extraction runs first; pages it cannot parse (thin landing pages,
// link hubs) fall back to a plain tag strip so no page is silently lost.
func FromHTML(pageURL *url.URL, body []byte) (Page, error) {
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return Page{
			Title: strings.TrimSpace(article.Title),
			Text:  collapse(article.TextContent),
		}, nil
	}

	return stripTags(body)
}

// stripTags is the fallback extractor: drop non-content elements and keep
// the text of everything else.
func stripTags(body []byte) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Page{}, fmt.Errorf("parsing html: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find("script, style, noscript, svg, iframe, nav, footer, header").Remove()

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	var sb strings.Builder
	root.Find("h1, h2, h3, h4, h5, h6, p, li, td, th, blockquote, pre").
		Each(func(_ int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if text != "" {
				sb.WriteString(text)
				sb.WriteString("\n")
			}
		})

	text := sb.String()
	if strings.TrimSpace(text) == "" {
		// Pages with no block elements still deserve their raw text.
		text = root.Text()
	}

	return Page{Title: title, Text: collapse(text)}, nil
}

// collapse normalizes whitespace: runs of blanks become one space, blank
// lines are dropped, and lines are trimmed.
func collapse(s string) string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// WordCount reports the number of whitespace-separated words in s.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
