package crawler

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Extractor turns page content into candidate links.
type Extractor interface {
	// Extract returns the absolute URLs referenced by content whose path
	// begins with basePath, resolved against origin, in document order and
	// without deduplication.
	Extract(content, basePath, origin string) []string
}

// HTMLExtractor extracts anchor hrefs from HTML.
//
// Only http(s) links on the origin's host are kept. The fragment is dropped
// because it names a position inside a page, not a page; the query string is
// kept verbatim.
type HTMLExtractor struct{}

// NewHTMLExtractor returns an HTMLExtractor.
func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{}
}

// Extract implements Extractor. Empty or unparsable content yields nil.
func (x *HTMLExtractor) Extract(content, basePath, origin string) []string {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	base, err := url.Parse(origin)
	if err != nil {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if link, ok := resolveLink(base, strings.TrimSpace(href), basePath); ok {
			links = append(links, link)
		}
	})
	return links
}

// resolveLink resolves href against base and applies the host and path
// restrictions.
func resolveLink(base *url.URL, href, basePath string) (string, bool) {
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	if !strings.EqualFold(abs.Host, base.Host) {
		return "", false
	}
	if !strings.HasPrefix(abs.EscapedPath(), basePath) {
		return "", false
	}
	abs.Fragment = ""
	abs.RawFragment = ""
	return abs.String(), true
}
