package graph

import (
	"net/url"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// VertexRecord is a page and the outgoing edges it claimed, in discovery order.
// It is built once, right before being recorded, and never modified after.
type VertexRecord struct {
	// Source is the page URL.
	Source string

	// Neighbors are the URLs newly claimed while processing Source.
	Neighbors []string

	// FetchFailed is set when the page could not be fetched.
	// The text log does not render it: a failed page looks like a page
	// without links there.
	FetchFailed bool

	// Digest is the hex sha3-256 of the fetched content, empty on failure.
	Digest string
}

// Topic returns the final "/"-delimited segment of pageURL.
func Topic(pageURL string) string {
	return pageURL[strings.LastIndex(pageURL, "/")+1:]
}

// Label returns a human-readable form of Topic for summaries:
// percent-escapes are decoded, underscores become spaces and the result is
// NFC-normalized. If decoding fails the raw topic is used.
func Label(pageURL string) string {
	topic := Topic(pageURL)
	if decoded, err := url.PathUnescape(topic); err == nil {
		topic = decoded
	}
	return norm.NFC.String(strings.ReplaceAll(topic, "_", " "))
}
