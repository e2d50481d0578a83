// Package frontier tracks which pages have been claimed during a crawl run.
//
// A Registry grows monotonically: once a URL is claimed it stays claimed
// until the Registry is discarded at the end of the run. Claiming is a single
// atomic insert-if-absent, so when several workers race on the same URL
// exactly one of them wins and becomes responsible for fetching and
// recording it.
//
// # Usage
//
//	reg := frontier.New()
//	if reg.TryClaim("https://en.wikipedia.org/wiki/Potato") {
//	    // this caller owns the page
//	}
package frontier
