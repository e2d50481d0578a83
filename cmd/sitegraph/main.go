// Package main provides the entry point for the sitegraph CLI.
//
// sitegraph crawls one site from a seed URL, follows every link under a
// path prefix exactly once and writes the discovered link graph as a
// plain-text log.
//
// Usage:
//
//	sitegraph crawl https://en.wikipedia.org/wiki/Go_(programming_language)
//	sitegraph crawl -w 8 -o graph.txt <seed-url>
//	sitegraph runs
//
// See --help for all available options.
package main

// main is the entry point for sitegraph.
func main() {
	Execute()
}
