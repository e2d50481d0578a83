// Package report renders the summary printed after a crawl.
//
// A Summary is built from the scheduler's Stats and a Collector that
// watched the records go by. Writers render it as:
//   - SimpleWriter: plain text for the terminal
//   - JSONWriter: JSON for scripts
//   - MarkdownWriter: Markdown with tables and a mermaid pie chart
package report
