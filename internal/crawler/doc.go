// Package crawler discovers the link graph of one website.
//
// # Architecture
//
// An Engine bundles the collaborators of a run:
//
//   - Source fetches page content (HTTPSource over net/http)
//   - Extractor pulls candidate links out of the content (HTMLExtractor)
//   - a frontier.Claimer decides which scheduling unit owns each page
//   - a graph.Recorder persists one VertexRecord per page
//
// Two schedulers drive the Engine and share its contract:
//
//   - Sequential: a FIFO queue on the calling goroutine, i.e. a breadth-first
//     traversal.
//   - Pool: N workers drawing from one shared queue, with an outstanding-task
//     counter used to detect quiescence. Pool.Wait blocks until the crawl has
//     drained.
//
// For both, a candidate becomes a neighbor of the page being processed only
// if it starts with origin+basePath and this page is the first to claim it.
// The recorded graph is therefore a spanning structure over first-discovery
// edges, not the multigraph of every link observed.
//
// # Failures
//
// A failed fetch is not an error of the crawl: the page is recorded with no
// neighbors and VertexRecord.FetchFailed set. A recorder error stops the
// crawl and is returned. Nothing is retried.
//
// # Usage
//
//	engine := crawler.NewEngine(
//	    crawler.NewHTTPSource(client),
//	    crawler.NewHTMLExtractor(),
//	    graph.NewLogRecorder(out),
//	    crawler.WithSite("https://en.wikipedia.org", "/wiki"),
//	)
//	stats, err := crawler.NewScheduler(engine, 30).Crawl(ctx, seed)
package crawler
