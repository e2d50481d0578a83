// Package graph defines the unit of crawl output and the recorders that
// persist it.
//
// A VertexRecord is one page plus the neighbors it was the first to
// discover. Recorders append records to a sink; every Recorder in this
// package guarantees that one record is written as one contiguous block,
// even when Record is called from many goroutines.
//
// # Log format
//
//	Potato - https://en.wikipedia.org/wiki/Potato
//	 |-Tuber - https://en.wikipedia.org/wiki/Tuber
//	 |-Solanum_tuberosum - https://en.wikipedia.org/wiki/Solanum_tuberosum
//
// A blank line terminates each record. There is no header or trailer.
package graph
