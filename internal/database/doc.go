// Package database stores crawl runs in SQLite.
//
// A GraphDB holds three tables:
//   - runs: one row per crawl with its seed, settings and final counts
//   - vertices: one row per recorded page, in recording order
//   - edges: the neighbor list of each vertex, in discovery order
//
// The store is write-only from the crawler's point of view. Runs are read
// back only by the runs command; nothing resumes or seeds a crawl from it.
//
// modernc.org/sqlite is CGO-free, so the binary cross-compiles without a C
// toolchain.
package database
