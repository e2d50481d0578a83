// Package transport builds the HTTP clients sitegraph crawls with.
//
// A client either dials directly or routes through a SOCKS5 proxy, which
// may be an embedded Tor daemon started with EmbeddedTor. Every client
// carries a cookie jar, a redirect cap and optional per-site headers.
package transport
