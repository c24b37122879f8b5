// Package transport builds the HTTP clients used by the crawler.
//
// A client either dials directly or routes every connection through a
// SOCKS5 proxy. The proxy may be an external one (for example a local Tor
// daemon) or an embedded Tor process started with tornago. Clients carry a
// cookie jar scoped with the public suffix list, a redirect limit, and an
// optional cookie and header set injected into every request.
package transport
