package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
	"golang.org/x/net/publicsuffix"
)

// MaxRedirects is the number of redirects a client follows before it stops
// and returns the last response.
const MaxRedirects = 10

// Options configures NewHTTPClient.
type Options struct {
	// Timeout bounds each request including redirects and body read.
	Timeout time.Duration
	// ProxyAddress routes connections through a SOCKS5 proxy when set ("host:port").
	ProxyAddress string
	// Cookie is a raw Cookie header value sent with every request.
	Cookie string
	// Headers are set on every request.
	Headers map[string]string
	// MaxConnsPerHost limits concurrent connections to a single host. Zero means no limit.
	MaxConnsPerHost int
}

// NewHTTPClient creates an HTTP client for crawling.
//
// Compression is disabled on the transport so the caller controls
// Accept-Encoding and decodes the body itself.
func NewHTTPClient(opts Options) (*http.Client, error) {
	dial, err := dialContext(opts.ProxyAddress)
	if err != nil {
		return nil, err
	}

	transport := &http.Transport{
		DialContext:           dial,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   max(opts.MaxConnsPerHost, 2),
		MaxConnsPerHost:       opts.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
		DisableCompression:    true,
	}
	if opts.ProxyAddress == "" {
		transport.Proxy = http.ProxyFromEnvironment
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	var rt http.RoundTripper = transport
	if opts.Cookie != "" || len(opts.Headers) > 0 {
		rt = &headerInjectingTransport{
			base:    transport,
			cookie:  opts.Cookie,
			headers: opts.Headers,
		}
	}

	return &http.Client{
		Transport: rt,
		Timeout:   opts.Timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= MaxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}, nil
}

// dialContext returns the dial function for the transport.
func dialContext(proxyAddress string) (func(ctx context.Context, network, addr string) (net.Conn, error), error) {
	if proxyAddress == "" {
		d := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
		return d.DialContext, nil
	}
	if !isValidProxyAddress(proxyAddress) {
		return nil, ErrInvalidProxyAddress
	}

	dialer, err := proxy.SOCKS5("tcp", proxyAddress, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	if cd, ok := dialer.(proxy.ContextDialer); ok {
		return cd.DialContext, nil
	}
	return func(_ context.Context, network, addr string) (net.Conn, error) {
		return dialer.Dial(network, addr)
	}, nil
}

// isValidProxyAddress checks for a non-empty host and a port in 1..65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}

// headerInjectingTransport sets the configured cookie and headers on every
// request, redirects included.
type headerInjectingTransport struct {
	base    http.RoundTripper
	cookie  string
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}
	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}
