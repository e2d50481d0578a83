package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

const (
	// maxRedirects caps redirect chains so a loop cannot stall a worker.
	maxRedirects = 10

	// checkProxyTimeout bounds the SOCKS5 handshake in CheckProxy.
	checkProxyTimeout = 2 * time.Second
)

// SOCKS5 method negotiation bytes.
const (
	socks5Version      = 0x05
	socks5AuthNone     = 0x00
	socks5AuthNoAccept = 0xFF
)

// Options configures NewHTTPClient.
type Options struct {
	// Timeout is the whole-request timeout. 0 disables it.
	Timeout time.Duration

	// ProxyAddress routes every connection through this SOCKS5 proxy
	// (host:port). Empty dials directly.
	ProxyAddress string

	// Cookie is appended to the Cookie header of every request.
	Cookie string

	// Headers are set on every request.
	Headers map[string]string
}

// NewHTTPClient returns an http.Client configured by opts.
func NewHTTPClient(opts Options) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // DefaultTransport is always *http.Transport
	transport.MaxIdleConnsPerHost = 16

	if opts.ProxyAddress != "" {
		if err := ValidateProxyAddress(opts.ProxyAddress); err != nil {
			return nil, err
		}
		dialer, err := proxy.SOCKS5("tcp", opts.ProxyAddress, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		transport.Proxy = nil
		transport.DialContext = dialContext(dialer)
		// Each connection is a proxy circuit; keep fewer of them idle.
		transport.MaxIdleConns = 10
		transport.MaxIdleConnsPerHost = 2
		transport.IdleConnTimeout = 30 * time.Second
	}

	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

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
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}, nil
}

// dialContext adapts a proxy.Dialer to http.Transport.DialContext.
// The SOCKS5 dialer from x/net supports contexts natively; other dialers
// are raced against ctx.
func dialContext(d proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		type dialResult struct {
			conn net.Conn
			err  error
		}
		resultCh := make(chan dialResult, 1)
		go func() {
			conn, err := d.Dial(network, addr)
			resultCh <- dialResult{conn, err}
		}()

		select {
		case r := <-resultCh:
			return r.conn, r.err
		case <-ctx.Done():
			go func() {
				if r := <-resultCh; r.conn != nil {
					_ = r.conn.Close() //nolint:errcheck // abandoned connection
				}
			}()
			return nil, ctx.Err()
		}
	}
}

// ValidateProxyAddress checks that address is host:port with a port in
// 1..65535.
func ValidateProxyAddress(address string) error {
	host, port, ok := strings.Cut(address, ":")
	if !ok || host == "" || port == "" || strings.Contains(port, ":") {
		return ErrInvalidProxyAddress
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 || strings.ContainsAny(port, "+-") {
		return ErrInvalidProxyAddress
	}
	return nil
}

// CheckProxy performs a SOCKS5 method negotiation with the proxy at
// address and reports whether it accepts unauthenticated clients.
func CheckProxy(ctx context.Context, address string) ProxyStatus {
	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	deadline, _ := ctx.Deadline()
	if err := conn.SetDeadline(deadline); err != nil {
		return ProxyStatusCannotConnect
	}

	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return ProxyStatusCannotConnect
	}

	resp := make([]byte, 2)
	if _, err := io.ReadFull(conn, resp); err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return ProxyStatusTimeout
		}
		return ProxyStatusWrongType
	}
	if resp[0] != socks5Version || resp[1] == socks5AuthNoAccept || resp[1] != socks5AuthNone {
		return ProxyStatusWrongType
	}
	return ProxyStatusOK
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
