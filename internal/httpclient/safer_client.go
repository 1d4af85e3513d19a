// Package httpclient provides the outbound HTTP client used for model calls.
// It refuses non-http schemes, userinfo in URLs, and (unless allowed) any
// host that resolves to a loopback, private or reserved address, including
// after redirects.
package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/teranos/samarth/errors"
)

const defaultMaxRedirects = 10

// Option adjusts a Client
type Option func(*Client)

// AllowPrivateNetworks lets the client reach loopback and private addresses.
// Local inference servers need this.
func AllowPrivateNetworks() Option {
	return func(c *Client) { c.blockPrivate = false }
}

// WithMaxRedirects caps the redirect chain
func WithMaxRedirects(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRedirects = n
		}
	}
}

// Client wraps http.Client with destination checks
type Client struct {
	*http.Client
	blockPrivate bool
	maxRedirects int
}

// New creates a guarded client
func New(timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		Client:       &http.Client{Timeout: timeout},
		blockPrivate: true,
		maxRedirects: defaultMaxRedirects,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= c.maxRedirects {
			return errors.Newf("stopped after %d redirects", c.maxRedirects)
		}
		return errors.Wrap(c.Check(req.URL), "redirect blocked")
	}

	if c.blockPrivate {
		dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
		c.Transport = &http.Transport{
			DialContext:           guardedDial(dialer),
			MaxIdleConns:          20,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: time.Second,
		}
	}
	return c
}

// Wrap adopts an existing client with private addresses allowed, for
// httptest servers.
func Wrap(hc *http.Client) *Client {
	return &Client{Client: hc, maxRedirects: defaultMaxRedirects}
}

// guardedDial resolves the host itself so a DNS answer cannot point at a
// private address after Check has passed.
func guardedDial(d *net.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, errors.Wrap(err, "invalid address")
		}
		addrs, err := net.DefaultResolver.LookupNetIP(ctx, "ip", host)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to resolve host %q", host)
		}
		for _, a := range addrs {
			if IsPrivate(a) {
				return nil, errors.Newf("private IP address blocked: %s", a)
			}
		}
		if len(addrs) == 0 {
			return nil, errors.Newf("no addresses for host %q", host)
		}
		return d.DialContext(ctx, network, net.JoinHostPort(addrs[0].Unmap().String(), port))
	}
}

// Check validates a destination URL
func (c *Client) Check(u *url.URL) error {
	if u == nil {
		return errors.New("missing URL")
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return errors.Newf("scheme %q not allowed", u.Scheme)
	}
	if u.User != nil {
		return errors.New("URL carries user info")
	}
	host := u.Hostname()
	if host == "" {
		return errors.New("URL missing hostname")
	}
	if !c.blockPrivate {
		return nil
	}
	if isLocalhost(host) {
		return errors.New("localhost access blocked")
	}
	if a, err := netip.ParseAddr(host); err == nil && IsPrivate(a) {
		return errors.Newf("private IP address blocked: %s", host)
	}
	return nil
}

// Do checks the request URL before sending it
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if err := c.Check(req.URL); err != nil {
		return nil, errors.Wrap(err, "request blocked")
	}
	return c.Client.Do(req)
}

var reserved = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("2001:db8::/32"),
	netip.MustParsePrefix("fec0::/10"),
}

// IsPrivate reports whether a is loopback, private, link-local, multicast,
// unspecified or otherwise reserved
func IsPrivate(a netip.Addr) bool {
	a = a.Unmap()
	if a.IsLoopback() || a.IsPrivate() || a.IsLinkLocalUnicast() ||
		a.IsLinkLocalMulticast() || a.IsMulticast() || a.IsUnspecified() {
		return true
	}
	for _, p := range reserved {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

func isLocalhost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	return host == "localhost" ||
		host == "localhost.localdomain" ||
		strings.HasSuffix(host, ".localhost")
}
