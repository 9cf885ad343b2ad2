// Package upstream provides the outbound transport for the upstream chat service.
//
// The upstream expects browser-like request headers and a session cookie. Both are
// supplied through an explicitly constructed Config; nothing is read from package
// state, so several transports with different credentials can coexist.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/florianilch/vela-proxy/internal/credentials"
)

// CookieSource supplies the upstream session cookie for each request.
type CookieSource interface {
	Read(ctx context.Context) (string, error)
}

// Config holds everything the transport adds to outbound requests.
type Config struct {
	// Headers are set on every request unless the request already carries them.
	Headers map[string]string
	// Cookies supplies the Cookie header. Nil sends no cookie.
	Cookies CookieSource
}

// Transport is an http.RoundTripper that decorates upstream requests with headers
// and the session cookie.
type Transport struct {
	base    http.RoundTripper
	headers http.Header
	cookies CookieSource
}

// Compile-time check to ensure Transport implements http.RoundTripper
var _ http.RoundTripper = (*Transport)(nil)

// Option configures a Transport.
type Option func(*Transport)

// WithBase sets the underlying transport. Defaults to http.DefaultTransport.
func WithBase(base http.RoundTripper) Option {
	return func(t *Transport) {
		t.base = base
	}
}

// NewTransport creates a Transport from cfg.
func NewTransport(cfg Config, opts ...Option) *Transport {
	headers := make(http.Header, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers.Set(k, v)
	}

	t := &Transport{
		base:    http.DefaultTransport,
		headers: headers,
		cookies: cfg.Cookies,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RoundTrip implements http.RoundTripper. The original request is never modified.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())

	for k, values := range t.headers {
		if out.Header.Get(k) != "" {
			continue
		}
		for _, v := range values {
			out.Header.Add(k, v)
		}
	}

	if t.cookies != nil {
		cookie, err := t.cookies.Read(req.Context())
		switch {
		case errors.Is(err, credentials.ErrNotFound):
			// Anonymous access; the upstream decides whether that is enough.
		case err != nil:
			closeBody(req)
			return nil, fmt.Errorf("read upstream cookie: %w", err)
		case cookie != "":
			out.Header.Set("Cookie", cookie)
		}
	}

	return t.base.RoundTrip(out)
}

// closeBody honours the RoundTripper contract of closing the body on every return path.
func closeBody(req *http.Request) {
	if req.Body != nil {
		_ = req.Body.Close()
	}
}

// DefaultHeaders returns the browser-like headers the upstream expects, with origin
// and referer derived from the upstream URL.
func DefaultHeaders(upstreamURL string) (map[string]string, error) {
	u, err := url.Parse(upstreamURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("upstream URL %q must be absolute", upstreamURL)
	}
	origin := u.Scheme + "://" + u.Host

	return map[string]string{
		"Accept":          "*/*",
		"Accept-Language": "en-US,en;q=0.9",
		"Origin":          origin,
		"Referer":         origin + "/",
		"Sec-Fetch-Dest":  "empty",
		"Sec-Fetch-Mode":  "cors",
		"Sec-Fetch-Site":  "same-origin",
		"User-Agent":      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/140.0.0.0 Safari/537.36",
	}, nil
}
