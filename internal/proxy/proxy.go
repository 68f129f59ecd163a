// Package proxy relays portal requests to the upstream HR API.
//
// The proxy owns the one piece of server-only state the browser must never see:
// the secret (header, value) pair the upstream requires. Every outbound request
// is rebuilt from scratch with that pair injected, so no inbound header other
// than Content-Type and Authorization reaches the upstream.
package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultPrefix is the inbound path prefix stripped before forwarding
	DefaultPrefix = "/api/freelance"

	// FallbackOrigin is used for Origin/Referer/Host when the base URL has no usable origin
	FallbackOrigin = "https://api.laskarbuah.com"

	defaultContentType = "application/json"
)

// ErrMissingSecret is returned by New when the secret header is not configured
var ErrMissingSecret = errors.New("proxy: secret header name and value are required")

// hopHeaders are dropped from relayed responses
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Options configures a Proxy
type Options struct {
	BaseURL     string
	HeaderKey   string
	HeaderValue string
	UserAgent   string
	Prefix      string

	// Timeout bounds the wait for upstream response headers. Bodies stream without a deadline.
	Timeout time.Duration

	// Transport overrides the outbound round tripper (tests)
	Transport http.RoundTripper
}

// Proxy is a stateless relay to the upstream API. Safe for concurrent use.
type Proxy struct {
	baseURL     string
	headerKey   string
	headerValue string
	userAgent   string
	prefix      string
	origin      *url.URL
	client      *http.Client
	logger      zerolog.Logger
}

// New creates a proxy for the given upstream
func New(opts Options, log zerolog.Logger) (*Proxy, error) {
	if opts.HeaderKey == "" || opts.HeaderValue == "" {
		return nil, ErrMissingSecret
	}

	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}

	transport := opts.Transport
	if transport == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.ResponseHeaderTimeout = opts.Timeout
		// Relay upstream bytes as sent
		t.DisableCompression = true
		transport = t
	}

	origin, ok := originOf(opts.BaseURL)
	if !ok {
		log.Warn().Str("base_url", opts.BaseURL).Str("fallback", FallbackOrigin).
			Msg("Upstream base URL has no usable origin, using fallback for origin headers")
	}

	return &Proxy{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		headerKey:   http.CanonicalHeaderKey(opts.HeaderKey),
		headerValue: opts.HeaderValue,
		userAgent:   opts.UserAgent,
		prefix:      strings.TrimRight(opts.Prefix, "/"),
		origin:      origin,
		client: &http.Client{
			Transport: transport,
			// The caller sees upstream redirects as-is
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: log.With().Str("component", "proxy").Logger(),
	}, nil
}

// originOf returns scheme://host of raw. It reports false and returns
// FallbackOrigin when raw has no scheme or host.
func originOf(raw string) (*url.URL, bool) {
	u, err := url.Parse(raw)
	ok := err == nil && u.Scheme != "" && u.Host != ""
	if !ok {
		u, _ = url.Parse(FallbackOrigin)
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host}, ok
}

// Target maps an inbound path and raw query to the upstream URL
func (p *Proxy) Target(path, rawQuery string) string {
	target := p.baseURL + strings.TrimPrefix(path, p.prefix)
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	return target
}

// Outbound builds the upstream request for an inbound one
func (p *Proxy) Outbound(ctx context.Context, r *http.Request) (*http.Request, error) {
	target := p.Target(r.URL.EscapedPath(), r.URL.RawQuery)

	out, err := http.NewRequestWithContext(ctx, r.Method, target, r.Body)
	if err != nil {
		return nil, err
	}
	out.ContentLength = r.ContentLength

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultContentType
	}

	origin := p.origin.String()
	out.Header = http.Header{}
	out.Header.Set(p.headerKey, p.headerValue)
	out.Header.Set("Content-Type", contentType)
	out.Header.Set("Origin", origin)
	out.Header.Set("Referer", origin+"/")
	if p.userAgent != "" {
		out.Header.Set("User-Agent", p.userAgent)
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		out.Header.Set("Authorization", auth)
	}
	out.Host = p.origin.Host

	return out, nil
}

// ServeHTTP forwards r upstream and relays the response unchanged
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, p.prefix) {
		http.NotFound(w, r)
		return
	}

	start := time.Now()
	log := p.logger.With().
		Str("method", r.Method).
		Str("upstream_path", strings.TrimPrefix(r.URL.Path, p.prefix)).
		Logger()

	out, err := p.Outbound(r.Context(), r)
	if err != nil {
		log.Error().Err(err).Msg("Failed to build upstream request")
		writeUnavailable(w)
		return
	}

	resp, err := p.client.Do(out)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Debug().Msg("Client went away before upstream responded")
		} else {
			// url.Error carries only the target URL; the secret lives in headers
			log.Error().Err(err).Msg("Upstream request failed")
		}
		writeUnavailable(w)
		return
	}
	defer resp.Body.Close()

	header := w.Header()
	for k, vv := range resp.Header {
		for _, v := range vv {
			header.Add(k, v)
		}
	}
	for _, h := range hopHeaders {
		header.Del(h)
	}
	header.Del(p.headerKey)

	w.WriteHeader(resp.StatusCode)
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		log.Warn().Err(err).Int64("bytes", n).Msg("Relaying upstream body interrupted")
	}

	log.Debug().
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Proxied request")
}

func writeUnavailable(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	_, _ = w.Write([]byte(`{"error":"upstream unavailable"}`))
}
