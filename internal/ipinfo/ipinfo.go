// Package ipinfo resolves the caller's public IP address, best effort.
package ipinfo

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultURL answers {"ip": "..."}
	DefaultURL = "https://api.ipify.org?format=json"

	// Unknown is substituted whenever the lookup fails
	Unknown = "0.0.0.0"

	defaultTimeout = 5 * time.Second
)

// Resolver looks up the public address via an HTTP echo service
type Resolver struct {
	url        string
	httpClient *http.Client
	logger     zerolog.Logger
}

// New creates a resolver. An empty url uses DefaultURL.
func New(url string, log zerolog.Logger) *Resolver {
	if url == "" {
		url = DefaultURL
	}
	return &Resolver{
		url:        url,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     log,
	}
}

// SetHTTPClient sets a custom HTTP client
func (r *Resolver) SetHTTPClient(c *http.Client) {
	r.httpClient = c
}

// Resolve returns the public IP, or Unknown on any failure. It never errors.
func (r *Resolver) Resolve(ctx context.Context) string {
	ip, err := r.lookup(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Could not fetch IP, defaulting to 0.0.0.0")
		return Unknown
	}
	return ip
}

func (r *Resolver) lookup(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ip lookup failed (status %d)", resp.StatusCode)
	}

	var body struct {
		IP string `json:"ip"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if net.ParseIP(body.IP) == nil {
		return "", fmt.Errorf("invalid ip %q", body.IP)
	}
	return body.IP, nil
}
