package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Fetcher loads a tenant profile from the source of truth.
type Fetcher interface {
	Fetch(ctx context.Context, tenantID uuid.UUID) (Profile, error)
}

// Client talks to the identity service over HTTP.
// Deadlines come from the caller's context; the breaker sets them.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates an identity service client.
// A nil httpClient falls back to a pooled default client.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.BaseURL == "" {
		panic("identity: base URL is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &Client{baseURL: cfg.BaseURL, token: cfg.APIToken, http: httpClient}
}

// Fetch retrieves GET {base}/tenants/{id}.
func (c *Client) Fetch(ctx context.Context, tenantID uuid.UUID) (Profile, error) {
	endpoint, err := url.JoinPath(c.baseURL, "tenants", tenantID.String())
	if err != nil {
		return Profile{}, fmt.Errorf("failed to build identity URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Profile{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Profile{}, ErrTenantNotFound
	case resp.StatusCode != http.StatusOK:
		return Profile{}, fmt.Errorf("%w: status %d", ErrUnexpectedResponse, resp.StatusCode)
	}

	var p Profile
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&p); err != nil {
		return Profile{}, errors.Join(ErrUnexpectedResponse, err)
	}
	if p.TenantID == uuid.Nil {
		p.TenantID = tenantID
	}
	return p, nil
}
