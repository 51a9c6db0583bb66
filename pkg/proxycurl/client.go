// Package proxycurl provides a client for the Proxycurl professional
// profile search API.
package proxycurl

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/metspa/network-buddy-sub000/internal/resilience"
)

const defaultBaseURL = "https://nubela.co/proxycurl/api"

// ErrNotFound is returned when no profile matches the lookup.
var ErrNotFound = eris.New("proxycurl: not found")

// Client performs professional-profile lookups.
type Client interface {
	// LookupPerson resolves a person's public professional profile from
	// their name and company.
	LookupPerson(ctx context.Context, req LookupRequest) (*Profile, error)
}

// LookupRequest identifies the person to resolve.
type LookupRequest struct {
	FirstName string
	LastName  string
	Company   string
}

// Profile is a resolved professional profile.
type Profile struct {
	URL       string `json:"url"`
	FullName  string `json:"full_name"`
	Headline  string `json:"headline"`
	Company   string `json:"company"`
	City      string `json:"city"`
	Country   string `json:"country"`
	Summary   string `json:"summary"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Proxycurl client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 20 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) LookupPerson(ctx context.Context, req LookupRequest) (*Profile, error) {
	if req.FirstName == "" && req.LastName == "" {
		return nil, eris.New("proxycurl: a name is required")
	}

	q := url.Values{}
	q.Set("first_name", req.FirstName)
	q.Set("last_name", req.LastName)
	if req.Company != "" {
		q.Set("company_name", req.Company)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/linkedin/profile/resolve?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "proxycurl: create request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "proxycurl: do request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, eris.Wrap(err, "proxycurl: read response")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(
			eris.Errorf("proxycurl: unexpected status %d", resp.StatusCode), resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, eris.Errorf("proxycurl: unexpected status %d", resp.StatusCode)
	}

	var profile Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, eris.Wrap(err, "proxycurl: unmarshal response")
	}
	if profile.URL == "" {
		return nil, ErrNotFound
	}
	return &profile, nil
}
