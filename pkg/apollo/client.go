// Package apollo provides a client for the Apollo.io contact and company
// lookup API. Apollo is the premium provider: callers track whether it was
// actually invoked so the metering gate can attribute its cost.
package apollo

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/metspa/network-buddy-sub000/internal/resilience"
)

const defaultBaseURL = "https://api.apollo.io/api/v1"

// ErrNotFound is returned when Apollo has no answer for a lookup. It is a
// provider miss, not a failure; callers degrade and continue.
var ErrNotFound = eris.New("apollo: not found")

// Client performs Apollo API operations.
type Client interface {
	// MatchPerson enriches a person from whatever identifiers are set on
	// the request (email alone, or name plus company).
	MatchPerson(ctx context.Context, req MatchRequest) (*Person, error)
	// SearchPeople lists people working at the named company.
	SearchPeople(ctx context.Context, req SearchRequest) ([]Person, error)
	// EnrichOrganization looks up a company by its web domain.
	EnrichOrganization(ctx context.Context, domain string) (*Organization, error)
}

// MatchRequest identifies the person to enrich.
type MatchRequest struct {
	Email            string `json:"email,omitempty"`
	FirstName        string `json:"first_name,omitempty"`
	LastName         string `json:"last_name,omitempty"`
	OrganizationName string `json:"organization_name,omitempty"`
	Domain           string `json:"domain,omitempty"`
}

// SearchRequest filters a people search.
type SearchRequest struct {
	OrganizationName string   `json:"q_organization_name,omitempty"`
	Titles           []string `json:"person_titles,omitempty"`
	PerPage          int      `json:"per_page,omitempty"`
}

// Person is a single contact returned by Apollo.
type Person struct {
	FirstName   string        `json:"first_name"`
	LastName    string        `json:"last_name"`
	Title       string        `json:"title"`
	Email       string        `json:"email"`
	Phone       string        `json:"phone_number"`
	LinkedInURL string        `json:"linkedin_url"`
	Org         *Organization `json:"organization,omitempty"`
}

// Organization is a company record returned by Apollo.
type Organization struct {
	Name       string `json:"name"`
	Domain     string `json:"primary_domain"`
	Phone      string `json:"phone"`
	Industry   string `json:"industry"`
	WebsiteURL string `json:"website_url"`
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

// WithRateLimit sets a per-second request limit.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates an Apollo API client.
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

func (c *httpClient) MatchPerson(ctx context.Context, req MatchRequest) (*Person, error) {
	var resp struct {
		Person *Person `json:"person"`
	}
	if err := c.post(ctx, "/people/match", req, &resp); err != nil {
		return nil, err
	}
	if resp.Person == nil {
		return nil, ErrNotFound
	}
	return resp.Person, nil
}

func (c *httpClient) SearchPeople(ctx context.Context, req SearchRequest) ([]Person, error) {
	if req.PerPage == 0 {
		req.PerPage = 10
	}
	var resp struct {
		People []Person `json:"people"`
	}
	if err := c.post(ctx, "/mixed_people/search", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.People) == 0 {
		return nil, ErrNotFound
	}
	return resp.People, nil
}

func (c *httpClient) EnrichOrganization(ctx context.Context, domain string) (*Organization, error) {
	if domain == "" {
		return nil, eris.New("apollo: domain is required")
	}
	var resp struct {
		Organization *Organization `json:"organization"`
	}
	path := "/organizations/enrich?domain=" + url.QueryEscape(domain)
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	if resp.Organization == nil {
		return nil, ErrNotFound
	}
	return resp.Organization, nil
}

func (c *httpClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "apollo: marshal request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "apollo: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *httpClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "apollo: create request")
	}
	return c.do(req, out)
}

func (c *httpClient) do(req *http.Request, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return eris.Wrap(err, "apollo: rate limit")
		}
	}

	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "apollo: do request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return eris.Wrap(err, "apollo: read response")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return resilience.NewTransientError(
			eris.Errorf("apollo: unexpected status %d", resp.StatusCode), resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return eris.Errorf("apollo: unexpected status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "apollo: unmarshal response")
	}
	return nil
}
