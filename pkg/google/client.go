// Package google provides a client for the Google Places API, used for
// business reputation: ratings, reviews, and photos.
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/metspa/network-buddy-sub000/internal/resilience"
)

const defaultBaseURL = "https://places.googleapis.com/v1"

const searchFieldMask = "places.displayName,places.rating,places.userRatingCount,places.reviews,places.photos"

// ErrNotFound is returned when the text search matches no place.
var ErrNotFound = eris.New("google: place not found")

// Client performs Google Places API operations.
type Client interface {
	// TextSearch finds the best-matching place for a free-text query and
	// returns its reputation data.
	TextSearch(ctx context.Context, query string) (*TextSearchResponse, error)
}

// TextSearchResponse is the response from Places Text Search.
type TextSearchResponse struct {
	Places []Place `json:"places"`
}

// Place represents a place returned by the API.
type Place struct {
	DisplayName     DisplayName `json:"displayName"`
	Rating          float64     `json:"rating"`
	UserRatingCount int         `json:"userRatingCount"`
	Reviews         []Review    `json:"reviews"`
	Photos          []Photo     `json:"photos"`
}

// DisplayName holds the place's display name.
type DisplayName struct {
	Text string `json:"text"`
}

// Review is a single user review of a place.
type Review struct {
	Rating            float64           `json:"rating"`
	Text              LocalizedText     `json:"text"`
	AuthorAttribution AuthorAttribution `json:"authorAttribution"`
}

// LocalizedText holds localized review text.
type LocalizedText struct {
	Text string `json:"text"`
}

// AuthorAttribution identifies a review's author.
type AuthorAttribution struct {
	DisplayName string `json:"displayName"`
}

// Photo is a photo resource reference for a place.
type Photo struct {
	Name string `json:"name"`
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

// NewClient creates a Google Places API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type textSearchRequest struct {
	TextQuery string `json:"textQuery"`
}

func (c *httpClient) TextSearch(ctx context.Context, query string) (*TextSearchResponse, error) {
	payload, err := json.Marshal(textSearchRequest{TextQuery: query})
	if err != nil {
		return nil, eris.Wrap(err, "google: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/places:searchText", bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "google: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", searchFieldMask)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "google: do request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, eris.Wrap(err, "google: read response")
	}

	switch {
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(
			eris.Errorf("google: unexpected status %d", resp.StatusCode), resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, eris.Errorf("google: unexpected status %d", resp.StatusCode)
	}

	var out TextSearchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "google: unmarshal response")
	}
	if len(out.Places) == 0 {
		return nil, ErrNotFound
	}
	return &out, nil
}
