package apollo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metspa/network-buddy-sub000/internal/resilience"
)

func TestMatchPerson_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/people/match", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		var req MatchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "jane@acme.com", req.Email)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"person": {
			"first_name": "Jane", "last_name": "Doe", "title": "Owner",
			"email": "jane@acme.com", "phone_number": "+1 555 0100",
			"linkedin_url": "https://linkedin.com/in/janedoe",
			"organization": {"name": "Acme Plumbing", "primary_domain": "acme.com"}
		}}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))

	p, err := client.MatchPerson(context.Background(), MatchRequest{Email: "jane@acme.com"})
	require.NoError(t, err)
	assert.Equal(t, "Jane", p.FirstName)
	assert.Equal(t, "Doe", p.LastName)
	assert.Equal(t, "Owner", p.Title)
	assert.Equal(t, "+1 555 0100", p.Phone)
	require.NotNil(t, p.Org)
	assert.Equal(t, "Acme Plumbing", p.Org.Name)
}

func TestMatchPerson_NullPersonIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"person": null}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))

	_, err := client.MatchPerson(context.Background(), MatchRequest{Email: "bob@corp.com"})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSearchPeople_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mixed_people/search", r.URL.Path)

		var req SearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Acme Plumbing", req.OrganizationName)
		assert.Equal(t, 10, req.PerPage)

		_, _ = w.Write([]byte(`{"people": [
			{"first_name": "Jane", "last_name": "Doe", "title": "Owner", "email": "jane@acme.com"},
			{"first_name": "Sam", "last_name": "Seller", "title": "Sales Associate"}
		]}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))

	people, err := client.SearchPeople(context.Background(), SearchRequest{OrganizationName: "Acme Plumbing"})
	require.NoError(t, err)
	require.Len(t, people, 2)
	assert.Equal(t, "Owner", people[0].Title)
}

func TestSearchPeople_EmptyIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"people": []}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))

	_, err := client.SearchPeople(context.Background(), SearchRequest{OrganizationName: "Ghost Inc"})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestEnrichOrganization_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/organizations/enrich", r.URL.Path)
		assert.Equal(t, "acme.com", r.URL.Query().Get("domain"))

		_, _ = w.Write([]byte(`{"organization": {"name": "Acme Plumbing", "phone": "+1 555 0199"}}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))

	org, err := client.EnrichOrganization(context.Background(), "acme.com")
	require.NoError(t, err)
	assert.Equal(t, "Acme Plumbing", org.Name)
	assert.Equal(t, "+1 555 0199", org.Phone)
}

func TestEnrichOrganization_RequiresDomain(t *testing.T) {
	client := NewClient("test-key")
	_, err := client.EnrichOrganization(context.Background(), "")
	assert.Error(t, err)
}

func TestErrorStatuses(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantNotFound  bool
		wantTransient bool
	}{
		{"not_found", http.StatusNotFound, true, false},
		{"rate_limit", http.StatusTooManyRequests, false, true},
		{"server_error", http.StatusInternalServerError, false, true},
		{"bad_request", http.StatusBadRequest, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			client := NewClient("test-key", WithBaseURL(srv.URL))
			_, err := client.MatchPerson(context.Background(), MatchRequest{Email: "x@y.com"})
			require.Error(t, err)
			assert.Equal(t, tt.wantNotFound, errors.Is(err, ErrNotFound))
			assert.Equal(t, tt.wantTransient, resilience.IsTransient(err))
		})
	}
}

func TestMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{invalid`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.MatchPerson(context.Background(), MatchRequest{Email: "x@y.com"})
	assert.ErrorContains(t, err, "unmarshal response")
}
