package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextSearch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/places:searchText", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))
		assert.Contains(t, r.Header.Get("X-Goog-FieldMask"), "places.reviews")
		assert.Contains(t, r.Header.Get("X-Goog-FieldMask"), "places.photos")

		var body textSearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Acme Plumbing Springfield", body.TextQuery)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"places": [{
			"displayName": {"text": "Acme Plumbing"},
			"rating": 4.5,
			"userRatingCount": 127,
			"reviews": [
				{"rating": 5, "text": {"text": "Great service"}, "authorAttribution": {"displayName": "Pat"}}
			],
			"photos": [{"name": "places/abc/photos/xyz"}]
		}]}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))

	resp, err := client.TextSearch(context.Background(), "Acme Plumbing Springfield")
	require.NoError(t, err)
	require.Len(t, resp.Places, 1)

	place := resp.Places[0]
	assert.Equal(t, "Acme Plumbing", place.DisplayName.Text)
	assert.Equal(t, 4.5, place.Rating)
	assert.Equal(t, 127, place.UserRatingCount)
	require.Len(t, place.Reviews, 1)
	assert.Equal(t, "Great service", place.Reviews[0].Text.Text)
	assert.Equal(t, "Pat", place.Reviews[0].AuthorAttribution.DisplayName)
	require.Len(t, place.Photos, 1)
}

func TestTextSearch_NoPlacesIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.TextSearch(context.Background(), "Nowhere LLC")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestTextSearch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.TextSearch(context.Background(), "Acme")
	assert.ErrorContains(t, err, "unexpected status 503")
}

func TestTextSearch_Malformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{nope`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.TextSearch(context.Background(), "Acme")
	assert.ErrorContains(t, err, "unmarshal response")
}
