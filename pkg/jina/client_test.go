package jina

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metspa/network-buddy-sub000/internal/resilience"
)

func TestSearch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, `"Jane Doe" "Acme Plumbing" site:instagram.com`, r.URL.Query().Get("q"))

		_, _ = w.Write([]byte(`{"data": [
			{"title": "Jane Doe (@janedoe)", "url": "https://instagram.com/janedoe", "description": "Owner of Acme Plumbing"}
		]}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))

	results, err := client.Search(context.Background(), `"Jane Doe" "Acme Plumbing" site:instagram.com`)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://instagram.com/janedoe", results[0].URL)
}

func TestSearch_EmptyQuery(t *testing.T) {
	client := NewClient("test-key")
	_, err := client.Search(context.Background(), "")
	assert.Error(t, err)
}

func TestSearch_NoHits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": []}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	results, err := client.Search(context.Background(), "nobody at all")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_TransientStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.Search(context.Background(), "anything")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}
