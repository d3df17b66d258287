package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", "secret", time.Second, zerolog.Nop())
}

func TestRecent(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/items", r.URL.Path)
		assert.Equal(t, "last_updated.desc", r.URL.Query().Get("order"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode([]Record{
			{ID: "b", AuthorRef: "u2", CreatedAt: created, LastUpdated: created.Add(time.Hour), Body: "newer"},
			{ID: "a", AuthorRef: "u1", CreatedAt: created, LastUpdated: created, Body: "older"},
			{ID: "z", AuthorRef: "u1", CreatedAt: created, LastUpdated: created, Body: "extra"},
		})
	})

	records, err := client.Recent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "b", records[0].ID)
	assert.Equal(t, "a", records[1].ID)
	assert.Equal(t, "u2", records[0].AuthorRef)
	assert.True(t, created.Equal(records[1].CreatedAt))
}

func TestRecentErrors(t *testing.T) {
	testCases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"ServerError", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"BadJSON", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("{"))
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestServer(t, tc.handler)
			_, err := client.Recent(context.Background(), 20)
			assert.ErrorIs(t, err, ErrSourceQuery)
		})
	}
}

func TestRecentUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(url, "", time.Second, zerolog.Nop())
	_, err := client.Recent(context.Background(), 20)
	assert.ErrorIs(t, err, ErrSourceQuery)
}

func TestLookup(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/authors/u1":
			json.NewEncoder(w).Encode(Author{DisplayName: "Ada", Handle: "ada"})
		case "/authors/empty":
			w.Write([]byte(`{}`))
		case "/authors/flaky":
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
		default:
			http.NotFound(w, r)
		}
	})

	author, err := client.Lookup(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, Author{DisplayName: "Ada", Handle: "ada"}, author)

	_, err = client.Lookup(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrAuthorNotFound)

	_, err = client.Lookup(context.Background(), "empty")
	assert.ErrorIs(t, err, ErrAuthorNotFound)

	_, err = client.Lookup(context.Background(), "")
	assert.ErrorIs(t, err, ErrAuthorNotFound)

	_, err = client.Lookup(context.Background(), "flaky")
	assert.ErrorIs(t, err, ErrMetadataLookup)
	assert.NotErrorIs(t, err, ErrAuthorNotFound)
}

func TestLookupEscapesReference(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/authors/a%2Fb", r.URL.EscapedPath())
		json.NewEncoder(w).Encode(Author{DisplayName: "Slash", Handle: "slash"})
	})

	_, err := client.Lookup(context.Background(), "a/b")
	require.NoError(t, err)
}
