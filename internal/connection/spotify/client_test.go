package spotify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sydlexius/lidarr-bulk/internal/backoff"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastRetry() backoff.Policy {
	return backoff.Policy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func newTestClient(srv *httptest.Server) *Client {
	return New(srv.URL, srv.Client(), fastRetry(), testLogger())
}

// libraryStub serves two pages of followed artists and two pages of saved
// albums.
func libraryStub(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		q := r.URL.Query()
		switch r.URL.Path {
		case "/me/following":
			assert.Equal(t, "artist", q.Get("type"))
			assert.Equal(t, "50", q.Get("limit"))
			if q.Get("after") == "" {
				_, _ = w.Write([]byte(`{"artists":{"items":[{"id":"a1","name":"Radiohead"},{"id":"a2","name":"Björk"}],
					"next":"https://api.spotify.com/v1/me/following?type=artist&after=a2","cursors":{"after":"a2"},"total":3}}`))
				return
			}
			assert.Equal(t, "a2", q.Get("after"))
			_, _ = w.Write([]byte(`{"artists":{"items":[{"id":"a3","name":"Portishead"}],"next":null,"cursors":{"after":null},"total":3}}`))
		case "/me/albums":
			switch q.Get("offset") {
			case "0":
				_, _ = w.Write([]byte(`{"items":[
					{"album":{"id":"l1","name":"OK Computer","artists":[{"name":"Radiohead"}]}},
					{"album":{"id":"l2","name":"Mezzanine","artists":[{"name":"Massive Attack"}]}}],
					"next":"https://api.spotify.com/v1/me/albums?offset=50","total":3}`))
			case "50":
				_, _ = w.Write([]byte(`{"items":[
					{"album":{"id":"l3","name":"Protection","artists":[{"name":"Massive Attack"},{"name":" Tracey Thorn "}]}}],
					"next":null,"total":3}`))
			default:
				t.Errorf("unexpected offset %q", q.Get("offset"))
			}
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func TestFollowedArtists_FollowsCursor(t *testing.T) {
	srv := httptest.NewServer(libraryStub(t))
	defer srv.Close()

	artists, err := newTestClient(srv).FollowedArtists(context.Background())
	require.NoError(t, err)
	require.Len(t, artists, 3)
	assert.Equal(t, "Portishead", artists[2].Name)
}

func TestSavedAlbums_PagesByOffset(t *testing.T) {
	srv := httptest.NewServer(libraryStub(t))
	defer srv.Close()

	albums, err := newTestClient(srv).SavedAlbums(context.Background())
	require.NoError(t, err)
	require.Len(t, albums, 3)
	assert.Equal(t, "Protection", albums[2].Name)
}

func TestExport_DeduplicatesAndSorts(t *testing.T) {
	srv := httptest.NewServer(libraryStub(t))
	defer srv.Close()

	lib, err := newTestClient(srv).Export(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Björk", "Massive Attack", "Portishead", "Radiohead", "Tracey Thorn"}, lib.Artists)
	assert.Equal(t, []string{"Mezzanine", "OK Computer", "Protection"}, lib.Albums)
}

func TestExport_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	stub := libraryStub(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/me/albums" && calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		stub(w, r)
	}))
	defer srv.Close()

	lib, err := newTestClient(srv).Export(context.Background())
	require.NoError(t, err)
	assert.Len(t, lib.Albums, 3)
	assert.Equal(t, int32(3), calls.Load())
}

func TestExport_UnauthorizedNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"status":401,"message":"The access token expired"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Export(context.Background())
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "The access token expired", apiErr.Message)
	assert.False(t, backoff.IsTransient(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestExport_ServerErrorExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).FollowedArtists(context.Background())
	require.Error(t, err)
	assert.True(t, backoff.IsTransient(err))
	assert.Equal(t, int32(3), calls.Load())
}
