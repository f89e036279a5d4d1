// Package spotify exports a user's followed and saved-album artists from
// the Spotify Web API so they can feed a bulk import.
package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/sydlexius/lidarr-bulk/internal/backoff"
)

// DefaultBaseURL is the Spotify Web API root.
const DefaultBaseURL = "https://api.spotify.com/v1"

// pageSize is the largest page both library endpoints accept.
const pageSize = 50

// Client reads a user's library. The HTTP client must already carry the
// user's OAuth token; see Authorizer.
type Client struct {
	httpClient *http.Client
	baseURL    string
	retry      backoff.Policy
	logger     *slog.Logger
}

// New creates a Spotify client. An empty baseURL selects DefaultBaseURL.
func New(baseURL string, httpClient *http.Client, retry backoff.Policy, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		retry:      retry,
		logger:     logger.With(slog.String("integration", "spotify")),
	}
}

// FollowedArtists pages through every artist the user follows.
func (c *Client) FollowedArtists(ctx context.Context) ([]Artist, error) {
	var (
		artists []Artist
		after   string
	)
	for {
		q := url.Values{"type": {"artist"}, "limit": {strconv.Itoa(pageSize)}}
		if after != "" {
			q.Set("after", after)
		}
		var page followedArtists
		if err := c.get(ctx, "followed artists", "/me/following", q, &page); err != nil {
			return nil, fmt.Errorf("listing followed artists: %w", err)
		}
		artists = append(artists, page.Artists.Items...)
		after = page.Artists.Cursors.After
		if page.Artists.Next == nil || *page.Artists.Next == "" || after == "" || len(page.Artists.Items) == 0 {
			break
		}
	}
	c.logger.Debug("followed artists fetched", slog.Int("count", len(artists)))
	return artists, nil
}

// SavedAlbums pages through the user's saved albums.
func (c *Client) SavedAlbums(ctx context.Context) ([]Album, error) {
	var albums []Album
	for offset := 0; ; offset += pageSize {
		q := url.Values{"limit": {strconv.Itoa(pageSize)}, "offset": {strconv.Itoa(offset)}}
		var page savedAlbums
		if err := c.get(ctx, "saved albums", "/me/albums", q, &page); err != nil {
			return nil, fmt.Errorf("listing saved albums: %w", err)
		}
		for _, item := range page.Items {
			albums = append(albums, item.Album)
		}
		if page.Next == nil || *page.Next == "" || len(page.Items) == 0 {
			break
		}
	}
	c.logger.Debug("saved albums fetched", slog.Int("count", len(albums)))
	return albums, nil
}

// Export collects the followed artists and saved albums into a Library.
func (c *Client) Export(ctx context.Context) (*Library, error) {
	followed, err := c.FollowedArtists(ctx)
	if err != nil {
		return nil, err
	}
	albums, err := c.SavedAlbums(ctx)
	if err != nil {
		return nil, err
	}

	artists := make(map[string]struct{})
	for _, a := range followed {
		addName(artists, a.Name)
	}
	albumNames := make(map[string]struct{})
	for _, al := range albums {
		addName(albumNames, al.Name)
		for _, a := range al.Artists {
			addName(artists, a.Name)
		}
	}

	lib := &Library{Artists: sortedKeys(artists), Albums: sortedKeys(albumNames)}
	c.logger.Info("spotify library exported",
		slog.Int("artists", len(lib.Artists)),
		slog.Int("albums", len(lib.Albums)))
	return lib, nil
}

func addName(set map[string]struct{}, name string) {
	if name = strings.TrimSpace(name); name != "" {
		set[name] = struct{}{}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func (c *Client) get(ctx context.Context, op, path string, query url.Values, result any) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}
	return backoff.Do(ctx, c.retry, c.logger, op, func(ctx context.Context) error {
		return c.do(ctx, op, reqURL, result)
	})
}

// do performs a single GET and classifies the outcome.
func (c *Client) do(ctx context.Context, op, reqURL string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &TransientError{Op: op, Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return classify(op, resp, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// classify maps a non-2xx response onto the error taxonomy.
func classify(op string, resp *http.Response, body []byte) error {
	msg := errorMessage(body)
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return &TransientError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Cause:      errors.New(msg),
			RetryAfter: backoff.ParseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	return &APIError{Op: op, StatusCode: resp.StatusCode, Message: msg}
}

// errorMessage extracts the Web API's {"error":{"message":...}} body,
// falling back to the raw text.
func errorMessage(body []byte) string {
	var wrapped struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Error.Message != "" {
		return wrapped.Error.Message
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 512 {
		s = s[:512] + "..."
	}
	if s == "" {
		s = "empty response"
	}
	return s
}
