package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sydlexius/lidarr-bulk/internal/backoff"
	"github.com/sydlexius/lidarr-bulk/internal/config"
	"github.com/sydlexius/lidarr-bulk/internal/provider"
)

const (
	defaultBaseURL = "https://musicbrainz.org/ws/2"
	searchLimit    = 10
)

// Config holds the adapter's connection settings.
type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	Retry     backoff.Policy
}

// Adapter searches the MusicBrainz artist index.
type Adapter struct {
	client    *http.Client
	limiter   *provider.RateLimiter
	logger    *slog.Logger
	baseURL   string
	userAgent string
	retry     backoff.Policy
}

// New creates a MusicBrainz adapter. A missing or malformed User-Agent is
// rejected here with a *config.Error, before any request can be made.
func New(limiter *provider.RateLimiter, logger *slog.Logger, cfg Config) (*Adapter, error) {
	if err := config.ValidUserAgent(cfg.UserAgent); err != nil {
		return nil, err
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Adapter{
		client: &http.Client{
			Timeout: timeout,
		},
		limiter:   limiter,
		logger:    logger.With(slog.String("provider", "musicbrainz")),
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: cfg.UserAgent,
		retry:     cfg.Retry,
	}, nil
}

// SearchArtist searches MusicBrainz for artists matching the given name.
// Transient failures are retried per the adapter's backoff policy; every
// attempt waits on the rate limiter first.
func (a *Adapter) SearchArtist(ctx context.Context, name string) ([]provider.ArtistSearchResult, error) {
	params := url.Values{
		"query": {BuildQuery(name)},
		"fmt":   {"json"},
		"limit": {strconv.Itoa(searchLimit)},
		"inc":   {"aliases"},
	}
	reqURL := a.baseURL + "/artist?" + params.Encode()

	var body []byte
	err := backoff.Do(ctx, a.retry, a.logger, "musicbrainz search", func(ctx context.Context) error {
		var err error
		body, err = a.doRequest(ctx, reqURL)
		return err
	})
	if err != nil {
		return nil, err
	}

	var resp SearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}

	results := make([]provider.ArtistSearchResult, 0, len(resp.Artists))
	for _, mb := range resp.Artists {
		r := provider.ArtistSearchResult{
			ProviderID:     mb.ID,
			Name:           mb.Name,
			SortName:       mb.SortName,
			Type:           mb.Type,
			Disambiguation: mb.Disambiguation,
			Country:        mb.Country,
			Score:          mb.Score,
			MusicBrainzID:  mb.ID,
			Source:         string(provider.NameMusicBrainz),
		}
		for _, alias := range mb.Aliases {
			if alias.Name != "" && alias.Name != mb.Name {
				r.Aliases = append(r.Aliases, alias.Name)
			}
		}
		results = append(results, r)
	}
	return results, nil
}

// doRequest executes an HTTP GET with rate limiting and standard headers.
// Any non-200 response is reported as *provider.ErrProviderUnavailable.
func (a *Adapter) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Accept", "application/json")

	a.logger.Debug("requesting", slog.String("url", reqURL))

	resp, err := a.client.Do(req) //nolint:gosec // URL constructed from trusted base + escaped query
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameMusicBrainz,
			Cause:    err,
		}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &provider.ErrProviderUnavailable{
			Provider:   provider.NameMusicBrainz,
			Cause:      fmt.Errorf("HTTP %d", resp.StatusCode),
			RetryAfter: backoff.ParseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &provider.ErrProviderUnavailable{
			Provider: provider.NameMusicBrainz,
			Cause:    fmt.Errorf("unexpected HTTP %d", resp.StatusCode),
		}
	}

	return io.ReadAll(io.LimitReader(resp.Body, 512*1024))
}

// luceneSpecial holds characters with meaning in the search query syntax.
const luceneSpecial = `+-&|!(){}[]^"~*?:\/`

// EscapeQuery escapes Lucene metacharacters in s.
func EscapeQuery(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(luceneSpecial, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// BuildQuery returns an exact-phrase search in the artist field, falling
// back to a general phrase match.
func BuildQuery(name string) string {
	esc := EscapeQuery(name)
	return fmt.Sprintf(`artist:"%s" OR "%s"`, esc, esc)
}
