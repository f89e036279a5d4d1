package lidarr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sydlexius/lidarr-bulk/internal/backoff"
	"github.com/sydlexius/lidarr-bulk/internal/config"
)

// ProfileKind selects the quality or metadata profile endpoint.
type ProfileKind string

// Profile kinds.
const (
	ProfileQuality  ProfileKind = "quality"
	ProfileMetadata ProfileKind = "metadata"
)

// maxErrorBody bounds how much of an error response ends up in messages.
const maxErrorBody = 512

// Client communicates with a Lidarr server. Every call is retried on
// transient failures according to the client's backoff policy.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	retry      backoff.Policy
	logger     *slog.Logger
}

// New creates a Lidarr client with the given request timeout.
func New(baseURL, apiKey string, timeout time.Duration, retry backoff.Policy, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return NewWithHTTPClient(baseURL, apiKey, &http.Client{Timeout: timeout}, retry, logger)
}

// NewWithHTTPClient creates a Lidarr client with a custom HTTP client (for testing).
func NewWithHTTPClient(baseURL, apiKey string, httpClient *http.Client, retry backoff.Policy, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		retry:      retry,
		logger:     logger.With(slog.String("integration", "lidarr")),
	}
}

// TestConnection verifies connectivity by calling GET /api/v1/system/status.
func (c *Client) TestConnection(ctx context.Context) error {
	var status SystemStatus
	if err := c.get(ctx, "system status", "/api/v1/system/status", nil, &status); err != nil {
		return fmt.Errorf("testing connection: %w", err)
	}
	c.logger.Debug("lidarr connection ok", "version", status.Version)
	return nil
}

// ListProfiles returns the quality or metadata profiles in server order.
func (c *Client) ListProfiles(ctx context.Context, kind ProfileKind) ([]Profile, error) {
	var path string
	switch kind {
	case ProfileQuality:
		path = "/api/v1/qualityprofile"
	case ProfileMetadata:
		path = "/api/v1/metadataprofile"
	default:
		return nil, fmt.Errorf("unknown profile kind %q", kind)
	}

	var profiles []Profile
	if err := c.get(ctx, "list "+string(kind)+" profiles", path, nil, &profiles); err != nil {
		return nil, fmt.Errorf("getting %s profiles: %w", kind, err)
	}
	for i := range profiles {
		profiles[i].IsDefault = isDefaultName(profiles[i].Name)
	}
	return profiles, nil
}

// isDefaultName reports whether a profile name marks it as the default.
func isDefaultName(name string) bool {
	return strings.Contains(strings.ToLower(name), "default")
}

// RootFolders returns the configured root folders.
func (c *Client) RootFolders(ctx context.Context) ([]RootFolder, error) {
	var folders []RootFolder
	if err := c.get(ctx, "list root folders", "/api/v1/rootfolder", nil, &folders); err != nil {
		return nil, fmt.Errorf("getting root folders: %w", err)
	}
	return folders, nil
}

// ValidateRootFolder checks that path is one of Lidarr's root folders.
// A mismatch is a *config.Error naming the folders that do exist.
func (c *Client) ValidateRootFolder(ctx context.Context, path string) error {
	folders, err := c.RootFolders(ctx)
	if err != nil {
		return err
	}
	want := strings.TrimRight(path, "/")
	available := make([]string, 0, len(folders))
	for _, f := range folders {
		p := strings.TrimRight(f.Path, "/")
		if p == want {
			return nil
		}
		available = append(available, p)
	}
	reason := fmt.Sprintf("%q is not configured in Lidarr", path)
	if len(available) > 0 {
		reason += " (available: " + strings.Join(available, ", ") + ")"
	} else {
		reason += " (no root folders returned)"
	}
	return &config.Error{Field: "lidarr.root_folder", Reason: reason}
}

// FindArtistByMBID returns the library artist with the given MusicBrainz
// ID, or nil if Lidarr does not have it.
func (c *Client) FindArtistByMBID(ctx context.Context, mbid string) (*Artist, error) {
	var artists []Artist
	q := url.Values{"mbId": {mbid}}
	if err := c.get(ctx, "find artist", "/api/v1/artist", q, &artists); err != nil {
		return nil, fmt.Errorf("finding artist %s: %w", mbid, err)
	}
	// Older servers ignore mbId and return the whole library.
	for i := range artists {
		if strings.EqualFold(artists[i].ForeignArtistID, mbid) {
			return &artists[i], nil
		}
	}
	return nil, nil
}

// LookupArtist resolves an MBID through Lidarr's metadata lookup. The
// result carries the name and artwork Lidarr needs to create the artist.
func (c *Client) LookupArtist(ctx context.Context, mbid string) (*Artist, error) {
	var results []Artist
	q := url.Values{"term": {"lidarr:" + mbid}}
	if err := c.get(ctx, "lookup artist", "/api/v1/artist/lookup", q, &results); err != nil {
		return nil, fmt.Errorf("looking up artist %s: %w", mbid, err)
	}
	if len(results) == 0 {
		return nil, &ValidationError{Op: "lookup artist", Message: "no lookup results for " + mbid}
	}
	for i := range results {
		if strings.EqualFold(results[i].ForeignArtistID, mbid) {
			return &results[i], nil
		}
	}
	return &results[0], nil
}

// CreateArtist adds the artist to the library. It fails with
// *ConflictError if the artist already exists, *ValidationError if Lidarr
// rejects the request, and *TransientError once retries are exhausted.
func (c *Client) CreateArtist(ctx context.Context, req AddArtistRequest) (*Artist, error) {
	if !config.ValidMonitor(req.Monitor) {
		return nil, &ValidationError{Op: "create artist", Message: fmt.Sprintf("invalid monitor option %q", req.Monitor)}
	}

	found, err := c.LookupArtist(ctx, req.MBID)
	if err != nil {
		return nil, err
	}
	if found.ID > 0 {
		return nil, &ConflictError{MBID: req.MBID, Message: "lookup reports artist already in library"}
	}

	images := found.Images
	if images == nil {
		images = []Image{}
	}
	body, err := json.Marshal(AddArtistBody{
		ForeignArtistID:   req.MBID,
		ArtistName:        found.ArtistName,
		QualityProfileID:  req.QualityProfileID,
		MetadataProfileID: req.MetadataProfileID,
		Monitored:         req.Monitor != "none",
		RootFolderPath:    req.RootFolder,
		Images:            images,
		Tags:              []int{},
		AddOptions: AddOptions{
			Monitor: req.Monitor,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling artist: %w", err)
	}

	var created Artist
	if err := c.postJSON(ctx, "create artist", "/api/v1/artist", body, &created); err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			conflict.MBID = req.MBID
		}
		return nil, err
	}
	if created.ArtistName == "" {
		created.ArtistName = found.ArtistName
	}
	c.logger.Info("artist created",
		slog.String("mbid", req.MBID),
		slog.String("name", created.ArtistName),
		slog.Int("id", created.ID))
	return &created, nil
}

// TriggerMissingSearch queues a search for the artist's missing albums.
func (c *Client) TriggerMissingSearch(ctx context.Context, artistID int) (*CommandResponse, error) {
	body, err := json.Marshal(CommandBody{
		Name:     "ArtistSearch",
		ArtistID: artistID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling command: %w", err)
	}

	var resp CommandResponse
	if err := c.postJSON(ctx, "artist search", "/api/v1/command", body, &resp); err != nil {
		return nil, fmt.Errorf("triggering artist search: %w", err)
	}
	return &resp, nil
}

func (c *Client) get(ctx context.Context, op, path string, query url.Values, result any) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}
	return backoff.Do(ctx, c.retry, c.logger, op, func(ctx context.Context) error {
		return c.do(ctx, op, http.MethodGet, reqURL, nil, result)
	})
}

func (c *Client) postJSON(ctx context.Context, op, path string, body []byte, result any) error {
	reqURL := c.baseURL + path
	return backoff.Do(ctx, c.retry, c.logger, op, func(ctx context.Context) error {
		return c.do(ctx, op, http.MethodPost, reqURL, body, result)
	})
}

// do performs a single request and classifies the outcome.
func (c *Client) do(ctx context.Context, op, method, reqURL string, body []byte, result any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setAuth(req)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &TransientError{Op: op, Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return classify(op, resp, respBody)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// classify maps a non-2xx response onto the error taxonomy.
func classify(op string, resp *http.Response, body []byte) error {
	status := resp.StatusCode
	msg := errorMessage(body)
	switch {
	case status == http.StatusTooManyRequests || status >= 500:
		return &TransientError{
			Op:         op,
			StatusCode: status,
			Cause:      errors.New(msg),
			RetryAfter: backoff.ParseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case status == http.StatusConflict || (status == http.StatusBadRequest && isAlreadyAdded(msg)):
		return &ConflictError{StatusCode: status, Message: msg}
	default:
		return &ValidationError{Op: op, StatusCode: status, Message: msg}
	}
}

// errorMessage extracts Lidarr's validation messages, falling back to the
// raw body.
func errorMessage(body []byte) string {
	var failures []validationFailure
	if err := json.Unmarshal(body, &failures); err == nil && len(failures) > 0 {
		msgs := make([]string, 0, len(failures))
		for _, f := range failures {
			if f.ErrorMessage == "" {
				continue
			}
			if f.PropertyName != "" {
				msgs = append(msgs, f.PropertyName+": "+f.ErrorMessage)
			} else {
				msgs = append(msgs, f.ErrorMessage)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}
	var single struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &single); err == nil && single.Message != "" {
		return single.Message
	}
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	if s == "" {
		s = "empty response"
	}
	return s
}

func isAlreadyAdded(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "already been added") || strings.Contains(m, "already exists")
}

func (c *Client) setAuth(req *http.Request) {
	req.Header.Set("X-Api-Key", c.apiKey)
}
