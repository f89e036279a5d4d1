package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	spotifyauth "golang.org/x/oauth2/spotify"

	"github.com/sydlexius/lidarr-bulk/internal/filesystem"
)

// Scopes grants read access to saved albums and followed artists.
var Scopes = []string{"user-library-read", "user-follow-read"}

// AuthConfig describes the registered Spotify application.
type AuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	// TokenCache is where the token is kept between runs. Empty disables
	// caching.
	TokenCache string
	Timeout    time.Duration
	// Endpoint overrides the Spotify accounts service.
	Endpoint *oauth2.Endpoint
}

// Authorizer obtains a user token through the authorization-code flow with
// PKCE. The redirect URI must point at this machine: the callback is
// served on its host and path for the duration of the login.
type Authorizer struct {
	conf      *oauth2.Config
	cachePath string
	timeout   time.Duration
	logger    *slog.Logger

	// Open presents the consent URL to the user.
	Open func(authURL string) error

	source oauth2.TokenSource
}

// NewAuthorizer creates an Authorizer that prints the consent URL to
// prompt.
func NewAuthorizer(cfg AuthConfig, prompt io.Writer, logger *slog.Logger) *Authorizer {
	endpoint := spotifyauth.Endpoint
	if cfg.Endpoint != nil {
		endpoint = *cfg.Endpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Authorizer{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint:     endpoint,
			Scopes:       Scopes,
		},
		cachePath: cfg.TokenCache,
		timeout:   timeout,
		logger:    logger.With(slog.String("integration", "spotify")),
		Open: func(authURL string) error {
			_, err := fmt.Fprintf(prompt, "Open this URL in a browser to authorize access to your Spotify library:\n\n  %s\n\n", authURL)
			return err
		},
	}
}

// Client returns an HTTP client that authenticates as the user and
// refreshes the token as needed. A cached token is used when present;
// otherwise the user is asked to log in.
func (a *Authorizer) Client(ctx context.Context) (*http.Client, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: a.timeout})

	tok, err := a.loadToken()
	if err != nil {
		a.logger.Warn("ignoring unreadable token cache",
			slog.String("path", a.cachePath),
			slog.String("error", err.Error()))
	}
	if tok == nil {
		if tok, err = a.login(ctx); err != nil {
			return nil, err
		}
	} else {
		a.logger.Debug("using cached spotify token", slog.String("path", a.cachePath))
	}

	a.source = a.conf.TokenSource(ctx, tok)
	hc := oauth2.NewClient(ctx, a.source)
	hc.Timeout = a.timeout
	return hc, nil
}

// SaveToken writes the current token, including any refresh, to the
// cache.
func (a *Authorizer) SaveToken() error {
	if a.cachePath == "" || a.source == nil {
		return nil
	}
	tok, err := a.source.Token()
	if err != nil {
		return fmt.Errorf("reading spotify token: %w", err)
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("marshaling spotify token: %w", err)
	}
	if err := filesystem.WriteFileAtomic(a.cachePath, data, 0o600); err != nil {
		return fmt.Errorf("writing token cache: %w", err)
	}
	return nil
}

// loadToken returns the cached token, or nil when there is none that can
// be used or refreshed.
func (a *Authorizer) loadToken() (*oauth2.Token, error) {
	if a.cachePath == "" {
		return nil, nil
	}
	data, err := os.ReadFile(a.cachePath) //nolint:gosec // G304: operator-chosen cache path
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parsing token cache: %w", err)
	}
	if !tok.Valid() && tok.RefreshToken == "" {
		return nil, nil
	}
	return &tok, nil
}

type callback struct {
	code string
	err  error
}

// login runs the interactive authorization-code flow.
func (a *Authorizer) login(ctx context.Context) (*oauth2.Token, error) {
	redirect, err := url.Parse(a.conf.RedirectURL)
	if err != nil || redirect.Host == "" {
		return nil, fmt.Errorf("invalid redirect URI %q", a.conf.RedirectURL)
	}
	path := redirect.Path
	if path == "" {
		path = "/"
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", redirect.Host)
	if err != nil {
		return nil, fmt.Errorf("listening for the OAuth callback: %w", err)
	}

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	results := make(chan callback, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var cb callback
		switch {
		case q.Get("error") != "":
			cb.err = fmt.Errorf("authorization denied: %s", q.Get("error"))
		case q.Get("state") != state:
			cb.err = errors.New("authorization callback state mismatch")
		case q.Get("code") == "":
			cb.err = errors.New("authorization callback carried no code")
		default:
			cb.code = q.Get("code")
		}
		if cb.err != nil {
			http.Error(w, cb.err.Error(), http.StatusBadRequest)
		} else {
			_, _ = io.WriteString(w, "Authorized. You can close this window.\n")
		}
		select {
		case results <- cb:
		default:
		}
	})
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	defer srv.Close() //nolint:errcheck

	authURL := a.conf.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
	if err := a.Open(authURL); err != nil {
		return nil, fmt.Errorf("presenting authorization URL: %w", err)
	}
	a.logger.Info("waiting for spotify authorization", slog.String("callback", redirect.String()))

	var cb callback
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case cb = <-results:
	}
	if cb.err != nil {
		return nil, cb.err
	}

	tok, err := a.conf.Exchange(ctx, cb.code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}
	a.logger.Info("spotify authorization complete")
	return tok, nil
}
