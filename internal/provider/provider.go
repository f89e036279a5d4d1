package provider

import (
	"context"
	"fmt"
	"time"
)

// ProviderName uniquely identifies a metadata provider.
type ProviderName string

// Known provider names.
const (
	NameMusicBrainz ProviderName = "musicbrainz"
)

// ArtistSearchResult represents a single search hit from a provider.
type ArtistSearchResult struct {
	ProviderID     string   `json:"provider_id"`
	Name           string   `json:"name"`
	SortName       string   `json:"sort_name,omitempty"`
	Aliases        []string `json:"aliases,omitempty"`
	Type           string   `json:"type,omitempty"`
	Disambiguation string   `json:"disambiguation,omitempty"`
	Country        string   `json:"country,omitempty"`
	Score          int      `json:"score"`
	MusicBrainzID  string   `json:"musicbrainz_id,omitempty"`
	Source         string   `json:"source"`
}

// Searcher is implemented by providers that can search artists by name.
type Searcher interface {
	// SearchArtist searches the provider by name. Returns zero or more results.
	SearchArtist(ctx context.Context, name string) ([]ArtistSearchResult, error)
}

// ErrProviderUnavailable indicates a transient failure (rate-limited, timeout, server error).
type ErrProviderUnavailable struct {
	Provider   ProviderName
	Cause      error
	RetryAfter time.Duration
}

func (e *ErrProviderUnavailable) Error() string {
	return fmt.Sprintf("provider %s unavailable: %v", e.Provider, e.Cause)
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Cause }

// Transient marks the error as retryable.
func (e *ErrProviderUnavailable) Transient() bool { return true }

// RetryDelay returns the server-requested wait before the next attempt.
func (e *ErrProviderUnavailable) RetryDelay() time.Duration { return e.RetryAfter }
