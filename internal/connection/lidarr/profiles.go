package lidarr

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sydlexius/lidarr-bulk/internal/config"
)

// ProfileSet holds the profile IDs used for every artist in a run.
type ProfileSet struct {
	QualityProfileID  int
	MetadataProfileID int
}

// ProfileLister lists profiles of one kind in server order.
type ProfileLister interface {
	ListProfiles(ctx context.Context, kind ProfileKind) ([]Profile, error)
}

// ProfileSelector turns requested profile IDs into a concrete ProfileSet.
// The first successful result is cached and returned on every later call.
type ProfileSelector struct {
	lister ProfileLister
	logger *slog.Logger

	mu     sync.Mutex
	cached *ProfileSet
}

// NewProfileSelector creates a selector backed by lister.
func NewProfileSelector(lister ProfileLister, logger *slog.Logger) *ProfileSelector {
	return &ProfileSelector{
		lister: lister,
		logger: logger.With(slog.String("component", "profiles")),
	}
}

// Resolve returns the run's ProfileSet. For each kind, when useDefault is
// set or the requested ID is 0, the profiles are listed and the one marked
// default is used, else the first one listed. Explicit IDs are used as-is;
// Lidarr validates them when the artist is created. An empty profile list
// where a default is needed is a *config.Error.
func (s *ProfileSelector) Resolve(ctx context.Context, qualityID, metadataID int, useDefault bool) (ProfileSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil {
		return *s.cached, nil
	}

	q, err := s.pick(ctx, ProfileQuality, qualityID, useDefault)
	if err != nil {
		return ProfileSet{}, err
	}
	m, err := s.pick(ctx, ProfileMetadata, metadataID, useDefault)
	if err != nil {
		return ProfileSet{}, err
	}

	set := ProfileSet{QualityProfileID: q, MetadataProfileID: m}
	s.cached = &set
	s.logger.Info("profiles selected",
		slog.Int("quality_profile_id", q),
		slog.Int("metadata_profile_id", m))
	return set, nil
}

func (s *ProfileSelector) pick(ctx context.Context, kind ProfileKind, requested int, useDefault bool) (int, error) {
	if requested > 0 && !useDefault {
		return requested, nil
	}

	profiles, err := s.lister.ListProfiles(ctx, kind)
	if err != nil {
		return 0, err
	}
	p, ok := DefaultProfile(profiles)
	if !ok {
		return 0, &config.Error{
			Field:  fmt.Sprintf("lidarr.%s_profile_id", kind),
			Reason: fmt.Sprintf("needs a default but Lidarr reports no %s profiles", kind),
		}
	}
	s.logger.Debug("using default profile",
		slog.String("kind", string(kind)),
		slog.Int("id", p.ID),
		slog.String("name", p.Name),
		slog.Bool("flagged_default", p.IsDefault))
	return p.ID, nil
}

// DefaultProfile returns the first profile flagged default, or the first
// profile when none is. The fallback relies on the server's list order.
func DefaultProfile(profiles []Profile) (Profile, bool) {
	if len(profiles) == 0 {
		return Profile{}, false
	}
	for _, p := range profiles {
		if p.IsDefault {
			return p, true
		}
	}
	return profiles[0], true
}
