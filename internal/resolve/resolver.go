package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sydlexius/lidarr-bulk/internal/provider"
)

// ResolvedArtist is the outcome of resolving one name. An empty MBID means
// the name is unresolved.
type ResolvedArtist struct {
	Name           string
	MBID           string
	MatchedName    string
	Disambiguation string
	Score          int
	HasScore       bool
	LowConfidence  bool
}

// Resolved reports whether an MBID was found.
func (r ResolvedArtist) Resolved() bool { return r.MBID != "" }

// Describe summarises the match for logs and reports.
func (r ResolvedArtist) Describe() string {
	if !r.HasScore {
		return "no match"
	}
	var b strings.Builder
	b.WriteString(r.MatchedName)
	if r.Disambiguation != "" {
		fmt.Fprintf(&b, " (%s)", r.Disambiguation)
	}
	fmt.Fprintf(&b, ", score %d", r.Score)
	if r.LowConfidence {
		b.WriteString(", low confidence")
	}
	return b.String()
}

// Resolver turns artist names into MusicBrainz IDs.
type Resolver struct {
	searcher provider.Searcher
	policy   Policy
	logger   *slog.Logger
}

// New creates a Resolver. The searcher is responsible for rate limiting and
// retrying its own requests.
func New(searcher provider.Searcher, policy Policy, logger *slog.Logger) *Resolver {
	return &Resolver{
		searcher: searcher,
		policy:   policy,
		logger:   logger.With(slog.String("component", "resolver")),
	}
}

// Resolve searches for name and selects the best candidate. Zero
// candidates is not an error: the result simply has no MBID. An error is
// returned only when the search itself failed.
func (r *Resolver) Resolve(ctx context.Context, name string) (ResolvedArtist, error) {
	name = strings.TrimSpace(name)
	out := ResolvedArtist{Name: name}
	if name == "" {
		return out, nil
	}

	candidates, err := r.searcher.SearchArtist(ctx, name)
	if err != nil {
		return out, fmt.Errorf("searching %q: %w", name, err)
	}

	best, ok := SelectBest(name, candidates, r.policy)
	if !ok {
		r.logger.Info("no match", slog.String("artist", name))
		return out, nil
	}

	out.MatchedName = best.Name
	out.Disambiguation = best.Disambiguation
	out.Score = best.Score
	out.HasScore = true
	out.LowConfidence = r.policy.LowConfidence(best.Score)

	if out.LowConfidence && r.policy.RejectLowConfidence {
		r.logger.Info("best match below threshold",
			slog.String("artist", name),
			slog.String("candidate", best.Name),
			slog.Int("score", best.Score),
			slog.Int("min_score", r.policy.MinScore))
		return out, nil
	}

	out.MBID = best.MusicBrainzID
	r.logger.Info("resolved",
		slog.String("artist", name),
		slog.String("mbid", out.MBID),
		slog.String("matched", best.Name),
		slog.Int("score", best.Score),
		slog.Bool("low_confidence", out.LowConfidence))
	return out, nil
}
