package resolve

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/sydlexius/lidarr-bulk/internal/provider"
)

// Policy tunes candidate selection.
type Policy struct {
	// TieBand is the score distance from the top candidate within which an
	// exact name match beats a higher score.
	TieBand int
	// MinScore marks picks scoring below it as low confidence. Zero means
	// every pick is acceptable.
	MinScore int
	// RejectLowConfidence turns a low-confidence pick into no match.
	RejectLowConfidence bool
}

// DefaultPolicy always picks a top-scoring candidate, preferring an exact
// name match only among equal scores. It applies no score cutoff.
func DefaultPolicy() Policy {
	return Policy{}
}

// LowConfidence reports whether score falls under the policy's threshold.
func (p Policy) LowConfidence(score int) bool {
	return p.MinScore > 0 && score < p.MinScore
}

// SelectBest picks the candidate for query. The highest score wins; among
// candidates within TieBand of the top score, the best-scoring one whose
// name or alias equals the query (Unicode case-insensitive) wins instead.
// Candidates without an ID are ignored. The bool is false when nothing is
// left to choose from.
func SelectBest(query string, candidates []provider.ArtistSearchResult, p Policy) (provider.ArtistSearchResult, bool) {
	top := -1
	for i, c := range candidates {
		if c.MusicBrainzID == "" {
			continue
		}
		if top < 0 || c.Score > candidates[top].Score {
			top = i
		}
	}
	if top < 0 {
		return provider.ArtistSearchResult{}, false
	}

	floor := candidates[top].Score - max(p.TieBand, 0)
	want := foldName(query)
	exact := -1
	for i, c := range candidates {
		if c.MusicBrainzID == "" || c.Score < floor || !matchesName(want, c) {
			continue
		}
		if exact < 0 || c.Score > candidates[exact].Score {
			exact = i
		}
	}
	if exact >= 0 {
		return candidates[exact], true
	}
	return candidates[top], true
}

// NamesEqual compares two artist names after Unicode normalisation and
// case folding.
func NamesEqual(a, b string) bool {
	return foldName(a) == foldName(b)
}

func matchesName(folded string, c provider.ArtistSearchResult) bool {
	if foldName(c.Name) == folded {
		return true
	}
	for _, alias := range c.Aliases {
		if foldName(alias) == folded {
			return true
		}
	}
	return false
}

func foldName(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}
