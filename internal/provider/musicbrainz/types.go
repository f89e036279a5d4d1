package musicbrainz

// MusicBrainz API response types.

// SearchResponse is the top-level response from the artist search endpoint.
type SearchResponse struct {
	Created string     `json:"created"`
	Count   int        `json:"count"`
	Offset  int        `json:"offset"`
	Artists []MBArtist `json:"artists"`
}

// MBArtist represents a MusicBrainz artist entity as returned by search.
type MBArtist struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	SortName       string     `json:"sort-name"`
	Type           string     `json:"type"`
	Disambiguation string     `json:"disambiguation"`
	Country        string     `json:"country"`
	Score          int        `json:"score"`
	LifeSpan       MBLifeSpan `json:"life-span"`
	Aliases        []MBAlias  `json:"aliases"`
}

// MBLifeSpan represents the begin/end dates of an artist.
type MBLifeSpan struct {
	Begin string `json:"begin"`
	End   string `json:"end"`
	Ended bool   `json:"ended"`
}

// MBAlias represents an alternative name for an artist.
type MBAlias struct {
	Name     string `json:"name"`
	SortName string `json:"sort-name"`
	Type     string `json:"type"`
	Locale   string `json:"locale"`
	Primary  bool   `json:"primary"`
}
