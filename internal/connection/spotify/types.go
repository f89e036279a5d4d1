package spotify

// Artist is the part of a Spotify artist object the export needs.
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Album is a saved album with its credited artists.
type Album struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Artists []Artist `json:"artists"`
}

// followedArtists is the GET /me/following response.
type followedArtists struct {
	Artists struct {
		Items   []Artist `json:"items"`
		Next    *string  `json:"next"`
		Cursors struct {
			After string `json:"after"`
		} `json:"cursors"`
		Total int `json:"total"`
	} `json:"artists"`
}

// savedAlbums is the GET /me/albums response.
type savedAlbums struct {
	Items []struct {
		Album Album `json:"album"`
	} `json:"items"`
	Next  *string `json:"next"`
	Total int     `json:"total"`
}

// Library is the deduplicated export: every followed artist and every
// artist credited on a saved album, plus the saved album names. Both
// lists are sorted.
type Library struct {
	Artists []string
	Albums  []string
}
