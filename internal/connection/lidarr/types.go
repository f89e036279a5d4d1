package lidarr

// SystemStatus represents the response from GET /api/v1/system/status.
type SystemStatus struct {
	Version string `json:"version"`
	AppName string `json:"appName"`
}

// Artist represents an artist from GET /api/v1/artist or the lookup endpoint.
// Lookup results for artists not yet in the library have ID 0.
type Artist struct {
	ID                int     `json:"id"`
	ArtistName        string  `json:"artistName"`
	ForeignArtistID   string  `json:"foreignArtistId"`
	Disambiguation    string  `json:"disambiguation,omitempty"`
	Path              string  `json:"path,omitempty"`
	Monitored         bool    `json:"monitored"`
	QualityProfileID  int     `json:"qualityProfileId,omitempty"`
	MetadataProfileID int     `json:"metadataProfileId,omitempty"`
	Images            []Image `json:"images,omitempty"`
}

// Image is an artwork reference carried over from lookup to creation.
type Image struct {
	CoverType string `json:"coverType"`
	URL       string `json:"url,omitempty"`
	RemoteURL string `json:"remoteUrl,omitempty"`
}

// Profile is a quality or metadata profile. Lidarr has no explicit default
// flag; IsDefault is derived from the profile name.
type Profile struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"-"`
}

// RootFolder represents a root folder from GET /api/v1/rootfolder.
type RootFolder struct {
	ID         int    `json:"id"`
	Path       string `json:"path"`
	Accessible bool   `json:"accessible"`
}

// AddArtistRequest holds what the caller decides when registering an artist.
type AddArtistRequest struct {
	MBID              string
	RootFolder        string
	QualityProfileID  int
	MetadataProfileID int
	Monitor           string
}

// AddOptions is the addOptions block of POST /api/v1/artist.
type AddOptions struct {
	Monitor                string `json:"monitor"`
	SearchForMissingAlbums bool   `json:"searchForMissingAlbums"`
}

// AddArtistBody is the request body for POST /api/v1/artist.
type AddArtistBody struct {
	ForeignArtistID   string     `json:"foreignArtistId"`
	ArtistName        string     `json:"artistName"`
	QualityProfileID  int        `json:"qualityProfileId"`
	MetadataProfileID int        `json:"metadataProfileId"`
	Monitored         bool       `json:"monitored"`
	RootFolderPath    string     `json:"rootFolderPath"`
	Images            []Image    `json:"images"`
	Tags              []int      `json:"tags"`
	AddOptions        AddOptions `json:"addOptions"`
}

// CommandBody is the request body for POST /api/v1/command.
type CommandBody struct {
	Name     string `json:"name"`
	ArtistID int    `json:"artistId,omitempty"`
}

// CommandResponse is the response from POST /api/v1/command.
type CommandResponse struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// validationFailure is one entry of Lidarr's 400 response body.
type validationFailure struct {
	PropertyName string `json:"propertyName"`
	ErrorMessage string `json:"errorMessage"`
}
