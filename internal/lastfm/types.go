package lastfm

// Tag represents a Last.fm tag with popularity count.
type Tag struct {
	Name  string `json:"name"`
	Count int    `json:"count,omitempty"` // Present in album.getTopTags, absent in artist.getTopTags
	URL   string `json:"url"`
}

// Album is one album.search match.
type Album struct {
	Name   string  `json:"name"`
	Artist string  `json:"artist"`
	URL    string  `json:"url"`
	Image  []Image `json:"image"`
}

// Image is an album cover at one size: small, medium, large or extralarge.
type Image struct {
	URL  string `json:"#text"`
	Size string `json:"size"`
}

// albumSearchResponse is the JSON response for album.search.
type albumSearchResponse struct {
	Results struct {
		AlbumMatches struct {
			Album []Album `json:"album"`
		} `json:"albummatches"`
	} `json:"results"`
}

// topTagsResponse is the JSON response for album.getTopTags and
// artist.getTopTags.
type topTagsResponse struct {
	TopTags struct {
		Tag []Tag `json:"tag"`
	} `json:"toptags"`
}

// apiError represents a Last.fm API error response.
type apiError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}
