package models

// Genre is a catalog genre tag
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// CatalogTitle is a movie or TV title as described by the external catalog
type CatalogTitle struct {
	ID          int     `json:"id"`
	MediaType   string  `json:"media_type"`
	Name        string  `json:"name"`
	Overview    string  `json:"overview,omitempty"`
	Genres      []Genre `json:"genres,omitempty"`
	Year        int     `json:"year,omitempty"`
	PosterPath  string  `json:"poster_path,omitempty"`
	PosterURL   string  `json:"poster_url,omitempty"`
	Runtime     int     `json:"runtime,omitempty"`
	Seasons     int     `json:"seasons,omitempty"`
	Episodes    int     `json:"episodes,omitempty"`
	VoteAverage float64 `json:"vote_average,omitempty"`
}

// GenreNames joins the genre names the way items store them
func (t CatalogTitle) GenreNames() string {
	out := ""
	for i, g := range t.Genres {
		if i > 0 {
			out += ", "
		}
		out += g.Name
	}
	return out
}
